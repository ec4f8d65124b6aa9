package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ktwhotel/concierge/internal/chat"
	"github.com/ktwhotel/concierge/internal/config"
	"github.com/ktwhotel/concierge/internal/core"
	"github.com/ktwhotel/concierge/internal/db"
	"github.com/ktwhotel/concierge/internal/flow"
	"github.com/ktwhotel/concierge/internal/llm"
	"github.com/ktwhotel/concierge/internal/mail"
	"github.com/ktwhotel/concierge/internal/pending"
	"github.com/ktwhotel/concierge/internal/pms"
	"github.com/ktwhotel/concierge/internal/router"
	"github.com/ktwhotel/concierge/internal/scheduler"
	"github.com/ktwhotel/concierge/internal/server"
	"github.com/ktwhotel/concierge/internal/session"
	"github.com/ktwhotel/concierge/internal/weather"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the concierge service",
		Long:  "Starts the webhook listener, conversation loop, scheduler worker, and admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runServe(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	secrets := config.LoadSecrets()
	if secrets.ChannelSecret == "" || secrets.AccessToken == "" {
		return fmt.Errorf("serve: CHANNEL_SECRET and CHANNEL_ACCESS_TOKEN are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	sessions, err := session.NewStore(session.StoreOpts{DB: gormDB})
	if err != nil {
		return err
	}
	pendingStore, err := pending.NewStore(pending.StoreOpts{DB: gormDB, TenantID: cfg.TenantID})
	if err != nil {
		return err
	}
	engine, err := scheduler.NewEngine(scheduler.EngineOpts{DB: gormDB})
	if err != nil {
		return err
	}

	pmsClient, err := pms.NewClient(pms.ClientOpts{
		BaseURL: cfg.PMS.BaseURL,
		Timeout: cfg.PMSTimeout(),
	})
	if err != nil {
		return err
	}

	adapter, err := chat.NewWebhook(chat.WebhookOpts{
		ChannelSecret: secrets.ChannelSecret,
		AccessToken:   secrets.AccessToken,
		APIBase:       cfg.Chat.APIBase,
	})
	if err != nil {
		return err
	}
	defer adapter.Close()

	deps := flow.Deps{
		DB:         gormDB,
		PMS:        pmsClient,
		Pending:    pendingStore,
		Engine:     engine,
		TenantID:   cfg.TenantID,
		FrontDesk:  cfg.Hotel.FrontDesk,
		BookingURL: cfg.Hotel.BookingURL,
		ReviewLink: cfg.Hotel.ReviewURL,
	}
	if cfg.Mail.BaseURL != "" && secrets.MailToken != "" {
		archive, err := mail.NewArchive(mail.ArchiveOpts{
			BaseURL: cfg.Mail.BaseURL,
			Token:   secrets.MailToken,
		})
		if err != nil {
			return err
		}
		deps.Mail = archive
	}
	if secrets.WeatherKey != "" {
		cwa, err := weather.NewCWA(weather.CWAOpts{
			BaseURL:  cfg.Weather.BaseURL,
			APIKey:   secrets.WeatherKey,
			Location: cfg.Hotel.Location,
		})
		if err != nil {
			return err
		}
		deps.Weather = cwa
	}

	orderQuery, err := flow.NewOrderQuery(deps)
	if err != nil {
		return err
	}
	sameDay, err := flow.NewSameDay(deps)
	if err != nil {
		return err
	}
	cancelFlow, err := flow.NewCancel(deps)
	if err != nil {
		return err
	}

	routerOpts := router.Opts{OrderQuery: orderQuery, SameDay: sameDay, Cancel: cancelFlow}
	var loopVision core.Vision
	if secrets.LLMKey != "" {
		concierge, err := llm.New(ctx, llm.Opts{
			APIKey:      secrets.LLMKey,
			Model:       cfg.LLM.Model,
			VisionModel: cfg.LLM.VisionModel,
			PMS:         pmsClient,
			Weather:     deps.Weather,
			StartBooking: func(ctx context.Context, s *session.Session) (string, error) {
				return sameDay.Start(ctx, s, "").Reply, nil
			},
		})
		if err != nil {
			return err
		}
		defer concierge.Close()
		routerOpts.Fallback = concierge
		loopVision = concierge
	}

	rt, err := router.New(routerOpts)
	if err != nil {
		return err
	}
	loop, err := core.New(core.Opts{
		Chat:     adapter,
		Sessions: sessions,
		Router:   rt,
		DB:       gormDB,
		TenantID: cfg.TenantID,
		Vision:   loopVision,
	})
	if err != nil {
		return err
	}

	core.RegisterReminders(engine, adapter, cfg.Hotel.ReviewURL)
	engine.Start(ctx)
	defer engine.Stop()

	sweeps, err := core.StartSweeps(ctx, pendingStore, core.RetryPending(pmsClient, pendingStore, adapter))
	if err != nil {
		return err
	}
	defer sweeps.Stop()

	go func() {
		if err := loop.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("serve: loop stopped: %v", err)
			stop()
		}
	}()

	return server.Start(ctx, server.StartOpts{
		DB:       gormDB,
		Sessions: sessions,
		TenantID: cfg.TenantID,
		Addr:     cfg.Server.Addr,
		Webhook:  adapter.Handler,
		Out:      out,
	})
}
