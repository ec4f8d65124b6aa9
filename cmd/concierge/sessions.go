package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ktwhotel/concierge/internal/config"
	"github.com/ktwhotel/concierge/internal/db"
	"github.com/ktwhotel/concierge/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset conversation sessions",
	}

	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsResetCmd())
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Print a user's persisted session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openSessionStore(configPath)
			if err != nil {
				return err
			}
			snap, err := store.Snapshot(cfg.TenantID, args[0])
			if err != nil {
				return err
			}
			buf, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("sessions: encode snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(buf))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func newSessionsResetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Reset a user's session to idle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openSessionStore(configPath)
			if err != nil {
				return err
			}
			if err := store.Delete(cfg.TenantID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session for %s reset\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func openSessionStore(configPath string) (*session.Store, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	store, err := session.NewStore(session.StoreOpts{DB: gormDB})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
