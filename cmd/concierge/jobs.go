package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ktwhotel/concierge/internal/config"
	"github.com/ktwhotel/concierge/internal/db"
	"github.com/ktwhotel/concierge/internal/models"
	"github.com/ktwhotel/concierge/internal/scheduler"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel scheduled jobs",
	}

	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsCancelCmd())
	return cmd
}

func newJobsListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Open(cfg.Database.DSN)
			if err != nil {
				return err
			}

			q := gormDB.Where("tenant_id = ?", cfg.TenantID)
			if status != "" {
				q = q.Where("status = ?", status)
			}
			var jobs []models.Job
			if err := q.Order("run_at").Limit(200).Find(&jobs).Error; err != nil {
				return fmt.Errorf("jobs: list: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tTYPE\tSTATUS\tRUN AT\tRETRIES")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n",
					j.JobID, j.JobType, j.Status, j.RunAt.Format("2006-01-02 15:04"), j.RetryCount, j.MaxRetries)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, running, completed, failed, cancelled)")
	return cmd
}

func newJobsCancelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Open(cfg.Database.DSN)
			if err != nil {
				return err
			}
			engine, err := scheduler.NewEngine(scheduler.EngineOpts{DB: gormDB})
			if err != nil {
				return err
			}
			if err := engine.Cancel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}
