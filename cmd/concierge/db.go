package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ktwhotel/concierge/internal/config"
	"github.com/ktwhotel/concierge/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Connects to the configured database and auto-migrates all tables. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gormDB, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	fmt.Fprintf(out, "Migrated %d tables for tenant %q\n", len(db.AllModels()), cfg.TenantID)
	return nil
}
