package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hr-toolkit/internal/migrations"
	"hr-toolkit/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()
		if cfg.Database.URL == "" {
			return fmt.Errorf("database url is not configured")
		}

		db, err := storage.NewStorage(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Up(cmd.Context(), db.DB); err != nil {
			return err
		}
		version, err := migrations.Version(cmd.Context(), db.DB)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "version", version)
		return nil
	},
}
