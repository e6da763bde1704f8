package main

import (
	"greencity/internal/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the postgres schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		return repository.Migrate(cmd.Context(), db)
	},
}
