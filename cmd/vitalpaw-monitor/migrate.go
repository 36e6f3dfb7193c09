package main

import (
	"context"

	"github.com/spf13/cobra"

	"vitalpaw-monitor/common/database"
)

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.NewPostgresDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			return database.RunMigrations(context.Background(), db, dir, logger)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "Directory of *.sql migration files")
	return cmd
}
