package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema (sqlite) or indexes (mongo) and exit",
	Long: `Prepares the configured store. Migrations are idempotent and also run on
every "serve", so this command is only needed to prepare a store ahead of a
deploy.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		// Opening a store runs its migrations.
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.close()

		logger.Info("migrations applied", slog.String("db_driver", cfg.DBDriver))
		return nil
	},
}
