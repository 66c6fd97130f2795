package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-tg-payments/app/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg.Database)
		defer db.Close()

		ctx := context.Background()
		if err := repository.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}

		version, err := repository.MigrationVersion(ctx, db, cfg.Database.Driver)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to read migration version")
		}
		logrus.WithField("driver", cfg.Database.Driver).WithField("version", version).Info("Migrations applied")
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema version",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg.Database)
		defer db.Close()

		version, err := repository.MigrationVersion(context.Background(), db, cfg.Database.Driver)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to read migration version")
		}
		logrus.WithField("driver", cfg.Database.Driver).WithField("version", version).Info("Schema version")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
