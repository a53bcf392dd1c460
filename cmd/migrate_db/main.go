package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/myelectricaldata/importer/internal/config"
	"github.com/myelectricaldata/importer/internal/platform/db"
	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

var migrationsSource = "file://db/migrations"

var rootCmd = &cobra.Command{
	Use: "migrate_db",
}

var upCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performDbMigration("up")
	},
}

var downCmd = &cobra.Command{
	Use:   "downgrade",
	Short: "Revert the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performDbMigration("down")
	},
}

type loggerWrapper struct {
	*logrus.Logger
}

func (lw loggerWrapper) Verbose() bool {
	return true
}

func performDbMigration(direction string) error {

	cfg := config.GetConfig()
	logger.Log.Info("Starting importer DB migration")
	logger.Log.Info("Importer configuration:\n", cfg)

	if cfg.DatabaseImpl != "postgres" {
		logger.Log.Info("Only postgres schemas are migrated, sqlite is migrated by the importer on start")
		return nil
	}

	postgresDb, err := db.InitializePostgresConnection(cfg)
	if err != nil {
		logger.LogError("Unable to initialize database connection", err)
		return err
	}
	defer postgresDb.Close()

	driver, err := postgres.WithInstance(postgresDb, &postgres.Config{})
	if err != nil {
		logger.LogError("Unable to get postgres driver from database connection", err)
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsSource, "postgres", driver)
	if err != nil {
		logger.LogError("Unable to initialize database migration util", err)
		return err
	}

	m.Log = loggerWrapper{logger.Log}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		return errors.New("Invalid operation: " + direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Log.Info("DB migration resulted in no changes")
	} else if err != nil {
		logger.LogError("DB migration resulted in an error", err)
		return err
	}

	return nil
}

func main() {

	logger.InitLogger()
	defer logger.FlushLogger()

	rootCmd.PersistentFlags().StringVar(&migrationsSource, "source", migrationsSource, "location of the migration files")
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)

	err := rootCmd.Execute()
	if err != nil {
		logger.FlushLogger()
		os.Exit(1)
	}
}
