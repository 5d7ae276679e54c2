package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/storage"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE:  runInitDB,
	}
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts, err := storageOptions(cfg.DataBackend, cfg.SQLiteDBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	repo, err := storage.Open(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	defer repo.Close()

	logger.WithComponent(log.ComponentStorage).Info("Schema initialized",
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpMigrate)
	return nil
}

func storageOptions(backendType, sqlitePath, databaseURL string) (storage.Options, error) {
	switch backend.BackendType(backendType) {
	case backend.SQLiteBackend:
		return storage.Options{Dialect: storage.SQLite, DSN: sqlitePath}, nil
	case backend.PostgresBackend:
		return storage.Options{Dialect: storage.Postgres, DSN: databaseURL}, nil
	default:
		return storage.Options{}, fmt.Errorf("backend %q has no schema to initialize", backendType)
	}
}
