package main

import (
	"fmt"

	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			version, err := storage.Migrate(cfg.Postgres.DSN())
			if err != nil {
				return err
			}
			zap.L().Info("schema up to date", zap.Uint("version", version))
			return nil
		},
	}
}
