package main

import (
	"fmt"

	"github.com/abduss/imagehost/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "imagehost",
		Short:         "Image hosting API: upload, gallery and deletion of images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logger.Init(); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
		// Without a subcommand the API server starts.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newMigrateCmd(), newHashPasswordCmd())
	return root
}
