package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/i18n"
	"github.com/abduss/imagehost/internal/images"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/abduss/imagehost/internal/server"
	"github.com/abduss/imagehost/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// imageStore is implemented by images.DiskStore and images.MinIOStore.
type imageStore interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

func runServe(ctx context.Context) error {
	log := zap.L()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	if cfg.Postgres.AutoMigrate {
		version, err := storage.Migrate(cfg.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema up to date", zap.Uint("version", version))
	}

	bundle, err := i18n.NewBundle(cfg.Locale.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	store, objectStore, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	validator := images.NewValidator(cfg.Upload.MaxFileSize, cfg.Upload.MaxImagePixels, cfg.Upload.AllowedExtensions)
	imageService := images.NewService(
		images.NewRepository(dbPool, cfg.Postgres.AcquireTimeout),
		store,
		validator,
		images.Options{BaseURL: cfg.Upload.BaseURL, ItemsPerPage: cfg.Upload.ItemsPerPage},
	)

	authService := auth.NewService(cfg.Auth)
	if !authService.Enabled() {
		log.Warn("admin authentication disabled, DELETE /api/images/:id is public")
	}

	metrics.InitMetrics()

	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		DB:           dbPool,
		ObjectStore:  objectStore,
		AuthService:  authService,
		ImageService: imageService,
		Bundle:       bundle,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("imagehost API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage", cfg.Storage.Backend),
			zap.Strings("allowed_extensions", cfg.Upload.AllowedExtensions),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openImageStore returns the configured byte store and, for MinIO, the
// client used by the readiness probe.
func openImageStore(ctx context.Context, cfg config.Config) (imageStore, server.BucketChecker, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinIO:
		client, err := storage.OpenMinIO(ctx, cfg.Storage.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("connect minio: %w", err)
		}
		return images.NewMinIOStore(client, cfg.Storage.MinIO.Bucket, cfg.Storage.MinIO.PresignTTL), client, nil
	default:
		store, err := images.NewDiskStore(cfg.Upload.ImagesDir)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
