package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/abduss/imagehost/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := checkPostgres(ctx, deps); err != nil {
			logger.FromContext(ctx).Warn("readiness check failed", zap.String("component", "postgres"), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "postgres"})
			return
		}

		if err := checkMinIO(ctx, deps); err != nil {
			logger.FromContext(ctx).Warn("readiness check failed", zap.String("component", "minio"), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "minio"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func checkPostgres(ctx context.Context, deps Dependencies) error {
	if deps.DB == nil {
		return errors.New("no database configured")
	}
	return deps.DB.Ping(ctx)
}

func checkMinIO(ctx context.Context, deps Dependencies) error {
	if deps.ObjectStore == nil {
		return nil
	}
	bucket := deps.Config.Storage.MinIO.Bucket
	ok, err := deps.ObjectStore.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("bucket " + bucket + " does not exist")
	}
	return nil
}
