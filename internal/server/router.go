package server

import (
	"context"
	"net/http"

	"github.com/abduss/imagehost/internal/auth"
	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/i18n"
	"github.com/abduss/imagehost/internal/images"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker is satisfied by *minio.Client.
type BucketChecker interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	DB           Pinger
	ObjectStore  BucketChecker // nil unless STORAGE_BACKEND=minio
	AuthService  *auth.Service
	ImageService *images.Service
	Bundle       *i18n.Bundle
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())
	router.Use(i18n.Middleware(deps.Bundle))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, deps.Bundle.T(c.Request.Context(), "welcome"))
	})

	api := router.Group("/api")
	auth.RegisterRoutes(api, deps.AuthService, deps.Bundle)
	images.RegisterRoutes(router, deps.ImageService, deps.Bundle, auth.RequireAdmin(deps.AuthService, deps.Bundle))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": deps.Bundle.T(c.Request.Context(), "error.not_found")})
	})

	return router
}
