package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CorrelationIDHeader carries the request correlation id in and out.
const CorrelationIDHeader = "X-Request-ID"

const (
	correlationIDKey       = "correlationID"
	maxCorrelationIDLength = 128
)

type ctxKey struct{}

// Init builds the process logger from LOG_LEVEL, LOG_FORMAT (json|console)
// and LOG_FILE, and installs it as the zap global.
func Init() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level, err := zap.ParseAtomicLevel(strings.ToLower(lvl))
		if err != nil {
			return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
		}
		cfg.Level = level
	}

	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if file := os.Getenv("LOG_FILE"); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

// WithContext stores a request-scoped logger in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// Middleware tags every request with a correlation id, exposes a
// request-scoped logger through the request context and logs the outcome.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLength {
			id = uuid.NewString()
		}
		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)

		reqLog := zap.L().With(zap.String("request_id", id))
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), reqLog))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if ce := reqLog.Check(level, "http request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", c.Writer.Size()),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}

// CorrelationID returns the id assigned by Middleware, or "".
func CorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
