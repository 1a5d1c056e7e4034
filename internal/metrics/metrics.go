package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagehost_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagehost_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagehost_uploads_total",
			Help: "Upload attempts by outcome.",
		},
		[]string{"outcome"},
	)

	uploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imagehost_upload_bytes",
			Help:    "Size of accepted uploads in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	deletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagehost_deletions_total",
			Help: "Deletion requests by outcome.",
		},
		[]string{"outcome"},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			uploadsTotal,
			uploadBytes,
			deletionsTotal,
		)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latency labelled by the route
// template, so /api/images/1 and /api/images/2 share a series.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordUpload counts an upload attempt. size is observed only for
// successful uploads.
func RecordUpload(outcome string, size int64) {
	uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		uploadBytes.Observe(float64(size))
	}
}

// RecordDeletion counts a deletion request.
func RecordDeletion(outcome string) {
	deletionsTotal.WithLabelValues(outcome).Inc()
}

// OutcomeOK labels successful operations; failures use the error kind name.
const OutcomeOK = "ok"
