// Package metrics provides Prometheus instrumentation for the Koinonia backend.
package metrics

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path pattern, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "koinonia",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "koinonia",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SeatSyncsTotal counts subscription seat reconciliations by result.
	SeatSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "koinonia",
			Name:      "billing_seat_syncs_total",
			Help:      "Total subscription seat reconciliations by result.",
		},
		[]string{"result"},
	)

	// CheckoutSessionsTotal counts Stripe checkout sessions created.
	CheckoutSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "koinonia",
			Name:      "billing_checkout_sessions_total",
			Help:      "Total Stripe checkout sessions created.",
		},
	)

	// StripeCallsTotal counts outbound Stripe API calls by operation and result.
	StripeCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "koinonia",
			Name:      "stripe_calls_total",
			Help:      "Total outbound Stripe API calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	// MessagesPostedTotal counts discussion messages created.
	MessagesPostedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "koinonia",
			Name:      "messages_posted_total",
			Help:      "Total discussion messages posted.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "koinonia", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "koinonia", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SeatSyncsTotal,
		CheckoutSessionsTotal,
		StripeCallsTotal,
		MessagesPostedTotal,
		DBOpenConnections,
		DBInUseConnections,
	)
}

// Middleware records request counts and latency. The gin route pattern is
// used as the path label so IDs don't explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// CollectDBStats periodically exports connection-pool gauges until ctx ends.
func CollectDBStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
		case <-ctx.Done():
			return
		}
	}
}
