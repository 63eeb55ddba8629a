package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsRequests(t *testing.T) {
	HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/orgs/:id", func(c *gin.Context) { c.Status(200) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/orgs/org_123", nil))

	c, err := HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/v1/orgs/:id", "200")
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/nonexistent", nil))

	c, err := HTTPRequestsTotal.GetMetricWithLabelValues("GET", "unmatched", "404")
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
}

func TestSeatSyncCounter(t *testing.T) {
	SeatSyncsTotal.Reset()
	SeatSyncsTotal.WithLabelValues("success").Inc()
	SeatSyncsTotal.WithLabelValues("success").Inc()
	SeatSyncsTotal.WithLabelValues("error").Inc()

	c, err := SeatSyncsTotal.GetMetricWithLabelValues("success")
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	assert.Equal(t, 2.0, m.Counter.GetValue())

	c, err = SeatSyncsTotal.GetMetricWithLabelValues("error")
	require.NoError(t, err)
	m = &dto.Metric{}
	require.NoError(t, c.Write(m))
	assert.Equal(t, 1.0, m.Counter.GetValue())
}

func TestMetricsHandler(t *testing.T) {
	// Ensure at least one sample exists so the family is exported.
	HTTPRequestsTotal.WithLabelValues("GET", "/seed", "200").Inc()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "koinonia_http_requests_total")
}
