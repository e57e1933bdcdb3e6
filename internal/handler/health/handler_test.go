package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func setup(checks map[string]Pinger, reg prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(checks, reg).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	up := setup(map[string]Pinger{"database": PingFunc(func(context.Context) error { return nil })}, nil)
	assert.Equal(t, http.StatusOK, get(up, "/api/v1/health/ready").Code)

	down := setup(map[string]Pinger{"database": PingFunc(func(context.Context) error { return errors.New("refused") })}, nil)
	w := get(down, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database unavailable")
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestLivenessAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "clinic_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	r := setup(nil, reg)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/health/live").Code)

	w := get(r, "/api/v1/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinic_test_total 1")
}
