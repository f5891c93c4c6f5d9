package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/service"
)

func newSystemRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)
	return router
}

func TestHealthReportsGeneratorPhase(t *testing.T) {
	h := NewMetricsHandler(nil, nil, func() string { return "SCHEDULING" })
	w := httptest.NewRecorder()
	newSystemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","generator":"SCHEDULING"}`, w.Body.String())
}

func TestReadyDegradesOnFailedCheck(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Checker{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}, nil)

	w := httptest.NewRecorder()
	newSystemRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordGenerationRun("success")

	w := httptest.NewRecorder()
	newSystemRouter(NewMetricsHandler(metrics, nil, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "timetable_generation_runs_total")

	w = httptest.NewRecorder()
	newSystemRouter(NewMetricsHandler(nil, nil, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
