package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceRecordGeneration(t *testing.T) {
	metrics := NewMetricsService()

	metrics.RecordGenerationRun(runResultSuccess)
	metrics.RecordGenerationRun(runResultBusy)
	metrics.RecordGeneration(7, 12, map[string]int{"NO_FACULTY": 2}, 3, time.Second)
	metrics.RecordGeneration(8, 10, map[string]int{"NO_FEASIBLE_SLOT": 1}, 1, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationRuns.WithLabelValues(runResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationRuns.WithLabelValues(runResultBusy)))
	assert.Equal(t, float64(8), testutil.ToFloat64(metrics.latestGeneration))
	assert.Equal(t, float64(10), testutil.ToFloat64(metrics.placedCourses))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.compactionMoves))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.droppedCourses))
}

func TestMetricsServiceHandler(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/timetables", http.StatusOK, 20*time.Millisecond)
	metrics.ObservePhase("SCHEDULING", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `timetable_generation_phase_seconds_count{phase="SCHEDULING"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordGenerationRun(runResultFailed)
	metrics.RecordGeneration(1, 1, nil, 0, time.Second)
	metrics.ObserveDBQuery("q", time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
