package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.RequestsTotal)
	assert.NotNil(t, m.RequestDuration)
	assert.NotNil(t, m.UpdatesTotal)
	assert.NotNil(t, m.ModelCallDuration)
	assert.NotNil(t, m.AlertsTotal)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("submit_update", "201")
	m.RecordRequest("submit_update", "201")
	m.RecordRequest("get_project", "404")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pulsetrack_requests_total{route="submit_update",status="201"} 2`)
	assert.Contains(t, body, `pulsetrack_requests_total{route="get_project",status="404"} 1`)
}

func TestMetrics_RecordUpdate(t *testing.T) {
	m := New()
	m.RecordUpdate("processed")
	m.RecordUpdate("processing_failed")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pulsetrack_updates_total{outcome="processed"} 1`)
	assert.Contains(t, body, `pulsetrack_updates_total{outcome="processing_failed"} 1`)
}

func TestMetrics_RecordAlert(t *testing.T) {
	m := New()
	m.RecordAlert("blocker_surge", "high")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pulsetrack_risk_alerts_total{severity="high",type="blocker_surge"} 1`)
}

func TestMetrics_RecordModelCall(t *testing.T) {
	m := New()
	m.RecordModelCall("ok", 2*time.Second)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "pulsetrack_model_call_duration_seconds")
}

func TestMetrics_RecordError(t *testing.T) {
	m := New()
	m.RecordError("processor", "processing_failed")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `pulsetrack_errors_total{module="processor",type="processing_failed"} 1`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	handler := m.Handler()
	assert.NotNil(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	return strings.TrimSpace(string(body))
}
