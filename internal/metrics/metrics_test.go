package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registered(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest(http.MethodPost, "/login", http.StatusOK, 20*time.Millisecond)
	m.ObserveEvent("session.issued", "success")
	m.ObserveDrop()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	registered := make(map[string]bool)
	for _, family := range families {
		registered[family.GetName()] = true
	}

	for _, name := range []string{
		"compass_auth_http_requests_total",
		"compass_auth_http_request_duration_seconds",
		"compass_auth_events_total",
		"compass_auth_events_dropped_total",
	} {
		assert.True(t, registered[name], "metric %q should be registered", name)
	}
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest(http.MethodPost, "", http.StatusNotFound, time.Millisecond)
	m.ObserveEvent("login.failed", "failure")
	m.ObserveEvent("login.failed", "failure")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodPost, "unmatched", "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login.failed", "failure")))

	var nilMetrics *Metrics
	nilMetrics.ObserveEvent("ignored", "success")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveEvent("session.refreshed", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `compass_auth_events_total{status="success",type="session.refreshed"} 1`)
}
