package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded()
	c.DisplayMode("avatar_full")
	c.DisplayMode("avatar_full")
	c.ControlMessageDropped("not_json")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.displayModes.WithLabelValues("avatar_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.controlDropped.WithLabelValues("not_json")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nora_sessions_started_total 2")
}
