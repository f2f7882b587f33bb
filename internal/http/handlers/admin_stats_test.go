package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosatel/rosatel-ai-platform/internal/observability/metrics"
)

func TestAdminStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	m.ObserveTurn("whatsapp", "ok")
	m.ObserveTurn("whatsapp", "ok")
	m.ObserveTurn("widget", "error")

	h := NewAdminStatsHandler(reg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string][]StatSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	series, ok := out["rosatel_conversation_turns_total"]
	require.True(t, ok)
	require.Len(t, series, 2)

	total := 0.0
	for _, s := range series {
		total += s.Value
	}
	assert.InDelta(t, 3.0, total, 0.001)
}

func TestAdminStatsSkipsForeignMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "go_gc_total", Help: "x"})
	reg.MustRegister(other)
	other.Inc()

	h := NewAdminStatsHandler(reg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string][]StatSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out)
}
