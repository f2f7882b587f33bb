package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// AdminStatsHandler renders selected Prometheus metrics as JSON so the
// admin UI does not have to parse the exposition format.
type AdminStatsHandler struct {
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewAdminStatsHandler creates a stats handler. A nil gatherer falls back
// to the default registry.
func NewAdminStatsHandler(gatherer prometheus.Gatherer, logger *logging.Logger) *AdminStatsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminStatsHandler{gatherer: gatherer, logger: logger}
}

// StatSeries is one metric series with its label set.
type StatSeries struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Stats handles GET /admin/stats. Only rosatel_* metrics are included.
func (h *AdminStatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	families, err := h.gatherer.Gather()
	if err != nil {
		h.logger.Error("stats: gather failed", "error", err)
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	out := make(map[string][]StatSeries)
	for _, fam := range families {
		name := fam.GetName()
		if len(name) < 8 || name[:8] != "rosatel_" {
			continue
		}
		for _, m := range fam.GetMetric() {
			series := StatSeries{Value: metricValue(fam.GetType(), m)}
			if len(m.GetLabel()) > 0 {
				series.Labels = make(map[string]string, len(m.GetLabel()))
				for _, lp := range m.GetLabel() {
					series.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			out[name] = append(out[name], series)
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	case dto.MetricType_SUMMARY:
		return float64(m.GetSummary().GetSampleCount())
	default:
		return m.GetUntyped().GetValue()
	}
}
