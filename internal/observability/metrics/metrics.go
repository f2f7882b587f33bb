package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the turn engine
// and channel delivery.
type ConversationMetrics struct {
	turnsTotal     *prometheus.CounterVec
	modelLatency   *prometheus.HistogramVec
	modelTokens    *prometheus.CounterVec
	effectsTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosatel",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed customer turns",
		}, []string{"channel", "status"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rosatel",
			Subsystem: "conversation",
			Name:      "model_latency_seconds",
			Help:      "Latency of model completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosatel",
			Subsystem: "conversation",
			Name:      "model_tokens_total",
			Help:      "Tokens exchanged with model providers",
		}, []string{"provider", "direction"}),
		effectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosatel",
			Subsystem: "conversation",
			Name:      "effects_total",
			Help:      "Structured effects extracted from model replies",
		}, []string{"type"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosatel",
			Subsystem: "channels",
			Name:      "outbound_total",
			Help:      "Outbound channel deliveries",
		}, []string{"channel", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rosatel",
			Subsystem: "channels",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.modelLatency, m.modelTokens, m.effectsTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(channel, status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(channel, status).Inc()
}

func (m *ConversationMetrics) ObserveModelLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *ConversationMetrics) AddModelTokens(provider string, input, output int) {
	if m == nil {
		return
	}
	if input > 0 {
		m.modelTokens.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		m.modelTokens.WithLabelValues(provider, "output").Add(float64(output))
	}
}

func (m *ConversationMetrics) ObserveEffect(effectType string) {
	if m == nil {
		return
	}
	m.effectsTotal.WithLabelValues(effectType).Inc()
}

func (m *ConversationMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *ConversationMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}
