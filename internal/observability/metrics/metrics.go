package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the loan conversation flow.
type ConversationMetrics struct {
	eventsTotal      *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	decisionLatency  prometheus.Histogram
	documentsTotal   *prometheus.CounterVec
	downloadsTotal   prometheus.Counter
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Total inbound conversation events",
		}, []string{"event_type", "stage"}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "conversation",
			Name:      "stage_transitions_total",
			Help:      "Total committed stage transitions",
		}, []string{"from", "to"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "underwriting",
			Name:      "decisions_total",
			Help:      "Total terminal underwriting decisions",
		}, []string{"outcome", "reason"}),
		decisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loanchat",
			Subsystem: "underwriting",
			Name:      "decision_latency_seconds",
			Help:      "Latency from underwriting event to terminal decision",
			Buckets:   prometheus.DefBuckets,
		}),
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "documents",
			Name:      "generated_total",
			Help:      "Total sanction letter generations",
		}, []string{"status"}),
		downloadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "documents",
			Name:      "downloads_total",
			Help:      "Total artifact downloads served",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.eventsTotal,
		m.stageTransitions,
		m.decisionsTotal,
		m.decisionLatency,
		m.documentsTotal,
		m.downloadsTotal,
	)
	return m
}

func (m *ConversationMetrics) ObserveEvent(eventType, stage string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, stage).Inc()
}

func (m *ConversationMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.stageTransitions.WithLabelValues(from, to).Inc()
}

func (m *ConversationMetrics) ObserveDecision(outcome, reason string, seconds float64) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.decisionsTotal.WithLabelValues(outcome, reason).Inc()
	m.decisionLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveDocument(status string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveDownload() {
	if m == nil {
		return
	}
	m.downloadsTotal.Inc()
}

// UpstreamMetrics exposes counters/histograms for the external data clients.
type UpstreamMetrics struct {
	requestsTotal  *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	m := &UpstreamMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total upstream lookups by terminal result",
		}, []string{"service", "result"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanchat",
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total retry attempts against upstream services",
		}, []string{"service"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loanchat",
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Latency of upstream lookups including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.retriesTotal, m.requestLatency)
	return m
}

func (m *UpstreamMetrics) ObserveRequest(service, result string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(service, result).Inc()
	m.requestLatency.WithLabelValues(service).Observe(seconds)
}

func (m *UpstreamMetrics) ObserveRetry(service string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(service).Inc()
}
