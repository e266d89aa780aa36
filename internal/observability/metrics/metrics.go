package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChatMetrics exposes counters/histograms for dialogue turns, bookings and
// knowledge retrieval.
type ChatMetrics struct {
	turnsTotal        *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	recordGapsTotal   prometheus.Counter
	retrievalLatency  *prometheus.HistogramVec
	retrievalFailures *prometheus.CounterVec
	voiceEventsTotal  *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restaurant",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Dialogue turns by classified intent and channel",
		}, []string{"intent", "channel"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restaurant",
			Subsystem: "booking",
			Name:      "finalize_total",
			Help:      "Finalize attempts by outcome",
		}, []string{"outcome", "replayed"}),
		recordGapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restaurant",
			Subsystem: "booking",
			Name:      "record_gaps_total",
			Help:      "Bookings whose calendar event exists but whose record could not be stored",
		}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restaurant",
			Subsystem: "knowledge",
			Name:      "search_latency_seconds",
			Help:      "Latency of one namespace search",
			Buckets:   prometheus.DefBuckets,
		}, []string{"namespace"}),
		retrievalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restaurant",
			Subsystem: "knowledge",
			Name:      "search_failures_total",
			Help:      "Namespace searches that failed and were treated as empty",
		}, []string{"namespace"}),
		voiceEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restaurant",
			Subsystem: "voice",
			Name:      "webhook_events_total",
			Help:      "Voice webhook events by message type",
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal, m.recordGapsTotal, m.retrievalLatency, m.retrievalFailures, m.voiceEventsTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(intent, channel string) {
	if m == nil {
		return
	}
	if channel == "" {
		channel = "unknown"
	}
	m.turnsTotal.WithLabelValues(intent, channel).Inc()
}

func (m *ChatMetrics) ObserveBooking(outcome string, replayed, recordGap bool) {
	if m == nil {
		return
	}
	label := "false"
	if replayed {
		label = "true"
	}
	m.bookingsTotal.WithLabelValues(outcome, label).Inc()
	if recordGap {
		m.recordGapsTotal.Inc()
	}
}

// ObserveRetrieval satisfies knowledge.RetrievalObserver.
func (m *ChatMetrics) ObserveRetrieval(namespace string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(namespace).Observe(elapsed.Seconds())
	if err != nil {
		m.retrievalFailures.WithLabelValues(namespace).Inc()
	}
}

func (m *ChatMetrics) ObserveVoiceEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "missing"
	}
	m.voiceEventsTotal.WithLabelValues(eventType).Inc()
}
