package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics counts inbound events and per-code outcomes so designed
// skips are visible apart from failures.
type IngestMetrics struct {
	events   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_events_total",
		Help:      "Inbound webhook events by result status.",
	}, []string{"status"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_item_outcomes_total",
		Help:      "Per product code outcomes of the order state machine.",
	}, []string{"outcome"})
	reg.MustRegister(events, outcomes)
	return &IngestMetrics{events: events, outcomes: outcomes}
}

func (m *IngestMetrics) IncEvent(status string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *IngestMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// OutboundMetrics covers pacing and provider sends.
type OutboundMetrics struct {
	sends       *prometheus.CounterVec
	delay       *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	statuses    *prometheus.CounterVec
}

func NewOutboundMetrics(reg prometheus.Registerer) *OutboundMetrics {
	if reg == nil {
		return &OutboundMetrics{}
	}
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_sends_total",
		Help:      "Automated messages handed to the provider.",
	}, []string{"message_type", "channel", "status"})
	delay := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "outbound_pacing_delay_seconds",
		Help:      "Total pacing delay applied before a send.",
		Buckets:   []float64{1, 3, 5, 8, 12, 20, 30, 45, 60, 90},
	}, []string{"channel"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_rate_limited_total",
		Help:      "Sends that hit the tenant rate ceiling.",
	}, []string{"channel"})
	statuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbound_status_callbacks_total",
		Help:      "Delivery status callbacks by applied result.",
	}, []string{"result"})
	reg.MustRegister(sends, delay, rateLimited, statuses)
	return &OutboundMetrics{sends: sends, delay: delay, rateLimited: rateLimited, statuses: statuses}
}

func (m *OutboundMetrics) IncSend(messageType, channel, status string) {
	if m == nil || m.sends == nil {
		return
	}
	m.sends.WithLabelValues(normalizeLabel(messageType), normalizeLabel(channel), normalizeLabel(status)).Inc()
}

func (m *OutboundMetrics) ObserveDelay(channel string, d time.Duration) {
	if m == nil || m.delay == nil {
		return
	}
	m.delay.WithLabelValues(normalizeLabel(channel)).Observe(d.Seconds())
}

func (m *OutboundMetrics) IncRateLimited(channel string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *OutboundMetrics) IncStatusCallback(result string) {
	if m == nil || m.statuses == nil {
		return
	}
	m.statuses.WithLabelValues(normalizeLabel(result)).Inc()
}
