package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay activity. A nil *Metrics is valid and records
// nothing, so tests can pass nil without a registry.
type Metrics struct {
	connections prometheus.Gauge
	relayed     prometheus.Counter
	failures    *prometheus.CounterVec
	dropped     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zapline_ws_connections",
			Help: "Number of websocket connections currently registered.",
		}),
		relayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapline_ws_messages_relayed_total",
			Help: "Messages durably stored and broadcast to a room.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zapline_ws_relay_failures_total",
			Help: "Rejected or failed relay operations by reason.",
		}, []string{"reason"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapline_ws_events_dropped_total",
			Help: "Outbound events dropped because a client send buffer was full.",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) MessageRelayed() {
	if m != nil {
		m.relayed.Inc()
	}
}

func (m *Metrics) RelayFailed(reason string) {
	if m != nil {
		m.failures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) EventDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}
