package printer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bambuwatch"

// Metrics instruments the delivery path. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// ReportsReceived counts every message handed to the client.
	ReportsReceived prometheus.Counter

	// DecodeFailures counts messages dropped because they were not JSON objects.
	DecodeFailures prometheus.Counter

	// ConnectAttempts counts connection attempts by result (accepted/failed).
	ConnectAttempts *prometheus.CounterVec

	// ConnectionsLost counts broker-side drops of an established session.
	ConnectionsLost prometheus.Counter

	// Connected is 1 while a session is open, 0 otherwise.
	Connected prometheus.Gauge

	// StateFields is the number of top-level fields in the merged state.
	StateFields prometheus.Gauge

	// LastReport is the Unix time of the last merged report.
	LastReport prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg creates unregistered collectors, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_received_total",
			Help:      "Total number of MQTT messages received from the printer.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "report_decode_failures_total",
			Help:      "Total number of printer messages dropped because they were not JSON objects.",
		}),
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of connection attempts to the printer broker.",
		}, []string{"result"}), // result: accepted/failed
		ConnectionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_lost_total",
			Help:      "Total number of sessions dropped by the printer broker.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "Whether a session to the printer is open (1=open, 0=closed).",
		}),
		StateFields: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "state_fields",
			Help:      "Number of top-level fields in the merged printer state.",
		}),
		LastReport: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_report_timestamp_seconds",
			Help:      "Unix time of the last merged printer report.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReportsReceived,
			m.DecodeFailures,
			m.ConnectAttempts,
			m.ConnectionsLost,
			m.Connected,
			m.StateFields,
			m.LastReport,
		)
	}
	return m
}

func (m *Metrics) reportReceived() {
	if m == nil {
		return
	}
	m.ReportsReceived.Inc()
}

func (m *Metrics) decodeFailed() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

func (m *Metrics) connectAttempt(accepted bool) {
	if m == nil {
		return
	}
	result := "failed"
	if accepted {
		result = "accepted"
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) connectionLost() {
	if m == nil {
		return
	}
	m.ConnectionsLost.Inc()
	m.Connected.Set(0)
}

func (m *Metrics) setConnected(open bool) {
	if m == nil {
		return
	}
	if open {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) stateMerged(fields int, at time.Time) {
	if m == nil {
		return
	}
	m.StateFields.Set(float64(fields))
	m.LastReport.Set(float64(at.Unix()))
}
