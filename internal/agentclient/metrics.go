package agentclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts agent traffic. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	notifies *prometheus.CounterVec
}

// NewMetrics registers the client collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planboard",
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Chat requests sent to agent endpoints by outcome.",
		}, []string{"agent", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planboard",
			Subsystem: "agent",
			Name:      "request_duration_seconds",
			Help:      "Round-trip time of agent chat requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
		notifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planboard",
			Subsystem: "agent",
			Name:      "notifications_total",
			Help:      "Fire-and-forget notifications by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.notifies)
	}
	return m
}

func (m *Metrics) observeAsk(agentID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(agentID, outcome).Inc()
	m.latency.WithLabelValues(agentID).Observe(elapsed.Seconds())
}

func (m *Metrics) observeNotify(outcome string) {
	if m == nil {
		return
	}
	m.notifies.WithLabelValues(outcome).Inc()
}
