package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSettled  = "settled"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Metrics holds the ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	settlements  *prometheus.CounterVec
	writeLatency prometheus.Histogram
}

// NewMetrics registers the ledger collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Subsystem: "ledger",
			Name:      "settlements_total",
			Help:      "Settlement attempts by outcome",
		}, []string{"outcome"}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Subsystem: "ledger",
			Name:      "write_duration_seconds",
			Help:      "Latency of ledger appends",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.settlements, m.writeLatency)
	return m
}

func (m *Metrics) observeSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.writeLatency.Observe(d.Seconds())
}
