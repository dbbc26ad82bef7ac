package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds checkout collectors. A nil *Metrics records nothing.
type Metrics struct {
	actions     *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

// NewMetrics registers the checkout collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "actions_total",
			Help:      "Session actions by name and result",
		}, []string{"action", "result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "settlements_total",
			Help:      "Ledger settlement calls by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.actions, m.settlements)
	return m
}

func (m *Metrics) observeAction(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.actions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) observeSettlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}
