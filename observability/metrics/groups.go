package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type GroupMetrics struct {
	committed  prometheus.Counter
	rejected   *prometheus.CounterVec
	legs       prometheus.Histogram
	innerCalls prometheus.Counter
	emitted    prometheus.Counter
}

var (
	groupOnce     sync.Once
	groupRegistry *GroupMetrics
)

// Groups returns the process-wide execution metrics, registering the
// collectors on first use.
func Groups() *GroupMetrics {
	groupOnce.Do(func() {
		groupRegistry = &GroupMetrics{
			committed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_groups_committed_total",
				Help: "Count of atomic groups committed to the ledger.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_groups_rejected_total",
				Help: "Count of rejected atomic groups by failure stage.",
			}, []string{"stage"}),
			legs: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "ledger_group_legs",
				Help:    "Leg count per submitted group.",
				Buckets: prometheus.LinearBuckets(1, 1, 16),
			}),
			innerCalls: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_inner_calls_total",
				Help: "Count of program-to-program calls executed.",
			}),
			emitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "ledger_events_emitted_total",
				Help: "Count of events published by committed groups.",
			}),
		}
		prometheus.MustRegister(
			groupRegistry.committed,
			groupRegistry.rejected,
			groupRegistry.legs,
			groupRegistry.innerCalls,
			groupRegistry.emitted,
		)
	})
	return groupRegistry
}

func (m *GroupMetrics) ObserveCommitted(legs int) {
	if m == nil {
		return
	}
	m.committed.Inc()
	m.legs.Observe(float64(legs))
}

func (m *GroupMetrics) ObserveRejected(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.rejected.WithLabelValues(stage).Inc()
}

func (m *GroupMetrics) ObserveInnerCall() {
	if m == nil {
		return
	}
	m.innerCalls.Inc()
}

func (m *GroupMetrics) ObserveEmitted(count int) {
	if m == nil {
		return
	}
	m.emitted.Add(float64(count))
}
