package verso

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts store activity. A nil *Metrics records nothing.
type Metrics struct {
	created       prometheus.Counter
	deleted       prometheus.Counter
	repairs       prometheus.Counter
	writeFailures prometheus.Counter
	diffChanges   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verso_versions_created_total",
			Help: "Versions created, including restores",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verso_versions_deleted_total",
			Help: "Versions deleted, including purges",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verso_index_repairs_total",
			Help: "Ledgers rewritten to match their directory",
		}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verso_write_failures_total",
			Help: "Snapshot writes and removals that failed",
		}),
		diffChanges: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "verso_diff_changes",
			Help:    "Number of changes found per diff",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.deleted, m.repairs, m.writeFailures, m.diffChanges)
	}
	return m
}

func (m *Metrics) incCreated() {
	if m != nil {
		m.created.Inc()
	}
}

func (m *Metrics) incDeleted() {
	if m != nil {
		m.deleted.Inc()
	}
}

func (m *Metrics) incRepairs() {
	if m != nil {
		m.repairs.Inc()
	}
}

func (m *Metrics) incWriteFailures() {
	if m != nil {
		m.writeFailures.Inc()
	}
}

func (m *Metrics) observeDiff(n int) {
	if m != nil {
		m.diffChanges.Observe(float64(n))
	}
}
