package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts store activity. A nil *Metrics records nothing.
type Metrics struct {
	documentWrites   *prometheus.CounterVec
	lockConflicts    *prometheus.CounterVec
	dbIDsAllocated   prometheus.Counter
	dynamicResponses *prometheus.CounterVec
}

// NewMetrics creates the store metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowdoc_document_writes_total",
			Help: "Documents written by collection.",
		}, []string{"collection"}),
		lockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowdoc_lock_conflicts_total",
			Help: "Lock acquisitions and releases rejected by collection.",
		}, []string{"collection"}),
		dbIDsAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowdoc_db_ids_allocated_total",
			Help: "Job db_ids reserved.",
		}),
		dynamicResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowdoc_dynamic_responses_total",
			Help: "Dynamic responses applied by type.",
		}, []string{"type"}),
	}

	reg.MustRegister(m.documentWrites)
	reg.MustRegister(m.lockConflicts)
	reg.MustRegister(m.dbIDsAllocated)
	reg.MustRegister(m.dynamicResponses)

	return m
}

// WithMetrics records store activity in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func (m *Metrics) wrote(collection string, n int) {
	if m == nil {
		return
	}
	m.documentWrites.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) lockConflict(collection string) {
	if m == nil {
		return
	}
	m.lockConflicts.WithLabelValues(collection).Inc()
}

func (m *Metrics) allocated(n int) {
	if m == nil {
		return
	}
	m.dbIDsAllocated.Add(float64(n))
}

func (m *Metrics) dynamic(typ string) {
	if m == nil {
		return
	}
	m.dynamicResponses.WithLabelValues(typ).Inc()
}
