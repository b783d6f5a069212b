// Package metrics exposes prometheus counters for index maintenance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the index counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// EffectsApplied counts applied effects by nested type.
	EffectsApplied *prometheus.CounterVec
	// RepairScans counts full bucket scans triggered by a missing key.
	RepairScans prometheus.Counter
	// Rejected counts rejected operations by reason.
	Rejected *prometheus.CounterVec
	// RangeQueries counts evaluated range queries.
	RangeQueries prometheus.Counter
}

// New creates the counters and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EffectsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gindex",
			Name:      "effects_applied_total",
			Help:      "Effects applied to the index by nested CRDT type",
		}, []string{"type"}),
		RepairScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gindex",
			Name:      "repair_scans_total",
			Help:      "Full bucket scans run because the old bucket did not hold the key",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gindex",
			Name:      "rejected_operations_total",
			Help:      "Operations rejected by downstream, by reason",
		}, []string{"reason"}),
		RangeQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gindex",
			Name:      "range_queries_total",
			Help:      "Range queries evaluated",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.EffectsApplied, m.RepairScans, m.Rejected, m.RangeQueries)
	}
	return m
}

// EffectApplied records an applied effect of the given type.
func (m *Metrics) EffectApplied(typ string) {
	if m == nil {
		return
	}
	m.EffectsApplied.WithLabelValues(typ).Inc()
}

// RepairScan records a full bucket scan.
func (m *Metrics) RepairScan() {
	if m == nil {
		return
	}
	m.RepairScans.Inc()
}

// Reject records a rejected operation.
func (m *Metrics) Reject(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

// RangeQuery records an evaluated range query.
func (m *Metrics) RangeQuery() {
	if m == nil {
		return
	}
	m.RangeQueries.Inc()
}
