// Package metrics holds Prometheus counters for database loading and
// incremental updates.
//
// Each Metrics value owns its own registry, so several loads in one process
// (and tests) never collide on registration.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "mmdb"

// Proof formats for RecordProof.
const (
	ProofNormal     = "normal"
	ProofCompressed = "compressed"
)

// Metrics is the set of collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	// SymbolsTotal counts declared symbols. Labels: kind (constant, variable)
	SymbolsTotal *prometheus.CounterVec
	// StatementsTotal counts inserted statements. Labels: kind ($f, $e, $a, $p)
	StatementsTotal *prometheus.CounterVec
	// ErrorsTotal counts rejected input. Labels: class
	ErrorsTotal *prometheus.CounterVec
	// ProofStepsTotal counts expanded proof steps. Labels: format
	ProofStepsTotal *prometheus.CounterVec
	// CheckpointsTotal counts finished update batches. Labels: outcome (commit, rollback)
	CheckpointsTotal *prometheus.CounterVec
	// LoadDurationSeconds measures whole-file loads.
	LoadDurationSeconds prometheus.Histogram
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SymbolsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "symbols_total",
			Help:      "Math symbols declared",
		}, []string{"kind"}),
		StatementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "statements_total",
			Help:      "Statements inserted by kind",
		}, []string{"kind"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "errors_total",
			Help:      "Rejected declarations by error class",
		}, []string{"class"}),
		ProofStepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "proof_steps_total",
			Help:      "Proof steps after decompression",
		}, []string{"format"}),
		CheckpointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "checkpoints_total",
			Help:      "Update batch checkpoint events",
		}, []string{"outcome"}),
		LoadDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "duration_seconds",
			Help:      "Whole-file load duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordSymbol counts a declared symbol.
func (m *Metrics) RecordSymbol(kind string) {
	if m == nil {
		return
	}
	m.SymbolsTotal.WithLabelValues(kind).Inc()
}

// RecordStatement counts an inserted statement.
func (m *Metrics) RecordStatement(kind string) {
	if m == nil {
		return
	}
	m.StatementsTotal.WithLabelValues(kind).Inc()
}

// RecordError counts a rejected declaration.
func (m *Metrics) RecordError(class string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(class).Inc()
}

// RecordProof counts the steps of an accepted proof.
func (m *Metrics) RecordProof(format string, steps int) {
	if m == nil {
		return
	}
	m.ProofStepsTotal.WithLabelValues(format).Add(float64(steps))
}

// RecordCheckpoint counts a committed or rolled back update batch.
func (m *Metrics) RecordCheckpoint(outcome string) {
	if m == nil {
		return
	}
	m.CheckpointsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLoad records the duration of a load.
func (m *Metrics) ObserveLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDurationSeconds.Observe(d.Seconds())
}

// WriteText writes every collected metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
