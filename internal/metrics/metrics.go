// Package metrics defines the Prometheus collectors sqlitebook components
// report into. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sqlitebook"

// Statement outcomes.
const (
	OutcomeRows     = "rows"
	OutcomeExecuted = "executed"
	OutcomeFailed   = "failed"
)

// Metrics groups the collectors.
type Metrics struct {
	statements     *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	storeOps       *prometheus.CounterVec
	skippedRecords prometheus.Counter
}

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "statements_total",
			Help:      "Statements executed, by outcome",
		}, []string{"outcome"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "batch_duration_seconds",
			Help:      "Duration of statement batches including the snapshot save",
			Buckets:   prometheus.DefBuckets,
		}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "operations_total",
			Help:      "Snapshot store operations, by operation and result",
		}, []string{"op", "result"}),
		skippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "skipped_records_total",
			Help:      "Stored records skipped because they could not be decoded",
		}),
	}
	for _, c := range []prometheus.Collector{m.statements, m.batchDuration, m.storeOps, m.skippedRecords} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Statement counts one executed statement.
func (m *Metrics) Statement(outcome string) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(outcome).Inc()
}

// Batch records the duration of one batch.
func (m *Metrics) Batch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(elapsed.Seconds())
}

// StoreOp counts one store operation; err decides the result label.
func (m *Metrics) StoreOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Inc()
}

// RecordSkipped counts one record skipped by a lenient read.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.skippedRecords.Inc()
}
