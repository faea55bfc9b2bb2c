// Package metrics defines the Prometheus instruments for entity, pack and
// hook operations.
//
// A nil *Metrics is valid and records nothing, so components take metrics
// as an optional dependency.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

const namespace = "cmdb"

// Status label values.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusBlocked  = "blocked"
	StatusError    = "error"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	// EntityOps counts engine operations. Labels: op, label, status.
	EntityOps *prometheus.CounterVec

	// EntityOpSeconds measures engine operation latency. Labels: op.
	EntityOpSeconds *prometheus.HistogramVec

	// PackOps counts pack lifecycle operations. Labels: op, status.
	PackOps *prometheus.CounterVec

	// HookFailures counts hooks that returned an error or panicked.
	// Labels: hook, action.
	HookFailures *prometheus.CounterVec

	// RegisteredTypes tracks the size of the type registry.
	RegisteredTypes prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntityOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entity",
			Name:      "operations_total",
			Help:      "Entity engine operations by operation, type label and status",
		}, []string{"op", "label", "status"}),
		EntityOpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "entity",
			Name:      "operation_duration_seconds",
			Help:      "Entity engine operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		PackOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pack",
			Name:      "operations_total",
			Help:      "Feature pack lifecycle operations by operation and status",
		}, []string{"op", "status"}),
		HookFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "failures_total",
			Help:      "Hook invocations that failed or panicked",
		}, []string{"hook", "action"}),
		RegisteredTypes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "types",
			Help:      "Number of types currently registered",
		}),
		gatherer: reg,
	}
}

// StatusOf classifies err into a status label value.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, types.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, types.ErrValidationFailed):
		return StatusInvalid
	case errors.Is(err, types.ErrDependencyUnsatisfied), errors.Is(err, types.ErrDependentsBlocking):
		return StatusBlocked
	default:
		return StatusError
	}
}

// ObserveEntityOp records one engine operation.
func (m *Metrics) ObserveEntityOp(op, label string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.EntityOps.WithLabelValues(op, label, StatusOf(err)).Inc()
	m.EntityOpSeconds.WithLabelValues(op).Observe(seconds)
}

// ObservePackOp records one pack lifecycle operation.
func (m *Metrics) ObservePackOp(op string, err error) {
	if m == nil {
		return
	}
	m.PackOps.WithLabelValues(op, StatusOf(err)).Inc()
}

// HookFailed records a failed hook invocation.
func (m *Metrics) HookFailed(hook, action string) {
	if m == nil {
		return
	}
	m.HookFailures.WithLabelValues(hook, action).Inc()
}

// SetRegisteredTypes updates the registry size gauge.
func (m *Metrics) SetRegisteredTypes(n int) {
	if m == nil {
		return
	}
	m.RegisteredTypes.Set(float64(n))
}

// WriteTextfile writes every gathered metric to path in the text exposition
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
