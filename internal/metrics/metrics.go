// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package metrics holds the Prometheus collectors of the inventory core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "noclook"

// Metrics contains the inventory counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HandleOperations counts handle registry operations by op and result.
	HandleOperations *prometheus.CounterVec
	// Compensations counts saga undo runs by op and result.
	Compensations *prometheus.CounterVec
	// ReapScanned counts objects inspected by reap runs, by kind.
	ReapScanned *prometheus.CounterVec
	// ReapDeleted counts objects deleted by reap runs, by kind.
	ReapDeleted *prometheus.CounterVec
	// ReapFailed counts per-object reap failures, by kind.
	ReapFailed *prometheus.CounterVec
	// AuthzDecisions counts authorization results by action and outcome.
	AuthzDecisions *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HandleOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handle",
				Name:      "operations_total",
				Help:      "Handle registry operations by operation and result",
			},
			[]string{"op", "result"},
		),

		Compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "saga",
				Name:      "compensations_total",
				Help:      "Cross-store operations rolled back by compensation",
			},
			[]string{"op"},
		),

		ReapScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reap",
				Name:      "scanned_total",
				Help:      "Objects inspected by reap runs",
			},
			[]string{"kind"},
		),

		ReapDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reap",
				Name:      "deleted_total",
				Help:      "Objects deleted by reap runs",
			},
			[]string{"kind"},
		),

		ReapFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reap",
				Name:      "failed_total",
				Help:      "Objects a reap run failed to delete",
			},
			[]string{"kind"},
		),

		AuthzDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Authorization decisions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.HandleOperations,
		m.Compensations,
		m.ReapScanned,
		m.ReapDeleted,
		m.ReapFailed,
		m.AuthzDecisions,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the node-exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// HandleOp records the outcome of a handle registry operation.
func (m *Metrics) HandleOp(op string, err error) {
	if m == nil {
		return
	}
	m.HandleOperations.WithLabelValues(op, result(err)).Inc()
}

// Compensated records a saga that had to undo completed steps.
func (m *Metrics) Compensated(op string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(op).Inc()
}

// Reap records one reap run.
func (m *Metrics) Reap(kind string, scanned, deleted, failed int) {
	if m == nil {
		return
	}
	m.ReapScanned.WithLabelValues(kind).Add(float64(scanned))
	m.ReapDeleted.WithLabelValues(kind).Add(float64(deleted))
	m.ReapFailed.WithLabelValues(kind).Add(float64(failed))
}

// Authz records an authorization decision.
func (m *Metrics) Authz(action string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.AuthzDecisions.WithLabelValues(action, outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
