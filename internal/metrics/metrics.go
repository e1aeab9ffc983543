// Copyright 2025 The FlowGate Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instrumentation for the decision
// engine and the workflow compiler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for this process.
type Metrics struct {
	registry *prometheus.Registry

	AccessDecisions    *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	GraphCompilations  *prometheus.CounterVec
}

// New creates the process metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		AccessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgate_access_decisions_total",
			Help: "Access decisions by outcome.",
		}, []string{"decision"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowgate_policy_evaluation_duration_seconds",
			Help:    "Wall-clock duration of policy evaluation.",
			Buckets: prometheus.DefBuckets,
		}),
		GraphCompilations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgate_graph_compilations_total",
			Help: "Workflow graph compilations by result.",
		}, []string{"result"}),
	}
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecision records one access decision.
func (m *Metrics) ObserveDecision(allowed bool, seconds float64) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AccessDecisions.WithLabelValues(decision).Inc()
	m.EvaluationDuration.Observe(seconds)
}

// ObserveCompilation records one graph compilation.
func (m *Metrics) ObserveCompilation(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.GraphCompilations.WithLabelValues(result).Inc()
}
