// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the docserver.
//
// # Description
//
// Metrics cover the request pipeline end to end: requests by endpoint
// and status, rejections by reason, cache hits and misses, backend
// attempts by provider and outcome, generation latency, and token
// consumption.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace    = "devdocs"
	generationSubsystem = "generation"
)

// GenerationMetrics holds all Prometheus metrics for the generation
// pipeline. Initialize once at startup via InitMetrics().
type GenerationMetrics struct {
	// RequestsTotal counts API requests.
	// Labels: endpoint (analyze, generate, usage), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RejectionsTotal counts refused requests.
	// Labels: reason (rate_limited, premium_feature, usage_limit)
	RejectionsTotal *prometheus.CounterVec

	// CacheTotal counts content cache lookups.
	// Labels: result (hit, miss)
	CacheTotal *prometheus.CounterVec

	// BackendAttemptsTotal counts individual backend calls.
	// Labels: provider, outcome (success, rate_limited, overloaded,
	// network, permanent, unknown)
	BackendAttemptsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures end-to-end generation time,
	// cache misses only.
	// Labels: provider
	GenerationDurationSeconds *prometheus.HistogramVec

	// TokensTotal counts tokens reported by the backends.
	// Labels: provider
	TokensTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *GenerationMetrics

// InitMetrics creates and registers all docserver metrics. Call once
// at startup; a second call panics on duplicate registration.
func InitMetrics() *GenerationMetrics {
	DefaultMetrics = &GenerationMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "rejections_total",
				Help:      "Requests refused before generation, by reason",
			},
			[]string{"reason"},
		),

		CacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "cache_total",
				Help:      "Content cache lookups by result",
			},
			[]string{"result"},
		),

		BackendAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "backend_attempts_total",
				Help:      "Backend generation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		GenerationDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "duration_seconds",
				Help:      "End-to-end generation duration for cache misses",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),

		TokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "tokens_total",
				Help:      "Tokens consumed as reported by backends",
			},
			[]string{"provider"},
		),
	}

	return DefaultMetrics
}

// RecordRequest records a completed API request.
func (m *GenerationMetrics) RecordRequest(endpoint string, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordRejection records a refused request.
func (m *GenerationMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordCache records a content cache lookup.
func (m *GenerationMetrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheTotal.WithLabelValues(result).Inc()
}

// RecordBackendAttempt records one backend call and its outcome.
func (m *GenerationMetrics) RecordBackendAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	m.BackendAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordGeneration records a successful uncached generation.
func (m *GenerationMetrics) RecordGeneration(provider string, seconds float64, tokens int) {
	if m == nil {
		return
	}
	m.GenerationDurationSeconds.WithLabelValues(provider).Observe(seconds)
	if tokens > 0 {
		m.TokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}
