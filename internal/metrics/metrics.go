/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package metrics provides Prometheus metrics for raedu.

METRIC CATEGORIES:
==================
- Evaluations: total by status, latency, steps per trace
- Trace cache: lookups by result
- Grading: outcomes
- Imports: tables imported, skipped and failed
- HTTP: requests by method, route and status, latency

PROMETHEUS ENDPOINT:
====================
Metrics are exposed at /metrics in Prometheus text format by the HTTP
server (see Handler).

EXAMPLE METRICS:
================

	raedu_evaluations_total{status="ok"} 1234
	raedu_evaluations_total{status="syntax_error"} 56
	raedu_trace_cache_lookups_total{result="hit"} 789
	raedu_gradings_total{outcome="match"} 321
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rerrors "raedu/internal/errors"
)

// Evaluation statuses.
const (
	StatusOK            = "ok"
	StatusSyntaxError   = "syntax_error"
	StatusSemanticError = "semantic_error"
	StatusDatasetError  = "dataset_error"
	StatusError         = "error"
)

// Grading outcomes.
const (
	OutcomeMatch          = "match"
	OutcomeRowMismatch    = "row_mismatch"
	OutcomeSchemaMismatch = "schema_mismatch"
)

var (
	// EvaluationsTotal counts evaluations by status.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raedu_evaluations_total",
			Help: "Total number of expression evaluations",
		},
		[]string{"status"},
	)
	// EvaluationDuration is the latency of evaluations that ran to completion.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raedu_evaluation_duration_seconds",
			Help:    "Expression evaluation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	// TraceSteps is the number of steps per successful trace.
	TraceSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raedu_trace_steps",
			Help:    "Number of steps in a trace",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)
	// CacheLookupsTotal counts trace cache lookups by result (hit, miss).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raedu_trace_cache_lookups_total",
			Help: "Total number of trace cache lookups",
		},
		[]string{"result"},
	)
	// GradingsTotal counts graded submissions by outcome.
	GradingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raedu_gradings_total",
			Help: "Total number of graded submissions",
		},
		[]string{"outcome"},
	)
	// ImportsTotal counts imported tables by status (changed, unchanged, failed).
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raedu_imported_tables_total",
			Help: "Total number of CSV tables processed by imports",
		},
		[]string{"status"},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raedu_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raedu_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// StatusOf classifies an evaluation error.
func StatusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	e, ok := rerrors.As(err)
	if !ok {
		return StatusError
	}
	switch e.Category {
	case rerrors.CategorySyntax:
		return StatusSyntaxError
	case rerrors.CategorySemantic:
		return StatusSemanticError
	case rerrors.CategoryDataset:
		return StatusDatasetError
	}
	return StatusError
}

// RecordEvaluation records one evaluation. Latency and steps are only
// observed for successful runs.
func RecordEvaluation(err error, latency time.Duration, steps int) {
	EvaluationsTotal.WithLabelValues(StatusOf(err)).Inc()
	if err != nil {
		return
	}
	EvaluationDuration.Observe(latency.Seconds())
	TraceSteps.Observe(float64(steps))
}

// RecordCacheLookup records a trace cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordGrade records a grading outcome.
func RecordGrade(matches, schemaEqual bool) {
	outcome := OutcomeMatch
	switch {
	case !schemaEqual:
		outcome = OutcomeSchemaMismatch
	case !matches:
		outcome = OutcomeRowMismatch
	}
	GradingsTotal.WithLabelValues(outcome).Inc()
}

// RecordImport records one processed table.
func RecordImport(changed bool, err error) {
	status := "unchanged"
	switch {
	case err != nil:
		status = "failed"
	case changed:
		status = "changed"
	}
	ImportsTotal.WithLabelValues(status).Inc()
}

// RecordRequest records one HTTP request. path should be the route
// pattern, not the raw URL, to bound label cardinality.
func RecordRequest(method, path string, status int, latency time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	RequestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
