// Package observability provides an OpenTelemetry-based metrics
// extension for triage queues. The MetricsExtension implements lifecycle
// hooks to record system-wide counters for admission, completion,
// failure, rejection, eviction, and cancellation events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
