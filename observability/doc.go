// Package observability provides OpenTelemetry tracing and metrics setup
// plus small helpers for span attributes, so the rest of the codebase never
// touches the otel API surface directly.
package observability
