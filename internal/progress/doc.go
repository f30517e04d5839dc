// Package progress carries run lifecycle events from the performance reporter
// to monitoring sinks. The reporter emits without blocking; a background
// goroutine batches events and fans them out to pluggable sinks such as
// Prometheus metrics, structured logs, or a Pub/Sub notifier.
package progress
