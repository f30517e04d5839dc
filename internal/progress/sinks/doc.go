// Package sinks implements concrete run event consumers: structured logging,
// Prometheus run metrics, and publishing of finished-run summaries. Each sink
// satisfies the progress.Sink interface.
package sinks
