// Package perf runs the repeated fixed-name search and streams timing
// snapshots to a consumer.
//
// A run is produced by a single goroutine writing to an unbuffered channel, so
// every send waits for the consumer and events arrive in strict order. Each run
// ends with exactly one FinalSummary or ErrorSummary unless the consumer goes
// away first, in which case the channel is closed without a terminal event.
package perf
