// Package system provides the wall clock used to time searches and runs.
package system

import "time"

// Clock implements directory.Clock using time.Now. The returned values keep
// their monotonic reading, so Sub between two calls is safe for latency math.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
