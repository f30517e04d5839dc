package perf

import (
	"errors"
)

// ErrInvalidQueryCount is returned when a run is requested with fewer than one
// query or more than the configured maximum.
var ErrInvalidQueryCount = errors.New("invalid query count")

// Status values carried by run events.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Event is one item of a run's stream: a *Snapshot, a *FinalSummary, or an
// *ErrorSummary. The last two end the stream.
type Event interface {
	// Terminal reports whether no further events follow.
	Terminal() bool
}

// Snapshot describes one finished iteration.
type Snapshot struct {
	Progress           int     `json:"progress"`
	Total              int     `json:"total"`
	Percentage         float64 `json:"percentage"`
	CurrentQueryTimeMs float64 `json:"current_query_time_ms"`
	AverageTimeMs      float64 `json:"average_time_ms"`
	CumulativeTimeMs   float64 `json:"cumulative_time_ms"`
	ResultsCount       int64   `json:"results_count"`
	Status             string  `json:"status"`
}

// Terminal implements Event.
func (*Snapshot) Terminal() bool { return false }

// FinalSummary closes a run in which every iteration executed.
type FinalSummary struct {
	Status               string  `json:"status"`
	TotalExecutionTimeMs float64 `json:"total_execution_time_ms"`
	AverageTimeMs        float64 `json:"average_time_ms"`
	QueriesExecuted      int     `json:"queries_executed"`
	ResultsCount         int64   `json:"results_count"`
}

// Terminal implements Event.
func (*FinalSummary) Terminal() bool { return true }

// ErrorSummary closes a run cut short by a run-level fault.
type ErrorSummary struct {
	Status           string  `json:"status"`
	ErrorMessage     string  `json:"error_message"`
	TotalTimeSoFar   float64 `json:"total_time_so_far"`
	QueriesCompleted int     `json:"queries_completed"`
}

// Terminal implements Event.
func (*ErrorSummary) Terminal() bool { return true }
