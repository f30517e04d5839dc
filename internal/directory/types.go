package directory

import (
	"errors"
	"math"
	"time"
)

// ErrDataAccess signals that the record store was unreachable or a query failed.
var ErrDataAccess = errors.New("data access error")

// Fixed search target served by the search endpoint and the performance run.
const (
	FixedFirstName = "John"
	FixedLastName  = "Smith"
)

// EmployeeRecord models one row of the employees table.
type EmployeeRecord struct {
	ID         int64     `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Department string    `json:"department"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// SearchResult is returned by a single fixed-name search.
type SearchResult struct {
	ResultsCount    int64   `json:"results_count"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// DirectoryStats summarizes the table for connectivity checks.
type DirectoryStats struct {
	TotalEmployees int64
	// SampleEmployee is the lowest-id row, or nil when the table is empty.
	SampleEmployee *EmployeeRecord
}

// Round rounds v to the given number of decimal places, breaking ties to the
// even digit.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
