package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported run stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunIteration Stage = "RUN_ITERATION"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
	// StageRunAbandoned marks a run whose consumer went away mid-stream.
	StageRunAbandoned Stage = "RUN_ABANDONED"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	switch s {
	case StageRunDone, StageRunError, StageRunAbandoned:
		return true
	default:
		return false
	}
}

// Event captures one step of a performance run.
type Event struct {
	// RunID identifies the run (UUIDv7 string).
	RunID string
	// TS is the timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Iteration is the 1-based iteration for RUN_ITERATION and the number of
	// completed iterations for terminal stages.
	Iteration int
	// Total is the number of iterations the run was asked to perform.
	Total int
	// Results is the match count observed by the iteration (or the last one).
	Results int64
	// Dur is the iteration latency for RUN_ITERATION and the cumulative query
	// time for terminal stages.
	Dur time.Duration
	// Failed marks an iteration whose search returned an error.
	Failed bool
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Total <= 0 {
		return errors.New("total must be > 0")
	}
	switch e.Stage {
	case StageRunStart:
	case StageRunIteration:
		if e.Iteration < 1 || e.Iteration > e.Total {
			return fmt.Errorf("iteration %d outside 1..%d", e.Iteration, e.Total)
		}
	case StageRunDone, StageRunError, StageRunAbandoned:
		if e.Iteration < 0 || e.Iteration > e.Total {
			return fmt.Errorf("completed count %d outside 0..%d", e.Iteration, e.Total)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
