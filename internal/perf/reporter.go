package perf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/clock/system"
	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/id/uuid"
	"github.com/JakeFAU/employee-directory/internal/logging"
	"github.com/JakeFAU/employee-directory/internal/progress"
)

const (
	// DefaultQueries is used when a caller does not pick a run size.
	DefaultQueries = 100
	// DefaultDelay paces iterations.
	DefaultDelay = 50 * time.Millisecond
)

// Config tunes a Reporter.
type Config struct {
	// Delay is the pause between iterations; negative disables it.
	Delay time.Duration
	// MaxQueries caps the run size; zero means no cap.
	MaxQueries int
	// RunTimeout is the time budget for a whole run; zero means unlimited.
	RunTimeout time.Duration
}

// Deps are the collaborators a Reporter needs. Searcher is required; the rest
// default to the system clock, UUIDv7 run IDs, a no-op emitter and a no-op
// logger.
type Deps struct {
	Searcher directory.Searcher
	Clock    directory.Clock
	IDs      directory.IDGenerator
	Emitter  progress.Emitter
	Logger   *zap.Logger
}

// Run is a started performance run.
type Run struct {
	ID     string
	Total  int
	Events <-chan Event
}

// Reporter starts performance runs. It holds no per-run state and is safe for
// concurrent use.
type Reporter struct {
	cfg      Config
	searcher directory.Searcher
	clock    directory.Clock
	ids      directory.IDGenerator
	emitter  progress.Emitter
	logger   *zap.Logger
}

// NewReporter validates deps and applies defaults.
func NewReporter(cfg Config, deps Deps) (*Reporter, error) {
	if deps.Searcher == nil {
		return nil, errors.New("perf reporter requires a searcher")
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	r := &Reporter{
		cfg:      cfg,
		searcher: deps.Searcher,
		clock:    deps.Clock,
		ids:      deps.IDs,
		emitter:  deps.Emitter,
		logger:   logging.OrNop(deps.Logger),
	}
	if r.clock == nil {
		r.clock = system.New()
	}
	if r.ids == nil {
		r.ids = uuid.New()
	}
	if r.emitter == nil {
		r.emitter = progress.NopEmitter{}
	}
	return r, nil
}

// Start validates total and launches the run. Events must be drained until
// the channel closes or ctx is cancelled; cancelling ctx stops production at
// the next send or delay.
func (r *Reporter) Start(ctx context.Context, total int) (*Run, error) {
	if total < 1 || (r.cfg.MaxQueries > 0 && total > r.cfg.MaxQueries) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueryCount, total)
	}
	id, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	events := make(chan Event)
	st := &runState{
		Reporter: r,
		id:       id,
		total:    total,
		parent:   ctx,
		out:      events,
		logger:   r.logger.With(zap.String("run_id", id)),
	}
	st.lifecycle(progress.StageRunStart, 0, 0, "")
	go st.produce()
	return &Run{ID: id, Total: total, Events: events}, nil
}

// runState holds the accumulators of one run. It is owned by the producing
// goroutine.
type runState struct {
	*Reporter
	id     string
	total  int
	parent context.Context
	out    chan<- Event
	logger *zap.Logger

	completed  int
	failed     int
	cumulative time.Duration
	lastCount  int64
}

func (s *runState) produce() {
	defer close(s.out)
	defer func() {
		if rec := recover(); rec != nil {
			s.fault(fmt.Sprintf("performance run failed: %v", rec))
		}
	}()

	ctx := s.parent
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.parent, s.cfg.RunTimeout)
		defer cancel()
	}

	for i := 1; i <= s.total; i++ {
		it, ok := s.iterate(ctx, i)
		if !ok {
			s.stopped(ctx)
			return
		}
		snap := it.Snapshot
		if !s.send(ctx, &snap) {
			return
		}
		s.commit(it)
		if i < s.total && !s.wait(ctx) {
			s.stopped(ctx)
			return
		}
	}

	final := &FinalSummary{
		Status:               StatusCompleted,
		TotalExecutionTimeMs: directory.Round(directory.Millis(s.cumulative), 2),
		AverageTimeMs:        directory.Round(directory.Millis(s.cumulative)/float64(s.total), 2),
		QueriesExecuted:      s.total,
		ResultsCount:         s.lastCount,
	}
	s.logOutcome("performance run completed")
	s.lifecycle(progress.StageRunDone, s.completed, s.lastCount, "")
	// Every query ran, so the run budget no longer applies to delivery.
	select {
	case s.out <- final:
	case <-s.parent.Done():
	}
}

// iteration is a built snapshot plus the bookkeeping committed once it is
// delivered.
type iteration struct {
	Snapshot
	elapsed time.Duration
	failed  bool
}

// iterate runs one timed search and builds its snapshot. It returns false
// when the run context ended during the search; that iteration does not count.
func (s *runState) iterate(ctx context.Context, i int) (*iteration, bool) {
	start := s.clock.Now()
	result, err := s.searcher.SearchFixedName(ctx)
	elapsed := s.clock.Now().Sub(start)
	if ctx.Err() != nil {
		return nil, false
	}
	if elapsed < 0 {
		elapsed = 0
	}

	count := result.ResultsCount
	note := ""
	if err != nil {
		count = 0
		note = err.Error()
		s.logger.Warn("performance iteration failed",
			zap.Int("iteration", i),
			zap.Int("total", s.total),
			zap.Error(err),
		)
	}
	s.emitter.Emit(progress.Event{
		RunID:     s.id,
		TS:        s.clock.Now(),
		Stage:     progress.StageRunIteration,
		Iteration: i,
		Total:     s.total,
		Results:   count,
		Dur:       elapsed,
		Failed:    err != nil,
		Note:      note,
	})

	status := StatusRunning
	if i == s.total {
		status = StatusCompleted
	}
	cumulativeMs := directory.Millis(s.cumulative + elapsed)
	return &iteration{
		Snapshot: Snapshot{
			Progress:           i,
			Total:              s.total,
			Percentage:         directory.Round(float64(i)/float64(s.total)*100, 1),
			CurrentQueryTimeMs: directory.Round(directory.Millis(elapsed), 2),
			AverageTimeMs:      directory.Round(cumulativeMs/float64(i), 2),
			CumulativeTimeMs:   directory.Round(cumulativeMs, 2),
			ResultsCount:       count,
			Status:             status,
		},
		elapsed: elapsed,
		failed:  err != nil,
	}, true
}

// commit folds a delivered iteration into the run totals. Iterations that
// never reached the consumer are not counted.
func (s *runState) commit(it *iteration) {
	s.completed = it.Progress
	s.cumulative += it.elapsed
	s.lastCount = it.ResultsCount
	if it.failed {
		s.failed++
	}
}

// stopped handles an ended run context. Parent cancellation abandons the run
// silently; an expired run budget produces an ErrorSummary.
func (s *runState) stopped(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	if s.parent.Err() != nil {
		s.abandon()
		return true
	}
	s.fault(fmt.Sprintf("performance run exceeded time budget of %s", s.cfg.RunTimeout))
	return true
}

// send blocks until the consumer takes evt or the run ends. A false return
// means production must stop.
func (s *runState) send(ctx context.Context, evt Event) bool {
	select {
	case s.out <- evt:
		return true
	case <-ctx.Done():
		s.stopped(ctx)
		return false
	}
}

func (s *runState) wait(ctx context.Context) bool {
	if s.cfg.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(s.cfg.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// fault emits the single ErrorSummary of a run. It only gives up when the
// consumer itself has gone away.
func (s *runState) fault(msg string) {
	s.logOutcome("performance run aborted", zap.String("error", msg))
	s.lifecycle(progress.StageRunError, s.completed, s.lastCount, msg)
	summary := &ErrorSummary{
		Status:           StatusError,
		ErrorMessage:     msg,
		TotalTimeSoFar:   directory.Round(directory.Millis(s.cumulative), 2),
		QueriesCompleted: s.completed,
	}
	select {
	case s.out <- summary:
	case <-s.parent.Done():
	}
}

func (s *runState) abandon() {
	s.logOutcome("performance run abandoned by consumer")
	s.lifecycle(progress.StageRunAbandoned, s.completed, s.lastCount, s.parent.Err().Error())
}

func (s *runState) logOutcome(msg string, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.Int("total", s.total),
		zap.Int("completed", s.completed),
		zap.Int("succeeded", s.completed-s.failed),
		zap.Int("failed", s.failed),
		zap.Float64("cumulative_time_ms", directory.Round(directory.Millis(s.cumulative), 2)),
	}, extra...)
	s.logger.Info(msg, fields...)
}

func (s *runState) lifecycle(stage progress.Stage, iteration int, results int64, note string) {
	s.emitter.Emit(progress.Event{
		RunID:     s.id,
		TS:        s.clock.Now(),
		Stage:     stage,
		Iteration: iteration,
		Total:     s.total,
		Results:   results,
		Dur:       s.cumulative,
		Note:      note,
	})
}
