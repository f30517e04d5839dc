package perf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/progress"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// step describes the behaviour of one search call.
type step struct {
	dur     time.Duration
	count   int64
	err     error
	panic   bool
	blockOn bool
}

type scriptedSearcher struct {
	clock *fakeClock
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scriptedSearcher) SearchFixedName(ctx context.Context) (directory.SearchResult, error) {
	s.mu.Lock()
	st := s.steps[s.calls%len(s.steps)]
	s.calls++
	s.mu.Unlock()

	if st.panic {
		panic("connection pool exploded")
	}
	if st.blockOn {
		<-ctx.Done()
		return directory.SearchResult{}, ctx.Err()
	}
	s.clock.Advance(st.dur)
	if st.err != nil {
		return directory.SearchResult{}, st.err
	}
	return directory.SearchResult{ResultsCount: st.count, ExecutionTimeMs: directory.Millis(st.dur)}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "run-1", nil }

type harness struct {
	reporter *Reporter
	emitter  *recordingEmitter
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T, cfg Config, steps ...step) harness {
	t.Helper()

	clock := newFakeClock()
	core, logs := observer.New(zapcore.InfoLevel)
	emitter := &recordingEmitter{}
	if cfg.Delay == 0 {
		cfg.Delay = -1
	}
	r, err := NewReporter(cfg, Deps{
		Searcher: &scriptedSearcher{clock: clock, steps: steps},
		Clock:    clock,
		IDs:      fixedIDs{},
		Emitter:  emitter,
		Logger:   zap.New(core),
	})
	require.NoError(t, err)
	return harness{reporter: r, emitter: emitter, logs: logs}
}

func collect(t *testing.T, run *Run) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-run.Events:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}

func TestReporterStreamsSnapshotsAndSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{},
		step{dur: 10 * time.Millisecond, count: 2},
		step{dur: 20 * time.Millisecond, count: 2},
		step{dur: 30 * time.Millisecond, count: 2},
	)
	run, err := h.reporter.Start(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "run-1", run.ID)

	events := collect(t, run)
	require.Equal(t, []Event{
		&Snapshot{Progress: 1, Total: 3, Percentage: 33.3, CurrentQueryTimeMs: 10, AverageTimeMs: 10, CumulativeTimeMs: 10, ResultsCount: 2, Status: StatusRunning},
		&Snapshot{Progress: 2, Total: 3, Percentage: 66.7, CurrentQueryTimeMs: 20, AverageTimeMs: 15, CumulativeTimeMs: 30, ResultsCount: 2, Status: StatusRunning},
		&Snapshot{Progress: 3, Total: 3, Percentage: 100, CurrentQueryTimeMs: 30, AverageTimeMs: 20, CumulativeTimeMs: 60, ResultsCount: 2, Status: StatusCompleted},
		&FinalSummary{Status: StatusCompleted, TotalExecutionTimeMs: 60, AverageTimeMs: 20, QueriesExecuted: 3, ResultsCount: 2},
	}, events)

	require.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageRunIteration,
		progress.StageRunIteration,
		progress.StageRunIteration,
		progress.StageRunDone,
	}, h.emitter.Stages())

	done := h.logs.FilterMessage("performance run completed").All()
	require.Len(t, done, 1)
	require.Equal(t, int64(3), done[0].ContextMap()["succeeded"])
	require.Equal(t, int64(0), done[0].ContextMap()["failed"])
}

func TestReporterIterationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{},
		step{dur: 10 * time.Millisecond, count: 2},
		step{dur: 5 * time.Millisecond, err: fmt.Errorf("search: %w", directory.ErrDataAccess)},
		step{dur: 10 * time.Millisecond, count: 2},
	)
	run, err := h.reporter.Start(context.Background(), 3)
	require.NoError(t, err)

	events := collect(t, run)
	require.Len(t, events, 4)
	second, ok := events[1].(*Snapshot)
	require.True(t, ok)
	require.Equal(t, int64(0), second.ResultsCount)
	require.Equal(t, StatusRunning, second.Status)

	final, ok := events[3].(*FinalSummary)
	require.True(t, ok)
	require.Equal(t, 3, final.QueriesExecuted)
	require.InDelta(t, 25.0, final.TotalExecutionTimeMs, 1e-9)

	warns := h.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	require.Equal(t, int64(2), warns[0].ContextMap()["iteration"])
	done := h.logs.FilterMessage("performance run completed").All()
	require.Len(t, done, 1)
	require.Equal(t, int64(1), done[0].ContextMap()["failed"])
}

func TestReporterProgressInvariants(t *testing.T) {
	t.Parallel()

	const total = 25
	h := newHarness(t, Config{}, step{dur: 3 * time.Millisecond, count: 1}, step{dur: 7 * time.Millisecond, count: 1})
	run, err := h.reporter.Start(context.Background(), total)
	require.NoError(t, err)

	events := collect(t, run)
	require.Len(t, events, total+1)
	for i, evt := range events[:total] {
		snap, ok := evt.(*Snapshot)
		require.True(t, ok)
		require.Equal(t, i+1, snap.Progress)
		require.InDelta(t, snap.CumulativeTimeMs/float64(snap.Progress), snap.AverageTimeMs, 0.01)
		if i+1 < total {
			require.Equal(t, StatusRunning, snap.Status)
			require.False(t, snap.Terminal())
		} else {
			require.Equal(t, StatusCompleted, snap.Status)
		}
	}
	require.True(t, events[total].Terminal())
}

func TestReporterPercentageRoundsHalfToEven(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, step{dur: time.Millisecond, count: 1})
	run, err := h.reporter.Start(context.Background(), 16)
	require.NoError(t, err)

	events := collect(t, run)
	require.Len(t, events, 17)
	want := map[int]float64{1: 6.2, 2: 12.5, 3: 18.8, 5: 31.2, 16: 100}
	for i, evt := range events[:16] {
		snap, ok := evt.(*Snapshot)
		require.True(t, ok)
		if pct, ok := want[i+1]; ok {
			require.InDelta(t, pct, snap.Percentage, 1e-9, "progress %d", i+1)
		}
	}
}

func TestReporterRejectsInvalidQueryCount(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{MaxQueries: 10}, step{count: 1})
	for _, n := range []int{0, -3, 11} {
		run, err := h.reporter.Start(context.Background(), n)
		require.ErrorIs(t, err, ErrInvalidQueryCount)
		require.Nil(t, run)
	}
	require.Empty(t, h.emitter.Stages())
}

func TestReporterPanicBecomesErrorSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{},
		step{dur: 10 * time.Millisecond, count: 2},
		step{panic: true},
	)
	run, err := h.reporter.Start(context.Background(), 3)
	require.NoError(t, err)

	events := collect(t, run)
	require.Len(t, events, 2)
	summary, ok := events[1].(*ErrorSummary)
	require.True(t, ok)
	require.Equal(t, StatusError, summary.Status)
	require.Equal(t, 1, summary.QueriesCompleted)
	require.InDelta(t, 10.0, summary.TotalTimeSoFar, 1e-9)
	require.Contains(t, summary.ErrorMessage, "connection pool exploded")
	require.Equal(t, progress.StageRunError, h.emitter.Stages()[len(h.emitter.Stages())-1])
}

func TestReporterRunBudgetExpiry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{RunTimeout: 50 * time.Millisecond},
		step{dur: time.Millisecond, count: 2},
		step{blockOn: true},
	)
	run, err := h.reporter.Start(context.Background(), 5)
	require.NoError(t, err)

	events := collect(t, run)
	require.Len(t, events, 2)
	summary, ok := events[1].(*ErrorSummary)
	require.True(t, ok)
	require.Equal(t, 1, summary.QueriesCompleted)
	require.Contains(t, summary.ErrorMessage, "time budget")
}

func TestReporterConsumerCancellation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, step{dur: time.Millisecond, count: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run, err := h.reporter.Start(ctx, 1000)
	require.NoError(t, err)

	first := <-run.Events
	require.IsType(t, &Snapshot{}, first)
	cancel()

	rest := collect(t, run)
	require.LessOrEqual(t, len(rest), 1)
	for _, evt := range rest {
		require.False(t, evt.Terminal())
	}
	require.Eventually(t, func() bool {
		stages := h.emitter.Stages()
		return stages[len(stages)-1] == progress.StageRunAbandoned
	}, time.Second, 5*time.Millisecond)
}

func TestReporterDelayPacesIterations(t *testing.T) {
	t.Parallel()

	r, err := NewReporter(Config{Delay: 15 * time.Millisecond}, Deps{
		Searcher: &scriptedSearcher{clock: newFakeClock(), steps: []step{{count: 1}}},
	})
	require.NoError(t, err)

	start := time.Now()
	run, err := r.Start(context.Background(), 3)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	events := collect(t, run)
	require.Len(t, events, 4)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestNewReporterRequiresSearcher(t *testing.T) {
	t.Parallel()

	_, err := NewReporter(Config{}, Deps{})
	require.Error(t, err)
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func TestReporterIDFailure(t *testing.T) {
	t.Parallel()

	r, err := NewReporter(Config{}, Deps{
		Searcher: &scriptedSearcher{clock: newFakeClock(), steps: []step{{count: 1}}},
		IDs:      failingIDs{},
	})
	require.NoError(t, err)
	_, err = r.Start(context.Background(), 1)
	require.ErrorContains(t, err, "generate run id")
}
