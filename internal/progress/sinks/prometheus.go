package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/employee-directory/internal/progress"
)

// Result labels for finished runs.
const (
	resultCompleted = "completed"
	resultError     = "error"
	resultAbandoned = "abandoned"
)

// PrometheusSink exports performance-run metrics via Prometheus.
type PrometheusSink struct {
	runsStarted       prometheus.Counter
	runsFinished      *prometheus.CounterVec
	runsRunning       prometheus.Gauge
	runQueryTime      *prometheus.HistogramVec
	iterations        prometheus.Counter
	iterationFailures prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_perf_runs_started_total",
			Help: "Total performance runs that have started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_perf_runs_finished_total",
			Help: "Total performance runs finished partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "directory_perf_runs_running",
			Help: "Current number of running performance runs.",
		}),
		runQueryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "directory_perf_run_query_seconds",
			Help:    "Cumulative query time per finished run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"result"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_perf_iterations_total",
			Help: "Search iterations executed by performance runs.",
		}),
		iterationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_perf_iteration_failures_total",
			Help: "Search iterations whose query failed.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsFinished,
		s.runsRunning,
		s.runQueryTime,
		s.iterations,
		s.iterationFailures,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunIteration:
		s.iterations.Inc()
		if evt.Failed {
			s.iterationFailures.Inc()
		}
	case progress.StageRunDone:
		s.finish(evt, resultCompleted)
	case progress.StageRunError:
		s.finish(evt, resultError)
	case progress.StageRunAbandoned:
		s.finish(evt, resultAbandoned)
	}
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.runsFinished.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runQueryTime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
