package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/progress"
)

// LogSink writes run events to a zap logger. Iteration events are logged at
// debug level so long runs do not flood production logs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("iteration", evt.Iteration),
			zap.Int("total", evt.Total),
			zap.Int64("results", evt.Results),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch {
		case evt.Stage == progress.StageRunError:
			s.logger.Warn("run event", fields...)
		case evt.Stage == progress.StageRunIteration && !evt.Failed:
			s.logger.Debug("run event", fields...)
		default:
			s.logger.Info("run event", append(fields, zap.Bool("failed", evt.Failed))...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
