package sinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/progress"
)

// RunSummary is the notification payload published when a run finishes.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Result           string    `json:"result"`
	FinishedAt       time.Time `json:"finished_at"`
	QueriesRequested int       `json:"queries_requested"`
	QueriesCompleted int       `json:"queries_completed"`
	ResultsCount     int64     `json:"results_count"`
	TotalTimeMs      float64   `json:"total_time_ms"`
	Message          string    `json:"message,omitempty"`
}

// PublisherSink publishes a RunSummary for every terminal run event.
type PublisherSink struct {
	publisher directory.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink wires a Publisher to the sink interface.
func NewPublisherSink(publisher directory.Publisher, topic string, logger *zap.Logger) (*PublisherSink, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}, nil
}

// Consume publishes summaries for terminal events and skips the rest. A failed
// publish does not stop the remaining summaries in the batch.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	var errs []error
	for _, evt := range batch {
		if !evt.Stage.Terminal() {
			continue
		}
		summary := summarize(evt)
		id, err := s.publisher.Publish(ctx, s.topic, summary)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish run %s: %w", evt.RunID, err))
			continue
		}
		s.logger.Debug("run summary published",
			zap.String("run_id", evt.RunID),
			zap.String("message_id", id),
		)
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}

func summarize(evt progress.Event) RunSummary {
	result := resultCompleted
	switch evt.Stage {
	case progress.StageRunError:
		result = resultError
	case progress.StageRunAbandoned:
		result = resultAbandoned
	}
	return RunSummary{
		RunID:            evt.RunID,
		Result:           result,
		FinishedAt:       evt.TS.UTC(),
		QueriesRequested: evt.Total,
		QueriesCompleted: evt.Iteration,
		ResultsCount:     evt.Results,
		TotalTimeMs:      directory.Round(directory.Millis(evt.Dur), 2),
		Message:          evt.Note,
	}
}
