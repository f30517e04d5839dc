// Package search implements the fixed-name employee search.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/logging"
	"github.com/JakeFAU/employee-directory/internal/metrics"
)

// Service runs the predetermined "John Smith" search against a RecordStore.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	store  directory.RecordStore
	logger *zap.Logger
}

// NewService wires the store and logger.
func NewService(store directory.RecordStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logging.OrNop(logger)}
}

// SearchFixedName counts exact first/last name matches and reports the query
// time in milliseconds rounded to two decimals. Store failures are returned
// wrapped so errors.Is(err, directory.ErrDataAccess) holds.
func (s *Service) SearchFixedName(ctx context.Context) (directory.SearchResult, error) {
	count, elapsed, err := s.store.CountExactMatch(ctx, directory.FixedFirstName, directory.FixedLastName)
	if err != nil {
		metrics.ObserveSearch(metrics.SearchError, 0, 0)
		return directory.SearchResult{}, fmt.Errorf("search %s %s: %w",
			directory.FixedFirstName, directory.FixedLastName, err)
	}
	metrics.ObserveSearch(metrics.SearchOK, count, elapsed)

	result := directory.SearchResult{
		ResultsCount:    count,
		ExecutionTimeMs: directory.Round(directory.Millis(elapsed), 2),
	}
	s.logger.Info("fixed-name search completed",
		zap.String("first_name", directory.FixedFirstName),
		zap.String("last_name", directory.FixedLastName),
		zap.Int64("results_count", result.ResultsCount),
		zap.Float64("execution_time_ms", result.ExecutionTimeMs),
	)
	return result, nil
}
