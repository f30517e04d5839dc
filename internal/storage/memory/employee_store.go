// Package memory provides an in-memory employee store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/employee-directory/internal/directory"
)

// EmployeeStore keeps employee records in memory. It is safe for concurrent use.
type EmployeeStore struct {
	mu      sync.RWMutex
	records []directory.EmployeeRecord
	failErr error
}

// NewEmployeeStore constructs a store holding a copy of records, ordered by ID.
func NewEmployeeStore(records []directory.EmployeeRecord) *EmployeeStore {
	cp := append([]directory.EmployeeRecord(nil), records...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
	return &EmployeeStore{records: cp}
}

// SetFailure makes every subsequent call fail with err wrapped in
// directory.ErrDataAccess; nil restores normal behavior.
func (s *EmployeeStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *EmployeeStore) failure(op string) error {
	if s.failErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", directory.ErrDataAccess, op, s.failErr)
}

// CountExactMatch counts records whose names equal first and last exactly.
func (s *EmployeeStore) CountExactMatch(ctx context.Context, first, last string) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("%w: count employees: %w", directory.ErrDataAccess, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("count employees"); err != nil {
		return 0, 0, err
	}
	start := time.Now()
	var count int64
	for _, rec := range s.records {
		if rec.FirstName == first && rec.LastName == last {
			count++
		}
	}
	return count, time.Since(start), nil
}

// Stats returns the record count and the lowest-id record.
func (s *EmployeeStore) Stats(_ context.Context) (directory.DirectoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("employee stats"); err != nil {
		return directory.DirectoryStats{}, err
	}
	stats := directory.DirectoryStats{TotalEmployees: int64(len(s.records))}
	if len(s.records) > 0 {
		sample := s.records[0]
		stats.SampleEmployee = &sample
	}
	return stats, nil
}

// Ping reports the injected failure, if any.
func (s *EmployeeStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure("ping")
}

// Close implements directory.RecordStore; it performs no action.
func (s *EmployeeStore) Close() {}

// DefaultSeed returns a small fixture set containing two exact "John Smith" rows
// and near misses that differ only by case or one name.
func DefaultSeed() []directory.EmployeeRecord {
	created := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)
	return []directory.EmployeeRecord{
		{ID: 1, FirstName: "John", LastName: "Smith", Department: "Engineering", Email: "john.smith@example.com", CreatedAt: created},
		{ID: 2, FirstName: "Jane", LastName: "Doe", Department: "Human Resources", Email: "jane.doe@example.com", CreatedAt: created},
		{ID: 3, FirstName: "John", LastName: "Smith", Department: "Sales", Email: "john.smith.sales@example.com", CreatedAt: created},
		{ID: 4, FirstName: "john", LastName: "smith", Department: "Support", Email: "jsmith@example.com", CreatedAt: created},
		{ID: 5, FirstName: "John", LastName: "Smithson", Department: "Finance", Email: "john.smithson@example.com", CreatedAt: created},
	}
}
