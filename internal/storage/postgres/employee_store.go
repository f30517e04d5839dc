// Package postgres provides the Postgres-backed employee record store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/employee-directory/internal/directory"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "employees"

// EmployeeStoreConfig controls the Postgres connection pool used for employee reads.
type EmployeeStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// EmployeeStore reads the employees table through a pgx pool. Connections are
// acquired per query and released when the row is scanned.
type EmployeeStore struct {
	pool  queryCloser
	table string
	now   func() time.Time
}

// NewEmployeeStore creates a Postgres-backed EmployeeStore using the provided config.
func NewEmployeeStore(ctx context.Context, cfg EmployeeStoreConfig) (*EmployeeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableOrDefault(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &EmployeeStore{pool: pool, table: table, now: time.Now}, nil
}

// NewEmployeeStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEmployeeStoreWithPool(pool queryCloser, table string) (*EmployeeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableOrDefault(table)
	if err != nil {
		return nil, err
	}
	return &EmployeeStore{pool: pool, table: table, now: time.Now}, nil
}

func tableOrDefault(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *EmployeeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies that a connection can be acquired and used.
func (s *EmployeeStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping postgres: %w", directory.ErrDataAccess, err)
	}
	return nil
}

// CountExactMatch counts employees whose names equal first and last exactly.
// The returned duration covers the query round trip only.
func (s *EmployeeStore) CountExactMatch(ctx context.Context, first, last string) (int64, time.Duration, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE first_name = $1 AND last_name = $2`, s.table)

	var count int64
	start := s.now()
	err := s.pool.QueryRow(ctx, query, first, last).Scan(&count)
	elapsed := s.now().Sub(start)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: count employees: %w", directory.ErrDataAccess, err)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return count, elapsed, nil
}

// Stats returns the total number of employees and the lowest-id row.
func (s *EmployeeStore) Stats(ctx context.Context) (directory.DirectoryStats, error) {
	var stats directory.DirectoryStats
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, countQuery).Scan(&stats.TotalEmployees); err != nil {
		return directory.DirectoryStats{}, fmt.Errorf("%w: count all employees: %w", directory.ErrDataAccess, err)
	}

	sampleQuery := fmt.Sprintf(`
SELECT id, first_name, last_name, department, email, created_at
FROM %s
ORDER BY id
LIMIT 1`, s.table)
	var rec directory.EmployeeRecord
	err := s.pool.QueryRow(ctx, sampleQuery).Scan(
		&rec.ID,
		&rec.FirstName,
		&rec.LastName,
		&rec.Department,
		&rec.Email,
		&rec.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return stats, nil
	case err != nil:
		return directory.DirectoryStats{}, fmt.Errorf("%w: load sample employee: %w", directory.ErrDataAccess, err)
	}
	stats.SampleEmployee = &rec
	return stats, nil
}
