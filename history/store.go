// Package history stores aggregation results in Postgres so past runs can be listed.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	tableName    = "volume_runs"
	defaultLimit = 20
	maxLimit     = 500
)

// Run is one stored aggregation
type Run struct {
	ID        int64                    `json:"id"`
	Selection types.Selection          `json:"selection"`
	Result    *types.AggregationResult `json:"result"`
	CreatedAt time.Time                `json:"created_at"`
}

// Store persists runs in a single JSONB-backed table
type Store struct {
	db     *pgxpool.Pool
	logger *logrus.Logger
}

// Open connects to databaseURL and ensures the table exists
func Open(ctx context.Context, databaseURL string, log *logrus.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &Store{db: pool, logger: log}
	if err := s.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			asset_ids TEXT[] NOT NULL,
			exchanges TEXT[] NOT NULL,
			filtered BOOLEAN NOT NULL,
			grand_total DOUBLE PRECISION NOT NULL,
			result JSONB NOT NULL
		)`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	s.logger.Info(fmt.Sprintf("Ensured table %s exists", tableName))
	return nil
}

// Save stores result with the selection that produced it and returns the run ID
func (s *Store) Save(ctx context.Context, sel types.Selection, result *types.AggregationResult) (int64, error) {
	if result == nil {
		return 0, fmt.Errorf("nothing to save")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO ` + tableName + ` (asset_ids, exchanges, filtered, grand_total, result)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err = s.db.QueryRow(ctx, query,
		nonNil(sel.AssetIDs),
		nonNil(sel.Exchanges),
		result.Filtered,
		result.Summary.GrandTotal,
		payload,
	).Scan(&id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to save run")
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, created_at, asset_ids, exchanges, result
		FROM ` + tableName + `
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run     Run
			payload []byte
		)
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Selection.AssetIDs, &run.Selection.Exchanges, &payload); err != nil {
			s.logger.WithError(err).Error("Failed to scan run")
			continue
		}
		run.Result = &types.AggregationResult{}
		if err := json.Unmarshal(payload, run.Result); err != nil {
			s.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to decode stored result")
			continue
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// Close releases the pool
func (s *Store) Close() {
	s.db.Close()
}

// ClampLimit maps a requested page size into [1, 500], defaulting to 20
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
