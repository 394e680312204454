package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a jobs table via pgx/v5. It is the
// swap-in replacement for FSStore in deployments that want durable, shared
// status records; artifact files still live on the local filesystem.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pgx pool against url and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RunMigrations applies all up migrations from dir against the database URL.
func RunMigrations(databaseURL, dir string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, requestID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (request_id, status, updated_at) VALUES ($1, $2, NOW())`,
		requestID, StatusQueued)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID string) (*Record, error) {
	var rec Record
	var summaryURL, histURL, errMsg *string
	var timing []byte
	var updatedAt time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT request_id, status, summary_url, hist_url, error_message, timing_ms, updated_at
		 FROM jobs WHERE request_id = $1`, requestID).
		Scan(&rec.RequestID, &rec.Status, &summaryURL, &histURL, &errMsg, &timing, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}

	rec.UpdatedAt = updatedAt
	if summaryURL != nil {
		rec.SummaryURL = *summaryURL
	}
	if histURL != nil {
		rec.HistURL = *histURL
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}
	if len(timing) > 0 {
		if err := json.Unmarshal(timing, &rec.TimingMS); err != nil {
			return nil, fmt.Errorf("decode job timing: %w", err)
		}
	}
	return &rec, nil
}

func (s *PostgresStore) MarkRunning(ctx context.Context, requestID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = NOW()
		 WHERE request_id = $2 AND status = $3`,
		StatusRunning, requestID, StatusQueued)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return s.checkTransition(ctx, requestID, tag.RowsAffected())
}

func (s *PostgresStore) MarkDone(ctx context.Context, requestID, summaryURL, histURL string, timing map[string]int64) error {
	var timingJSON []byte
	if timing != nil {
		b, err := json.Marshal(timing)
		if err != nil {
			return fmt.Errorf("encode job timing: %w", err)
		}
		timingJSON = b
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, summary_url = $2, hist_url = NULLIF($3, ''), timing_ms = $4, updated_at = NOW()
		 WHERE request_id = $5 AND status = $6`,
		StatusDone, summaryURL, histURL, timingJSON, requestID, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return s.checkTransition(ctx, requestID, tag.RowsAffected())
}

func (s *PostgresStore) MarkFailed(ctx context.Context, requestID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = NOW()
		 WHERE request_id = $3 AND status = $4`,
		StatusFailed, message, requestID, StatusRunning)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return s.checkTransition(ctx, requestID, tag.RowsAffected())
}

// checkTransition distinguishes "no such job" from "job not in the expected
// state" after a guarded update matched zero rows.
func (s *PostgresStore) checkTransition(ctx context.Context, requestID string, affected int64) error {
	if affected > 0 {
		return nil
	}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM jobs WHERE request_id = $1`, requestID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check job status: %w", err)
	}
	return fmt.Errorf("%w: record is %s", ErrInvalidTransition, status)
}
