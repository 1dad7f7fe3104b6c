package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"modrelay/internal/storage"
)

type jobStore struct {
	db *sql.DB
}

func newJobStore(db *sql.DB) storage.JobStore {
	return &jobStore{db: db}
}

func (s *jobStore) Enqueue(ctx context.Context, job *storage.Job) error {
	query := `
		INSERT INTO relay_jobs (item_id, item_kind, unique_id, webhook_url, payload, run_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		job.ItemID, job.ItemKind, job.UniqueID, job.WebhookURL, job.Payload, job.RunAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue relay job: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		job.ID = id
	}

	return nil
}

func (s *jobStore) Due(ctx context.Context, now time.Time) ([]*storage.Job, error) {
	query := `
		SELECT id, item_id, item_kind, unique_id, webhook_url, payload, run_at
		FROM relay_jobs
		WHERE run_at <= ?
		ORDER BY run_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*storage.Job
	for rows.Next() {
		job := &storage.Job{}
		if err := rows.Scan(&job.ID, &job.ItemID, &job.ItemKind, &job.UniqueID,
			&job.WebhookURL, &job.Payload, &job.RunAt); err != nil {
			return nil, fmt.Errorf("failed to scan relay job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (s *jobStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM relay_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete relay job: %w", err)
	}
	return nil
}

func (s *jobStore) DeleteOlderThan(ctx context.Context, age time.Duration) error {
	cutoff := time.Now().Add(-age).UTC()

	result, err := s.db.ExecContext(ctx, `DELETE FROM relay_jobs WHERE run_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete stale jobs: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		slog.Debug("Deleted stale relay jobs", "count", rows)
	}

	return nil
}
