package storage

import (
	"context"
	"database/sql"
	"time"
)

// Job is one deferred relay dispatch. The payload is the pre-built webhook
// body, so dispatch does not need to re-derive the message.
type Job struct {
	ID         int64
	ItemID     string
	ItemKind   string
	UniqueID   string
	WebhookURL string
	Payload    []byte
	RunAt      time.Time
}

type JobStore interface {
	Enqueue(ctx context.Context, job *Job) error
	// Due returns jobs whose run-at time has passed, oldest first.
	Due(ctx context.Context, now time.Time) ([]*Job, error)
	Delete(ctx context.Context, id int64) error
	DeleteOlderThan(ctx context.Context, age time.Duration) error
}

type StorageInterface interface {
	GetConnection() *sql.DB
	Jobs() JobStore
	Close(ctx context.Context) error
}
