// Package store tracks per-item relay state. The checks are read-then-write
// on purpose: concurrent triggers for the same item can double-relay, and
// that race is accepted behavior rather than something to close with locks.
package store

import "context"

// RelayState mirrors the per-item hash: scheduled is set once a deferred
// dispatch exists, relayed is terminal after a dispatch attempt.
type RelayState struct {
	Scheduled bool
	Relayed   bool
}

type Store interface {
	State(ctx context.Context, itemID string) (RelayState, error)
	MarkScheduled(ctx context.Context, itemID string) error
	MarkRelayed(ctx context.Context, itemID string) error

	// Seen/MarkSeen back the watcher's new-item dedupe so each creation
	// event fires once.
	Seen(ctx context.Context, itemID string) (bool, error)
	MarkSeen(ctx context.Context, itemID string) error

	Close() error
}
