package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldScheduled = "scheduled"
	fieldRelayed   = "relayed"

	seenTTL = 7 * 24 * time.Hour
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, addr string, db int) (*RedisStore, error) {
	slog.Info("Initializing redis relay-state store", "addr", addr, "db", db)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) State(ctx context.Context, itemID string) (RelayState, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(itemID)).Result()
	if err != nil {
		return RelayState{}, fmt.Errorf("failed to read relay state for %s: %w", itemID, err)
	}
	return RelayState{
		Scheduled: fields[fieldScheduled] == "true",
		Relayed:   fields[fieldRelayed] == "true",
	}, nil
}

func (s *RedisStore) MarkScheduled(ctx context.Context, itemID string) error {
	if err := s.client.HSet(ctx, stateKey(itemID), fieldScheduled, "true").Err(); err != nil {
		return fmt.Errorf("failed to mark %s scheduled: %w", itemID, err)
	}
	return nil
}

func (s *RedisStore) MarkRelayed(ctx context.Context, itemID string) error {
	if err := s.client.HSet(ctx, stateKey(itemID), fieldRelayed, "true").Err(); err != nil {
		return fmt.Errorf("failed to mark %s relayed: %w", itemID, err)
	}
	return nil
}

func (s *RedisStore) Seen(ctx context.Context, itemID string) (bool, error) {
	n, err := s.client.Exists(ctx, seenKey(itemID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check seen flag for %s: %w", itemID, err)
	}
	return n > 0, nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, itemID string) error {
	if err := s.client.Set(ctx, seenKey(itemID), "1", seenTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark %s seen: %w", itemID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func stateKey(itemID string) string { return "relay:" + itemID }
func seenKey(itemID string) string  { return "seen:" + itemID }
