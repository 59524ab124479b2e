// Package db defines the storage facade the engine's repositories consume.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	HashStore
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetNX stores value only if key does not exist yet; returns true when
	// this call created the key. ttl <= 0 means no expiry.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// StreamEntry is one entry read from a stream.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// StreamStore provides append-only stream operations (change feed in,
// notifications out).
type StreamStore interface {
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	// XRead returns entries after lastID, blocking up to block when the
	// stream has none. A nil slice with nil error means the block timed out.
	XRead(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]StreamEntry, error)
}
