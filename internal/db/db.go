// Package db defines the storage contracts behind the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is the database facade implemented by every cache backend.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
// Entries written by Set expire after the backend's configured TTL, if any.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
