package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
func NewStoreForTest(c rueidis.Client, ttl time.Duration) *Store {
	return &Store{client: c, ttl: ttl}
}
