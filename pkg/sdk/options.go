package mealrec

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	embedder       Embedder
	queryEmbedder  Embedder
	hashDimensions int
	maxBatchSize   int
	cacheNamespace string

	cacheDriver string // "", "redis" or "sqlite"
	addrs       []string
	password    string
	path        string
	cacheTTL    time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider used for recipes and queries.
// Default: built-in feature hashing (offline, deterministic).
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithQueryEmbedder sets a separate embedder for queries, e.g. one that
// prepends a query instruction. It must produce vectors in the same space.
func WithQueryEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryEmbedder = e
	})
}

// WithHashingDimensions sets the vector size of the built-in hashing embedder.
// Default: 384. Ignored when WithEmbedder is used.
func WithHashingDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hashDimensions = dim
	})
}

// WithMaxBatchSize caps the number of texts per embedder call during Ingest.
// Default: 256.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithRedisCache caches embeddings in Redis (or Valkey).
func WithRedisCache(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLiteCache caches embeddings in a local SQLite file.
func WithSQLiteCache(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "sqlite"
		c.path = path
	})
}

// WithCacheTTL expires cached embeddings after ttl. Zero keeps them forever.
func WithCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithCacheNamespace scopes cache keys, e.g. "openai:text-embedding-3-small".
// Change it whenever the embedder changes so stale vectors are never reused.
func WithCacheNamespace(ns string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheNamespace = ns
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations,
// recipes per ingest, results per recommendation, corpus size) on the given
// registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
