// Package app assembles the recommender from configuration. Shared by the
// API server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/config"
	"github.com/kailas-cloud/mealrec/internal/db"
	dbRedis "github.com/kailas-cloud/mealrec/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/mealrec/internal/db/sqlite"
	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/hashing"
	"github.com/kailas-cloud/mealrec/internal/metrics"
	"github.com/kailas-cloud/mealrec/internal/repository/corpus"
	"github.com/kailas-cloud/mealrec/internal/repository/embcache"
	"github.com/kailas-cloud/mealrec/internal/transport/mealdb"
	openaiEmb "github.com/kailas-cloud/mealrec/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/mealrec/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/mealrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/mealrec/internal/usecase/recommend"
)

// App is the wired object graph.
type App struct {
	Recommender *recommenduc.Service
	Source      *mealdb.Client
	Health      *healthuc.Service
	// Cache is nil when the embedding cache is disabled.
	Cache db.Store
}

// Close releases the cache connection.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
}

// New wires cache, embedders, index, recommender, source and health from cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterCorpusMetrics()

	store, err := OpenCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	docEmbedder := BuildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := BuildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	rec := recommenduc.New(corpus.New(), docEmbedder, logger).
		WithQueryEmbedder(queryEmbedder).
		WithRecorder(metrics.CorpusRecorder{})

	source := mealdb.New(mealdb.Config{
		BaseURL:           cfg.Source.BaseURL,
		Timeout:           time.Duration(cfg.Source.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Logger:            logger,
	})

	// Pass a nil interface, not a typed nil pointer, when the cache is off.
	var pinger healthuc.CachePinger
	if store != nil {
		pinger = store
	}
	health := healthuc.New(pinger, newEmbeddingHealthChecker(docEmbedder), rec)

	return &App{Recommender: rec, Source: source, Health: health, Cache: store}, nil
}

// OpenCache opens the configured embedding cache store. Returns nil for driver "none".
func OpenCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (db.Store, error) {
	ttl := time.Duration(cfg.TTLSec) * time.Second

	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.CacheNone, "":
		logger.Info("Embedding cache disabled")
		return nil, nil
	case config.CacheRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      ttl,
		})
	case config.CacheSQLite:
		var s *dbSQLite.Store
		s, err = dbSQLite.NewStore(dbSQLite.Config{Path: cfg.Path, TTL: ttl})
		if err == nil {
			if n, perr := s.Purge(ctx); perr != nil {
				logger.Warn("Failed to purge expired cache entries", zap.Error(perr))
			} else if n > 0 {
				logger.Info("Purged expired cache entries", zap.Int64("entries", n))
			}
			store = s
		}
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s cache not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to embedding cache", zap.String("driver", cfg.Driver))
	return store, nil
}

// BuildEmbedder assembles the decorator chain: provider -> cache -> instrumented -> instruction.
func BuildEmbedder(
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	var (
		base      domain.Embedder
		model     = cfg.Model
		namespace string
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
		namespace = fmt.Sprintf("%s:%s:%d", cfg.Provider, cfg.Model, cfg.Dimensions)
	default:
		h := hashing.New(cfg.Dimensions)
		base = h
		model = fmt.Sprintf("fnv64a-%d", h.Dimensions())
		namespace = config.ProviderHashing + ":" + model
	}

	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, namespace, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, model, cfg.MaxBatchSize, logger)

	// Instruction prefix is outermost so the cache key includes it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
