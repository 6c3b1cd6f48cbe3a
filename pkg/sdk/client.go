package mealrec

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/db"
	dbRedis "github.com/kailas-cloud/mealrec/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/mealrec/internal/db/sqlite"
	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
	"github.com/kailas-cloud/mealrec/internal/hashing"
	"github.com/kailas-cloud/mealrec/internal/repository/corpus"
	"github.com/kailas-cloud/mealrec/internal/repository/embcache"
	embeddinguc "github.com/kailas-cloud/mealrec/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/mealrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/mealrec/internal/usecase/recommend"
)

const defaultReadinessTimeout = 10 * time.Second

// Внутренний интерфейс для подмены в тестах.
type recommendUseCase interface {
	Ingest(ctx context.Context, recipes []recipe.Recipe) error
	Recommend(ctx context.Context, query string, k int) ([]recommendation.Result, error)
	Size() int
}

// Client is the embedded recommender entry point. Safe for concurrent use.
type Client struct {
	store     db.Store
	svc       recommendUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. With no options it uses in-memory hashing embeddings and no cache.
// The provided context is used for the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("mealrec: cache not ready: %w", err)
		}
	}

	return wireClient(store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.cacheDriver {
	case "":
		return nil, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			TTL:      cfg.cacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("mealrec: create redis store: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := dbSQLite.NewStore(dbSQLite.Config{Path: cfg.path, TTL: cfg.cacheTTL})
		if err != nil {
			return nil, fmt.Errorf("mealrec: create sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("mealrec: unknown cache driver %q", cfg.cacheDriver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	logger := zap.NewNop()

	var docEmb domain.Embedder
	namespace := cfg.cacheNamespace
	if cfg.embedder != nil {
		docEmb = adaptEmbedder(cfg.embedder)
		if namespace == "" {
			namespace = "custom"
		}
	} else {
		h := hashing.New(cfg.hashDimensions)
		docEmb = h
		if namespace == "" {
			namespace = fmt.Sprintf("hashing:fnv64a-%d", h.Dimensions())
		}
	}
	queryEmb := docEmb
	if cfg.queryEmbedder != nil {
		queryEmb = adaptEmbedder(cfg.queryEmbedder)
	}

	decorate := func(e domain.Embedder) domain.Embedder {
		if store != nil {
			e = embcache.New(e, store, namespace, nil, logger)
		}
		return embeddinguc.NewInstrumentedEmbedder(e, "sdk", namespace, cfg.maxBatchSize, logger)
	}
	docEmb = decorate(docEmb)
	if cfg.queryEmbedder != nil {
		queryEmb = decorate(queryEmb)
	} else {
		queryEmb = docEmb
	}

	svc := recommenduc.New(corpus.New(), docEmb, logger).WithQueryEmbedder(queryEmb)

	// Pass a nil interface, not a typed nil pointer, when there is no cache.
	var pinger healthuc.CachePinger
	if store != nil {
		pinger = store
	}

	return &Client{
		store:     store,
		svc:       svc,
		healthSvc: healthuc.New(pinger, healthChecker{docEmb}, svc),
		obs:       obs,
	}
}

// Close releases the cache connection, if any.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ingest replaces the corpus with recipes. On error the previous corpus stays in place.
// An empty slice is valid and leaves an empty corpus.
func (c *Client) Ingest(ctx context.Context, recipes []Recipe) (err error) {
	start := time.Now()
	defer func() { c.obs.ingested(start, len(recipes), c.svc.Size(), err) }()

	domRecipes := make([]recipe.Recipe, len(recipes))
	for i := range recipes {
		r, err := recipeToDomain(&recipes[i])
		if err != nil {
			return fmt.Errorf("recipe %d: %w", i, err)
		}
		domRecipes[i] = r
	}

	if err := c.svc.Ingest(ctx, domRecipes); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

// Recommend returns up to k recipes ordered by descending similarity to query.
// k <= 0 yields an empty slice. Fails with ErrEmptyCorpus before anything was ingested.
func (c *Client) Recommend(ctx context.Context, query string, k int) (recs []Recommendation, err error) {
	start := time.Now()
	defer func() { c.obs.recommended(start, k, len(recs), err) }()

	results, err := c.svc.Recommend(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	recs = make([]Recommendation, len(results))
	for i := range results {
		recs[i] = recommendationFromDomain(&results[i])
	}
	return recs, nil
}

// Size returns the number of recipes in the current corpus.
func (c *Client) Size() int {
	return c.svc.Size()
}

// healthChecker exposes the embedder's optional health check.
type healthChecker struct {
	embedder domain.Embedder
}

func (h healthChecker) HealthCheck(ctx context.Context) error {
	hc, ok := h.embedder.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}
