package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
)

// Service turns recipes into an index and free-text queries into ranked recipes.
type Service struct {
	index      Index
	docEmbed   Embedder
	queryEmbed Embedder
	recorder   Recorder
	logger     *zap.Logger

	// ingestMu serialises writers; Recommend never takes it.
	ingestMu sync.Mutex
}

// New creates a recommender. The same embedder serves documents and queries
// unless WithQueryEmbedder overrides it.
func New(index Index, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		index:      index,
		docEmbed:   embed,
		queryEmbed: embed,
		recorder:   nopRecorder{},
		logger:     logger,
	}
}

// WithRecorder routes corpus size and recommendation latency to r.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithQueryEmbedder sets a separate embedder for queries (e.g. a query instruction
// decorator over the same provider).
func (s *Service) WithQueryEmbedder(e Embedder) *Service {
	if e != nil {
		s.queryEmbed = e
	}
	return s
}

// Ingest replaces the corpus with recipes. All-or-nothing: on any error the
// previous corpus stays in place.
func (s *Service) Ingest(ctx context.Context, recipes []recipe.Recipe) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	start := time.Now()

	res, err := domain.Encode(ctx, s.docEmbed, recipe.Texts(recipes))
	if err != nil {
		s.logger.Error("Ingest failed, corpus unchanged",
			zap.Int("recipes", len(recipes)),
			zap.Error(err),
		)
		return fmt.Errorf("vectorize recipes: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	s.index.Build(recipes, res.Embeddings)
	s.recorder.CorpusReplaced(len(recipes))

	s.logger.Info("Corpus replaced",
		zap.Int("recipes", len(recipes)),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Recommend embeds query and returns up to k recipes by descending similarity.
func (s *Service) Recommend(ctx context.Context, query string, k int) ([]recommendation.Result, error) {
	// Nothing to search: fail before spending an embedding call.
	if s.index.Len() == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	start := time.Now()

	res, err := domain.Encode(ctx, s.queryEmbed, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	results, err := s.index.Query(res.Embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	s.recorder.RecommendServed(time.Since(start))

	s.logger.Debug("Recommendation served",
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// Size returns the number of recipes in the current corpus.
func (s *Service) Size() int {
	return s.index.Len()
}

// Import fetches recipes from src and replaces the corpus with them.
// A failed fetch leaves the corpus untouched.
func (s *Service) Import(ctx context.Context, src Source, terms []string) (int, error) {
	recipes, err := src.FetchAll(ctx, terms)
	if err != nil {
		return 0, fmt.Errorf("fetch recipes: %w", err)
	}
	if err := s.Ingest(ctx, recipes); err != nil {
		return 0, err
	}
	return len(recipes), nil
}
