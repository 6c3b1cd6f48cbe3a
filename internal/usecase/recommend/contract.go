package recommend

import (
	"context"
	"time"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
)

// Index is the similarity index contract. Build replaces the whole corpus.
type Index interface {
	Build(recipes []recipe.Recipe, vectors [][]float32)
	Query(vector []float32, k int) ([]recommendation.Result, error)
	Len() int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Source supplies recipes from an upstream catalogue.
type Source interface {
	FetchAll(ctx context.Context, terms []string) ([]recipe.Recipe, error)
}

// Recorder receives corpus and latency observations. The owner of the Service
// decides where they go; the default discards them.
type Recorder interface {
	CorpusReplaced(recipes int)
	RecommendServed(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CorpusReplaced(int) {}
func (nopRecorder) RecommendServed(time.Duration) {}
