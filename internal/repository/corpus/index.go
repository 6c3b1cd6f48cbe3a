// Package corpus holds the in-memory similarity index over the ingested recipes.
package corpus

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
)

// entry pairs a recipe with its embedding so the two can never drift apart.
type entry struct {
	recipe recipe.Recipe
	vector []float32
	norm   float64
}

// snapshot is an immutable corpus generation. Readers hold a pointer to one
// snapshot for the whole query.
type snapshot struct {
	entries []entry
	dim     int
}

// Index is an exact brute-force cosine index. Build swaps a whole snapshot,
// so a concurrent Query sees either the old corpus or the new one, never a mix.
type Index struct {
	current atomic.Pointer[snapshot]
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

// Build replaces the entire index.
// recipes[i] must be the owner of vectors[i]; a length or dimension mismatch is a
// caller defect and panics.
func (x *Index) Build(recipes []recipe.Recipe, vectors [][]float32) {
	if len(recipes) != len(vectors) {
		panic(fmt.Sprintf("corpus: %d recipes vs %d vectors", len(recipes), len(vectors)))
	}

	snap := &snapshot{entries: make([]entry, len(recipes))}
	for i := range recipes {
		v := vectors[i]
		if i == 0 {
			snap.dim = len(v)
		} else if len(v) != snap.dim {
			panic(fmt.Sprintf("corpus: vector %d has dimension %d, want %d", i, len(v), snap.dim))
		}
		snap.entries[i] = entry{
			recipe: recipes[i],
			vector: append([]float32(nil), v...),
			norm:   magnitude(v),
		}
	}

	x.current.Store(snap)
}

// Query returns up to k recipes ranked by descending cosine similarity.
// Equal scores keep insertion order. k <= 0 yields an empty slice; k above the
// corpus size is clamped. An empty corpus is ErrEmptyCorpus.
func (x *Index) Query(vector []float32, k int) ([]recommendation.Result, error) {
	snap := x.current.Load()
	if snap == nil || len(snap.entries) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if k <= 0 {
		return []recommendation.Result{}, nil
	}
	if len(vector) != snap.dim {
		return nil, fmt.Errorf("query dimension %d, corpus dimension %d: %w",
			len(vector), snap.dim, domain.ErrVectorDimMismatch)
	}

	type scored struct {
		idx   int
		score float64
	}

	qn := magnitude(vector)
	scores := make([]scored, len(snap.entries))
	for i := range snap.entries {
		scores[i] = scored{idx: i, score: cosine(vector, qn, &snap.entries[i])}
	}

	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]recommendation.Result, k)
	for i := 0; i < k; i++ {
		s := scores[i]
		out[i] = recommendation.New(snap.entries[s.idx].recipe, s.score)
	}
	return out, nil
}

// Len returns the number of indexed recipes.
func (x *Index) Len() int {
	if snap := x.current.Load(); snap != nil {
		return len(snap.entries)
	}
	return 0
}

// Dimension returns the vector dimension of the current corpus, 0 when empty.
func (x *Index) Dimension() int {
	if snap := x.current.Load(); snap != nil {
		return snap.dim
	}
	return 0
}

// cosine is 0 when either vector has zero norm. Rounding in the norms can push
// a parallel pair just past ±1, so the result is clamped to [-1, 1].
func cosine(q []float32, qn float64, e *entry) float64 {
	if qn == 0 || e.norm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(e.vector[i])
	}
	s := dot / (qn * e.norm)
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}
