// Package hashing is an offline embedding provider based on feature hashing.
//
// Every lower-cased word token is hashed with FNV-1a into one of Dimensions
// buckets with a hash-derived sign, and the result is L2-normalised. Texts that
// share vocabulary score high under cosine similarity. The output is a pure
// function of the input, which makes the provider usable without network access
// and as a reproducible stand-in in tests.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/mealrec/internal/domain"
)

// DefaultDimensions matches the sentence-transformer model the service was tuned with.
const DefaultDimensions = 384

// Embedder implements domain.Embedder and domain.BatchEmbedder.
type Embedder struct {
	dim int
}

// New creates a hashing embedder. dim <= 0 means DefaultDimensions.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Embedder{dim: dim}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed vectorizes a single text. TotalTokens is the number of word tokens seen.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec, n := e.vector(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: n, TotalTokens: n}, nil
}

// BatchEmbed vectorizes texts in order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // caller wraps as provider error
		}
		vec, n := e.vector(t)
		out.Embeddings[i] = vec
		out.PromptTokens += n
		out.TotalTokens += n
	}
	return out, nil
}

// HealthCheck always succeeds: there is nothing remote to reach.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(text string) ([]float32, int) {
	acc := make([]float64, e.dim)
	tokens := Tokenize(text)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := sum % uint64(e.dim)
		if sum>>63 == 1 {
			acc[bucket]--
		} else {
			acc[bucket]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec, len(tokens)
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, len(tokens)
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
