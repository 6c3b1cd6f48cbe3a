package recommendation

import "github.com/kailas-cloud/mealrec/internal/domain/recipe"

// Result is a single ranked recommendation.
type Result struct {
	recipe recipe.Recipe
	score  float64
}

// New creates a recommendation result.
func New(r recipe.Recipe, score float64) Result {
	return Result{recipe: r, score: score}
}

// Recipe returns the recommended recipe.
func (r *Result) Recipe() recipe.Recipe { return r.recipe }

// Score returns the cosine similarity to the query, in [-1, 1].
func (r *Result) Score() float64 { return r.score }

// Recipes drops the scores, keeping rank order.
func Recipes(results []Result) []recipe.Recipe {
	out := make([]recipe.Recipe, len(results))
	for i := range results {
		out[i] = results[i].recipe
	}
	return out
}
