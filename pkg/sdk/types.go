package mealrec

import (
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
)

// Recipe is a recipe as accepted and returned by the Client.
// Name is required; everything else is optional.
type Recipe struct {
	ID           string
	Name         string
	Ingredients  []string
	Instructions string
	Cuisine      string
	Difficulty   string
}

// Recommendation is a ranked recipe with its cosine similarity to the query.
type Recommendation struct {
	Recipe Recipe
	Score  float64
}

func recipeToDomain(r *Recipe) (recipe.Recipe, error) {
	return recipe.New(r.ID, r.Name, r.Ingredients, r.Instructions, r.Cuisine, r.Difficulty)
}

func recipeFromDomain(r *recipe.Recipe) Recipe {
	return Recipe{
		ID:           r.ID(),
		Name:         r.Name(),
		Ingredients:  r.Ingredients(),
		Instructions: r.Instructions(),
		Cuisine:      r.Cuisine(),
		Difficulty:   r.Difficulty(),
	}
}

func recommendationFromDomain(res *recommendation.Result) Recommendation {
	rc := res.Recipe()
	return Recommendation{Recipe: recipeFromDomain(&rc), Score: res.Score()}
}
