package recipe

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/mealrec/internal/domain"
)

const (
	// DefaultCuisine is used by sources that do not report a cuisine.
	DefaultCuisine = "Unknown"
	// DefaultDifficulty is used by sources that do not report a difficulty.
	DefaultDifficulty = "Medium"
)

// ValidationError wraps domain.ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", domain.ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Recipe is the recipe aggregate (immutable value object).
type Recipe struct {
	id           string
	name         string
	ingredients  []string
	instructions string
	cuisine      string
	difficulty   string
}

// New validates and creates a Recipe.
// Name is required; id is an optional stable key. Ingredient order is preserved.
func New(id, name string, ingredients []string, instructions, cuisine, difficulty string) (Recipe, error) {
	if strings.TrimSpace(name) == "" {
		return Recipe{}, invalid("name", "is required")
	}

	return Recipe{
		id:           id,
		name:         name,
		ingredients:  cloneStrings(ingredients),
		instructions: instructions,
		cuisine:      cuisine,
		difficulty:   difficulty,
	}, nil
}

// FromRecord builds a Recipe from an untyped raw record (decoded JSON).
// Every known field must hold a string, ingredients must be a list of strings.
func FromRecord(rec map[string]any) (Recipe, error) {
	if rec == nil {
		return Recipe{}, invalid("record", "is empty")
	}

	name, err := stringField(rec, "name")
	if err != nil {
		return Recipe{}, err
	}
	id, err := stringField(rec, "id")
	if err != nil {
		return Recipe{}, err
	}
	instructions, err := stringField(rec, "instructions")
	if err != nil {
		return Recipe{}, err
	}
	cuisine, err := stringField(rec, "cuisine")
	if err != nil {
		return Recipe{}, err
	}
	difficulty, err := stringField(rec, "difficulty")
	if err != nil {
		return Recipe{}, err
	}
	ingredients, err := stringsField(rec, "ingredients")
	if err != nil {
		return Recipe{}, err
	}

	return New(id, name, ingredients, instructions, cuisine, difficulty)
}

// ID returns the stable key (may be empty).
func (r *Recipe) ID() string { return r.id }

// Name returns the recipe name.
func (r *Recipe) Name() string { return r.name }

// Ingredients returns the ingredients in original order.
func (r *Recipe) Ingredients() []string { return cloneStrings(r.ingredients) }

// Instructions returns the cooking instructions.
func (r *Recipe) Instructions() string { return r.instructions }

// Cuisine returns the cuisine label.
func (r *Recipe) Cuisine() string { return r.cuisine }

// Difficulty returns the difficulty label.
func (r *Recipe) Difficulty() string { return r.difficulty }

// Text renders the canonical text fed to the embedder.
func (r *Recipe) Text() string {
	var b strings.Builder
	b.Grow(len(r.name) + len(r.instructions) + 64)
	b.WriteString("Recipe: ")
	b.WriteString(r.name)
	b.WriteString("\nCuisine: ")
	b.WriteString(r.cuisine)
	b.WriteString("\nDifficulty: ")
	b.WriteString(r.difficulty)
	b.WriteString("\nIngredients: ")
	b.WriteString(strings.Join(r.ingredients, ", "))
	b.WriteString("\nInstructions: ")
	b.WriteString(r.instructions)
	return b.String()
}

// Texts renders the canonical text of every recipe, in order.
func Texts(recipes []Recipe) []string {
	out := make([]string, len(recipes))
	for i := range recipes {
		out[i] = recipes[i].Text()
	}
	return out
}

func stringField(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		if key == "name" {
			return "", invalid(key, "is required")
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, fmt.Sprintf("must be a string, got %T", v))
	}
	return s, nil
}

func stringsField(rec map[string]any, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vv := v.(type) {
	case []string:
		return cloneStrings(vv), nil
	case []any:
		out := make([]string, len(vv))
		for i, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(key, fmt.Sprintf("item %d must be a string, got %T", i, item))
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, invalid(key, fmt.Sprintf("must be a list of strings, got %T", v))
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
