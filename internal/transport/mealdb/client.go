// Package mealdb reads recipes from TheMealDB public JSON API.
package mealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/metrics"
)

// DefaultBaseURL is the free-tier API root.
const DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

// maxIngredients is the number of strIngredientN slots in a meal record.
const maxIngredients = 20

// DefaultTerms are the search terms used when an import names none.
var DefaultTerms = []string{"chicken", "pasta", "fish", "rice", "soup"}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls; <= 0 disables throttling.
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// Client is a TheMealDB search client.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a client. Empty BaseURL means DefaultBaseURL.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		limiter: limiter,
		logger:  logger,
	}
}

// searchResponse: "meals" is null when nothing matches.
type searchResponse struct {
	Meals []map[string]any `json:"meals"`
}

// Search returns the meals matching term, mapped to recipes.
// Records without a name are skipped.
func (c *Client) Search(ctx context.Context, term string) ([]recipe.Recipe, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	endpoint := c.baseURL + "/search.php?s=" + url.QueryEscape(term)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("mealdb", "error").Inc()
		return nil, fmt.Errorf("search %q: %w: %w", term, domain.ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.SourceRequestsTotal.WithLabelValues("mealdb", strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("search %q: status %d: %w", term, resp.StatusCode, domain.ErrSourceUnavailable)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("mealdb", "bad_body").Inc()
		return nil, fmt.Errorf("decode %q: %w: %w", term, domain.ErrSourceUnavailable, err)
	}
	metrics.SourceRequestsTotal.WithLabelValues("mealdb", "200").Inc()

	recipes := make([]recipe.Recipe, 0, len(body.Meals))
	for _, meal := range body.Meals {
		r, err := toRecipe(meal)
		if err != nil {
			c.logger.Warn("Skipping meal record",
				zap.String("term", term),
				zap.String("id", str(meal, "idMeal")),
				zap.Error(err),
			)
			continue
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// FetchAll searches every term in order and concatenates the results.
// Meals found by several terms are kept once, at their first position.
// Any failed term fails the whole fetch.
func (c *Client) FetchAll(ctx context.Context, terms []string) ([]recipe.Recipe, error) {
	if len(terms) == 0 {
		terms = DefaultTerms
	}

	var all []recipe.Recipe
	seen := make(map[string]struct{})
	for _, term := range terms {
		found, err := c.Search(ctx, term)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			if r.ID() != "" {
				if _, dup := seen[r.ID()]; dup {
					continue
				}
				seen[r.ID()] = struct{}{}
			}
			all = append(all, r)
		}
		c.logger.Debug("Fetched meals", zap.String("term", term), zap.Int("count", len(found)))
	}

	c.logger.Info("Fetched recipes from TheMealDB",
		zap.Strings("terms", terms),
		zap.Int("recipes", len(all)),
	)
	return all, nil
}

func toRecipe(meal map[string]any) (recipe.Recipe, error) {
	ingredients := make([]string, 0, maxIngredients)
	for i := 1; i <= maxIngredients; i++ {
		ing := str(meal, "strIngredient"+strconv.Itoa(i))
		if strings.TrimSpace(ing) != "" {
			ingredients = append(ingredients, ing)
		}
	}

	cuisine := str(meal, "strArea")
	if cuisine == "" {
		cuisine = recipe.DefaultCuisine
	}

	//nolint:wrapcheck // validation error carries the field
	return recipe.New(
		str(meal, "idMeal"),
		str(meal, "strMeal"),
		ingredients,
		str(meal, "strInstructions"),
		cuisine,
		recipe.DefaultDifficulty,
	)
}

// str returns the string value at key, "" for missing, null or non-string values.
func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
