package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/config"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	healthuc "github.com/kailas-cloud/mealrec/internal/usecase/health"
)

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	cfg := config.Config{
		HTTP:  config.HTTPConfig{Port: 8080},
		Cache: config.CacheConfig{Driver: driver, Path: filepath.Join(t.TempDir(), "cache", "emb.db")},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func mustRecipe(t *testing.T, name string, ingredients ...string) recipe.Recipe {
	t.Helper()
	r, err := recipe.New("", name, ingredients, "", "Any", "Easy")
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}
	return r
}

func TestNew_HashingWithSQLiteCache(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, config.CacheSQLite), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Cache == nil {
		t.Fatal("expected sqlite cache store")
	}

	recipes := []recipe.Recipe{
		mustRecipe(t, "Garlic Prawns", "prawns", "garlic"),
		mustRecipe(t, "Lentil Dal", "lentils", "turmeric"),
	}
	// Second ingest is served from the cache and must rank identically.
	for i := 0; i < 2; i++ {
		if err := a.Recommender.Ingest(ctx, recipes); err != nil {
			t.Fatalf("Ingest #%d: %v", i, err)
		}
		results, err := a.Recommender.Recommend(ctx, "lentils with turmeric", 1)
		if err != nil {
			t.Fatalf("Recommend #%d: %v", i, err)
		}
		r := results[0].Recipe()
		if r.Name() != "Lentil Dal" {
			t.Errorf("run %d: expected Lentil Dal, got %q", i, r.Name())
		}
	}

	report := a.Health.Check(ctx)
	if report.Status != healthuc.Healthy || report.Checks["cache"] != healthuc.CheckOK {
		t.Errorf("unexpected health: %+v", report)
	}
	if report.CorpusSize != 2 {
		t.Errorf("expected corpus size 2, got %d", report.CorpusSize)
	}
}

func TestNew_NoCache(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.CacheNone), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Cache != nil {
		t.Error("expected no cache store")
	}
	if _, ok := a.Health.Check(context.Background()).Checks["cache"]; ok {
		t.Error("cache check must be absent when the cache is disabled")
	}
}

func TestOpenCache_UnknownDriver(t *testing.T) {
	_, err := OpenCache(context.Background(), config.CacheConfig{Driver: "memcached"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestBuildEmbedder_HashingDimensions(t *testing.T) {
	cfg := testConfig(t, config.CacheNone)
	e := BuildEmbedder(cfg.Embedding, "passage: ", nil, zap.NewNop())

	a, err := e.Embed(context.Background(), "tomato soup")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a.Embedding) != cfg.Embedding.Dimensions {
		t.Errorf("expected %d dims, got %d", cfg.Embedding.Dimensions, len(a.Embedding))
	}
}
