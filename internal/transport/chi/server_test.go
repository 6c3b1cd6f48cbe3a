package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/hashing"
	"github.com/kailas-cloud/mealrec/internal/metrics"
	"github.com/kailas-cloud/mealrec/internal/repository/corpus"
	healthuc "github.com/kailas-cloud/mealrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/mealrec/internal/usecase/recommend"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterCorpusMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type stubSource struct {
	recipes []recipe.Recipe
	err     error
	terms   []string
}

func (s *stubSource) FetchAll(_ context.Context, terms []string) ([]recipe.Recipe, error) {
	s.terms = terms
	return s.recipes, s.err
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("connection refused")
}

func (failingEmbedder) HealthCheck(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	handler http.Handler
	svc     *recommenduc.Service
	source  *stubSource
}

func newFixture(t *testing.T, embedder domain.Embedder, limits Limits) *fixture {
	t.Helper()
	svc := recommenduc.New(corpus.New(), embedder, zap.NewNop()).WithRecorder(metrics.CorpusRecorder{})
	src := &stubSource{}
	checker, _ := embedder.(healthuc.EmbeddingChecker)
	health := healthuc.New(nil, checker, svc)
	server := NewServer(svc, src, health, limits, zap.NewNop()).
		WithImportTerms([]string{"chicken"})
	return &fixture{
		handler: NewRouter(server, nil, zap.NewNop()),
		svc:     svc,
		source:  src,
	}
}

func defaultLimits() Limits {
	return Limits{DefaultK: 3, MaxK: 50, MaxRecipes: 100, MaxBodyBytes: 1 << 20}
}

const threeRecipes = `[
	{"name": "Chicken Curry", "ingredients": ["chicken", "curry paste", "coconut milk"],
	 "instructions": "Simmer the chicken in spicy curry.", "cuisine": "Indian", "difficulty": "Medium"},
	{"name": "Tomato Pasta", "ingredients": ["spaghetti", "tomato", "basil"],
	 "instructions": "Boil spaghetti, toss with tomato sauce.", "cuisine": "Italian", "difficulty": "Easy"},
	{"name": "Miso Soup", "ingredients": ["miso", "tofu", "seaweed"],
	 "instructions": "Whisk miso into dashi with tofu.", "cuisine": "Japanese", "difficulty": "Easy"}
]`

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func ingestThree(t *testing.T, f *fixture) {
	t.Helper()
	rr := f.do(t, "POST", "/recipes", threeRecipes)
	if rr.Code != http.StatusOK {
		t.Fatalf("ingest: got %d: %s", rr.Code, rr.Body.String())
	}
}

// --- Tests ---

func TestIngestRecipes_OK(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "POST", "/recipes", threeRecipes)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp IngestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Recipes != 3 || f.svc.Size() != 3 {
		t.Errorf("expected 3 recipes, got resp=%d size=%d", resp.Recipes, f.svc.Size())
	}
	if rr.Header().Get("X-Embedding-Tokens") == "" {
		t.Error("expected X-Embedding-Tokens header")
	}
}

func TestIngestRecipes_InvalidRecord(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	rr := f.do(t, "POST", "/recipes", `[{"name": "Ok"}, {"ingredients": ["salt"]}]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeValidationFailed {
		t.Errorf("code: got %s, want %s", resp.Code, CodeValidationFailed)
	}
	if !strings.Contains(resp.Message, "name") || !strings.Contains(resp.Message, "recipe 1") {
		t.Errorf("message should name record and field, got %q", resp.Message)
	}
	if f.svc.Size() != 3 {
		t.Errorf("rejected ingest must keep corpus, size=%d", f.svc.Size())
	}
}

func TestIngestRecipes_WrongFieldType(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "POST", "/recipes", `[{"name": "Soup", "ingredients": "miso"}]`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Message, "ingredients") {
		t.Errorf("message should name ingredients, got %q", resp.Message)
	}
}

func TestIngestRecipes_NotAnArray(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	for _, body := range []string{`{"name": "x"}`, `null`, `not json`} {
		rr := f.do(t, "POST", "/recipes", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rr.Code)
		}
	}
}

func TestIngestRecipes_EmptyArray(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	rr := f.do(t, "POST", "/recipes", `[]`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	rr = f.do(t, "GET", "/recommendations?q=chicken", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("recommend after empty ingest: got %d, want 409", rr.Code)
	}
}

func TestIngestRecipes_TooMany(t *testing.T) {
	limits := defaultLimits()
	limits.MaxRecipes = 2
	f := newFixture(t, hashing.New(0), limits)

	rr := f.do(t, "POST", "/recipes", threeRecipes)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestIngestRecipes_BodyTooLarge(t *testing.T) {
	limits := defaultLimits()
	limits.MaxBodyBytes = 16
	f := newFixture(t, hashing.New(0), limits)

	rr := f.do(t, "POST", "/recipes", threeRecipes)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodePayloadTooLarge {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestIngestRecipes_EmbeddingFailure(t *testing.T) {
	f := newFixture(t, failingEmbedder{}, defaultLimits())

	rr := f.do(t, "POST", "/recipes", threeRecipes)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeEmbeddingProviderErr {
		t.Errorf("code: got %s", resp.Code)
	}
	if strings.Contains(resp.Message, "connection refused") {
		t.Errorf("provider internals leaked: %q", resp.Message)
	}
}

func TestRecommend_RanksByMeaning(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	rr := f.do(t, "GET", "/recommendations?q=spicy+chicken+curry&k=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp RecommendationListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	top := resp.Items[0]
	if top.Name != "Chicken Curry" || top.Cuisine != "Indian" {
		t.Errorf("expected Chicken Curry first, got %+v", top)
	}
	if len(top.Ingredients) != 3 || top.Ingredients[0] != "chicken" {
		t.Errorf("ingredients not rendered in order: %v", top.Ingredients)
	}
	if top.Score <= 0 || top.Score > 1 {
		t.Errorf("unexpected score %v", top.Score)
	}
	if rr.Header().Get("X-Embedding-Tokens") == "" {
		t.Error("expected X-Embedding-Tokens header")
	}
}

func TestRecommend_DefaultAndCappedK(t *testing.T) {
	limits := defaultLimits()
	limits.DefaultK = 2
	limits.MaxK = 2
	f := newFixture(t, hashing.New(0), limits)
	ingestThree(t, f)

	for _, target := range []string{"/recommendations?q=pasta", "/recommendations?q=pasta&k=40"} {
		rr := f.do(t, "GET", target, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: got %d", target, rr.Code)
		}
		var resp RecommendationListResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.K != 2 || len(resp.Items) != 2 {
			t.Errorf("%s: expected k=2 and 2 items, got k=%d items=%d", target, resp.K, len(resp.Items))
		}
		for i := 1; i < len(resp.Items); i++ {
			if resp.Items[i].Score > resp.Items[i-1].Score {
				t.Errorf("%s: scores increase at %d", target, i)
			}
		}
	}
}

func TestRecommend_NonPositiveK(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	rr := f.do(t, "GET", "/recommendations?q=soup&k=0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp RecommendationListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("expected empty items array, got %v", resp.Items)
	}
}

func TestRecommend_BadParams(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	for _, target := range []string{
		"/recommendations",
		"/recommendations?q=%20%20",
		"/recommendations?q=soup&k=abc",
	} {
		rr := f.do(t, "GET", target, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
		}
	}
}

func TestRecommend_EmptyCorpus(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "GET", "/recommendations?q=soup", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeEmptyCorpus {
		t.Errorf("code: got %s", resp.Code)
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("no embedding should be spent on an empty corpus")
	}
}

func TestImportRecipes_OK(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	r, err := recipe.New("52795", "Chicken Handi", []string{"chicken"}, "Cook.", "Indian", "Medium")
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}
	f.source.recipes = []recipe.Recipe{r}

	rr := f.do(t, "POST", "/recipes/import", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if len(f.source.terms) != 1 || f.source.terms[0] != "chicken" {
		t.Errorf("expected configured terms, got %v", f.source.terms)
	}

	rr = f.do(t, "POST", "/recipes/import", `{"terms": ["soup", "rice"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if len(f.source.terms) != 2 || f.source.terms[0] != "soup" {
		t.Errorf("expected request terms, got %v", f.source.terms)
	}
	if f.svc.Size() != 1 {
		t.Errorf("expected 1 imported recipe, got %d", f.svc.Size())
	}
}

func TestImportRecipes_ChunkedBody(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	r, err := recipe.New("52795", "Chicken Handi", []string{"chicken"}, "Cook.", "Indian", "Medium")
	if err != nil {
		t.Fatalf("recipe.New: %v", err)
	}
	f.source.recipes = []recipe.Recipe{r}

	tests := []struct {
		name      string
		body      string
		wantTerms []string
	}{
		{"empty", "", []string{"chicken"}},
		{"whitespace", "  \n", []string{"chicken"}},
		{"terms", `{"terms": ["fish"]}`, []string{"fish"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// NopCloser hides the length, so the request looks chunked.
			req := httptest.NewRequest("POST", "/recipes/import", io.NopCloser(strings.NewReader(tt.body)))
			if req.ContentLength != -1 {
				t.Fatalf("expected unknown content length, got %d", req.ContentLength)
			}
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
			}
			if len(f.source.terms) != len(tt.wantTerms) || f.source.terms[0] != tt.wantTerms[0] {
				t.Errorf("terms: got %v, want %v", f.source.terms, tt.wantTerms)
			}
		})
	}
}

func TestImportRecipes_TruncatedBody(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "POST", "/recipes/import", `{"terms": [`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestImportRecipes_SourceUnavailable(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)
	f.source.err = domain.ErrSourceUnavailable

	rr := f.do(t, "POST", "/recipes/import", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeSourceUnavailable {
		t.Errorf("code: got %s", resp.Code)
	}
	if f.svc.Size() != 3 {
		t.Errorf("failed import must keep corpus, size=%d", f.svc.Size())
	}
}

func TestImportRecipes_Disabled(t *testing.T) {
	svc := recommenduc.New(corpus.New(), hashing.New(0), zap.NewNop())
	server := NewServer(svc, nil, healthuc.New(nil, hashing.New(0), svc), defaultLimits(), zap.NewNop())
	h := NewRouter(server, nil, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/recipes/import", http.NoBody))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(healthuc.Healthy) || resp.Checks["corpus"] != string(healthuc.CheckEmpty) {
		t.Errorf("unexpected report before ingest: %+v", resp)
	}

	ingestThree(t, f)
	rr = f.do(t, "GET", "/health", "")
	resp = HealthResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CorpusSize != 3 || resp.Checks["corpus"] != string(healthuc.CheckOK) {
		t.Errorf("unexpected report after ingest: %+v", resp)
	}
}

func TestHealthCheck_EmbeddingDown(t *testing.T) {
	f := newFixture(t, failingEmbedder{}, defaultLimits())

	rr := f.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())
	ingestThree(t, f)

	rr := f.do(t, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "mealrec_corpus_recipes") {
		t.Error("expected corpus gauge in metrics output")
	}
}

func TestRouter_NotFoundAndRequestID(t *testing.T) {
	f := newFixture(t, hashing.New(0), defaultLimits())

	rr := f.do(t, "GET", "/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("code: got %s", resp.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	rr = f.do(t, "DELETE", "/recipes", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeInternalError {
		t.Errorf("code: got %s", resp.Code)
	}
}

func TestRouter_AuthEnforced(t *testing.T) {
	svc := recommenduc.New(corpus.New(), hashing.New(0), zap.NewNop())
	server := NewServer(svc, nil, healthuc.New(nil, hashing.New(0), svc), defaultLimits(), zap.NewNop())
	h := NewRouter(server, []string{"secret"}, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/recipes", strings.NewReader(threeRecipes)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}

	req := httptest.NewRequest("POST", "/recipes", strings.NewReader(threeRecipes))
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}
