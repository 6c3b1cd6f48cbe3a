package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/domain"
	"github.com/kailas-cloud/mealrec/internal/domain/recipe"
	"github.com/kailas-cloud/mealrec/internal/domain/recommendation"
	logpkg "github.com/kailas-cloud/mealrec/internal/logger"
	healthuc "github.com/kailas-cloud/mealrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/mealrec/internal/usecase/recommend"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodeValidationFailed     = "validation_failed"
	CodePayloadTooLarge      = "payload_too_large"
	CodeEmptyCorpus          = "empty_corpus"
	CodeVectorDimMismatch    = "vector_dim_mismatch"
	CodeEmbeddingProviderErr = "embedding_provider_error"
	CodeSourceUnavailable    = "source_unavailable"
	CodeInternalError        = "internal_error"
	CodeNotFound             = "not_found"
	CodeMethodNotAllowed     = "method_not_allowed"
)

// embeddingTokensHeader carries the tokens spent on embeddings by a request.
const embeddingTokensHeader = "X-Embedding-Tokens"

// Limits bounds request handling.
type Limits struct {
	DefaultK     int
	MaxK         int
	MaxRecipes   int
	MaxBodyBytes int64
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecipeResponse is a recipe as rendered by the API.
type RecipeResponse struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Cuisine      string   `json:"cuisine"`
	Difficulty   string   `json:"difficulty"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
}

// RecommendationItem is a single ranked recipe.
type RecommendationItem struct {
	RecipeResponse
	Score float64 `json:"score"`
}

// RecommendationListResponse is the body of GET /recommendations.
type RecommendationListResponse struct {
	Query string               `json:"query"`
	K     int                  `json:"k"`
	Items []RecommendationItem `json:"items"`
	Total int                  `json:"total"`
}

// IngestResponse is the body of POST /recipes and POST /recipes/import.
type IngestResponse struct {
	Recipes int `json:"recipes"`
}

// ImportRequest is the optional body of POST /recipes/import.
type ImportRequest struct {
	Terms []string `json:"terms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Checks     map[string]string `json:"checks"`
	CorpusSize int               `json:"corpus_size"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the recommendation API.
type Server struct {
	recommend     *recommenduc.Service
	source        recommenduc.Source
	importTerms   []string
	health        *healthuc.Service
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. source may be nil, import is then disabled.
func NewServer(
	recommend *recommenduc.Service,
	source recommenduc.Source,
	health *healthuc.Service,
	limits Limits,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommend: recommend,
		source:    source,
		health:    health,
		limits:    limits,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrEmptyCorpus, http.StatusConflict, CodeEmptyCorpus),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderErr),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusBadGateway, CodeSourceUnavailable),
	}
	return s
}

// WithImportTerms sets the search terms used when an import request names none.
func (s *Server) WithImportTerms(terms []string) *Server {
	s.importTerms = terms
	return s
}

// IngestRecipes handles POST /recipes. The body is an array of raw recipe records
// and replaces the whole corpus.
func (s *Server) IngestRecipes(w http.ResponseWriter, r *http.Request) {
	var records []map[string]any
	if !s.decodeBody(w, r, &records) {
		return
	}
	if records == nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "request body must be a JSON array of recipes")
		return
	}
	if s.limits.MaxRecipes > 0 && len(records) > s.limits.MaxRecipes {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("too many recipes: %d (max %d)", len(records), s.limits.MaxRecipes))
		return
	}

	recipes := make([]recipe.Recipe, len(records))
	for i, rec := range records {
		rc, err := recipe.FromRecord(rec)
		if err != nil {
			s.handleDomainError(w, r, fmt.Errorf("recipe %d: %w", i, err))
			return
		}
		recipes[i] = rc
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	if err := s.recommend.Ingest(ctx, recipes); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, IngestResponse{Recipes: len(recipes)})
}

// ImportRecipes handles POST /recipes/import: fetch from the recipe source and replace the corpus.
func (s *Server) ImportRecipes(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "recipe import is disabled")
		return
	}

	// The body is optional: an empty one, chunked or not, means "use the configured terms".
	var req ImportRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	terms := req.Terms
	if len(terms) == 0 {
		terms = s.importTerms
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	n, err := s.recommend.Import(ctx, s.source, terms)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, IngestResponse{Recipes: n})
}

// Recommend handles GET /recommendations?q=&k=.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}

	k, err := s.parseK(r.URL.Query().Get("k"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.recommend.Recommend(ctx, query, k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]RecommendationItem, len(results))
	for i := range results {
		items[i] = recommendationToResponse(&results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, RecommendationListResponse{
		Query: query,
		K:     k,
		Items: items,
		Total: len(items),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:     string(report.Status),
		Checks:     checks,
		CorpusSize: report.CorpusSize,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// parseK applies the default for a missing k and caps it at MaxK.
func (s *Server) parseK(raw string) (int, error) {
	if raw == "" {
		return s.limits.DefaultK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("k must be an integer, got %q", raw)
	}
	if s.limits.MaxK > 0 && k > s.limits.MaxK {
		k = s.limits.MaxK
	}
	return k, nil
}

// decodeBody decodes a size-limited JSON body into v, writing the error response on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decode(w, r, v, false)
}

// decode is decodeBody that, with optional set, accepts an empty body and leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	body := r.Body
	if s.limits.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.limits.MaxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set(embeddingTokensHeader, strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrEmptyCorpus,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrSourceUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports the offending field; record content never reaches the message.
func validationHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	var ve *recipe.ValidationError
	if errors.As(err, &ve) {
		msg = err.Error()
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func recipeToResponse(r *recipe.Recipe) RecipeResponse {
	return RecipeResponse{
		ID:           r.ID(),
		Name:         r.Name(),
		Cuisine:      r.Cuisine(),
		Difficulty:   r.Difficulty(),
		Ingredients:  r.Ingredients(),
		Instructions: r.Instructions(),
	}
}

func recommendationToResponse(res *recommendation.Result) RecommendationItem {
	rc := res.Recipe()
	return RecommendationItem{
		RecipeResponse: recipeToResponse(&rc),
		Score:          res.Score(),
	}
}
