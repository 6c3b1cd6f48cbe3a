package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/recommendations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("GET", "/recommendations?q=soup&k=3", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	// Query string never reaches the path label.
	requestsVal := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/recommendations", "200"))
	if requestsVal < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", requestsVal)
	}

	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())

	r.Post("/recipes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Post("/recipes/import", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		// Implicit 200 on first Write.
		_, _ = w.Write([]byte("{}"))
	})

	tests := []struct {
		method, path   string
		expectedStatus string
	}{
		{"POST", "/recipes", "400"},
		{"POST", "/recipes/import", "502"},
		{"GET", "/health", "200"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.path, tc.expectedStatus))
			if val < 1 {
				t.Errorf("expected requests_total for %s with status %s >= 1, got %f", tc.path, tc.expectedStatus, val)
			}
		})
	}
}

func TestMetricsMiddleware_RoutePatternLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/recipes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"52795", "52772"} {
		req := httptest.NewRequest("GET", "/recipes/"+id, http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/recipes/{id}", "200")); val < 2 {
		t.Errorf("expected both requests under the route pattern, got %f", val)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/recommendations", "/recommendations"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		result := normalizePath(tc.input)
		if result != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestRegisterCorpusMetrics_Idempotent(t *testing.T) {
	RegisterCorpusMetrics()
	RegisterCorpusMetrics()

	CorpusSize.Set(7)
	if got := testutil.ToFloat64(CorpusSize); got != 7 {
		t.Errorf("expected corpus gauge 7, got %f", got)
	}

	SourceRequestsTotal.WithLabelValues("mealdb", "ok").Inc()
	if got := testutil.ToFloat64(SourceRequestsTotal.WithLabelValues("mealdb", "ok")); got < 1 {
		t.Errorf("expected source counter >= 1, got %f", got)
	}
}

func TestCorpusRecorder(t *testing.T) {
	RegisterCorpusMetrics()

	var rec CorpusRecorder
	rec.CorpusReplaced(12)
	if got := testutil.ToFloat64(CorpusSize); got != 12 {
		t.Errorf("expected corpus gauge 12, got %f", got)
	}

	before := histogramCount(t)
	rec.RecommendServed(3 * time.Millisecond)
	if got := histogramCount(t); got != before+1 {
		t.Errorf("expected %d recommend observations, got %d", before+1, got)
	}
}

func histogramCount(t *testing.T) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := RecommendDuration.Write(m); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
