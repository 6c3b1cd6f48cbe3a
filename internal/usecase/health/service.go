package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an auxiliary component (cache) is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates recommendations cannot be served.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckEmpty indicates an empty corpus. Informational, does not change Status.
	CheckEmpty CheckResult = "empty"
)

// Report aggregates health check results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	CorpusSize int
}

// Service coordinates health checks.
type Service struct {
	cache     CachePinger
	embedding EmbeddingChecker
	corpus    CorpusSizer
}

// New creates a Service. cache is nil when the embedding cache is disabled.
func New(cache CachePinger, embedding EmbeddingChecker, corpus CorpusSizer) *Service {
	return &Service{cache: cache, embedding: embedding, corpus: corpus}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
			status = Degraded
		} else {
			checks["cache"] = CheckOK
		}
	}

	if err := s.embedding.HealthCheck(ctx); err != nil {
		checks["embedding"] = CheckError
		status = Unhealthy
	} else {
		checks["embedding"] = CheckOK
	}

	size := s.corpus.Size()
	if size > 0 {
		checks["corpus"] = CheckOK
	} else {
		checks["corpus"] = CheckEmpty
	}

	return Report{Status: status, Checks: checks, CorpusSize: size}
}
