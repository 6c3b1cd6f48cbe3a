package domain

import "errors"

var (
	// ErrValidation signals a malformed recipe at the ingestion boundary.
	ErrValidation = errors.New("validation failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyCorpus signals a query against a corpus with nothing to search.
	ErrEmptyCorpus = errors.New("corpus is empty")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrSourceUnavailable signals that an upstream recipe source could not be read.
	ErrSourceUnavailable = errors.New("recipe source unavailable")
)
