package pipeline

import (
	"context"
	"errors"
	"fmt"

	"docparse/internal/docai"
	"docparse/internal/staging"
	"docparse/pkg/services"
)

var (
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDocAIUnavailable is returned when no Document AI processor is configured.
	ErrDocAIUnavailable = errors.New("Document AI is not configured")

	// ErrNoInput is returned when a pipeline request has neither content nor source.
	ErrNoInput = errors.New("no document content or source given")

	// ErrUnknownPipeline is returned for results of a pipeline that never ran here.
	ErrUnknownPipeline = services.ErrPipelineNotFound
)

// StageError records the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// retryable decides whether a batch item is tried again.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrDocAIUnavailable),
		errors.Is(err, staging.ErrNotPDF),
		errors.Is(err, context.Canceled):
		return false
	}
	return docai.IsRetryable(err)
}
