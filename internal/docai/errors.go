package docai

import (
	"errors"
	"fmt"
)

// Common Document AI errors
var (
	// ErrInvalidDocument is returned when the document is rejected as malformed or unsupported.
	ErrInvalidDocument = errors.New("invalid or corrupted document")

	// ErrProcessingFailed is returned when Document AI processing fails.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrInvalidCredentials is returned when Google Cloud credentials are invalid
	// or lack the necessary permissions.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrMissingCredentials is returned when no Google Cloud credentials are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrInvalidConfiguration is returned when project, location or processor settings are missing.
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

	// ErrProcessorNotFound is returned when the processor cannot be found or accessed.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when Document AI API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrDocumentTooLarge is returned when inline content exceeds the synchronous size limit.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrEmptyResponse is returned when the API answers without a document.
	ErrEmptyResponse = errors.New("no document in Document AI response")

	// ErrContextCanceled is returned when processing is canceled via context.
	ErrContextCanceled = errors.New("document processing was canceled")
)

// ProcessingError wraps Document AI failures with the operation that failed.
type ProcessingError struct {
	// Op is the operation that failed (e.g., "Process", "LoadJSON").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// ProcessorName is the full resource name used for the call, if any.
	ProcessorName string
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("docai: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	if e.ProcessorName != "" {
		return fmt.Sprintf("docai: %s failed (processor: %s): %v", e.Op, e.ProcessorName, e.Err)
	}
	return fmt.Sprintf("docai: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessingError creates a new ProcessingError.
func NewProcessingError(op string, err error, details string) *ProcessingError {
	return &ProcessingError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapProcessingError wraps an error as a ProcessingError if it isn't already one.
func WrapProcessingError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var procErr *ProcessingError
	if errors.As(err, &procErr) {
		return err
	}

	return NewProcessingError(op, err, details)
}

// IsRetryable reports whether err is worth retrying: quota, timeouts and
// generic processing failures are, while bad input and auth problems are not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidConfiguration),
		errors.Is(err, ErrProcessorNotFound),
		errors.Is(err, ErrDocumentTooLarge),
		errors.Is(err, ErrContextCanceled):
		return false
	}
	return true
}
