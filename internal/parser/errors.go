package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDocument is returned when Parse is called without a Document AI document.
	ErrNilDocument = errors.New("no document to parse")

	// ErrInvalidThreshold is returned for a confidence threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("confidence threshold out of range")
)

// ParseError wraps a failure of the whole parse, as opposed to a single step.
type ParseError struct {
	Op         string
	DocumentID string
	Err        error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("parser: %s failed for document %s: %v", e.Op, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("parser: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether the underlying error matches target.
func (e *ParseError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
