package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrPDFTooLarge is returned for inline content above MaxFileSizeBytes.
	ErrPDFTooLarge = errors.New("PDF file size exceeds the maximum limit (20MB)")

	// ErrInvalidPDF is returned when inline content does not start with a PDF header.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrNoSource is returned when neither content nor a gs:// URI is given.
	ErrNoSource = errors.New("no document content or GCS URI")

	// ErrOCRFailed is returned when Cloud Vision rejects the request.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrTooManyPages is returned for documents above MaxPagesSync pages.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrEmptyDocument is returned when no text was recognised.
	ErrEmptyDocument = errors.New("document contains no readable text")
)

// OCRError wraps a failure with the operation that produced it.
type OCRError struct {
	Op      string
	Err     error
	Details string
}

func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps err unless it already is an *OCRError.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}
	return &OCRError{Op: op, Err: err, Details: details}
}
