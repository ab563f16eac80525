// Package ocr extracts text from PDF documents with Google Cloud Vision.
//
// The OCR text is an independent reading of the document. The pipeline
// compares it against the Document AI text in its diagnostics and keeps it
// as ocr_result.json.
//
// Cloud Vision limits for synchronous file annotation:
//   - 20MB of inline content
//   - 5 pages per request
//   - PDF, TIFF and GIF input, inline or from Cloud Storage
package ocr

import (
	"context"
	"time"
)

// Service extracts text from a document.
type Service interface {
	Recognize(ctx context.Context, src Source) (*Result, error)
	Close() error
}

// Source is either inline PDF bytes or a gs:// URI. GCSURI wins when both are set.
type Source struct {
	Content []byte
	GCSURI  string
}

// Vertex is a pixel coordinate on the page image.
type Vertex struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Block is one text block as Vision segmented it.
type Block struct {
	Page        int      `json:"page"`
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
	BoundingBox []Vertex `json:"bounding_box"`
}

// Result is the OCR reading of one document.
type Result struct {
	// Text is the page texts in reading order, separated by page markers.
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`

	// Confidence is the mean of the block confidences, each the mean of its words.
	Confidence float64 `json:"confidence"`

	Blocks        []Block  `json:"blocks"`
	LanguageCodes []string `json:"language_codes"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
