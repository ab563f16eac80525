package parser

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"

	"docparse/internal/docai"
	"docparse/pkg/models"
)

const warnConfidence = 0.8

func collectWarnings(doc *documentaipb.Document, entities []models.NamedEntity, clauses []models.Clause) []string {
	var warnings []string

	low := 0
	for _, e := range entities {
		if e.Confidence < warnConfidence {
			low++
		}
	}
	if low > 0 {
		warnings = append(warnings, fmt.Sprintf("%d entities have confidence below 0.8", low))
	}

	low = 0
	for _, c := range clauses {
		if c.Confidence < warnConfidence {
			low++
		}
	}
	if low > 0 {
		warnings = append(warnings, fmt.Sprintf("%d clauses have confidence below 0.8", low))
	}

	// Pages without a layout confidence are left out of the average.
	var sum float64
	n := 0
	for _, page := range doc.Pages {
		if c := page.GetLayout().GetConfidence(); c > 0 {
			sum += float64(c)
			n++
		}
	}
	if n > 0 {
		if avg := sum / float64(n); avg < warnConfidence {
			warnings = append(warnings, fmt.Sprintf("Document OCR quality is low (avg confidence: %.2f)", avg))
		}
	}

	return warnings
}

// rawResponse summarises doc and embeds its protojson form.
func rawResponse(log zerolog.Logger, doc *documentaipb.Document) map[string]interface{} {
	out := map[string]interface{}{
		"text":      doc.Text,
		"pages":     len(doc.Pages),
		"entities":  len(doc.Entities),
		"mime_type": doc.MimeType,
	}
	data, err := docai.MarshalDocument(doc)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to serialize Document AI response")
		return out
	}
	out["document"] = json.RawMessage(data)
	return out
}
