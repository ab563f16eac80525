package parser

import (
	"fmt"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"

	"docparse/internal/docai"
	"docparse/internal/fallback"
	"docparse/internal/textnorm"
	"docparse/pkg/models"
)

// defaultFieldConfidence is used when Document AI reports no key confidence.
const defaultFieldConfidence = 0.8

func extractKeyValuePairs(log zerolog.Logger, doc *documentaipb.Document, fullText string, threshold float64) []models.KeyValuePair {
	var out []models.KeyValuePair
	for i, page := range doc.Pages {
		pageNumber := int(page.PageNumber)
		if pageNumber == 0 {
			pageNumber = i + 1
		}
		for _, field := range page.FormFields {
			confidence := float64(field.GetFieldName().GetConfidence())
			if confidence == 0 {
				confidence = defaultFieldConfidence
			}
			if confidence < threshold {
				continue
			}

			keyText := textnorm.Normalize(docai.TextFromLayout(field.GetFieldName(), doc.Text))
			valueText := textnorm.Normalize(docai.TextFromLayout(field.GetFieldValue(), doc.Text))
			key, ok := locate(fullText, keyText, 0)
			if !ok {
				log.Debug().Str("key", keyText).Msg("Form field key not found in full text")
				continue
			}
			value, ok := locate(fullText, valueText, key.EndOffset)
			if !ok {
				log.Debug().Str("key", keyText).Msg("Form field value not found in full text")
				continue
			}

			out = append(out, models.KeyValuePair{
				ID:         fmt.Sprintf("kvp_%04d", len(out)+1),
				Key:        key,
				Value:      value,
				Confidence: confidence,
				PageNumber: pageNumber,
				Metadata: map[string]interface{}{
					"docai_confidence": confidence,
					"value_confidence": float64(field.GetFieldValue().GetConfidence()),
				},
			})
		}
	}
	log.Debug().Int("count", len(out)).Msg("Extracted key-value pairs")
	return out
}

// fallbackKVs converts fallback matches into pairs for the fields the
// structured pairs do not already cover.
func fallbackKVs(res *fallback.Result, existing []models.KeyValuePair, fullText string) []models.KeyValuePair {
	covered := make(map[string]bool)
	for _, kv := range existing {
		if f, ok := fallback.FieldForKey(kv.Key.Text); ok {
			covered[f] = true
		}
	}

	var out []models.KeyValuePair
	n := len(existing)
	for _, field := range res.Found() {
		if covered[field] {
			continue
		}
		m, _ := res.Get(field)
		out = append(out, models.KeyValuePair{
			ID:         fmt.Sprintf("fallback_%s_%d", field, n),
			Key:        models.TextSpan{StartOffset: m.LabelStart, EndOffset: m.LabelEnd, Text: fullText[m.LabelStart:m.LabelEnd]},
			Value:      models.TextSpan{StartOffset: m.Start, EndOffset: m.End, Text: m.Value},
			Confidence: m.Confidence,
			PageNumber: 1,
			Metadata: map[string]interface{}{
				"source":           m.Source,
				"pattern":          m.Pattern,
				"field":            field,
				"normalized_value": m.NormalizedValue,
				"raw_value":        m.Value,
			},
		})
		n++
	}
	return out
}
