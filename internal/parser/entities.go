package parser

import (
	"fmt"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"

	"docparse/internal/docai"
	"docparse/internal/fallback"
	"docparse/internal/textnorm"
	"docparse/pkg/models"
)

var entityTypes = map[string]models.EntityType{
	"PERSON":         models.EntityPerson,
	"ORGANIZATION":   models.EntityOrganization,
	"DATE":           models.EntityDate,
	"MONEY":          models.EntityMoney,
	"LOCATION":       models.EntityLocation,
	"CONTRACT_PARTY": models.EntityContractParty,
	"OBLIGATION":     models.EntityObligation,
	"PENALTY":        models.EntityPenalty,
	"DURATION":       models.EntityDuration,
	"JURISDICTION":   models.EntityJurisdiction,
}

func entityType(docaiType string) models.EntityType {
	if t, ok := entityTypes[strings.ToUpper(docaiType)]; ok {
		return t
	}
	return models.EntityOther
}

// extractFullText prefers the document text and falls back to the
// paragraph layouts of every page.
func extractFullText(doc *documentaipb.Document) string {
	if doc.Text != "" {
		return doc.Text
	}
	var b strings.Builder
	for _, page := range doc.Pages {
		for _, para := range page.Paragraphs {
			b.WriteString(docai.TextFromLayout(para.GetLayout(), doc.Text))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// locate finds text in fullText at or after from, then anywhere. When the
// exact text is missing its normalized form is tried.
func locate(fullText, text string, from int) (models.TextSpan, bool) {
	if text == "" || fullText == "" {
		return models.TextSpan{}, false
	}
	candidates := []string{text}
	if n := textnorm.Normalize(text); n != "" && n != text {
		candidates = append(candidates, n)
	}
	for _, c := range candidates {
		if from > 0 && from < len(fullText) {
			if i := strings.Index(fullText[from:], c); i >= 0 {
				start := from + i
				return models.TextSpan{StartOffset: start, EndOffset: start + len(c), Text: c}, true
			}
		}
		if i := strings.Index(fullText, c); i >= 0 {
			return models.TextSpan{StartOffset: i, EndOffset: i + len(c), Text: c}, true
		}
	}
	return models.TextSpan{}, false
}

func extractEntities(log zerolog.Logger, doc *documentaipb.Document, fullText string, threshold float64) []models.NamedEntity {
	var out []models.NamedEntity
	dropped := 0
	for _, e := range doc.Entities {
		confidence := float64(e.Confidence)
		if confidence < threshold {
			dropped++
			continue
		}
		span, ok := locate(fullText, e.MentionText, 0)
		if !ok {
			log.Debug().Str("mention", e.MentionText).Msg("Entity mention not found in full text")
			continue
		}

		typ := entityType(e.Type)
		entity := models.NamedEntity{
			ID:              fmt.Sprintf("entity_%04d", len(out)+1),
			Type:            typ,
			TextSpan:        span,
			Confidence:      confidence,
			NormalizedValue: normalizeEntityValue(typ, e, span.Text),
			PageNumber:      1,
			Metadata: map[string]interface{}{
				"docai_type":       e.Type,
				"docai_confidence": confidence,
			},
		}
		if refs := e.GetPageAnchor().GetPageRefs(); len(refs) > 0 {
			entity.PageNumber = int(refs[0].Page) + 1
			if l, t, r, b, ok := docai.BoundingBox(refs[0].GetBoundingPoly()); ok {
				entity.BoundingBox = &models.BoundingBox{Left: l, Top: t, Right: r, Bottom: b}
			}
		}
		out = append(out, entity)
	}
	log.Debug().Int("count", len(out)).Int("below_threshold", dropped).Msg("Extracted entities")
	return out
}

func normalizeEntityValue(typ models.EntityType, e *documentaipb.Document_Entity, text string) string {
	switch typ {
	case models.EntityDate:
		nv := e.GetNormalizedValue()
		if d := nv.GetDateValue(); d != nil && d.GetYear() > 0 && d.GetMonth() > 0 && d.GetDay() > 0 {
			return fmt.Sprintf("%04d-%02d-%02d", d.GetYear(), d.GetMonth(), d.GetDay())
		}
		if nv.GetText() != "" {
			return nv.GetText()
		}
		return fallback.NormalizeDate(text)
	case models.EntityMoney:
		switch {
		case strings.Contains(text, "$"):
			return "USD:" + text
		case strings.Contains(text, "€"):
			return "EUR:" + text
		case strings.Contains(text, "£"):
			return "GBP:" + text
		case strings.Contains(text, "₹"), strings.HasPrefix(strings.ToLower(text), "rs"):
			return "INR:" + text
		}
	}
	return text
}
