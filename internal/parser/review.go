package parser

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"docparse/internal/fallback"
	"docparse/internal/metrics"
	"docparse/pkg/models"
)

const (
	minEntities           = 3
	minMandatoryFields    = 2
	minClauses            = 3
	minHighConfidenceFrac = 0.7
)

type reviewOutcome struct {
	NeedsReview bool
	// Reasons lists the quality gates that fired.
	Reasons []string
	// Found is the sorted union of mandatory fields from structured pairs and the fallback.
	Found []string
	// Fallback is set when the fallback extractor ran.
	Fallback *fallback.Result
}

// assessReview applies the quality gates. When any gate fires the fallback
// extractor runs over fullText, and the document needs review only if
// structured pairs and fallback together cover fewer than two mandatory fields.
func assessReview(log zerolog.Logger, x *fallback.Extractor, fullText string, entities []models.NamedEntity, kvs []models.KeyValuePair, clauses []models.Clause, threshold float64) reviewOutcome {
	structured := mapset.NewThreadUnsafeSet[string]()
	for _, kv := range kvs {
		if f, ok := fallback.FieldForKey(kv.Key.Text); ok {
			structured.Add(f)
		}
	}

	highConfidence := 0
	for _, e := range entities {
		if e.Confidence > threshold {
			highConfidence++
		}
	}

	var reasons []string
	if len(entities) < minEntities {
		reasons = append(reasons, fmt.Sprintf("only %d named entities extracted (minimum %d)", len(entities), minEntities))
	}
	if structured.Cardinality() < minMandatoryFields {
		reasons = append(reasons, fmt.Sprintf("only %d mandatory fields in structured key-value pairs (minimum %d)", structured.Cardinality(), minMandatoryFields))
	}
	if len(clauses) < minClauses {
		reasons = append(reasons, fmt.Sprintf("only %d clauses detected (minimum %d)", len(clauses), minClauses))
	}
	if float64(highConfidence) < float64(len(entities))*minHighConfidenceFrac {
		reasons = append(reasons, fmt.Sprintf("only %d of %d entities above confidence threshold", highConfidence, len(entities)))
	}

	out := reviewOutcome{Reasons: reasons}
	found := structured
	if len(reasons) > 0 {
		log.Info().Strs("reasons", reasons).Msg("Running fallback extraction for mandatory fields")
		metrics.FallbackRuns.Inc()

		out.Fallback = x.Run(fullText)
		fromFallback := mapset.NewThreadUnsafeSet[string]()
		for _, f := range fallback.MandatoryFields {
			if _, ok := out.Fallback.Get(f); ok {
				fromFallback.Add(f)
			}
		}
		found = structured.Union(fromFallback)
	}

	out.Found = found.ToSlice()
	sort.Strings(out.Found)
	out.NeedsReview = found.Cardinality() < minMandatoryFields

	log.Info().
		Int("structured_mandatory", structured.Cardinality()).
		Int("mandatory_found", found.Cardinality()).
		Bool("needs_review", out.NeedsReview).
		Msg("Review assessment completed")

	return out
}
