// Package features derives ML-ready feature vectors and run diagnostics from
// a parsed document.
package features

import (
	"strings"
	"time"
	"unicode/utf8"

	"docparse/internal/fallback"
	"docparse/internal/textnorm"
	"docparse/pkg/models"
)

// EmbeddingSize matches the text embedding models the vector is sized for.
const EmbeddingSize = 768

// Vector is the content of feature_vector.json.
type Vector struct {
	DocumentID         string                        `json:"document_id"`
	EmbeddingDoc       []float64                     `json:"embedding_doc"`
	KVFlags            map[string]bool               `json:"kv_flags"`
	Structural         Structural                    `json:"structural"`
	NeedsReview        bool                          `json:"needs_review"`
	ClassifierVerdict  *models.ClassificationVerdict `json:"classifier_verdict"`
	EmbeddingClauses   [][]float64                   `json:"embedding_clauses"`
	KVValues           map[string]*string            `json:"kv_values"`
	Confidences        Confidences                   `json:"confidences"`
	GenerationMetadata GenerationMetadata            `json:"generation_metadata"`
}

// Structural holds document shape counts.
type Structural struct {
	PageCount       int     `json:"page_count"`
	ClauseCount     int     `json:"clause_count"`
	EntityCount     int     `json:"entity_count"`
	KVCount         int     `json:"kv_count"`
	TextLength      int     `json:"text_length"`
	ClauseCoverage  float64 `json:"clause_coverage"`
	EntityDensity   float64 `json:"entity_density"`
	AvgClauseLength float64 `json:"avg_clause_length"`
}

// Confidences summarises every entity, clause and KV confidence.
type Confidences struct {
	Avg      float64 `json:"avg_confidence"`
	Min      float64 `json:"min_confidence"`
	Max      float64 `json:"max_confidence"`
	Variance float64 `json:"confidence_variance"`
}

// GenerationMetadata records how the vector was produced.
type GenerationMetadata struct {
	Timestamp               time.Time `json:"timestamp"`
	Version                 string    `json:"version"`
	FeatureCount            int       `json:"feature_count"`
	MVPMode                 bool      `json:"mvp_mode"`
	VertexEmbeddingDisabled bool      `json:"vertex_embedding_disabled"`
	ClassificationMethod    string    `json:"classification_method"`
}

// structuralFieldCount is the number of fields in Structural.
const structuralFieldCount = 8

// Build computes the feature vector for doc. verdict may be nil.
func Build(doc *models.ParsedDocument, verdict *models.ClassificationVerdict) *Vector {
	flags, values := kvFeatures(doc.KeyValuePairs)
	conf := confidenceMetrics(doc)

	method := "none"
	if verdict != nil {
		method = "regex_pattern_matching"
	}

	var clauseEmbeddings [][]float64
	for _, c := range doc.Clauses {
		if c.TextSpan.Text != "" {
			clauseEmbeddings = append(clauseEmbeddings, PlaceholderEmbedding(EmbeddingSize))
		}
	}

	// variance is only reported once there is something to summarise
	confCount := 3
	if len(doc.NamedEntities)+len(doc.Clauses)+len(doc.KeyValuePairs) > 0 {
		confCount = 4
	}

	return &Vector{
		DocumentID:        doc.Metadata.DocumentID,
		EmbeddingDoc:      PlaceholderEmbedding(EmbeddingSize),
		KVFlags:           flags,
		Structural:        structural(doc),
		NeedsReview:       doc.NeedsReview,
		ClassifierVerdict: verdict,
		EmbeddingClauses:  clauseEmbeddings,
		KVValues:          values,
		Confidences:       conf,
		GenerationMetadata: GenerationMetadata{
			Timestamp:               time.Now().UTC(),
			Version:                 "1.0",
			FeatureCount:            len(flags) + structuralFieldCount + confCount,
			MVPMode:                 true,
			VertexEmbeddingDisabled: true,
			ClassificationMethod:    method,
		},
	}
}

// PlaceholderEmbedding returns a deterministic vector of the given size.
func PlaceholderEmbedding(size int) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = 0.1 * float64(i%10)
	}
	return out
}

func kvFeatures(kvs []models.KeyValuePair) (map[string]bool, map[string]*string) {
	flags := make(map[string]bool, len(fallback.MandatoryFields))
	values := make(map[string]*string, len(fallback.MandatoryFields))
	for _, f := range fallback.MandatoryFields {
		flags["has_"+f] = false
		values[f] = nil
	}
	for _, kv := range kvs {
		field, ok := fallback.FieldForKey(kv.Key.Text)
		if !ok {
			if f, isFallback := kv.Metadata["field"].(string); isFallback {
				field, ok = f, true
			}
		}
		if !ok {
			continue
		}
		if _, mandatory := values[field]; !mandatory {
			continue
		}
		v := kv.Value.Text
		flags["has_"+field] = true
		values[field] = &v
	}
	return flags, values
}

func structural(doc *models.ParsedDocument) Structural {
	text := doc.FullText
	var clauseChars int
	for _, c := range doc.Clauses {
		clauseChars += utf8.RuneCountInString(c.TextSpan.Text)
	}
	pages := doc.Metadata.PageCount
	if pages == 0 {
		pages = 1
	}
	return Structural{
		PageCount:       pages,
		ClauseCount:     len(doc.Clauses),
		EntityCount:     len(doc.NamedEntities),
		KVCount:         len(doc.KeyValuePairs),
		TextLength:      utf8.RuneCountInString(text),
		ClauseCoverage:  float64(len(doc.Clauses)) / float64(max(1, len(strings.Split(text, "\n")))),
		EntityDensity:   float64(len(doc.NamedEntities)) / float64(max(1, len(strings.Fields(text)))),
		AvgClauseLength: float64(clauseChars) / float64(max(1, len(doc.Clauses))),
	}
}

func confidenceMetrics(doc *models.ParsedDocument) Confidences {
	var all []float64
	for _, e := range doc.NamedEntities {
		all = append(all, e.Confidence)
	}
	for _, c := range doc.Clauses {
		all = append(all, c.Confidence)
	}
	for _, kv := range doc.KeyValuePairs {
		all = append(all, kv.Confidence)
	}
	if len(all) == 0 {
		return Confidences{}
	}

	out := Confidences{Min: all[0], Max: all[0]}
	var sum float64
	for _, c := range all {
		sum += c
		out.Min = min(out.Min, c)
		out.Max = max(out.Max, c)
	}
	out.Avg = sum / float64(len(all))
	if len(all) > 1 {
		var sq float64
		for _, c := range all {
			sq += (c - out.Avg) * (c - out.Avg)
		}
		out.Variance = sq / float64(len(all))
	}
	return out
}

// Diagnostics is the content of diagnostics.json.
type Diagnostics struct {
	Timestamp       time.Time      `json:"timestamp"`
	DocumentID      string         `json:"document_id"`
	SimilarityScore float64        `json:"similarity_score"`
	Counts          Counts         `json:"counts"`
	NeedsReview     bool           `json:"needs_review"`
	ReviewReasons   []string       `json:"review_reasons,omitempty"`
	TextStats       TextStats      `json:"text_stats"`
	Encoding        EncodingReport `json:"encoding"`
}

// Counts of extracted items.
type Counts struct {
	Clauses       int `json:"clauses"`
	NamedEntities int `json:"named_entities"`
	KeyValuePairs int `json:"key_value_pairs"`
}

// TextStats compares raw and normalized text length.
type TextStats struct {
	Length           int `json:"length"`
	NormalizedLength int `json:"normalized_length"`
}

// EncodingReport lists text encoding problems.
type EncodingReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// BuildDiagnostics summarises a parse. When reference is non-empty the
// similarity score compares it with the full text; otherwise it is 0.
func BuildDiagnostics(doc *models.ParsedDocument, reference string, reasons []string) *Diagnostics {
	var score float64
	if reference != "" {
		score = textnorm.Score(reference, doc.FullText)
	}
	ok, issues := textnorm.ValidateEncoding(doc.FullText)
	return &Diagnostics{
		Timestamp:       time.Now().UTC(),
		DocumentID:      doc.Metadata.DocumentID,
		SimilarityScore: score,
		Counts: Counts{
			Clauses:       len(doc.Clauses),
			NamedEntities: len(doc.NamedEntities),
			KeyValuePairs: len(doc.KeyValuePairs),
		},
		NeedsReview:   doc.NeedsReview,
		ReviewReasons: reasons,
		TextStats: TextStats{
			Length:           utf8.RuneCountInString(doc.FullText),
			NormalizedLength: utf8.RuneCountInString(textnorm.NormalizeForComparison(doc.FullText)),
		},
		Encoding: EncodingReport{Valid: ok, Issues: issues},
	}
}
