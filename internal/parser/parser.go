// Package parser turns a Document AI document into a ParsedDocument.
//
// Parsing is a fixed sequence of steps: full text, entities, key-value
// pairs, clauses, review assessment (with the regex fallback when the
// structured output is thin), cross references and warnings. A step that
// fails is logged, degrades to an empty result and adds a warning; only a
// missing document fails the whole parse.
package parser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/internal/fallback"
	"docparse/internal/features"
	"docparse/internal/logger"
	"docparse/internal/metrics"
	"docparse/internal/textnorm"
	"docparse/pkg/models"
)

// Artifact file names written after a successful parse.
const (
	FeatureVectorFile = "feature_vector.json"
	DiagnosticsFile   = "diagnostics.json"
)

// Input is one document to parse.
type Input struct {
	Document *documentaipb.Document
	Metadata models.DocumentMetadata

	// IncludeRawResponse adds a summary and a protojson dump of Document.
	IncludeRawResponse bool

	// ReferenceText, when set, is compared against the full text for the
	// diagnostics similarity score (for example Vision OCR output).
	ReferenceText string

	// Artifacts overrides the parser's store for this document.
	Artifacts *artifacts.Store
}

// Parser is safe for concurrent use.
type Parser struct {
	store     *artifacts.Store
	extractor *fallback.Extractor
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithArtifacts writes feature_vector.json and diagnostics.json to store
// after every successful parse.
func WithArtifacts(store *artifacts.Store) Option {
	return func(p *Parser) { p.store = store }
}

// WithExtractor replaces the built-in fallback extractor.
func WithExtractor(x *fallback.Extractor) Option {
	return func(p *Parser) { p.extractor = x }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		log: logger.WithComponent("parser"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = fallback.New()
	}
	return p
}

// Parse converts in.Document. The returned error is non-nil only when the
// input itself is unusable.
func (p *Parser) Parse(ctx context.Context, in Input) (*models.ParsedDocument, error) {
	const op = "Parse"

	if in.Document == nil {
		return nil, &ParseError{Op: op, DocumentID: in.Metadata.DocumentID, Err: ErrNilDocument}
	}

	meta := in.Metadata
	threshold := meta.ConfidenceThreshold
	if threshold < 0 || threshold > 1 {
		return nil, &ParseError{Op: op, DocumentID: meta.DocumentID, Err: fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)}
	}
	meta.ConfidenceThreshold = threshold
	if meta.ProcessingTimestamp.IsZero() {
		meta.ProcessingTimestamp = p.now().UTC()
	}
	if meta.PageCount == 0 {
		meta.PageCount = len(in.Document.Pages)
	}

	doc := in.Document
	log := logger.WithDocumentID(p.log, meta.DocumentID)
	log.Info().Float64("threshold", threshold).Msg("Starting document parsing")

	r := &run{log: log}

	fullText, _ := step(r, "full text extraction", func() string {
		return textnorm.Normalize(extractFullText(doc))
	})
	entities, _ := step(r, "entity extraction", func() []models.NamedEntity {
		return extractEntities(log, doc, fullText, threshold)
	})
	kvs, _ := step(r, "key-value extraction", func() []models.KeyValuePair {
		return extractKeyValuePairs(log, doc, fullText, threshold)
	})
	clauses, _ := step(r, "clause detection", func() []models.Clause {
		return detectClauses(fullText, threshold)
	})

	review, ok := step(r, "review assessment", func() reviewOutcome {
		return assessReview(log, p.extractor, fullText, entities, kvs, clauses, threshold)
	})
	if !ok {
		review = reviewOutcome{NeedsReview: true, Reasons: []string{"review assessment failed"}}
	}
	if review.Fallback != nil {
		extra, _ := step(r, "fallback key-value pairs", func() []models.KeyValuePair {
			return fallbackKVs(review.Fallback, kvs, fullText)
		})
		kvs = append(kvs, extra...)
	}

	refs, _ := step(r, "cross-reference extraction", func() []models.CrossReference {
		return extractCrossReferences(entities)
	})

	warnings := append(r.warnings, collectWarnings(doc, entities, clauses)...)
	if review.NeedsReview {
		warnings = append(warnings, review.Reasons...)
	}

	meta.NeedsReview = review.NeedsReview
	if meta.CustomMetadata == nil {
		meta.CustomMetadata = make(map[string]interface{})
	}
	meta.CustomMetadata["mandatory_fields_found"] = review.Found
	meta.CustomMetadata["fallback_used"] = review.Fallback != nil

	parsed := &models.ParsedDocument{
		Metadata:           meta,
		FullText:           fullText,
		Clauses:            nonNil(clauses),
		NamedEntities:      nonNil(entities),
		KeyValuePairs:      nonNil(kvs),
		CrossReferences:    nonNil(refs),
		ProcessingWarnings: nonNil(warnings),
		NeedsReview:        review.NeedsReview,
	}
	if in.IncludeRawResponse {
		parsed.RawResponse = rawResponse(log, doc)
	}

	metrics.DocumentsParsed.WithLabelValues(strconv.FormatBool(parsed.NeedsReview)).Inc()

	log.Info().
		Int("entities", len(parsed.NamedEntities)).
		Int("key_value_pairs", len(parsed.KeyValuePairs)).
		Int("clauses", len(parsed.Clauses)).
		Int("cross_references", len(parsed.CrossReferences)).
		Bool("needs_review", parsed.NeedsReview).
		Msg("Document parsing completed")

	store := p.store
	if in.Artifacts != nil {
		store = in.Artifacts
	}
	emitArtifacts(ctx, log, store, parsed, in.ReferenceText, review.Reasons)

	return parsed, nil
}

// run collects step failures for one parse.
type run struct {
	log      zerolog.Logger
	warnings []string
}

// step runs fn and converts a panic into a warning and the zero value.
func step[T any](r *run, name string, fn func() T) (out T, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn().Str("step", name).Interface("panic", rec).Msg("Parse step failed")
			r.warnings = append(r.warnings, fmt.Sprintf("%s failed: %v", name, rec))
			metrics.ParseStepFailures.WithLabelValues(name).Inc()
			var zero T
			out, ok = zero, false
		}
	}()
	return fn(), true
}

func emitArtifacts(ctx context.Context, log zerolog.Logger, store *artifacts.Store, doc *models.ParsedDocument, reference string, reasons []string) {
	if store == nil {
		return
	}
	if _, err := store.WriteJSON(ctx, FeatureVectorFile, features.Build(doc, nil)); err != nil {
		log.Error().Err(err).Msg("Failed to write feature vector")
	}
	if _, err := store.WriteJSON(ctx, DiagnosticsFile, features.BuildDiagnostics(doc, reference, reasons)); err != nil {
		log.Error().Err(err).Msg("Failed to write diagnostics")
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
