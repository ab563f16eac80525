// Package kag packages parsed text, the classification verdict and document
// metadata into kag_input.json, the handoff artifact for downstream
// knowledge-augmented generation.
package kag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/internal/logger"
	"docparse/pkg/models"
)

// Version is recorded in kag_metadata.
const Version = "1.0.0"

// InputFile is the artifact written by Process.
const InputFile = "kag_input.json"

// ErrNilVerdict is reported when Process is called without a verdict.
var ErrNilVerdict = errors.New("classification verdict is required")

var structuredCategories = map[string]bool{
	"Property_and_Real_Estate": true,
	"Business_and_Corporate":   true,
	"Financial_and_Security":   true,
}

// Input is one document to hand off.
type Input struct {
	Text          string
	Verdict       *models.ClassificationVerdict
	Metadata      map[string]interface{}
	PipelineID    string
	UserSessionID string
	Store         *artifacts.Store
}

// Output reports the result of Process. Failures are reported here, never
// as a Go error.
type Output struct {
	Success           bool                   `json:"success"`
	KAGInputPath      string                 `json:"kag_input_path"`
	ProcessingSummary map[string]interface{} `json:"processing_summary"`
	Errors            []string               `json:"errors"`
	Warnings          []string               `json:"warnings"`
}

// TextStatistics describes the raw text.
type TextStatistics struct {
	Length         int `json:"length"`
	WordCount      int `json:"word_count"`
	LineCount      int `json:"line_count"`
	ParagraphCount int `json:"paragraph_count"`
}

// ClassificationInsights restates the verdict for consumers.
type ClassificationInsights struct {
	PrimaryCategory     string  `json:"primary_category"`
	ConfidenceLevel     string  `json:"confidence_level"`
	ClassificationScore float64 `json:"classification_score"`
	TotalPatternMatches int     `json:"total_pattern_matches"`
	PatternDiversity    int     `json:"pattern_diversity"`
}

// Characteristics are heuristics derived from text and verdict.
type Characteristics struct {
	HasLegalContent    bool     `json:"has_legal_content"`
	DocumentComplexity string   `json:"document_complexity"`
	KeyTopics          []string `json:"key_topics"`
	LegalDomains       []string `json:"legal_domains"`
}

// Insights is attached to the document metadata.
type Insights struct {
	TextStatistics         TextStatistics         `json:"text_statistics"`
	ClassificationInsights ClassificationInsights `json:"classification_insights"`
	Characteristics        Characteristics        `json:"document_characteristics"`
}

// QualityAssurance toggles downstream checks.
type QualityAssurance struct {
	ValidateExtraction  bool `json:"validate_extraction"`
	ConfidenceWeighting bool `json:"confidence_weighting"`
	FallbackEnabled     bool `json:"fallback_enabled"`
}

// ExtractionConfig tells the downstream extractor what to focus on.
type ExtractionConfig struct {
	ExtractionStrategy  string           `json:"extraction_strategy"`
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	FocusAreas          []string         `json:"focus_areas"`
	ProcessingModes     []string         `json:"processing_modes"`
	QualityAssurance    QualityAssurance `json:"quality_assurance"`
	PrimaryDomain       string           `json:"primary_domain,omitempty"`
}

// QualityIndicators summarise input quality.
type QualityIndicators struct {
	TextQuality              string `json:"text_quality"`
	ClassificationConfidence string `json:"classification_confidence"`
	PatternRichness          string `json:"pattern_richness"`
}

// Hints are workflow recommendations for downstream components.
type Hints struct {
	DocumentType         string            `json:"document_type"`
	ProcessingPriority   string            `json:"processing_priority"`
	QualityIndicators    QualityIndicators `json:"quality_indicators"`
	RecommendedWorkflows []string          `json:"recommended_workflows"`
	PreprocessingNotes   []string          `json:"preprocessing_notes"`
}

// Metadata describes how the payload was produced.
type Metadata struct {
	ComponentVersion            string `json:"component_version"`
	ProcessingTimestamp         string `json:"processing_timestamp"`
	MVPMode                     bool   `json:"mvp_mode"`
	VertexEmbeddingDisabled     bool   `json:"vertex_embedding_disabled"`
	ClassificationMethod        string `json:"classification_method"`
	KnowledgeExtractionApproach string `json:"knowledge_extraction_approach"`
}

// Payload is the content of kag_input.json.
type Payload struct {
	DocumentText              string                        `json:"document_text"`
	DocumentMetadata          map[string]interface{}        `json:"document_metadata"`
	ClassificationVerdict     *models.ClassificationVerdict `json:"classification_verdict"`
	PipelineID                string                        `json:"pipeline_id"`
	ProcessingTimestamp       string                        `json:"processing_timestamp"`
	UserSessionID             string                        `json:"user_session_id"`
	KnowledgeExtractionConfig ExtractionConfig              `json:"knowledge_extraction_config"`
	ProcessingHints           Hints                         `json:"processing_hints"`
	KAGMetadata               Metadata                      `json:"kag_metadata"`
}

// Component builds and writes KAG payloads.
type Component struct {
	vertexEmbedding bool
	log             zerolog.Logger
	now             func() time.Time
}

// Option configures a Component.
type Option func(*Component)

// WithVertexEmbedding records whether embeddings are produced downstream.
func WithVertexEmbedding(enabled bool) Option {
	return func(c *Component) { c.vertexEmbedding = enabled }
}

// New creates a Component.
func New(opts ...Option) *Component {
	c := &Component{
		log: logger.WithComponent("kag"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process builds the payload for in and writes it to in.Store.
func (c *Component) Process(ctx context.Context, in Input) (out Output) {
	log := c.log.With().Str("pipeline_id", in.PipelineID).Logger()

	defer func() {
		if r := recover(); r != nil {
			out = failed(log, fmt.Errorf("panic: %v", r))
		}
	}()

	if in.Verdict == nil {
		return failed(log, ErrNilVerdict)
	}
	if in.Store == nil {
		return failed(log, errors.New("no artifact store"))
	}

	log.Info().Str("label", in.Verdict.Label).Msg("Preparing KAG input")

	timestamp := c.now().UTC().Format(time.RFC3339)
	insights := BuildInsights(in.Text, in.Verdict)
	hints := BuildHints(in.Text, in.Verdict)

	metadata := make(map[string]interface{}, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["insights"] = insights

	payload := Payload{
		DocumentText:              in.Text,
		DocumentMetadata:          metadata,
		ClassificationVerdict:     in.Verdict,
		PipelineID:                in.PipelineID,
		ProcessingTimestamp:       timestamp,
		UserSessionID:             in.UserSessionID,
		KnowledgeExtractionConfig: BuildExtractionConfig(in.Verdict),
		ProcessingHints:           hints,
		KAGMetadata: Metadata{
			ComponentVersion:            Version,
			ProcessingTimestamp:         timestamp,
			MVPMode:                     true,
			VertexEmbeddingDisabled:     !c.vertexEmbedding,
			ClassificationMethod:        "regex_pattern_matching",
			KnowledgeExtractionApproach: "text_and_pattern_based",
		},
	}

	path, err := in.Store.WriteJSON(ctx, InputFile, payload)
	if err != nil {
		return failed(log, err)
	}
	log.Info().Str("path", path).Msg("KAG input saved")

	return Output{
		Success:      true,
		KAGInputPath: path,
		ProcessingSummary: map[string]interface{}{
			"document_processed":         true,
			"classification_integrated":  true,
			"knowledge_config_created":   true,
			"insights_extracted":         true,
			"artifacts_generated":        []string{InputFile},
			"document_characteristics":   insights.Characteristics,
			"processing_recommendations": hints.RecommendedWorkflows,
		},
		Errors:   []string{},
		Warnings: []string{},
	}
}

func failed(log zerolog.Logger, err error) Output {
	msg := fmt.Sprintf("KAG processing failed: %v", err)
	log.Error().Err(err).Msg("KAG processing failed")
	return Output{
		ProcessingSummary: map[string]interface{}{"error": msg},
		Errors:            []string{msg},
		Warnings:          []string{},
	}
}

// BuildInsights derives text statistics and document characteristics.
func BuildInsights(text string, v *models.ClassificationVerdict) Insights {
	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	return Insights{
		TextStatistics: TextStatistics{
			Length:         utf8.RuneCountInString(text),
			WordCount:      len(strings.Fields(text)),
			LineCount:      strings.Count(text, "\n") + 1,
			ParagraphCount: paragraphs,
		},
		ClassificationInsights: ClassificationInsights{
			PrimaryCategory:     v.Label,
			ConfidenceLevel:     v.Confidence,
			ClassificationScore: v.Score,
			TotalPatternMatches: v.TotalMatches,
			PatternDiversity:    len(v.MatchedPatterns),
		},
		Characteristics: Characteristics{
			HasLegalContent:    v.Score > 0.1,
			DocumentComplexity: Complexity(text, v),
			KeyTopics:          KeyTopics(v),
			LegalDomains:       LegalDomains(v),
		},
	}
}

// Complexity rates a document high, medium or low from its length and
// pattern coverage.
func Complexity(text string, v *models.ClassificationVerdict) string {
	length := utf8.RuneCountInString(text)
	diversity := len(v.MatchedPatterns)
	switch {
	case length > 5000 && v.TotalMatches > 20 && diversity > 10:
		return "high"
	case length > 2000 && v.TotalMatches > 10 && diversity > 5:
		return "medium"
	default:
		return "low"
	}
}

// KeyTopics returns up to five subcategories ordered by summed match frequency.
func KeyTopics(v *models.ClassificationVerdict) []string {
	counts := map[string]int{}
	var order []string
	for _, m := range v.MatchedPatterns {
		if _, seen := counts[m.Subcategory]; !seen {
			order = append(order, m.Subcategory)
		}
		counts[m.Subcategory] += m.Frequency
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > 5 {
		order = order[:5]
	}
	return nonNil(order)
}

// LegalDomains returns up to three categories scoring above 0.1, best first.
// Equal scores are ordered by name.
func LegalDomains(v *models.ClassificationVerdict) []string {
	var domains []string
	for name, score := range v.CategoryScores {
		if score > 0.1 {
			domains = append(domains, name)
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		si, sj := v.CategoryScores[domains[i]], v.CategoryScores[domains[j]]
		if si != sj {
			return si > sj
		}
		return domains[i] < domains[j]
	})
	if len(domains) > 3 {
		domains = domains[:3]
	}
	return nonNil(domains)
}

func confident(v *models.ClassificationVerdict) bool {
	return v.Confidence == models.ConfidenceHigh || v.Confidence == models.ConfidenceMedium
}

// BuildExtractionConfig focuses extraction on the matched topics when the
// verdict is confident.
func BuildExtractionConfig(v *models.ClassificationVerdict) ExtractionConfig {
	cfg := ExtractionConfig{
		ExtractionStrategy:  "regex_enhanced",
		ConfidenceThreshold: 0.1,
		FocusAreas:          []string{},
		ProcessingModes:     []string{"text_analysis", "pattern_extraction"},
		QualityAssurance: QualityAssurance{
			ValidateExtraction:  true,
			ConfidenceWeighting: true,
			FallbackEnabled:     true,
		},
	}
	if confident(v) {
		cfg.FocusAreas = KeyTopics(v)
		cfg.ProcessingModes = append(cfg.ProcessingModes, "domain_specific_extraction")
	}
	if v.Label != "" && v.Label != "Unknown" {
		cfg.ProcessingModes = append(cfg.ProcessingModes, "category_specific_processing")
		cfg.PrimaryDomain = v.Label
	}
	return cfg
}

// BuildHints recommends downstream workflows.
func BuildHints(text string, v *models.ClassificationVerdict) Hints {
	h := Hints{
		DocumentType:       v.Label,
		ProcessingPriority: "standard",
		QualityIndicators: QualityIndicators{
			TextQuality:              "poor",
			ClassificationConfidence: v.Confidence,
			PatternRichness:          "low",
		},
		RecommendedWorkflows: []string{},
		PreprocessingNotes:   []string{},
	}
	if utf8.RuneCountInString(text) > 100 {
		h.QualityIndicators.TextQuality = "good"
	}
	if v.TotalMatches > 10 {
		h.QualityIndicators.PatternRichness = "high"
	}

	if confident(v) {
		h.RecommendedWorkflows = append(h.RecommendedWorkflows, "automated_extraction")
		h.ProcessingPriority = "high"
	} else {
		h.RecommendedWorkflows = append(h.RecommendedWorkflows, "manual_review_recommended")
		h.PreprocessingNotes = append(h.PreprocessingNotes, "Low classification confidence - manual review suggested")
	}
	if structuredCategories[v.Label] {
		h.RecommendedWorkflows = append(h.RecommendedWorkflows, "structured_data_extraction", "compliance_analysis")
	}
	return h
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
