package models

// Confidence tiers for a classification verdict.
const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidenceVeryLow = "very_low"
)

// Sentinel labels.
const (
	LabelUnclassified = "Unclassified"
	LabelInvalidInput = "Invalid_Input"
)

// MatchedPattern records one taxonomy pattern that matched the text.
type MatchedPattern struct {
	Category       string   `json:"category"`
	Subcategory    string   `json:"subcategory"`
	Keyword        string   `json:"keyword"`
	Pattern        string   `json:"pattern"`
	Weight         float64  `json:"weight"`
	IsRegex        bool     `json:"is_regex"`
	Frequency      int      `json:"frequency"`
	WeightedScore  float64  `json:"weighted_score"`
	Positions      [][2]int `json:"positions"`
	ContextSamples []string `json:"context_samples"`
}

// KeywordSummary is a compact view of a matched pattern.
type KeywordSummary struct {
	Keyword       string  `json:"keyword"`
	Category      string  `json:"category"`
	Frequency     int     `json:"frequency"`
	WeightedScore float64 `json:"weighted_score"`
}

// VerdictSummary is the human-facing digest of a verdict.
type VerdictSummary struct {
	PrimaryLabel         string           `json:"primary_label"`
	Confidence           string           `json:"confidence"`
	Score                float64          `json:"score"`
	TopKeywords          []KeywordSummary `json:"top_keywords"`
	TotalMatches         int              `json:"total_matches"`
	CategoriesConsidered int              `json:"categories_considered"`
}

// VerdictStatistics aggregates match statistics.
type VerdictStatistics struct {
	TotalPatternsMatched  int     `json:"total_patterns_matched"`
	UniqueCategoriesFound int     `json:"unique_categories_found"`
	AveragePatternWeight  float64 `json:"average_pattern_weight"`
	TextCoverageRatio     float64 `json:"text_coverage_ratio"`
}

// ClassificationVerdict is the outcome of classifying one document.
type ClassificationVerdict struct {
	Label              string                 `json:"label"`
	Score              float64                `json:"score"`
	Confidence         string                 `json:"confidence"`
	MatchedPatterns    []MatchedPattern       `json:"matched_patterns"`
	TotalMatches       int                    `json:"total_matches"`
	TotalWeightedScore float64                `json:"total_weighted_score"`
	CategoryScores     map[string]float64     `json:"category_scores"`
	DiversityScores    map[string]float64     `json:"diversity_scores"`
	ProcessingMetadata map[string]interface{} `json:"processing_metadata"`
	Summary            VerdictSummary         `json:"summary"`
	Statistics         VerdictStatistics      `json:"statistics"`
}
