// Package classifier labels document text with a legal category by weighted
// keyword and regex matching against a taxonomy.
package classifier

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"docparse/internal/logger"
	"docparse/internal/metrics"
	"docparse/pkg/models"
)

// Version is reported in every verdict's processing metadata.
const Version = "2.0.0"

const (
	method         = "weighted_regex_pattern_matching"
	contextRadius  = 100
	topKeywords    = 5
	frequencyShare = 0.6
	diversityShare = 0.4
)

// ErrInvalidTaxonomy is returned when a taxonomy cannot be decoded.
var ErrInvalidTaxonomy = errors.New("invalid classifier taxonomy")

// Thresholds are the lower score bounds of each confidence tier.
type Thresholds struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// DefaultThresholds returns the standard tier bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 0.1, Medium: 0.4, High: 0.7}
}

// Tier maps a score to its confidence tier.
func (t Thresholds) Tier(score float64) string {
	switch {
	case score >= t.High:
		return models.ConfidenceHigh
	case score >= t.Medium:
		return models.ConfidenceMedium
	case score >= t.Low:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}

type compiledPattern struct {
	entry       KeywordEntry
	re          *regexp.Regexp
	category    string
	subcategory string
}

// Classifier is safe for concurrent use once built.
type Classifier struct {
	categories []string
	patterns   []compiledPattern
	thresholds Thresholds
	debug      bool
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThresholds overrides the confidence tier bounds.
func WithThresholds(t Thresholds) Option {
	return func(c *Classifier) { c.thresholds = t }
}

// WithDebug logs every match and the top category scores.
func WithDebug(debug bool) Option {
	return func(c *Classifier) { c.debug = debug }
}

// New compiles every taxonomy entry. Entries that fail to compile are logged
// and skipped.
func New(t *Taxonomy, opts ...Option) *Classifier {
	c := &Classifier{
		thresholds: DefaultThresholds(),
		log:        logger.WithComponent("classifier"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if t == nil {
		t = DefaultTaxonomy()
	}

	for _, cat := range t.Categories {
		c.categories = append(c.categories, cat.Name)
		for _, sub := range cat.Subcategories {
			for _, kw := range sub.Keywords {
				expr := kw.Pattern
				if !kw.IsRegex {
					expr = `\b` + regexp.QuoteMeta(kw.Pattern) + `\b`
				}
				re, err := regexp.Compile(`(?im)` + expr)
				if err != nil {
					c.log.Warn().Err(err).
						Str("pattern", kw.Pattern).
						Str("subcategory", sub.Name).
						Msg("Skipping keyword pattern that does not compile")
					continue
				}
				c.patterns = append(c.patterns, compiledPattern{
					entry:       kw,
					re:          re,
					category:    cat.Name,
					subcategory: sub.Name,
				})
			}
		}
	}

	c.log.Info().
		Int("patterns", len(c.patterns)).
		Int("categories", len(c.categories)).
		Msg("Classifier initialized")
	return c
}

// Categories lists category names in taxonomy order.
func (c *Classifier) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Classify scores text against every category and returns the verdict.
// Blank text yields an Invalid_Input verdict rather than an error.
func (c *Classifier) Classify(text string, documentMetadata map[string]interface{}) *models.ClassificationVerdict {
	if strings.TrimSpace(text) == "" {
		c.log.Warn().Msg("Empty text provided for classification")
		metrics.ClassificationLabels.WithLabelValues(models.LabelInvalidInput).Inc()
		return c.invalidInput()
	}

	textLength := utf8.RuneCountInString(text)
	matches := c.match(text)
	categoryScores, diversityScores := c.score(matches, textLength)

	label, score := models.LabelUnclassified, 0.0
	for _, name := range c.categories {
		if s := categoryScores[name]; s > score {
			label, score = name, s
		}
	}
	confidence := models.ConfidenceVeryLow
	if label != models.LabelUnclassified {
		confidence = c.thresholds.Tier(score)
	}

	totalMatches := 0
	totalWeighted := 0.0
	weightSum := 0.0
	for _, m := range matches {
		totalMatches += m.Frequency
		totalWeighted += m.WeightedScore
		weightSum += m.Weight
	}
	considered := 0
	for _, s := range categoryScores {
		if s > 0 {
			considered++
		}
	}

	if documentMetadata == nil {
		documentMetadata = map[string]interface{}{}
	}

	verdict := &models.ClassificationVerdict{
		Label:              label,
		Score:              score,
		Confidence:         confidence,
		MatchedPatterns:    matches,
		TotalMatches:       totalMatches,
		TotalWeightedScore: totalWeighted,
		CategoryScores:     categoryScores,
		DiversityScores:    diversityScores,
		ProcessingMetadata: map[string]interface{}{
			"classifier_version":     Version,
			"classification_method":  method,
			"total_patterns_checked": len(c.patterns),
			"confidence_thresholds":  c.thresholds,
			"text_length":            textLength,
			"document_metadata":      documentMetadata,
			"timestamp":              c.now().UTC().Format(time.RFC3339),
		},
		Summary: models.VerdictSummary{
			PrimaryLabel:         label,
			Confidence:           confidence,
			Score:                math.Round(score*1000) / 1000,
			TopKeywords:          summarize(matches),
			TotalMatches:         totalMatches,
			CategoriesConsidered: considered,
		},
		Statistics: models.VerdictStatistics{
			TotalPatternsMatched:  len(matches),
			UniqueCategoriesFound: considered,
			TextCoverageRatio:     float64(totalMatches) / float64(textLength),
		},
	}
	if len(matches) > 0 {
		verdict.Statistics.AveragePatternWeight = weightSum / float64(len(matches))
	}

	metrics.ClassificationLabels.WithLabelValues(label).Inc()
	c.log.Info().
		Str("label", label).
		Float64("score", score).
		Str("confidence", confidence).
		Int("total_matches", totalMatches).
		Msg("Document classified")

	if c.debug {
		c.logTopCategories(categoryScores, diversityScores)
	}
	return verdict
}

func (c *Classifier) match(text string) []models.MatchedPattern {
	matches := []models.MatchedPattern{}
	for _, p := range c.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		positions := make([][2]int, len(locs))
		samples := make([]string, len(locs))
		for i, loc := range locs {
			positions[i] = [2]int{loc[0], loc[1]}
			samples[i] = contextSample(text, loc[0], loc[1])
		}
		m := models.MatchedPattern{
			Category:       p.category,
			Subcategory:    p.subcategory,
			Keyword:        p.entry.Pattern,
			Pattern:        p.re.String(),
			Weight:         p.entry.Weight,
			IsRegex:        p.entry.IsRegex,
			Frequency:      len(locs),
			WeightedScore:  float64(len(locs)) * p.entry.Weight,
			Positions:      positions,
			ContextSamples: samples,
		}
		matches = append(matches, m)

		if c.debug {
			c.log.Debug().
				Str("keyword", m.Keyword).
				Str("category", m.Category).
				Str("subcategory", m.Subcategory).
				Int("frequency", m.Frequency).
				Float64("weighted_score", m.WeightedScore).
				Msg("Pattern matched")
		}
	}
	return matches
}

// score combines length-normalised weighted frequency with keyword diversity.
// Scores are capped at 1.
func (c *Classifier) score(matches []models.MatchedPattern, textLength int) (map[string]float64, map[string]float64) {
	weighted := make(map[string]float64, len(c.categories))
	unique := make(map[string]mapset.Set[string], len(c.categories))
	for _, name := range c.categories {
		unique[name] = mapset.NewThreadUnsafeSet[string]()
	}
	for _, m := range matches {
		weighted[m.Category] += m.WeightedScore
		unique[m.Category].Add(m.Keyword)
	}

	maxUnique := 0
	for _, set := range unique {
		maxUnique = max(maxUnique, set.Cardinality())
	}

	lengthFactor := max(float64(textLength)/1000, 1)
	categoryScores := make(map[string]float64, len(c.categories))
	diversityScores := make(map[string]float64, len(c.categories))
	for _, name := range c.categories {
		diversity := 0.0
		if maxUnique > 0 {
			diversity = float64(unique[name].Cardinality()) / float64(maxUnique)
		}
		diversityScores[name] = diversity
		categoryScores[name] = min(frequencyShare*weighted[name]/lengthFactor+diversityShare*diversity, 1)
	}
	return categoryScores, diversityScores
}

func summarize(matches []models.MatchedPattern) []models.KeywordSummary {
	sorted := append([]models.MatchedPattern(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WeightedScore > sorted[j].WeightedScore
	})
	if len(sorted) > topKeywords {
		sorted = sorted[:topKeywords]
	}
	out := make([]models.KeywordSummary, len(sorted))
	for i, m := range sorted {
		out[i] = models.KeywordSummary{
			Keyword:       m.Keyword,
			Category:      m.Category,
			Frequency:     m.Frequency,
			WeightedScore: m.WeightedScore,
		}
	}
	return out
}

// contextSample returns up to contextRadius bytes either side of a match,
// widened to rune boundaries, on one line.
func contextSample(text string, start, end int) string {
	from := max(start-contextRadius, 0)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := min(end+contextRadius, len(text))
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	sample := strings.NewReplacer("\n", " ", "\r", " ").Replace(text[from:to])
	return strings.TrimSpace(sample)
}

func (c *Classifier) invalidInput() *models.ClassificationVerdict {
	return &models.ClassificationVerdict{
		Label:           models.LabelInvalidInput,
		Score:           0,
		Confidence:      models.ConfidenceVeryLow,
		MatchedPatterns: []models.MatchedPattern{},
		CategoryScores:  map[string]float64{},
		DiversityScores: map[string]float64{},
		ProcessingMetadata: map[string]interface{}{
			"classifier_version":    Version,
			"classification_method": method,
			"timestamp":             c.now().UTC().Format(time.RFC3339),
			"error":                 "empty or invalid input text",
		},
		Summary: models.VerdictSummary{
			PrimaryLabel: models.LabelInvalidInput,
			Confidence:   models.ConfidenceVeryLow,
			TopKeywords:  []models.KeywordSummary{},
		},
	}
}

func (c *Classifier) logTopCategories(scores, diversity map[string]float64) {
	names := append([]string(nil), c.categories...)
	sort.SliceStable(names, func(i, j int) bool { return scores[names[i]] > scores[names[j]] })
	for _, name := range names[:min(3, len(names))] {
		c.log.Debug().
			Str("category", name).
			Float64("score", scores[name]).
			Float64("diversity", diversity[name]).
			Msg("Category score")
	}
}
