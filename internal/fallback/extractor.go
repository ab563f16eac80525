// Package fallback recovers mandatory policy and case fields from plain text
// with regular expressions when structured extraction comes back thin.
package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"docparse/internal/logger"
)

// Match is one accepted field value. Start and End are byte offsets of the
// raw value in the input text; LabelStart and LabelEnd delimit the label
// that introduced it.
type Match struct {
	Field           string  `json:"field"`
	Value           string  `json:"value"`
	NormalizedValue string  `json:"normalized_value"`
	Pattern         string  `json:"pattern"`
	Confidence      float64 `json:"confidence"`
	Source          string  `json:"source"`
	Start           int     `json:"start"`
	End             int     `json:"end"`
	LabelStart      int     `json:"label_start"`
	LabelEnd        int     `json:"label_end"`
}

// Stats counts pattern activity for one run.
type Stats struct {
	PatternsTried         int `json:"patterns_tried"`
	SuccessfulExtractions int `json:"successful_extractions"`
	FailedExtractions     int `json:"failed_extractions"`
}

// Result is the outcome of Run.
type Result struct {
	Fields         map[string][]Match `json:"extracted_kvs"`
	MandatoryFound int                `json:"mandatory_found"`
	TotalMandatory int                `json:"total_mandatory"`
	Stats          Stats              `json:"extraction_stats"`
	SuccessRate    float64            `json:"success_rate"`

	order []string
}

// Get returns the first match for field.
func (r *Result) Get(field string) (Match, bool) {
	if r == nil || len(r.Fields[field]) == 0 {
		return Match{}, false
	}
	return r.Fields[field][0], true
}

// Found lists the fields that matched, in extraction order.
func (r *Result) Found() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, f := range r.order {
		if len(r.Fields[f]) > 0 {
			out = append(out, f)
		}
	}
	return out
}

type compiledPattern struct {
	expr string
	re   *regexp.Regexp
	err  error
}

type compiledField struct {
	field    string
	patterns []compiledPattern
}

// Extractor runs the two pattern tiers over text.
type Extractor struct {
	enhanced []compiledField
	simple   []compiledField
	log      zerolog.Logger
}

// New returns an Extractor with the built-in pattern tiers.
func New() *Extractor {
	return NewWithPatterns(EnhancedPatterns, SimplePatterns)
}

// NewWithPatterns builds an Extractor from custom tiers. Patterns that fail to
// compile are kept and counted as failed extractions when tried.
func NewWithPatterns(enhanced, simple []FieldPatterns) *Extractor {
	return &Extractor{
		enhanced: compileTier(enhanced),
		simple:   compileTier(simple),
		log:      logger.WithComponent("fallback"),
	}
}

func compileTier(tier []FieldPatterns) []compiledField {
	out := make([]compiledField, 0, len(tier))
	for _, fp := range tier {
		cf := compiledField{field: fp.Field}
		for _, expr := range fp.Patterns {
			re, err := regexp.Compile(`(?i)` + expr)
			cf.patterns = append(cf.patterns, compiledPattern{expr: expr, re: re, err: err})
		}
		out = append(out, cf)
	}
	return out
}

// Run extracts fields from text. It never fails: a broken pattern is logged
// and treated as "not found".
func (e *Extractor) Run(text string) *Result {
	res := &Result{
		Fields:         make(map[string][]Match),
		TotalMandatory: len(MandatoryFields),
	}
	seen := make(map[string]bool)
	addOrder := func(field string) {
		if !seen[field] {
			seen[field] = true
			res.order = append(res.order, field)
		}
	}

	for _, cf := range e.enhanced {
		addOrder(cf.field)
		for _, p := range cf.patterns {
			res.Stats.PatternsTried++
			m, ok, err := e.firstMatch(text, cf.field, p, 2)
			if err != nil {
				e.log.Warn().Err(err).Str("field", cf.field).Msg("Fallback pattern failed")
				res.Stats.FailedExtractions++
				continue
			}
			if !ok {
				continue
			}
			m.Confidence = ConfidenceEnhanced
			m.Source = SourceEnhanced
			res.Fields[cf.field] = append(res.Fields[cf.field], m)
			res.Stats.SuccessfulExtractions++
			break
		}
	}

	for _, cf := range e.simple {
		addOrder(cf.field)
		if len(res.Fields[cf.field]) > 0 {
			continue
		}
		for _, p := range cf.patterns {
			m, ok, err := e.firstMatch(text, cf.field, p, 1)
			if err != nil {
				e.log.Warn().Err(err).Str("field", cf.field).Msg("Simple fallback pattern failed")
				res.Stats.FailedExtractions++
				continue
			}
			if !ok {
				continue
			}
			m.Confidence = ConfidenceSimple
			m.Source = SourceSimple
			res.Fields[cf.field] = []Match{m}
			res.Stats.SuccessfulExtractions++
			break
		}
	}

	for _, f := range MandatoryFields {
		if len(res.Fields[f]) > 0 {
			res.MandatoryFound++
		}
	}
	tried := res.Stats.PatternsTried
	if tried < 1 {
		tried = 1
	}
	res.SuccessRate = float64(res.Stats.SuccessfulExtractions) / float64(tried)

	e.log.Info().
		Int("mandatory_found", res.MandatoryFound).
		Int("total_mandatory", res.TotalMandatory).
		Int("patterns_tried", res.Stats.PatternsTried).
		Msg("Fallback extraction completed")

	return res
}

// firstMatch returns the first occurrence whose trimmed capture is at least minLen bytes.
func (e *Extractor) firstMatch(text, field string, p compiledPattern, minLen int) (m Match, ok bool, err error) {
	if p.err != nil {
		return Match{}, false, fmt.Errorf("compile %q: %w", p.expr, p.err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pattern %q panicked: %v", p.expr, r)
		}
	}()

	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		if len(loc) < 4 || loc[2] < 0 {
			continue
		}
		raw := text[loc[2]:loc[3]]
		value := strings.TrimSpace(raw)
		if len(value) < minLen {
			continue
		}
		start := loc[2] + strings.Index(raw, value)
		labelStart, labelEnd := labelSpan(text, loc[0], loc[2])
		return Match{
			Field:           field,
			Value:           value,
			NormalizedValue: NormalizeValue(field, value),
			Pattern:         p.expr,
			Start:           start,
			End:             start + len(value),
			LabelStart:      labelStart,
			LabelEnd:        labelEnd,
		}, true, nil
	}
	return Match{}, false, nil
}

// labelSpan trims separators and currency markers from the end of the label.
func labelSpan(text string, start, end int) (int, int) {
	label := text[start:end]
	trimmed := strings.TrimRight(label, " \t\r\n.:-()₹$")
	if l := strings.ToLower(trimmed); strings.HasSuffix(l, " rs") {
		trimmed = strings.TrimRight(trimmed[:len(trimmed)-3], " \t\r\n.:-()")
	}
	if trimmed == "" {
		return start, end
	}
	return start, start + len(trimmed)
}

// Run extracts fields from text with the built-in patterns.
func Run(text string) *Result {
	return New().Run(text)
}
