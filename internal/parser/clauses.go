package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docparse/pkg/models"
)

const (
	minClauseRunes       = 50
	clauseBaseConfidence = 0.7
	clauseMaxConfidence  = 0.95

	// headingConfidence is assigned to clauses found through document headings.
	headingConfidence = 0.7
	// minPatternClauses below which heading detection adds clauses.
	minPatternClauses = 3
)

type clausePatterns struct {
	typ      models.ClauseType
	patterns []*regexp.Regexp
}

// clauseTable is checked in order; the first type with any hit wins.
var clauseTable = []clausePatterns{
	{models.ClauseTermination, compileAll(
		`terminat\w+`,
		`expir\w+`,
		`end of (?:this )?(?:agreement|contract)`,
		`dissolv\w+`,
	)},
	{models.ClausePayment, compileAll(
		`payment\s+(?:terms|due|schedule)`,
		`invoice\w*`,
		`compensation`,
		`remuneration`,
	)},
	{models.ClauseConfidentiality, compileAll(
		`confidential\w*`,
		`non-disclosure`,
		`proprietary information`,
		`trade secret\w*`,
	)},
	{models.ClauseLiability, compileAll(
		`liabilit\w+`,
		`damages`,
		`indemnif\w+`,
		`limitation of liability`,
	)},
	{models.ClauseGoverningLaw, compileAll(
		`governing law`,
		`applicable law`,
		`jurisdiction`,
		`venue`,
	)},
	{models.ClauseDisputeResolution, compileAll(
		`dispute resolution`,
		`arbitration`,
		`mediation`,
		`litigation`,
	)},
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// classifyParagraph returns the clause type and confidence for a lowercased paragraph.
func classifyParagraph(lower string) (models.ClauseType, float64, bool) {
	for _, cp := range clauseTable {
		matches := 0
		for _, re := range cp.patterns {
			if re.MatchString(lower) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		confidence := clauseBaseConfidence + float64(matches)/float64(len(cp.patterns))*(clauseMaxConfidence-clauseBaseConfidence)
		return cp.typ, min(confidence, clauseMaxConfidence), true
	}
	return "", 0, false
}

// detectClauses classifies paragraphs, then adds heading sections when the
// paragraph pass found few clauses.
func detectClauses(fullText string, threshold float64) []models.Clause {
	clauses := paragraphClauses(fullText, threshold)
	if len(clauses) < minPatternClauses && headingConfidence >= threshold {
		for _, c := range headingClauses(fullText) {
			if overlapsAny(c.TextSpan, clauses) {
				continue
			}
			c.ID = fmt.Sprintf("clause_%04d", len(clauses)+1)
			clauses = append(clauses, c)
		}
	}
	return clauses
}

func paragraphClauses(fullText string, threshold float64) []models.Clause {
	var out []models.Clause
	offset := 0
	for _, para := range strings.Split(fullText, "\n\n") {
		start := offset
		offset += len(para) + 2

		trimmed := strings.TrimSpace(para)
		if utf8.RuneCountInString(trimmed) < minClauseRunes {
			continue
		}
		typ, confidence, ok := classifyParagraph(strings.ToLower(trimmed))
		if !ok || confidence < threshold {
			continue
		}
		begin := start + strings.Index(para, trimmed)
		out = append(out, models.Clause{
			ID:   fmt.Sprintf("clause_%04d", len(out)+1),
			Type: typ,
			TextSpan: models.TextSpan{
				StartOffset: begin,
				EndOffset:   begin + len(trimmed),
				Text:        trimmed,
			},
			Confidence: confidence,
			PageNumber: 1,
			SubClauses: []models.Clause{},
			Metadata: map[string]interface{}{
				"detection_method": "pattern_matching",
				"paragraph_index":  len(out),
			},
		})
	}
	return out
}

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\.\s+([A-Z][^:\n]+):?\s*$`),
	regexp.MustCompile(`^([A-Z\s]{10,}):?\s*$`),
	regexp.MustCompile(`^([A-Z][a-z\s]+):\s*$`),
}

func matchHeading(line string) (string, bool) {
	for _, re := range headingPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

type section struct {
	title      string
	start, end int
}

// headingClauses splits the text into sections under recognised headings.
// Each span runs from the first to the last content line of its section.
func headingClauses(fullText string) []models.Clause {
	var sections []section
	var cur *section

	flush := func() {
		if cur != nil && cur.end > cur.start {
			sections = append(sections, *cur)
		}
	}

	offset := 0
	for _, line := range strings.Split(fullText, "\n") {
		lineStart := offset
		offset += len(line) + 1

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if title, ok := matchHeading(trimmed); ok {
			flush()
			cur = &section{title: title, start: -1}
			continue
		}
		if cur == nil {
			continue
		}
		begin := lineStart + strings.Index(line, trimmed)
		if cur.start < 0 {
			cur.start = begin
		}
		cur.end = begin + len(trimmed)
	}
	flush()

	out := make([]models.Clause, 0, len(sections))
	for _, s := range sections {
		text := fullText[s.start:s.end]
		out = append(out, models.Clause{
			Type:  headingClauseType(s.title),
			Title: s.title,
			TextSpan: models.TextSpan{
				StartOffset: s.start,
				EndOffset:   s.end,
				Text:        text,
			},
			Confidence: headingConfidence,
			PageNumber: 1,
			SubClauses: []models.Clause{},
			Metadata: map[string]interface{}{
				"detection_method": "heading_structure",
				"title":            s.title,
			},
		})
	}
	return out
}

var headingTypes = []struct {
	keywords []string
	typ      models.ClauseType
}{
	{[]string{"force majeure", "act of god"}, models.ClauseForceMajeure},
	{[]string{"indemn"}, models.ClauseIndemnification},
	{[]string{"intellectual property", "copyright", "patent", "trademark"}, models.ClauseIntellectualProperty},
	{[]string{"warrant", "guarantee"}, models.ClauseWarranty},
	{[]string{"benefit", "payout", "death"}, models.ClauseOther},
	{[]string{"exclusion", "exception", "not covered"}, models.ClauseLiability},
	{[]string{"termination", "cancellation"}, models.ClauseTermination},
	{[]string{"premium", "payment", "fee"}, models.ClausePayment},
	{[]string{"confidential", "privacy"}, models.ClauseConfidentiality},
	{[]string{"liability", "responsible"}, models.ClauseLiability},
	{[]string{"dispute", "resolution", "arbitration"}, models.ClauseDisputeResolution},
	{[]string{"law", "jurisdiction", "governing"}, models.ClauseGoverningLaw},
}

func headingClauseType(title string) models.ClauseType {
	lower := strings.ToLower(title)
	for _, ht := range headingTypes {
		for _, kw := range ht.keywords {
			if strings.Contains(lower, kw) {
				return ht.typ
			}
		}
	}
	return models.ClauseOther
}

func overlapsAny(span models.TextSpan, clauses []models.Clause) bool {
	for _, c := range clauses {
		if span.StartOffset < c.TextSpan.EndOffset && c.TextSpan.StartOffset < span.EndOffset {
			return true
		}
	}
	return false
}
