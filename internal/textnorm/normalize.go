// Package textnorm normalizes OCR text and compares text sources.
//
// Normalize keeps paragraph structure intact: the parser splits clauses on
// blank lines, so only horizontal whitespace is collapsed. Comparison helpers
// flatten everything to a single lowercase line.
package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	crlf             = regexp.MustCompile(`\r\n?`)
	horizontalSpace  = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	spaceAroundBreak = regexp.MustCompile(` ?\n ?`)
	spaceBeforePunct = regexp.MustCompile(` ([,.:;?!])`)
	spaceAroundParen = regexp.MustCompile(` ?([()\[\]]) ?`)
	blankLines       = regexp.MustCompile(`\n{2,}`)
	anySpace         = regexp.MustCompile(`\s+`)

	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	longSpaceRun = regexp.MustCompile(`\s{10,}`)
)

// Normalize cleans OCR text while preserving line and paragraph breaks.
// Runs of blank lines collapse to exactly one empty line.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = crlf.ReplaceAllString(text, "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundBreak.ReplaceAllString(text, "\n")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = spaceAroundParen.ReplaceAllString(text, "$1")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// NormalizeForComparison flattens text to a single lowercase line.
// The result must never be used where offsets matter.
func NormalizeForComparison(text string) string {
	text = Normalize(text)
	text = anySpace.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// Segments splits text into chunks of at most maxLen bytes, preferring to
// break after a sentence terminator found in the last 100 bytes of a window.
func Segments(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 1000
	}
	var segments []string
	pos := 0
	for pos < len(text) {
		end := pos + maxLen
		if end >= len(text) {
			end = len(text)
		} else {
			floor := end - 100
			if floor < pos {
				floor = pos
			}
			for i := end; i > floor; i-- {
				if c := text[i]; c == '.' || c == '!' || c == '?' {
					end = i + 1
					break
				}
			}
			for end > pos && end < len(text) && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == pos {
				end = pos + maxLen
			}
		}
		if seg := strings.TrimSpace(text[pos:end]); seg != "" {
			segments = append(segments, seg)
		}
		pos = end
	}
	return segments
}

// ValidateEncoding reports encoding problems typical of bad OCR output.
func ValidateEncoding(text string) (bool, []string) {
	var issues []string
	if !utf8.ValidString(text) {
		issues = append(issues, "Contains invalid UTF-8 sequences")
	}
	if strings.ContainsRune(text, utf8.RuneError) {
		issues = append(issues, "Contains replacement characters (encoding errors)")
	}
	if n := len(controlChars.FindAllStringIndex(text, -1)); n > 0 {
		issues = append(issues, fmt.Sprintf("Contains %d control characters", n))
	}
	if strings.Contains(text, "\r\n") && strings.Contains(strings.ReplaceAll(text, "\r\n", ""), "\n") {
		issues = append(issues, "Mixed line endings detected")
	}
	if longSpaceRun.MatchString(text) {
		issues = append(issues, "Contains excessive whitespace")
	}
	return len(issues) == 0, issues
}
