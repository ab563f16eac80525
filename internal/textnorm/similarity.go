package textnorm

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity holds the component scores for two texts, all in [0, 1].
type Similarity struct {
	Character float64 `json:"character_similarity"`
	Word      float64 `json:"word_similarity"`
	Length    float64 `json:"length_similarity"`
	Combined  float64 `json:"combined_similarity"`
}

// Compare scores how alike a and b are after comparison normalization.
// Combined is 0.5*character + 0.3*word + 0.2*length.
func Compare(a, b string) Similarity {
	a = NormalizeForComparison(a)
	b = NormalizeForComparison(b)

	if a == "" && b == "" {
		return Similarity{Character: 1, Word: 1, Length: 1, Combined: 1}
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 5 * time.Second

	s := Similarity{
		Character: charRatio(dmp, a, b),
		Word:      wordRatio(dmp, a, b),
		Length:    lengthRatio(a, b),
	}
	s.Combined = 0.5*s.Character + 0.3*s.Word + 0.2*s.Length
	return s
}

// Score returns only the combined similarity.
func Score(a, b string) float64 {
	return Compare(a, b).Combined
}

func charRatio(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	equal := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			equal += utf8.RuneCountInString(d.Text)
		}
	}
	return 2 * float64(equal) / float64(total)
}

// wordRatio diffs word sequences with each distinct word mapped to its own
// rune, so every equal rune is one matching word.
func wordRatio(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	wa, wb := strings.Fields(a), strings.Fields(b)
	total := len(wa) + len(wb)
	if total == 0 {
		return 1
	}
	ids := make(map[string]rune)
	ra, rb := wordRunes(wa, ids), wordRunes(wb, ids)

	equal := 0
	for _, d := range dmp.DiffMainRunes(ra, rb, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			equal += utf8.RuneCountInString(d.Text)
		}
	}
	return 2 * float64(equal) / float64(total)
}

// wordRunes assigns runes from the supplementary planes, which hold no
// surrogates, so every id survives the round trip through a string.
func wordRunes(words []string, ids map[string]rune) []rune {
	out := make([]rune, len(words))
	for i, w := range words {
		r, ok := ids[w]
		if !ok {
			r = rune(0x10000 + len(ids))
			ids[w] = r
		}
		out[i] = r
	}
	return out
}

func lengthRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 && lb == 0 {
		return 1
	}
	lo, hi := la, lb
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}
