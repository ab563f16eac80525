package textnorm

import (
	"math"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses spaces", "a   b\t\tc", "a b c"},
		{"space before punctuation", "Hello , world .", "Hello, world."},
		{"parentheses", "Section ( 2 ) applies", "Section(2)applies"},
		{"crlf and blank runs", "one\r\n\r\n\r\n\r\ntwo", "one\n\ntwo"},
		{"keeps single newlines", "line one \n line two", "line one\nline two"},
		{"trims", "  \n padded \n ", "padded"},
		{"blank line with spaces", "a\n   \n  \nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "TERMS  AND CONDITIONS\r\n\r\n1. Payment ( net 30 ) ,due   on receipt .\n\n\n\nSigned"
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Errorf("Normalize is not idempotent:\n%q\n%q", once, twice)
	}
}

func TestNormalizeForComparison(t *testing.T) {
	got := NormalizeForComparison("Hello\n\nWORLD   Again")
	if got != "hello world again" {
		t.Errorf("got %q", got)
	}
}

func TestCompare(t *testing.T) {
	s := Compare("Hello World", "hello   world")
	if s.Combined != 1 {
		t.Errorf("identical after normalization: combined = %v", s.Combined)
	}

	s = Compare("", "")
	if s.Character != 1 || s.Word != 1 || s.Length != 1 || s.Combined != 1 {
		t.Errorf("both empty should score 1, got %+v", s)
	}

	s = Compare("abc", "")
	if s.Combined != 0 {
		t.Errorf("one empty should score 0, got %+v", s)
	}

	s = Compare("abc", "xyz")
	if s.Character != 0 || s.Word != 0 || s.Length != 1 {
		t.Errorf("disjoint strings: %+v", s)
	}
	if math.Abs(s.Combined-0.2) > 1e-9 {
		t.Errorf("combined = %v, want 0.2", s.Combined)
	}

	partial := Compare("the quick brown fox", "the quick red fox")
	if partial.Combined <= 0.5 || partial.Combined >= 1 {
		t.Errorf("partial overlap combined = %v", partial.Combined)
	}
	if math.Abs(partial.Word-0.75) > 1e-9 {
		t.Errorf("word ratio = %v, want 0.75", partial.Word)
	}
}

func TestCompareWordRatio(t *testing.T) {
	long := "the insured shall pay the premium on or before the due date each year"
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical pair", "hello world", "hello world", 1},
		{"identical long", long, long, 1},
		{"repeated words", "the the the", "the the the", 1},
		{"one replaced", "policy number ABC123", "policy number XYZ999", 2.0 / 3},
		{"disjoint", "alpha beta", "gamma delta", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compare(tt.a, tt.b)
			if math.Abs(s.Word-tt.want) > 1e-9 {
				t.Errorf("Word = %v, want %v", s.Word, tt.want)
			}
			for _, v := range []float64{s.Character, s.Word, s.Length, s.Combined} {
				if v < 0 || v > 1 {
					t.Errorf("score out of range: %+v", s)
				}
			}
		})
	}
	if s := Compare(long, long); s.Combined != 1 {
		t.Errorf("identical long text combined = %v, want 1", s.Combined)
	}
}

func TestSegments(t *testing.T) {
	text := strings.Repeat("Sentence number one. ", 100)
	segs := Segments(text, 200)
	if len(segs) < 10 {
		t.Fatalf("expected many segments, got %d", len(segs))
	}
	for i, s := range segs {
		if len(s) > 200 {
			t.Errorf("segment %d too long: %d", i, len(s))
		}
		if !strings.HasSuffix(s, ".") {
			t.Errorf("segment %d should end at a sentence boundary: %q", i, s)
		}
	}
	if got := Segments("short", 1000); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text: %v", got)
	}
	if got := Segments("", 10); len(got) != 0 {
		t.Errorf("empty text: %v", got)
	}
}

func TestValidateEncoding(t *testing.T) {
	ok, issues := ValidateEncoding("clean text\nwith lines")
	if !ok || len(issues) != 0 {
		t.Errorf("clean text flagged: %v", issues)
	}

	ok, issues = ValidateEncoding("bad\x01\x02 text\r\nand\nmixed" + strings.Repeat(" ", 12) + "gap �")
	if ok {
		t.Fatal("expected problems")
	}
	joined := strings.Join(issues, "|")
	for _, want := range []string{"2 control characters", "Mixed line endings", "excessive whitespace", "replacement characters"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing issue %q in %v", want, issues)
		}
	}
}
