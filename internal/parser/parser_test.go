package parser

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/pkg/models"
)

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
	}
}

func parse(t *testing.T, doc *documentaipb.Document, threshold float64) *models.ParsedDocument {
	t.Helper()
	out, err := New().Parse(context.Background(), Input{
		Document: doc,
		Metadata: models.DocumentMetadata{DocumentID: "doc-test", ConfidenceThreshold: threshold},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if problems := out.ValidateSpans(); len(problems) > 0 {
		t.Fatalf("invalid spans: %v", problems)
	}
	return out
}

func TestParseNilDocument(t *testing.T) {
	_, err := New().Parse(context.Background(), Input{})
	if !errors.Is(err, ErrNilDocument) {
		t.Fatalf("err = %v, want ErrNilDocument", err)
	}
}

func TestParseInvalidThreshold(t *testing.T) {
	_, err := New().Parse(context.Background(), Input{
		Document: &documentaipb.Document{},
		Metadata: models.DocumentMetadata{ConfidenceThreshold: 1.5},
	})
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v", err)
	}
}

func TestZeroThresholdKeepsEverything(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Insured person John Smith signed the policy.",
		Entities: []*documentaipb.Document_Entity{
			{Type: "person", MentionText: "John Smith", Confidence: 0.5},
		},
	}
	tests := []struct {
		threshold float64
		want      int
	}{
		{0, 1},
		{0.5, 1},
		{0.7, 0},
	}
	for _, tt := range tests {
		out := parse(t, doc, tt.threshold)
		if got := len(out.NamedEntities); got != tt.want {
			t.Errorf("threshold %v kept %d entities, want %d", tt.threshold, got, tt.want)
		}
		if out.Metadata.ConfidenceThreshold != tt.threshold {
			t.Errorf("metadata threshold = %v, want %v", out.Metadata.ConfidenceThreshold, tt.threshold)
		}
	}
}

func TestEntityConfidenceThreshold(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Insured person John Smith signed the policy.",
		Entities: []*documentaipb.Document_Entity{
			{Type: "person", MentionText: "John Smith", Confidence: 0.5},
		},
	}

	if got := parse(t, doc, 0.7).NamedEntities; len(got) != 0 {
		t.Errorf("threshold 0.7 kept %d entities, want 0", len(got))
	}

	got := parse(t, doc, 0.4).NamedEntities
	if len(got) != 1 {
		t.Fatalf("threshold 0.4 kept %d entities, want 1", len(got))
	}
	e := got[0]
	if e.ID != "entity_0001" || e.Type != models.EntityPerson {
		t.Errorf("entity = %+v", e)
	}
	if e.TextSpan.StartOffset != 15 || e.TextSpan.Text != "John Smith" {
		t.Errorf("span = %+v", e.TextSpan)
	}
	if e.Metadata["docai_type"] != "person" {
		t.Errorf("metadata = %v", e.Metadata)
	}
}

func TestEntityNormalization(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Born 15/01/1990, premium $500 payable to Acme Ltd.",
		Entities: []*documentaipb.Document_Entity{
			{Type: "DATE", MentionText: "15/01/1990", Confidence: 0.9},
			{Type: "money", MentionText: "$500", Confidence: 0.9},
			{Type: "vehicle", MentionText: "Acme Ltd", Confidence: 0.9, PageAnchor: &documentaipb.Document_PageAnchor{
				PageRefs: []*documentaipb.Document_PageAnchor_PageRef{{
					Page: 1,
					BoundingPoly: &documentaipb.BoundingPoly{NormalizedVertices: []*documentaipb.NormalizedVertex{
						{X: 0.25, Y: 0.5}, {X: 0.75, Y: 0.5}, {X: 0.75, Y: 0.625},
					}},
				}},
			}},
			{Type: "PERSON", MentionText: "Nobody Here", Confidence: 0.9},
		},
	}

	got := parse(t, doc, 0.7).NamedEntities
	if len(got) != 3 {
		t.Fatalf("got %d entities, want 3 (missing mention dropped)", len(got))
	}
	if got[0].NormalizedValue != "1990-01-15" {
		t.Errorf("date normalized = %q", got[0].NormalizedValue)
	}
	if got[1].NormalizedValue != "USD:$500" {
		t.Errorf("money normalized = %q", got[1].NormalizedValue)
	}
	other := got[2]
	if other.Type != models.EntityOther || other.PageNumber != 2 {
		t.Errorf("other entity = %+v", other)
	}
	if other.BoundingBox == nil || other.BoundingBox.Left != 0.25 || other.BoundingBox.Bottom != 0.625 {
		t.Errorf("bbox = %+v", other.BoundingBox)
	}
}

func TestNeedsReviewBoundary(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"two mandatory fields", "Policy No: ABC123\nDate of Birth: 15/01/1990\n", false},
		{"one mandatory field", "Policy No: ABC123\n", true},
		{"nothing", "Hello world", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := parse(t, &documentaipb.Document{Text: tt.text}, 0.7)
			if out.NeedsReview != tt.want {
				t.Errorf("NeedsReview = %v, want %v (warnings %v)", out.NeedsReview, tt.want, out.ProcessingWarnings)
			}
			if out.Metadata.NeedsReview != out.NeedsReview {
				t.Error("metadata flag not mirrored")
			}
		})
	}
}

func TestFallbackKeyValuePairs(t *testing.T) {
	text := "Policy No: ABC123\nDate of Birth: 15/01/1990\nSum Assured Rs. 500,000"
	out := parse(t, &documentaipb.Document{Text: text}, 0.7)

	byField := map[string]models.KeyValuePair{}
	for _, kv := range out.KeyValuePairs {
		if f, ok := kv.Metadata["field"].(string); ok {
			byField[f] = kv
		}
	}
	kv, ok := byField["policy_no"]
	if !ok {
		t.Fatalf("policy_no fallback pair missing: %+v", out.KeyValuePairs)
	}
	if kv.ID != "fallback_policy_no_0" {
		t.Errorf("id = %q", kv.ID)
	}
	if kv.Key.Text != "Policy No" || kv.Value.Text != "ABC123" {
		t.Errorf("pair = %q -> %q", kv.Key.Text, kv.Value.Text)
	}
	if byField["sum_assured"].Metadata["normalized_value"] != "500000" {
		t.Errorf("sum_assured = %v", byField["sum_assured"].Metadata)
	}
	if out.Metadata.CustomMetadata["fallback_used"] != true {
		t.Error("fallback_used not recorded")
	}
}

func TestFormFieldPairs(t *testing.T) {
	text := "Policy Number: P-77\nNominee: Jane Doe\n"
	doc := &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{{
			PageNumber: 1,
			FormFields: []*documentaipb.Document_Page_FormField{
				{
					FieldName:  &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 14), Confidence: 0.95},
					FieldValue: &documentaipb.Document_Page_Layout{TextAnchor: anchor(15, 19), Confidence: 0.9},
				},
				{
					FieldName:  &documentaipb.Document_Page_Layout{TextAnchor: anchor(20, 28), Confidence: 0.5},
					FieldValue: &documentaipb.Document_Page_Layout{TextAnchor: anchor(29, 37)},
				},
			},
		}},
	}

	out := parse(t, doc, 0.7)
	var structured []models.KeyValuePair
	for _, kv := range out.KeyValuePairs {
		if strings.HasPrefix(kv.ID, "kvp_") {
			structured = append(structured, kv)
		}
	}
	if len(structured) != 1 {
		t.Fatalf("structured pairs = %+v", structured)
	}
	kv := structured[0]
	if kv.Key.Text != "Policy Number:" || kv.Value.Text != "P-77" || kv.PageNumber != 1 {
		t.Errorf("pair = %+v", kv)
	}

	// The low-confidence nominee key is dropped, but the fallback still finds it.
	for _, kv := range out.KeyValuePairs {
		if kv.ID == "fallback_policy_no_1" {
			t.Error("policy_no duplicated by fallback")
		}
	}
	if out.NeedsReview {
		t.Errorf("policy number plus nominee should not need review: %v", out.ProcessingWarnings)
	}
}

func TestClauseDetection(t *testing.T) {
	text := "Short heading\n\n" +
		"Either party may terminate this agreement upon thirty days written notice to the other party.\n\n" +
		"All payment terms are net thirty days from the date of invoice and compensation includes remuneration."
	out := parse(t, &documentaipb.Document{Text: text}, 0.7)

	if len(out.Clauses) != 2 {
		t.Fatalf("clauses = %+v", out.Clauses)
	}
	term := out.Clauses[0]
	if term.Type != models.ClauseTermination || term.ID != "clause_0001" {
		t.Errorf("first clause = %+v", term)
	}
	if math.Abs(term.Confidence-0.7625) > 1e-9 {
		t.Errorf("termination confidence = %v", term.Confidence)
	}
	pay := out.Clauses[1]
	if pay.Type != models.ClausePayment || math.Abs(pay.Confidence-0.95) > 1e-9 {
		t.Errorf("payment clause = %v %v", pay.Type, pay.Confidence)
	}
	if pay.Metadata["detection_method"] != "pattern_matching" || pay.Metadata["paragraph_index"] != 1 {
		t.Errorf("metadata = %v", pay.Metadata)
	}
}

func TestClauseThresholdDropsClauses(t *testing.T) {
	text := "Either party may terminate this agreement upon thirty days written notice to the other party."
	out := parse(t, &documentaipb.Document{Text: text}, 0.9)
	if len(out.Clauses) != 0 {
		t.Errorf("clauses = %+v", out.Clauses)
	}
}

func TestHeadingClauses(t *testing.T) {
	text := "1. Force Majeure\nNeither party is answerable for delays caused by events beyond control.\n" +
		"2. Warranty\nThe seller warrants the goods."
	out := parse(t, &documentaipb.Document{Text: text}, 0.7)

	if len(out.Clauses) != 2 {
		t.Fatalf("clauses = %+v", out.Clauses)
	}
	fm := out.Clauses[0]
	if fm.Type != models.ClauseForceMajeure || fm.Title != "Force Majeure" {
		t.Errorf("first = %v %q", fm.Type, fm.Title)
	}
	if fm.TextSpan.Text != "Neither party is answerable for delays caused by events beyond control." {
		t.Errorf("span = %q", fm.TextSpan.Text)
	}
	if out.Clauses[1].Type != models.ClauseWarranty || out.Clauses[1].ID != "clause_0002" {
		t.Errorf("second = %+v", out.Clauses[1])
	}
}

func TestHeadingClauseType(t *testing.T) {
	tests := map[string]models.ClauseType{
		"Termination of Policy": models.ClauseTermination,
		"Premium Payment":       models.ClausePayment,
		"Exclusions":            models.ClauseLiability,
		"Governing Law":         models.ClauseGoverningLaw,
		"Intellectual Property": models.ClauseIntellectualProperty,
		"Death Benefit":         models.ClauseOther,
		"Miscellaneous":         models.ClauseOther,
	}
	for title, want := range tests {
		if got := headingClauseType(title); got != want {
			t.Errorf("headingClauseType(%q) = %v, want %v", title, got, want)
		}
	}
}

func TestCrossReferences(t *testing.T) {
	entities := []models.NamedEntity{
		{ID: "entity_0001", Type: models.EntityPerson, Confidence: 0.9, TextSpan: models.TextSpan{StartOffset: 0}},
		{ID: "entity_0002", Type: models.EntityOrganization, Confidence: 0.8, TextSpan: models.TextSpan{StartOffset: 40}},
		{ID: "entity_0003", Type: models.EntityDate, Confidence: 0.9, TextSpan: models.TextSpan{StartOffset: 50}},
		{ID: "entity_0004", Type: models.EntityPerson, Confidence: 0.9, TextSpan: models.TextSpan{StartOffset: 5000}},
	}
	refs := extractCrossReferences(entities)
	if len(refs) != 1 {
		t.Fatalf("refs = %+v", refs)
	}
	r := refs[0]
	if r.ID != "ref_0001" || r.ReferenceType != "employed_by" || r.Confidence != 0.8 {
		t.Errorf("ref = %+v", r)
	}
	if r.Metadata["distance"] != 40 {
		t.Errorf("distance = %v", r.Metadata["distance"])
	}

	if got, ok := referenceType(models.EntityJurisdiction, models.EntityLocation); !ok || got != "under_jurisdiction" {
		t.Errorf("reverse lookup = %q", got)
	}
}

func TestWarnings(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "Acme Ltd",
		Pages: []*documentaipb.Document_Page{
			{Layout: &documentaipb.Document_Page_Layout{Confidence: 0.5}},
			{},
		},
		Entities: []*documentaipb.Document_Entity{{Type: "ORGANIZATION", MentionText: "Acme Ltd", Confidence: 0.75}},
	}
	out := parse(t, doc, 0.7)
	joined := strings.Join(out.ProcessingWarnings, "|")
	for _, want := range []string{
		"1 entities have confidence below 0.8",
		"Document OCR quality is low (avg confidence: 0.50)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings %q missing %q", joined, want)
		}
	}
}

func TestStepRecoversPanic(t *testing.T) {
	r := &run{log: zerolog.Nop()}
	out, ok := step(r, "boom step", func() []int { panic("boom") })
	if ok || out != nil {
		t.Errorf("out = %v ok = %v", out, ok)
	}
	if len(r.warnings) != 1 || !strings.Contains(r.warnings[0], "boom step failed") {
		t.Errorf("warnings = %v", r.warnings)
	}
}

func TestRawResponseAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	p := New(WithArtifacts(artifacts.New(dir, nil)))
	out, err := p.Parse(context.Background(), Input{
		Document:           &documentaipb.Document{Text: "Policy No: ABC123", MimeType: "application/pdf", Pages: []*documentaipb.Document_Page{{}}},
		Metadata:           models.DocumentMetadata{DocumentID: "doc-raw", ConfidenceThreshold: models.DefaultConfidenceThreshold},
		IncludeRawResponse: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.RawResponse["pages"] != 1 || out.RawResponse["mime_type"] != "application/pdf" {
		t.Errorf("raw = %v", out.RawResponse)
	}
	if _, ok := out.RawResponse["document"]; !ok {
		t.Error("protojson dump missing")
	}
	if out.Metadata.PageCount != 1 || out.Metadata.ConfidenceThreshold != models.DefaultConfidenceThreshold {
		t.Errorf("metadata = %+v", out.Metadata)
	}
	for _, name := range []string{FeatureVectorFile, DiagnosticsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}
