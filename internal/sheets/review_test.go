package sheets

import (
	"reflect"
	"testing"
	"time"

	"docparse/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0", "1AbC-d_9", false},
		{"https://docs.google.com/document/d/xyz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := extractSpreadsheetID(tt.url)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("extractSpreadsheetID(%q) = %q, %v", tt.url, got, err)
		}
	}
}

func TestRowFromDocument(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	doc := &models.ParsedDocument{
		Metadata: models.DocumentMetadata{
			DocumentID:          "doc-1",
			OriginalFilename:    "policy.pdf",
			PageCount:           3,
			ProcessingTimestamp: ts,
			CustomMetadata: map[string]interface{}{
				"mandatory_fields_found": []interface{}{"dob"},
				"fallback_used":          true,
			},
		},
		ProcessingWarnings: []string{"only 1 clauses detected (minimum 3)", "low OCR"},
		NeedsReview:        true,
	}

	got := RowFromDocument(doc).values()
	want := []interface{}{
		"policy.pdf", "doc-1", 3, "dob", true,
		"only 1 clauses detected (minimum 3); low OCR", true, "2024-03-01T10:30:00Z",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("values() = %v, want %v", got, want)
	}
	if len(got) != len(headers) {
		t.Errorf("row has %d cells, headers %d", len(got), len(headers))
	}
}
