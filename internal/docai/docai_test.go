package docai

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

func TestProcessorName(t *testing.T) {
	cfg := Config{ProjectID: "p", Location: "eu", ProcessorID: "abc"}
	if got := processorName(cfg, ""); got != "projects/p/locations/eu/processors/abc" {
		t.Errorf("name = %q", got)
	}
	if got := processorName(cfg, "other"); got != "projects/p/locations/eu/processors/other" {
		t.Errorf("override = %q", got)
	}

	cfg.ProcessorVersion = "v2"
	if got := processorName(cfg, ""); !strings.HasSuffix(got, "/processors/abc/processorVersions/v2") {
		t.Errorf("versioned name = %q", got)
	}
}

func TestBuildRequest(t *testing.T) {
	cfg := Config{ProjectID: "p", Location: "us", ProcessorID: "abc"}

	req, err := buildRequest(cfg, Request{GCSURI: "gs://b/doc.pdf", EnableNativePDFParsing: true})
	if err != nil {
		t.Fatal(err)
	}
	gcs := req.GetGcsDocument()
	if gcs == nil || gcs.GcsUri != "gs://b/doc.pdf" || gcs.MimeType != MimePDF {
		t.Errorf("gcs source = %+v", gcs)
	}
	if !req.SkipHumanReview || !req.ProcessOptions.OcrConfig.EnableNativePdfParsing {
		t.Error("options not set")
	}

	req, err = buildRequest(cfg, Request{Content: []byte("%PDF")})
	if err != nil {
		t.Fatal(err)
	}
	if req.GetRawDocument() == nil {
		t.Error("expected raw document source")
	}

	bad := []Request{
		{},
		{GCSURI: "/tmp/doc.pdf"},
		{GCSURI: "gs://b/x.pdf", Content: []byte("x")},
	}
	for _, r := range bad {
		if _, err := buildRequest(cfg, r); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("buildRequest(%+v) err = %v", r, err)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"rpc error: code = PermissionDenied desc = nope", ErrInvalidCredentials},
		{"rpc error: code = ResourceExhausted", ErrQuotaExceeded},
		{"rpc error: code = NotFound", ErrProcessorNotFound},
		{"rpc error: code = InvalidArgument", ErrInvalidDocument},
		{"something else", ErrProcessingFailed},
	}
	for _, tt := range tests {
		err := classifyError("Process", "projects/p/locations/us/processors/x", errors.New(tt.msg))
		if !errors.Is(err, tt.want) {
			t.Errorf("%q mapped to %v, want %v", tt.msg, err, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(NewProcessingError("Process", ErrInvalidDocument, "")) {
		t.Error("invalid document should not be retried")
	}
	if !IsRetryable(NewProcessingError("Process", ErrQuotaExceeded, "")) {
		t.Error("quota errors should be retried")
	}
	if !IsRetryable(fmt.Errorf("transient")) {
		t.Error("unknown errors should be retried")
	}
}

func TestLoadDocumentJSON(t *testing.T) {
	bare := `{"text":"Policy No: A1","mimeType":"application/pdf","unknownField":1}`
	doc, err := LoadDocumentJSON([]byte(bare))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "Policy No: A1" {
		t.Errorf("text = %q", doc.Text)
	}

	wrapped := `{"document":{"text":"hello","pages":[{"pageNumber":1}]}}`
	doc, err = LoadDocumentJSON([]byte(wrapped))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Text != "hello" || len(doc.Pages) != 1 {
		t.Errorf("wrapped doc = %v", doc)
	}

	if _, err := LoadDocumentJSON([]byte("not json")); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("err = %v", err)
	}
}

func TestTextFromAnchor(t *testing.T) {
	text := "Nämë: Jo"
	anchor := &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
		{StartIndex: 0, EndIndex: 4},
		{StartIndex: 6, EndIndex: 99},
	}}
	if got := TextFromAnchor(anchor, text); got != "NämëJo" {
		t.Errorf("got %q", got)
	}
	if got := TextFromLayout(nil, text); got != "" {
		t.Errorf("nil layout = %q", got)
	}
}

func TestBoundingBox(t *testing.T) {
	poly := &documentaipb.BoundingPoly{NormalizedVertices: []*documentaipb.NormalizedVertex{
		{X: 0.5, Y: 0.2}, {X: 0.1, Y: 0.4}, {X: 0.3, Y: 0.1},
	}}
	l, tp, r, b, ok := BoundingBox(poly)
	if !ok || l != float64(float32(0.1)) || r != float64(float32(0.5)) || tp != float64(float32(0.1)) || b != float64(float32(0.4)) {
		t.Errorf("box = %v %v %v %v %v", l, tp, r, b, ok)
	}
	if _, _, _, _, ok := BoundingBox(&documentaipb.BoundingPoly{}); ok {
		t.Error("empty polygon reported ok")
	}
}
