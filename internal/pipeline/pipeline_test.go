package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/google/uuid"

	"docparse/internal/batch"
	"docparse/internal/clients"
	"docparse/internal/config"
	"docparse/internal/docai"
	"docparse/internal/ocr"
	"docparse/internal/sheets"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

const policyText = "Policy Number: ABC123\nPolicy holder John Smith pays the premium annually.\n" +
	"This policy shall be governed by the laws of India.\n"

type fakeProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	reqs  []docai.Request
	// fail returns an error for the given attempt (1-based) of uri, or nil.
	fail func(uri string, attempt int) error
}

func (f *fakeProcessor) Process(_ context.Context, req docai.Request) (*documentaipb.Document, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[req.GCSURI]++
	attempt := f.calls[req.GCSURI]
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(req.GCSURI, attempt); err != nil {
			return nil, err
		}
	}
	return &documentaipb.Document{
		Text:  policyText,
		Pages: []*documentaipb.Document_Page{{PageNumber: 1}},
	}, nil
}

func (f *fakeProcessor) Close() error { return nil }

func (f *fakeProcessor) callCount(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) Recognize(context.Context, ocr.Source) (*ocr.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, PageCount: 1, Confidence: 0.9, LanguageCodes: []string{"en"}}, nil
}

func (f *fakeOCR) Close() error { return nil }

type fakeQueue struct {
	mu   sync.Mutex
	rows []sheets.ReviewRow
}

func (q *fakeQueue) Append(_ context.Context, rows []sheets.ReviewRow) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rows = append(q.rows, rows...)
	return nil
}

func newService(t *testing.T, proc docai.Processor, ocrSvc ocr.Service, configure ...func(*config.Config)) (*Service, *fakeQueue, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ArtifactsDir:          dir,
		DocumentAIProcessorID: "proc-1",
		ConfidenceThreshold:   models.DefaultConfidenceThreshold,
		BatchMaxConcurrent:    2,
		BatchMaxAttempts:      3,
		BatchRetryBase:        time.Millisecond,
	}
	for _, fn := range configure {
		fn(cfg)
	}

	opts := []clients.Option{clients.Offline()}
	if proc != nil {
		opts = append(opts, clients.WithDocAI(proc))
	}
	if ocrSvc != nil {
		opts = append(opts, clients.WithOCR(ocrSvc))
	}
	reg, err := clients.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("clients.New() error = %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	q := &fakeQueue{}
	return New(reg, WithReviewQueue(q)), q, dir
}

func TestParse(t *testing.T) {
	proc := &fakeProcessor{}
	svc, q, dir := newService(t, proc, nil)

	resp := svc.Parse(context.Background(), models.ParseRequest{GCSURI: "gs://bucket/policy.pdf"})
	if !resp.Success || resp.Document == nil || resp.ErrorMessage != "" {
		t.Fatalf("Parse() = %+v", resp)
	}
	meta := resp.Document.Metadata
	if meta.DocumentID != resp.RequestID || meta.OriginalFilename != "policy.pdf" || meta.ProcessorID != "proc-1" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.ConfidenceThreshold != models.DefaultConfidenceThreshold {
		t.Errorf("ConfidenceThreshold = %v", meta.ConfidenceThreshold)
	}
	if _, err := os.Stat(filepath.Join(dir, resp.RequestID, "feature_vector.json")); err != nil {
		t.Errorf("feature vector not written: %v", err)
	}
	if got := len(q.rows); (got == 1) != resp.Document.NeedsReview {
		t.Errorf("review rows = %d, needs_review = %v", got, resp.Document.NeedsReview)
	}
}

func threshold(v float64) *float64 { return &v }

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		name      string
		requested *float64
		want      float64
	}{
		{"unset uses configured default", nil, 0.6},
		{"zero is kept", threshold(0), 0},
		{"explicit", threshold(0.9), 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, &fakeProcessor{}, nil, func(c *config.Config) { c.ConfidenceThreshold = 0.6 })
			resp := svc.Parse(context.Background(), models.ParseRequest{GCSURI: "gs://b/a.pdf", ConfidenceThreshold: tt.requested})
			if !resp.Success {
				t.Fatalf("Parse() = %+v", resp)
			}
			if got := resp.Document.Metadata.ConfidenceThreshold; got != tt.want {
				t.Errorf("ConfidenceThreshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		proc docai.Processor
		req  models.ParseRequest
		want string
	}{
		{"local path without staging", &fakeProcessor{}, models.ParseRequest{GCSURI: "/tmp/policy.pdf"}, "gs://"},
		{"bad threshold", &fakeProcessor{}, models.ParseRequest{GCSURI: "gs://b/a.pdf", ConfidenceThreshold: threshold(2)}, "confidence_threshold"},
		{"no processor", nil, models.ParseRequest{GCSURI: "gs://b/a.pdf"}, "not configured"},
		{"processor error", &fakeProcessor{fail: func(string, int) error { return docai.ErrQuotaExceeded }}, models.ParseRequest{GCSURI: "gs://b/a.pdf"}, "quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t, tt.proc, nil)
			resp := svc.Parse(context.Background(), tt.req)
			if resp.Success || resp.Document != nil {
				t.Fatalf("Parse() = %+v, want failure", resp)
			}
			if !strings.Contains(resp.ErrorMessage, tt.want) {
				t.Errorf("ErrorMessage = %q, want it to contain %q", resp.ErrorMessage, tt.want)
			}
			if resp.RequestID == "" {
				t.Error("RequestID is empty")
			}
		})
	}
}

func TestParseBatch(t *testing.T) {
	proc := &fakeProcessor{fail: func(uri string, attempt int) error {
		switch {
		case strings.HasSuffix(uri, "flaky.pdf") && attempt == 1:
			return errors.New("unavailable")
		case strings.HasSuffix(uri, "broken.pdf"):
			return docai.ErrInvalidDocument
		}
		return nil
	}}
	svc, _, _ := newService(t, proc, nil)

	reqs := []models.ParseRequest{
		{GCSURI: "gs://b/first.pdf"},
		{GCSURI: "gs://b/flaky.pdf"},
		{GCSURI: "gs://b/broken.pdf"},
	}
	out := svc.ParseBatch(context.Background(), reqs, services.BatchOptions{})

	if len(out.Results) != 3 || out.Succeeded != 2 || out.Failed != 1 || out.BatchID == "" {
		t.Fatalf("ParseBatch() = %+v", out)
	}
	for i, name := range []string{"first.pdf", "flaky.pdf"} {
		r := out.Results[i]
		if !r.Success || r.Document.Metadata.OriginalFilename != name {
			t.Errorf("Results[%d] = %+v", i, r)
		}
	}
	if out.Results[2].Success || !strings.Contains(out.Results[2].ErrorMessage, "invalid") {
		t.Errorf("Results[2] = %+v", out.Results[2])
	}
	if got := proc.callCount("gs://b/flaky.pdf"); got != 2 {
		t.Errorf("flaky calls = %d, want 2", got)
	}
	if got := proc.callCount("gs://b/broken.pdf"); got != 1 {
		t.Errorf("broken calls = %d, want 1", got)
	}
}

func TestRun(t *testing.T) {
	proc := &fakeProcessor{}
	svc, _, dir := newService(t, proc, &fakeOCR{text: policyText})

	res := svc.Run(context.Background(), services.PipelineRequest{
		Filename:      "policy.pdf",
		Content:       []byte("%PDF-1.4 test"),
		UserSessionID: "alice",
	})
	if !res.Success {
		t.Fatalf("Run() failed: %s %v", res.Message, res.Errors)
	}
	if res.Document == nil || res.Verdict == nil || res.OCR == nil || res.OCR.Source != "vision" {
		t.Fatalf("stage outputs missing: %+v", res)
	}
	if res.GCSURI != "" || len(proc.reqs) != 1 || len(proc.reqs[0].Content) == 0 {
		t.Errorf("content was not sent inline: uri %q, requests %d", res.GCSURI, len(proc.reqs))
	}
	if res.Document.Metadata.CustomMetadata["user_session_id"] != "alice" {
		t.Errorf("custom metadata = %v", res.Document.Metadata.CustomMetadata)
	}

	for _, name := range []string{
		ParsedDocumentFile, OCRResultFile, VerdictFile, "feature_vector.json",
		"diagnostics.json", "kag_input.json", ResultFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, res.PipelineID, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	for _, stage := range []string{StageUpload, StageOCR, StageDocAI, StageParse, StageClassify, StageKAG} {
		if _, ok := res.StageTimings[stage]; !ok {
			t.Errorf("no timing for stage %s", stage)
		}
	}

	data, err := svc.ResultJSON(context.Background(), res.PipelineID)
	if err != nil {
		t.Fatalf("ResultJSON() error = %v", err)
	}
	var saved services.PipelineResult
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.PipelineID != res.PipelineID || !saved.Success {
		t.Errorf("saved result = %+v", saved)
	}
	if _, ok := svc.Status(res.PipelineID); ok {
		t.Error("finished pipeline still has a status")
	}
}

func TestRunOCRFailureIsWarning(t *testing.T) {
	svc, _, _ := newService(t, &fakeProcessor{}, &fakeOCR{err: ocr.ErrOCRFailed})

	res := svc.Run(context.Background(), services.PipelineRequest{
		Filename: "scan.pdf",
		Content:  []byte("%PDF-1.4 test"),
	})
	if !res.Success {
		t.Fatalf("Run() failed: %s", res.Message)
	}
	if res.OCR != nil || len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "OCR failed") {
		t.Errorf("OCR = %+v, warnings = %v", res.OCR, res.Warnings)
	}
	if res.UserSessionID != "anonymous" {
		t.Errorf("UserSessionID = %q", res.UserSessionID)
	}
}

func TestRunStageTracking(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		stage   string
		exec    func(r *run) error
		wantErr bool
	}{
		{"failing stage", StageDocAI, func(r *run) error {
			return r.stage(StageDocAI, func() error { return boom })
		}, true},
		{"passing stage", StageParse, func(r *run) error {
			return r.stage(StageParse, func() error { return nil })
		}, false},
		{"tracked stage", StageClassify, func(r *run) error {
			r.track(StageClassify, func() {})
			return nil
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &run{
				id:     "p-1",
				res:    &services.PipelineResult{StageTimings: map[string]float64{}},
				status: newTracker(),
			}
			r.status.start(r.id)

			err := tt.exec(r)
			var stageErr *StageError
			if tt.wantErr != errors.As(err, &stageErr) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && (stageErr.Stage != tt.stage || !errors.Is(err, boom)) {
				t.Errorf("err = %+v", stageErr)
			}
			if _, ok := r.res.StageTimings[tt.stage]; !ok {
				t.Errorf("no timing for %s", tt.stage)
			}
			if st, _ := r.status.get(r.id); st.CurrentStage != tt.stage {
				t.Errorf("current stage = %q, want %q", st.CurrentStage, tt.stage)
			}
		})
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name string
		proc docai.Processor
		req  services.PipelineRequest
		want string
	}{
		{"no input", &fakeProcessor{}, services.PipelineRequest{Filename: "a.pdf"}, "no document content"},
		{"no processor", nil, services.PipelineRequest{Source: "gs://b/a.pdf"}, "not configured"},
		{"missing local file", &fakeProcessor{}, services.PipelineRequest{Source: "/does/not/exist.pdf"}, "stage upload"},
		{"docai error", &fakeProcessor{fail: func(string, int) error { return docai.ErrProcessorNotFound }},
			services.PipelineRequest{Source: "gs://b/a.pdf", SkipOCR: true}, "stage docai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, dir := newService(t, tt.proc, nil)
			res := svc.Run(context.Background(), tt.req)
			if res.Success || len(res.Errors) == 0 {
				t.Fatalf("Run() = %+v, want failure", res)
			}
			if !strings.Contains(res.Message, tt.want) {
				t.Errorf("Message = %q, want it to contain %q", res.Message, tt.want)
			}
			if _, err := os.Stat(filepath.Join(dir, res.PipelineID, ResultFile)); err != nil {
				t.Errorf("result file not written: %v", err)
			}
		})
	}
}

func TestResultJSONUnknown(t *testing.T) {
	svc, _, _ := newService(t, &fakeProcessor{}, nil)
	for _, id := range []string{"../../etc/passwd", uuid.NewString()} {
		if _, err := svc.ResultJSON(context.Background(), id); !errors.Is(err, ErrUnknownPipeline) {
			t.Errorf("ResultJSON(%q) error = %v, want ErrUnknownPipeline", id, err)
		}
	}
}

func TestTracker(t *testing.T) {
	tr := newTracker()
	tr.start("p1")
	tr.advance("p1", StageDocAI)
	tr.warn("p1", "OCR failed")

	st, ok := tr.get("p1")
	if !ok {
		t.Fatal("status missing")
	}
	if st.CurrentStage != StageDocAI || st.CompletedStages != 2 || st.TotalStages != 6 {
		t.Errorf("status = %+v", st)
	}
	if st.ProgressPercentage < 33.3 || st.ProgressPercentage > 33.4 {
		t.Errorf("ProgressPercentage = %v", st.ProgressPercentage)
	}
	if len(st.Warnings) != 1 {
		t.Errorf("Warnings = %v", st.Warnings)
	}

	tr.finish("p1")
	if _, ok := tr.get("p1"); ok {
		t.Error("status kept after finish")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("unavailable"), true},
		{docai.ErrQuotaExceeded, true},
		{docai.ErrInvalidDocument, false},
		{ErrInvalidRequest, false},
		{ErrDocAIUnavailable, false},
		{&StageError{Stage: StageDocAI, Err: docai.ErrProcessorNotFound}, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := retryable(tt.err); got != tt.want {
			t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestParseBatchOptions(t *testing.T) {
	proc := &fakeProcessor{fail: func(string, int) error { return errors.New("unavailable") }}
	svc, _, _ := newService(t, proc, nil)

	out := svc.ParseBatch(context.Background(), []models.ParseRequest{{GCSURI: "gs://b/a.pdf"}}, services.BatchOptions{MaxAttempts: 10})
	if out.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", out.Failed)
	}
	if got := proc.callCount("gs://b/a.pdf"); got != 3 {
		t.Errorf("calls = %d, want attempts capped at 3", got)
	}

	out = svc.ParseBatch(context.Background(), []models.ParseRequest{{GCSURI: "gs://b/c.pdf"}}, services.BatchOptions{MaxAttempts: 1})
	if got := proc.callCount("gs://b/c.pdf"); got != 1 || out.Failed != 1 {
		t.Errorf("calls = %d, failed = %d", got, out.Failed)
	}
}

func TestParseBatchConfiguredAttemptsCapped(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		want       int
	}{
		{"above cap", 10, batch.DefaultAttempts},
		{"at cap", batch.DefaultAttempts, batch.DefaultAttempts},
		{"below cap", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{fail: func(string, int) error { return errors.New("unavailable") }}
			svc, _, _ := newService(t, proc, nil, func(c *config.Config) { c.BatchMaxAttempts = tt.configured })

			out := svc.ParseBatch(context.Background(), []models.ParseRequest{{GCSURI: "gs://b/a.pdf"}}, services.BatchOptions{})
			if out.Failed != 1 {
				t.Fatalf("Failed = %d, want 1", out.Failed)
			}
			if got := proc.callCount("gs://b/a.pdf"); got != tt.want {
				t.Errorf("calls = %d, want %d", got, tt.want)
			}
		})
	}
}
