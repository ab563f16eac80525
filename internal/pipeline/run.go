package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/internal/docai"
	"docparse/internal/features"
	"docparse/internal/kag"
	"docparse/internal/metrics"
	"docparse/internal/ocr"
	"docparse/internal/parser"
	"docparse/internal/pdftext"
	"docparse/internal/staging"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

// Artifact file names under <artifacts dir>/<pipeline id>/.
const (
	ResultFile         = "pipeline_result.json"
	ParsedDocumentFile = "parsed_document.json"
	OCRResultFile      = "ocr_result.json"
	VerdictFile        = "classification_verdict.json"
)

// run is the state of one pipeline execution.
type run struct {
	id     string
	res    *services.PipelineResult
	store  *artifacts.Store
	status *tracker
	log    zerolog.Logger
}

// stage runs fn as the named stage. A failure aborts the run.
func (r *run) stage(name string, fn func() error) error {
	var err error
	r.track(name, func() { err = fn() })
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

// track records status and timing for a stage that cannot fail the run.
// Problems inside fn are reported through warn.
func (r *run) track(name string, fn func()) {
	r.status.advance(r.id, name)
	start := time.Now()
	fn()
	r.res.StageTimings[name] = time.Since(start).Seconds()
	metrics.ObserveStage(name, start)
}

func (r *run) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.log.Warn().Msg(msg)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.status.warn(r.id, msg)
}

func (r *run) save(ctx context.Context, name string, v interface{}) {
	path, err := r.store.WriteJSON(ctx, name, v)
	if err != nil {
		r.warn("failed to write %s: %v", name, err)
		return
	}
	r.res.ArtifactPaths[name] = path
}

// Run implements services.DocumentService. The returned result is also
// written to pipeline_result.json.
func (s *Service) Run(ctx context.Context, req services.PipelineRequest) *services.PipelineResult {
	id := uuid.NewString()
	session := req.UserSessionID
	if session == "" {
		session = "anonymous"
	}
	store := s.store.Sub(id)

	r := &run{
		id: id,
		res: &services.PipelineResult{
			PipelineID:    id,
			UserSessionID: session,
			ArtifactsDir:  store.Dir(),
			ArtifactPaths: make(map[string]string),
			StageTimings:  make(map[string]float64),
			Errors:        []string{},
			Warnings:      []string{},
		},
		store:  store,
		status: s.status,
		log:    s.log.With().Str("pipeline_id", id).Logger(),
	}

	s.status.start(id)
	defer s.status.finish(id)

	start := time.Now()
	r.log.Info().Str("filename", req.Filename).Str("source", req.Source).Msg("Starting document pipeline")

	if err := s.execute(ctx, r, req, session); err != nil {
		r.res.Success = false
		r.res.Message = err.Error()
		r.res.Errors = append(r.res.Errors, err.Error())
		r.log.Error().Err(err).Msg("Pipeline failed")
	} else {
		r.res.Success = true
		r.res.Message = "Document processed successfully"
	}

	r.res.TotalProcessingTime = time.Since(start).Seconds()
	r.res.CompletedAt = time.Now().UTC()
	if _, err := store.WriteJSON(ctx, ResultFile, r.res); err != nil {
		r.log.Error().Err(err).Msg("Failed to write pipeline result")
	}

	r.log.Info().
		Bool("success", r.res.Success).
		Float64("total_seconds", r.res.TotalProcessingTime).
		Int("warnings", len(r.res.Warnings)).
		Msg("Pipeline finished")
	return r.res
}

func (s *Service) execute(ctx context.Context, r *run, req services.PipelineRequest, session string) error {
	content := req.Content
	filename := req.Filename
	source := strings.TrimSpace(req.Source)
	if len(content) == 0 && source == "" {
		return ErrNoInput
	}
	if s.docai == nil {
		return ErrDocAIUnavailable
	}

	var uri string
	err := r.stage(StageUpload, func() error {
		if staging.IsGCSURI(source) {
			uri = source
			if filename == "" {
				filename = filepath.Base(source)
			}
			return nil
		}
		if source != "" {
			data, err := os.ReadFile(source)
			if err != nil {
				return err
			}
			content = data
			if filename == "" {
				filename = filepath.Base(source)
			}
		}
		if s.stager != nil {
			staged, err := s.stager.StageBytes(ctx, filename, content, session)
			if err != nil {
				return err
			}
			uri = staged
			return nil
		}
		if len(content) > docai.MaxInlineSizeBytes {
			return fmt.Errorf("%w: %d bytes and no staging bucket", docai.ErrDocumentTooLarge, len(content))
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.res.GCSURI = uri

	var reference string
	if !req.SkipOCR {
		r.track(StageOCR, func() {
			reference = s.readText(ctx, r, uri, content)
		})
	}

	var document *documentaipb.Document
	err = r.stage(StageDocAI, func() error {
		docReq := docai.Request{
			GCSURI:                 uri,
			ProcessorID:            req.ProcessorID,
			EnableNativePDFParsing: s.nativePDF,
		}
		if uri == "" {
			docReq.Content = content
		}
		d, err := s.docai.Process(ctx, docReq)
		document = d
		return err
	})
	if err != nil {
		return err
	}

	processorID := req.ProcessorID
	if processorID == "" {
		processorID = s.processorID
	}
	custom := copyMetadata(req.Metadata)
	custom["pipeline_id"] = r.id
	custom["user_session_id"] = session

	var doc *models.ParsedDocument
	err = r.stage(StageParse, func() error {
		d, err := s.parser.Parse(ctx, parser.Input{
			Document: document,
			Metadata: models.DocumentMetadata{
				DocumentID:          r.id,
				OriginalFilename:    filename,
				FileSize:            int64(len(content)),
				ProcessorID:         processorID,
				ProcessorVersion:    s.processorVersion,
				ConfidenceThreshold: s.thresholdFor(req.ConfidenceThreshold),
				CustomMetadata:      custom,
			},
			ReferenceText: reference,
			Artifacts:     r.store,
		})
		doc = d
		return err
	})
	if err != nil {
		return err
	}
	r.res.Document = doc
	r.save(ctx, ParsedDocumentFile, doc)
	r.res.ArtifactPaths[parser.DiagnosticsFile] = r.store.Path(parser.DiagnosticsFile)

	var verdict *models.ClassificationVerdict
	r.track(StageClassify, func() {
		verdict = s.classifier.Classify(doc.FullText, map[string]interface{}{
			"document_id":       doc.Metadata.DocumentID,
			"original_filename": doc.Metadata.OriginalFilename,
			"page_count":        doc.Metadata.PageCount,
		})
	})
	r.res.Verdict = verdict
	r.save(ctx, VerdictFile, verdict)
	r.save(ctx, parser.FeatureVectorFile, features.Build(doc, verdict))

	r.track(StageKAG, func() {
		out := s.kag.Process(ctx, kag.Input{
			Text:    doc.FullText,
			Verdict: verdict,
			Metadata: map[string]interface{}{
				"document_id":       doc.Metadata.DocumentID,
				"original_filename": doc.Metadata.OriginalFilename,
				"needs_review":      doc.NeedsReview,
			},
			PipelineID:    r.id,
			UserSessionID: session,
			Store:         r.store,
		})
		if !out.Success {
			for _, e := range out.Errors {
				r.warn("%s", e)
			}
			return
		}
		r.res.KAGInputPath = out.KAGInputPath
		r.res.ArtifactPaths[kag.InputFile] = out.KAGInputPath
	})

	if err := s.enqueueReview(ctx, doc); err != nil {
		r.warn("review queue: %v", err)
	}
	return nil
}

// readText returns an independent reading of the document for diagnostics:
// Vision OCR when available, otherwise the PDF's embedded text.
func (s *Service) readText(ctx context.Context, r *run, uri string, content []byte) string {
	if s.ocr != nil {
		res, err := s.ocr.Recognize(ctx, ocr.Source{GCSURI: uri, Content: content})
		if err == nil {
			r.res.OCR = &services.OCRSummary{
				PageCount:     res.PageCount,
				Confidence:    res.Confidence,
				LanguageCodes: res.LanguageCodes,
				TextLength:    len(res.Text),
				Source:        "vision",
			}
			r.save(ctx, OCRResultFile, res)
			return res.Text
		}
		r.warn("OCR failed: %v", err)
	}

	if len(content) == 0 {
		return ""
	}
	local, err := pdftext.Extract(content)
	if err != nil {
		if !errors.Is(err, pdftext.ErrNoText) {
			r.warn("local text extraction failed: %v", err)
		}
		return ""
	}
	r.res.OCR = &services.OCRSummary{
		PageCount:     local.PageCount,
		LanguageCodes: []string{},
		TextLength:    len(local.Text),
		Source:        "local",
	}
	r.save(ctx, OCRResultFile, local)
	return local.Text
}

// ResultJSON returns the raw pipeline_result.json of a finished pipeline.
func (s *Service) ResultJSON(ctx context.Context, pipelineID string) ([]byte, error) {
	if _, err := uuid.Parse(pipelineID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipelineID)
	}
	data, err := s.store.Sub(pipelineID).Read(ctx, ResultFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipelineID)
	}
	return data, err
}
