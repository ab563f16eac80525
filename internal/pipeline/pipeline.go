// Package pipeline connects staging, OCR, Document AI, the parser, the
// classifier and KAG input generation. It implements
// services.DocumentService for the CLI and the HTTP API.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/internal/batch"
	"docparse/internal/classifier"
	"docparse/internal/clients"
	"docparse/internal/docai"
	"docparse/internal/kag"
	"docparse/internal/logger"
	"docparse/internal/metrics"
	"docparse/internal/ocr"
	"docparse/internal/parser"
	"docparse/internal/sheets"
	"docparse/internal/staging"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

// ReviewQueue receives documents flagged for manual review.
type ReviewQueue interface {
	Append(ctx context.Context, rows []sheets.ReviewRow) error
}

// Service runs documents through the processing stages. It is safe for
// concurrent use.
type Service struct {
	docai      docai.Processor
	ocr        ocr.Service
	stager     *staging.Stager
	review     ReviewQueue
	parser     *parser.Parser
	classifier *classifier.Classifier
	kag        *kag.Component
	store      *artifacts.Store

	processorID      string
	processorVersion string
	nativePDF        bool
	threshold        float64
	batch            batch.Config

	status *tracker
	log    zerolog.Logger
}

var _ services.DocumentService = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithReviewQueue sends needs_review documents to q.
func WithReviewQueue(q ReviewQueue) Option {
	return func(s *Service) { s.review = q }
}

// New builds a Service from the components in reg.
func New(reg *clients.Registry, opts ...Option) *Service {
	cfg := reg.Config
	s := &Service{
		docai:            reg.DocAI,
		ocr:              reg.OCR,
		stager:           reg.Stager,
		parser:           reg.Parser,
		classifier:       reg.Classifier,
		kag:              reg.KAG,
		store:            reg.Artifacts,
		processorID:      cfg.DocumentAIProcessorID,
		processorVersion: cfg.DocumentAIProcessorVersion,
		nativePDF:        cfg.EnableNativePDFParsing,
		threshold:        cfg.ConfidenceThreshold,
		batch: batch.Config{
			MaxConcurrent: cfg.BatchMaxConcurrent,
			Retry: batch.RetryConfig{
				MaxAttempts: min(cfg.BatchMaxAttempts, batch.DefaultAttempts),
				Base:        cfg.BatchRetryBase,
				Retryable:   retryable,
			},
		},
		status: newTracker(),
		log:    logger.WithComponent("pipeline"),
	}
	if reg.Review != nil {
		s.review = reg.Review
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse implements services.DocumentService.
func (s *Service) Parse(ctx context.Context, req models.ParseRequest) *models.ParseResponse {
	requestID := uuid.NewString()
	start := time.Now()

	doc, err := s.parse(ctx, req, requestID)
	return s.response(requestID, doc, err, time.Since(start))
}

func (s *Service) response(requestID string, doc *models.ParsedDocument, err error, elapsed time.Duration) *models.ParseResponse {
	resp := &models.ParseResponse{
		RequestID:             requestID,
		ProcessingTimeSeconds: elapsed.Seconds(),
	}
	if err != nil {
		s.log.Error().Err(err).Str("request_id", requestID).Msg("Document parsing failed")
		resp.ErrorMessage = err.Error()
		return resp
	}
	resp.Success = true
	resp.Document = doc
	return resp
}

// parse runs one request through staging, Document AI and the parser.
// documentID doubles as the artifact directory name.
func (s *Service) parse(ctx context.Context, req models.ParseRequest, documentID string) (*models.ParsedDocument, error) {
	const op = "parse"

	if err := req.Validate(s.stager != nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.docai == nil {
		return nil, ErrDocAIUnavailable
	}
	log := logger.WithDocumentID(s.log, documentID)

	uri := strings.TrimSpace(req.GCSURI)
	if !staging.IsGCSURI(uri) {
		session, _ := req.Metadata["user_session_id"].(string)
		staged, err := s.stager.Stage(ctx, uri, session)
		if err != nil {
			return nil, &StageError{Stage: StageUpload, Err: err}
		}
		uri = staged
	}

	processorID := req.ProcessorID
	if processorID == "" {
		processorID = s.processorID
	}

	start := time.Now()
	document, err := s.docai.Process(ctx, docai.Request{
		GCSURI:                 uri,
		ProcessorID:            processorID,
		EnableNativePDFParsing: req.EnableNativePDFParsing || s.nativePDF,
	})
	metrics.ObserveStage(StageDocAI, start)
	if err != nil {
		return nil, &StageError{Stage: StageDocAI, Err: err}
	}

	start = time.Now()
	doc, err := s.parser.Parse(ctx, parser.Input{
		Document: document,
		Metadata: models.DocumentMetadata{
			DocumentID:          documentID,
			OriginalFilename:    path.Base(uri),
			ProcessorID:         processorID,
			ProcessorVersion:    s.processorVersion,
			ConfidenceThreshold: s.thresholdFor(req.ConfidenceThreshold),
			CustomMetadata:      copyMetadata(req.Metadata),
		},
		IncludeRawResponse: req.IncludeRawResponse,
		Artifacts:          s.store.Sub(documentID),
	})
	metrics.ObserveStage(StageParse, start)
	if err != nil {
		return nil, &StageError{Stage: StageParse, Err: err}
	}

	log.Info().Str("op", op).Str("gcs_uri", uri).Bool("needs_review", doc.NeedsReview).Msg("Document parsed")
	if err := s.enqueueReview(ctx, doc); err != nil {
		log.Warn().Err(err).Msg("Failed to add document to review queue")
	}
	return doc, nil
}

// thresholdFor returns requested, or the configured default when it is unset.
func (s *Service) thresholdFor(requested *float64) float64 {
	if requested == nil {
		return s.threshold
	}
	return *requested
}

// ParseBatch implements services.DocumentService. Attempts are capped at
// batch.DefaultAttempts whatever opts or the configuration ask for.
func (s *Service) ParseBatch(ctx context.Context, reqs []models.ParseRequest, opts services.BatchOptions) *services.BatchParseResponse {
	start := time.Now()

	cfg := s.batch
	if opts.MaxConcurrent > 0 {
		cfg.MaxConcurrent = opts.MaxConcurrent
	}
	if opts.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = min(opts.MaxAttempts, batch.DefaultAttempts)
	}

	inputs := make([]string, len(reqs))
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		inputs[i] = r.GCSURI
		ids[i] = uuid.NewString()
	}

	report := batch.Run(ctx, cfg, inputs, func(ctx context.Context, i int, _ string) (*models.ParsedDocument, error) {
		return s.parse(ctx, reqs[i], ids[i])
	})

	out := &services.BatchParseResponse{
		BatchID:   report.BatchID,
		Results:   make([]models.ParseResponse, len(report.Results)),
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}
	for i, r := range report.Results {
		out.Results[i] = *s.response(ids[i], r.Value, r.Err, r.Duration)
	}
	out.ProcessingTimeSeconds = time.Since(start).Seconds()
	return out
}

// Status implements services.DocumentService.
func (s *Service) Status(pipelineID string) (services.PipelineStatus, bool) {
	return s.status.get(pipelineID)
}

func (s *Service) enqueueReview(ctx context.Context, doc *models.ParsedDocument) error {
	if s.review == nil || !doc.NeedsReview {
		return nil
	}
	return s.review.Append(ctx, []sheets.ReviewRow{sheets.RowFromDocument(doc)})
}

func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
