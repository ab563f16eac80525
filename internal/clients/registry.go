// Package clients builds every long-lived component once at startup and
// hands them to the CLI commands and the HTTP server. Cloud clients are
// created only when their settings are present; unset ones stay nil.
package clients

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"docparse/internal/artifacts"
	"docparse/internal/classifier"
	"docparse/internal/config"
	"docparse/internal/docai"
	"docparse/internal/fallback"
	"docparse/internal/kag"
	"docparse/internal/logger"
	"docparse/internal/ocr"
	"docparse/internal/parser"
	"docparse/internal/sheets"
	"docparse/internal/staging"
)

// Registry holds the shared components. Fields for optional services are
// nil when the service is not configured.
type Registry struct {
	Config     *config.Config
	Artifacts  *artifacts.Store
	Classifier *classifier.Classifier
	Parser     *parser.Parser
	KAG        *kag.Component

	DocAI  docai.Processor
	OCR    ocr.Service
	Stager *staging.Stager
	Review *sheets.ReviewQueue

	closers []io.Closer
	log     zerolog.Logger
}

type options struct {
	offline bool
	docai   docai.Processor
	ocr     ocr.Service
	stager  *staging.Stager
	mirror  artifacts.Mirror
}

// Option customizes New.
type Option func(*options)

// Offline skips every cloud client. Local parsing, classification and
// extraction still work.
func Offline() Option {
	return func(o *options) { o.offline = true }
}

// WithDocAI uses p instead of creating a Document AI client.
func WithDocAI(p docai.Processor) Option {
	return func(o *options) { o.docai = p }
}

// WithOCR uses s instead of creating a Vision client.
func WithOCR(s ocr.Service) Option {
	return func(o *options) { o.ocr = s }
}

// WithStager uses s instead of creating a GCS stager.
func WithStager(s *staging.Stager) Option {
	return func(o *options) { o.stager = s }
}

// WithMirror uses m instead of connecting to the configured S3 endpoint.
func WithMirror(m artifacts.Mirror) Option {
	return func(o *options) { o.mirror = m }
}

// New creates the registry. On error every client created so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		Config: cfg,
		log:    logger.WithComponent("clients"),
	}
	if err := r.init(ctx, o); err != nil {
		r.Close()
		return nil, err
	}

	r.log.Info().
		Bool("docai", r.DocAI != nil).
		Bool("ocr", r.OCR != nil).
		Bool("staging", r.Stager != nil).
		Bool("review_queue", r.Review != nil).
		Str("artifacts_dir", r.Artifacts.Dir()).
		Msg("Clients initialized")
	return r, nil
}

func (r *Registry) init(ctx context.Context, o options) error {
	cfg := r.Config

	mirror := o.mirror
	if mirror == nil && cfg.MirrorEnabled() && !o.offline {
		m, err := artifacts.NewS3Mirror(ctx, artifacts.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			return fmt.Errorf("artifact mirror: %w", err)
		}
		mirror = m
	}
	r.Artifacts = artifacts.New(cfg.ArtifactsDir, mirror)

	taxonomy, err := classifier.LoadTaxonomy(cfg.ClassifierTaxonomyPath)
	if err != nil {
		return fmt.Errorf("classifier taxonomy: %w", err)
	}
	r.Classifier = classifier.New(taxonomy, classifier.WithDebug(cfg.ClassifierDebug))
	r.Parser = parser.New(parser.WithExtractor(fallback.New()))
	r.KAG = kag.New(kag.WithVertexEmbedding(cfg.VertexEmbeddingEnabled))

	r.DocAI, r.OCR, r.Stager = o.docai, o.ocr, o.stager
	if o.offline {
		return nil
	}
	creds := CredentialOptions()

	if r.DocAI == nil && cfg.RequireCloud() == nil {
		client, err := docai.NewClient(ctx, docai.Config{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
			Timeout:          cfg.DocumentAITimeout,
		}, creds...)
		if err != nil {
			return err
		}
		r.DocAI = client
		r.closers = append(r.closers, client)
	}

	if r.OCR == nil && cfg.GoogleCloudProject != "" {
		svc, err := ocr.NewVisionService(ctx, cfg.OCRLanguageHints, creds...)
		if err != nil {
			return err
		}
		r.OCR = svc
		r.closers = append(r.closers, svc)
	}

	if r.Stager == nil && cfg.RequireStaging() == nil {
		uploader, err := staging.NewGCSUploader(ctx, creds...)
		if err != nil {
			return err
		}
		stager, err := staging.NewStager(cfg.GCSStagingBucket, uploader)
		if err != nil {
			uploader.Close()
			return err
		}
		r.Stager = stager
		r.closers = append(r.closers, stager)
	}

	if cfg.ReviewSheetURL != "" {
		credJSON, err := CredentialsJSON()
		if err != nil {
			return fmt.Errorf("review queue: %w", err)
		}
		q, err := sheets.NewReviewQueue(ctx, cfg.ReviewSheetURL, cfg.ReviewSheetName, credJSON)
		if err != nil {
			return err
		}
		r.Review = q
	}
	return nil
}

// Close releases the cloud clients in reverse creation order and returns
// the first error.
func (r *Registry) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
