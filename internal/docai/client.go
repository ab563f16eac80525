// Package docai wraps the Google Document AI processor API.
//
// Documents are sent either by GCS URI or as inline bytes. The raw
// documentaipb.Document is returned untouched; turning it into a
// ParsedDocument is the parser's job.
//
// Document AI API Limitations:
//   - Maximum inline size: 20MB for synchronous processing
//   - Synchronous processing is limited to 15 pages (30 with imageless mode)
//   - Regional processors need the matching regional endpoint
package docai

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docparse/internal/logger"
)

const (
	// MaxInlineSizeBytes is the maximum inline document size (20MB)
	MaxInlineSizeBytes = 20 * 1024 * 1024

	// MimePDF is the only MIME type the pipeline submits.
	MimePDF = "application/pdf"
)

// Config holds Document AI settings.
type Config struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processor location (e.g., "us", "eu").
	Location string

	// ProcessorID is the default processor; requests may override it.
	ProcessorID string

	// ProcessorVersion pins a processor version. Empty uses the default version.
	ProcessorVersion string

	// Timeout bounds a single ProcessDocument call.
	Timeout time.Duration
}

// Request describes one document to process. Exactly one of GCSURI and
// Content must be set.
type Request struct {
	GCSURI                 string
	Content                []byte
	MimeType               string
	ProcessorID            string
	EnableNativePDFParsing bool
}

// Processor sends documents to Document AI.
type Processor interface {
	Process(ctx context.Context, req Request) (*documentaipb.Document, error)
	Close() error
}

// Client implements Processor with the Document AI gRPC client.
type Client struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// NewClient creates a Document AI client for cfg. Credential options are
// supplied by the caller.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	const op = "NewClient"

	if cfg.ProjectID == "" {
		return nil, WrapProcessingError(op, ErrInvalidConfiguration, "project ID is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapProcessingError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return &Client{
		client: client,
		config: cfg,
		log:    logger.WithComponent("docai"),
	}, nil
}

// ProcessorName builds the resource name for processorID, or for the
// configured processor when processorID is empty.
func (c *Client) ProcessorName(processorID string) string {
	return processorName(c.config, processorID)
}

func processorName(cfg Config, processorID string) string {
	if processorID == "" {
		processorID = cfg.ProcessorID
	}
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, processorID)
	if cfg.ProcessorVersion != "" && processorID == cfg.ProcessorID {
		name += "/processorVersions/" + cfg.ProcessorVersion
	}
	return name
}

// Process runs one document through Document AI.
func (c *Client) Process(ctx context.Context, req Request) (*documentaipb.Document, error) {
	const op = "Process"

	pbReq, err := buildRequest(c.config, req)
	if err != nil {
		return nil, WrapProcessingError(op, err, "invalid request")
	}

	processCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	c.log.Info().
		Str("processor", pbReq.Name).
		Str("gcs_uri", req.GCSURI).
		Int("inline_bytes", len(req.Content)).
		Msg("Sending document to Document AI")

	resp, err := c.client.ProcessDocument(processCtx, pbReq)
	if err != nil {
		return nil, classifyError(op, pbReq.Name, err)
	}
	if resp.GetDocument() == nil {
		return nil, WrapProcessingError(op, ErrEmptyResponse, pbReq.Name)
	}

	c.log.Info().
		Int("pages", len(resp.Document.Pages)).
		Int("entities", len(resp.Document.Entities)).
		Int("text_length", len(resp.Document.Text)).
		Dur("duration", time.Since(start)).
		Msg("Document AI processing completed")

	return resp.Document, nil
}

func buildRequest(cfg Config, req Request) (*documentaipb.ProcessRequest, error) {
	mime := req.MimeType
	if mime == "" {
		mime = MimePDF
	}

	pbReq := &documentaipb.ProcessRequest{
		Name:            processorName(cfg, req.ProcessorID),
		SkipHumanReview: true,
		ProcessOptions: &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				EnableNativePdfParsing: req.EnableNativePDFParsing,
			},
		},
	}

	switch {
	case req.GCSURI != "" && len(req.Content) > 0:
		return nil, fmt.Errorf("%w: both GCS URI and inline content set", ErrInvalidDocument)
	case req.GCSURI != "":
		if !strings.HasPrefix(req.GCSURI, "gs://") {
			return nil, fmt.Errorf("%w: %q is not a gs:// URI", ErrInvalidDocument, req.GCSURI)
		}
		pbReq.Source = &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{GcsUri: req.GCSURI, MimeType: mime},
		}
	case len(req.Content) > 0:
		if len(req.Content) > MaxInlineSizeBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrDocumentTooLarge, len(req.Content))
		}
		pbReq.Source = &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: req.Content, MimeType: mime},
		}
	default:
		return nil, fmt.Errorf("%w: no document source", ErrInvalidDocument)
	}

	return pbReq, nil
}

// classifyError maps API error strings onto the package sentinels.
func classifyError(op, name string, err error) error {
	errStr := err.Error()

	var wrapped error
	switch {
	case strings.Contains(errStr, "PermissionDenied") || strings.Contains(errStr, "PERMISSION_DENIED"):
		wrapped = NewProcessingError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "ResourceExhausted") || strings.Contains(errStr, "QUOTA_EXCEEDED"):
		wrapped = NewProcessingError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "NOT_FOUND"):
		wrapped = NewProcessingError(op, ErrProcessorNotFound, name)
	case strings.Contains(errStr, "InvalidArgument") || strings.Contains(errStr, "INVALID_ARGUMENT"):
		wrapped = NewProcessingError(op, ErrInvalidDocument, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		wrapped = NewProcessingError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		wrapped = NewProcessingError(op, ErrContextCanceled, "processing was canceled")
	default:
		wrapped = NewProcessingError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
	wrapped.(*ProcessingError).ProcessorName = name
	return wrapped
}

// Close closes the underlying Document AI client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
