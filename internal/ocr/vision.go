package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docparse/internal/logger"
)

const (
	// MaxFileSizeBytes is the maximum inline size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

type annotator interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	Close() error
}

// VisionService implements Service with Cloud Vision document text detection.
type VisionService struct {
	client        annotator
	languageHints []string
	log           zerolog.Logger
}

// NewVisionService creates a Vision client. Credentials come from opts, see
// clients.CredentialOptions.
func NewVisionService(ctx context.Context, languageHints []string, opts ...option.ClientOption) (*VisionService, error) {
	const op = "NewVisionService"

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}
	return newVisionService(client, languageHints), nil
}

func newVisionService(client annotator, languageHints []string) *VisionService {
	if len(languageHints) == 0 {
		languageHints = []string{"en"}
	}
	return &VisionService{
		client:        client,
		languageHints: languageHints,
		log:           logger.WithComponent("ocr"),
	}
}

// Recognize runs document text detection over every page of src.
func (v *VisionService) Recognize(ctx context.Context, src Source) (*Result, error) {
	const op = "Recognize"
	start := time.Now()

	req, err := v.buildRequest(src)
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	v.log.Info().
		Str("gcs_uri", src.GCSURI).
		Int("bytes", len(src.Content)).
		Msg("Running Vision document text detection")

	resp, err := v.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ctx.Err(), "Vision API call interrupted")
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.GetResponses()) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.GetResponses()[0]
	if msg := fileResp.GetError().GetMessage(); msg != "" {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", msg))
	}

	result, err := assemble(fileResp)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(start)

	v.log.Info().
		Int("pages", result.PageCount).
		Int("blocks", len(result.Blocks)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("OCR completed")

	return result, nil
}

func (v *VisionService) buildRequest(src Source) (*visionpb.BatchAnnotateFilesRequest, error) {
	input := &visionpb.InputConfig{MimeType: "application/pdf"}
	switch {
	case src.GCSURI != "":
		if !strings.HasPrefix(src.GCSURI, "gs://") {
			return nil, fmt.Errorf("%w: %q is not a gs:// URI", ErrNoSource, src.GCSURI)
		}
		input.GcsSource = &visionpb.GcsSource{Uri: src.GCSURI}
	case len(src.Content) > 0:
		if len(src.Content) > MaxFileSizeBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrPDFTooLarge, len(src.Content))
		}
		if len(src.Content) < 4 || string(src.Content[:4]) != "%PDF" {
			return nil, ErrInvalidPDF
		}
		input.Content = src.Content
	default:
		return nil, ErrNoSource
	}

	return &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig:  input,
				Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.languageHints},
			},
		},
	}, nil
}

// assemble joins page texts and averages word confidences per block.
func assemble(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	pages := fileResp.GetResponses()
	if len(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	if len(pages) > MaxPagesSync {
		return nil, fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(pages))
	}

	var text strings.Builder
	var blocks []Block
	languages := map[string]bool{}
	confidenceSum := 0.0

	for i, page := range pages {
		if msg := page.GetError().GetMessage(); msg != "" {
			return nil, fmt.Errorf("error processing page %d: %s", i+1, msg)
		}
		annotation := page.GetFullTextAnnotation()
		if annotation == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintf(&text, "\n\n--- Page %d ---\n\n", i+1)
		}
		text.WriteString(annotation.GetText())

		for _, p := range annotation.GetPages() {
			addLanguages(languages, p.GetProperty())
			for _, b := range p.GetBlocks() {
				block := readBlock(b, languages)
				block.Page = i + 1
				blocks = append(blocks, block)
				confidenceSum += block.Confidence
			}
		}
	}

	joined := strings.TrimSpace(text.String())
	if joined == "" {
		return nil, ErrEmptyDocument
	}

	result := &Result{
		Text:          joined,
		PageCount:     len(pages),
		Blocks:        blocks,
		LanguageCodes: make([]string, 0, len(languages)),
	}
	if len(blocks) > 0 {
		result.Confidence = confidenceSum / float64(len(blocks))
	}
	for lang := range languages {
		result.LanguageCodes = append(result.LanguageCodes, lang)
	}
	sort.Strings(result.LanguageCodes)
	return result, nil
}

func readBlock(b *visionpb.Block, languages map[string]bool) Block {
	var words []string
	sum := 0.0
	counted := 0
	for _, para := range b.GetParagraphs() {
		for _, w := range para.GetWords() {
			var sb strings.Builder
			for _, s := range w.GetSymbols() {
				sb.WriteString(s.GetText())
			}
			words = append(words, sb.String())
			addLanguages(languages, w.GetProperty())
			if c := w.GetConfidence(); c > 0 {
				sum += float64(c)
				counted++
			}
		}
	}

	block := Block{Text: strings.Join(words, " ")}
	if counted > 0 {
		block.Confidence = sum / float64(counted)
	}
	for _, vtx := range b.GetBoundingBox().GetVertices() {
		block.BoundingBox = append(block.BoundingBox, Vertex{X: vtx.GetX(), Y: vtx.GetY()})
	}
	return block
}

func addLanguages(set map[string]bool, prop *visionpb.TextAnnotation_TextProperty) {
	for _, lang := range prop.GetDetectedLanguages() {
		if code := lang.GetLanguageCode(); code != "" {
			set[code] = true
		}
	}
}

// Close closes the underlying Vision client.
func (v *VisionService) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
