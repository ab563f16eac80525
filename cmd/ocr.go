package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docparse/internal/logger"
	"docparse/internal/ocr"
	"docparse/internal/staging"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [pdf-file|gs://uri]",
	Short: "Extract text from a PDF using Google Cloud Vision OCR",
	Long: `Run Google Cloud Vision document text detection over a PDF.

Local files are sent inline (up to 20MB); gs:// URIs are read by Vision
directly. Synchronous processing covers up to 5 pages.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT - Your Google Cloud project ID
  OCR_LANGUAGE_HINTS - Comma separated language codes (default: en)`,
	Example: `  # Extract text from policy.pdf to stdout
  docparse ocr policy.pdf

  # Include metadata and output as JSON
  docparse ocr policy.pdf --metadata --json -o result.json

  # Read a staged document
  docparse ocr gs://my-bucket/uploads/anonymous/policy.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput is the --json output shape.
type OCROutput struct {
	Text               string    `json:"text"`
	PageCount          int       `json:"page_count,omitempty"`
	Confidence         float64   `json:"confidence,omitempty"`
	LanguageCodes      []string  `json:"language_codes,omitempty"`
	Blocks             int       `json:"block_count"`
	ProcessedAt        time.Time `json:"processed_at,omitempty"`
	ProcessingDuration string    `json:"processing_duration,omitempty"`
	Source             string    `json:"source"`
	FileSize           int64     `json:"file_size,omitempty"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().BoolP("metadata", "m", false, "Include metadata in output")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	includeMetadata, _ := cmd.Flags().GetBool("metadata")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	input := args[0]

	src := ocr.Source{}
	var size int64
	if staging.IsGCSURI(input) {
		src.GCSURI = input
	} else {
		info, err := validatePDFFile(input, log)
		if err != nil {
			return err
		}
		size = info.Size()
		if src.Content, err = os.ReadFile(input); err != nil {
			return fmt.Errorf("failed to read PDF file: %w", err)
		}
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	reg, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	if reg.OCR == nil {
		return fmt.Errorf("Vision OCR is not configured. Set GOOGLE_CLOUD_PROJECT and Google Cloud credentials")
	}

	log.Info().
		Str("input", input).
		Int64("size", size).
		Msg("Starting OCR processing")

	result, err := reg.OCR.Recognize(ctx, src)
	if err != nil {
		return explainCloudError(err, log)
	}

	if jsonOutput {
		return writeJSON(cmd, OCROutput{
			Text:               result.Text,
			PageCount:          result.PageCount,
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			Blocks:             len(result.Blocks),
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
			Source:             filepath.Base(input),
			FileSize:           size,
		}, log)
	}

	var out strings.Builder
	if includeMetadata {
		fmt.Fprintf(&out, "=== OCR Results for %s ===\n", filepath.Base(input))
		if size > 0 {
			fmt.Fprintf(&out, "File size: %d bytes\n", size)
		}
		fmt.Fprintf(&out, "Pages processed: %d\n", result.PageCount)
		if result.Confidence > 0 {
			fmt.Fprintf(&out, "Confidence: %.1f%%\n", result.Confidence*100)
		}
		if len(result.LanguageCodes) > 0 {
			fmt.Fprintf(&out, "Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
		}
		fmt.Fprintf(&out, "Processing time: %v\n", result.ProcessingDuration)
		out.WriteString("\n=== Extracted Text ===\n\n")
	}
	out.WriteString(result.Text)
	return writeOutput(cmd, []byte(out.String()), log)
}

// validatePDFFile checks that pdfPath is a readable, non-empty regular file
// within the inline size limit.
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}
	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}
	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", pdfPath).
			Int64("size", fileInfo.Size()).
			Msg("PDF file exceeds maximum size limit")
		return nil, fmt.Errorf("PDF file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}
	return fileInfo, nil
}
