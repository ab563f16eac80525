package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"docparse/internal/clients"
	"docparse/internal/config"
	"docparse/internal/docai"
	"docparse/internal/ocr"
	"docparse/internal/pdftext"
)

// commandContext returns a context bounded by --timeout and canceled on
// SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	log.Debug().Int("timeout_secs", timeoutSecs).Msg("Command context created")

	return ctx, func() {
		stop()
		cancel()
	}
}

// openRegistry loads the configuration and builds the shared clients.
func openRegistry(ctx context.Context, opts ...clients.Option) (*clients.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return clients.New(ctx, cfg, opts...)
}

// writeOutput writes data to the --output file, or to stdout.
func writeOutput(cmd *cobra.Command, data []byte, log zerolog.Logger) error {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Println()
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("output_file", outputPath).Int("bytes", len(data)).Msg("Results written to file")
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}, log zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(cmd, data, log)
}

// readText loads the text of path: the embedded text layer of a PDF, the
// full_text of a parsed_document.json, or the file as is. "-" reads stdin.
func readText(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		res, err := pdftext.Extract(data)
		if err != nil {
			return "", fmt.Errorf("failed to read PDF text layer of %s: %w", path, err)
		}
		return res.Text, nil
	case ".json":
		if text := gjson.GetBytes(data, "full_text"); text.Exists() {
			return text.String(), nil
		}
		if text := gjson.GetBytes(data, "document.full_text"); text.Exists() {
			return text.String(), nil
		}
		return "", fmt.Errorf("%s has no full_text field", path)
	}
	return string(data), nil
}

// explainCloudError turns cloud failures into actionable messages.
func explainCloudError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Processing failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, ocr.ErrPDFTooLarge), errors.Is(err, docai.ErrDocumentTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB inline). Set GCS_STAGING_BUCKET to process larger files")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages for synchronous OCR (maximum %d pages)", ocr.MaxPagesSync)
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found in the document. The PDF may contain only images or be corrupted")
	case errors.Is(err, ocr.ErrInvalidPDF), errors.Is(err, docai.ErrInvalidDocument):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, docai.ErrInvalidCredentials),
		strings.Contains(errStr, "Unauthenticated"),
		strings.Contains(errStr, "invalid_grant"),
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Set one of:\n\n" +
			"1. GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n" +
			"2. GOOGLE_CREDENTIALS='{\"type\":\"service_account\",...}'\n" +
			"3. Application Default Credentials: gcloud auth application-default login\n\n" +
			"Original error: %v", err)
	case errors.Is(err, docai.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Check DOCUMENT_AI_PROCESSOR_ID and GOOGLE_CLOUD_LOCATION: %w", err)
	case errors.Is(err, docai.ErrQuotaExceeded):
		return fmt.Errorf("Google Cloud quota exceeded. Check your project quotas in the Google Cloud Console")
	}
	return err
}

// thresholdFlag returns --threshold when it was set on the command line, or
// nil so the configured CONFIDENCE_THRESHOLD applies. An explicit 0 is kept.
func thresholdFlag(cmd *cobra.Command) (*float64, error) {
	if !cmd.Flags().Changed("threshold") {
		return nil, nil
	}
	v, err := cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return nil, err
	}
	if v < 0 || v > 1 {
		return nil, fmt.Errorf("--threshold must be between 0 and 1, got %v", v)
	}
	return &v, nil
}
