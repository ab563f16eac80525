package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docparse/internal/logger"
	"docparse/internal/pipeline"
	"docparse/internal/staging"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline [pdf-file|gs://uri]",
	Short: "Run the full processing pipeline on one document",
	Long: `Run upload, OCR, Document AI, parsing, classification and the KAG
handoff for one document.

Every stage writes its JSON artifact below ARTIFACTS_DIR/<pipeline-id>/ and
the final pipeline_result.json summarises the run. OCR and KAG failures are
reported as warnings; the other stages stop the run.`,
	Example: `  # Process a local document
  docparse pipeline policy.pdf --session alice

  # Skip Vision OCR and save the result
  docparse pipeline gs://my-bucket/policy.pdf --skip-ocr -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().String("session", "", "User session ID (default: anonymous)")
	pipelineCmd.Flags().String("processor", "", "Document AI processor ID (default: DOCUMENT_AI_PROCESSOR_ID)")
	pipelineCmd.Flags().Bool("skip-ocr", false, "Skip the Vision OCR stage")
	pipelineCmd.Flags().Float64("threshold", models.DefaultConfidenceThreshold, "Minimum confidence for entities and key-value pairs")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("pipeline")

	session, _ := cmd.Flags().GetString("session")
	processorID, _ := cmd.Flags().GetString("processor")
	skipOCR, _ := cmd.Flags().GetBool("skip-ocr")
	threshold, err := thresholdFlag(cmd)
	if err != nil {
		return err
	}

	req := services.PipelineRequest{
		UserSessionID:       session,
		ProcessorID:         processorID,
		ConfidenceThreshold: threshold,
		SkipOCR:             skipOCR,
	}
	input := args[0]
	if staging.IsGCSURI(input) {
		req.Source = input
		req.Filename = filepath.Base(input)
	} else {
		if _, err := validatePDFFile(input, log); err != nil {
			return err
		}
		content, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read PDF file: %w", err)
		}
		req.Content = content
		req.Filename = filepath.Base(input)
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	reg, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	result := pipeline.New(reg).Run(ctx, req)

	for _, w := range result.Warnings {
		log.Warn().Str("pipeline_id", result.PipelineID).Msg(w)
	}
	log.Info().
		Str("pipeline_id", result.PipelineID).
		Bool("success", result.Success).
		Str("artifacts_dir", result.ArtifactsDir).
		Float64("seconds", result.TotalProcessingTime).
		Msg("Pipeline finished")

	if err := writeJSON(cmd, result, log); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("pipeline %s failed: %s", result.PipelineID, result.Message)
	}
	return nil
}
