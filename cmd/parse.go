package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docparse/internal/clients"
	"docparse/internal/docai"
	"docparse/internal/logger"
	"docparse/internal/parser"
	"docparse/internal/pipeline"
	"docparse/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [gs://uri|pdf-file]",
	Short: "Parse a document with Document AI into structured data",
	Long: `Send a document through Document AI and the local parser.

The result is a ParseResponse envelope: named entities, key-value pairs,
clauses and cross references with text spans, plus the needs_review flag.
Local PDFs are staged to GCS_STAGING_BUCKET first.

With --from-json the Document AI call is skipped and an exported Document
JSON file is parsed offline.`,
	Example: `  # Parse a staged document
  docparse parse gs://my-bucket/policies/policy.pdf

  # Parse a local file with a stricter threshold
  docparse parse policy.pdf --threshold 0.85 -o parsed.json

  # Parse a previously exported Document AI response without cloud access
  docparse parse --from-json response.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		fromJSON, _ := cmd.Flags().GetString("from-json")
		if fromJSON != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Float64("threshold", models.DefaultConfidenceThreshold, "Minimum confidence for entities and key-value pairs")
	parseCmd.Flags().String("processor", "", "Document AI processor ID (default: DOCUMENT_AI_PROCESSOR_ID)")
	parseCmd.Flags().Bool("native-pdf", false, "Enable native PDF parsing")
	parseCmd.Flags().Bool("raw", false, "Include the raw Document AI response")
	parseCmd.Flags().String("from-json", "", "Parse an exported Document AI JSON file offline")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	processorID, _ := cmd.Flags().GetString("processor")
	nativePDF, _ := cmd.Flags().GetBool("native-pdf")
	raw, _ := cmd.Flags().GetBool("raw")
	fromJSON, _ := cmd.Flags().GetString("from-json")

	threshold, err := thresholdFlag(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	if fromJSON != "" {
		reg, err := openRegistry(ctx, clients.Offline())
		if err != nil {
			return err
		}
		defer reg.Close()

		document, err := docai.LoadDocumentFile(fromJSON)
		if err != nil {
			return err
		}

		offlineThreshold := reg.Config.ConfidenceThreshold
		if threshold != nil {
			offlineThreshold = *threshold
		}

		documentID := uuid.NewString()
		doc, err := reg.Parser.Parse(ctx, parser.Input{
			Document: document,
			Metadata: models.DocumentMetadata{
				DocumentID:          documentID,
				OriginalFilename:    filepath.Base(fromJSON),
				ProcessorID:         strings.TrimSpace(processorID),
				ConfidenceThreshold: offlineThreshold,
				CustomMetadata:      map[string]interface{}{"source": "json_export"},
			},
			IncludeRawResponse: raw,
			Artifacts:          reg.Artifacts.Sub(documentID),
		})
		if err != nil {
			return err
		}

		log.Info().
			Str("document_id", documentID).
			Int("entities", len(doc.NamedEntities)).
			Int("clauses", len(doc.Clauses)).
			Bool("needs_review", doc.NeedsReview).
			Msg("Document parsed offline")
		return writeJSON(cmd, doc, log)
	}

	reg, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	svc := pipeline.New(reg)
	start := time.Now()
	resp := svc.Parse(ctx, models.ParseRequest{
		GCSURI:                 args[0],
		ProcessorID:            processorID,
		ConfidenceThreshold:    threshold,
		EnableNativePDFParsing: nativePDF,
		IncludeRawResponse:     raw,
	})

	log.Info().
		Bool("success", resp.Success).
		Dur("duration", time.Since(start)).
		Msg("Parse request finished")

	if err := writeJSON(cmd, resp, log); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("parsing failed: %s", resp.ErrorMessage)
	}
	return nil
}
