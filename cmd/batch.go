package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docparse/internal/batch"
	"docparse/internal/logger"
	"docparse/internal/pipeline"
	"docparse/pkg/models"
	"docparse/pkg/services"
)

var batchCmd = &cobra.Command{
	Use:   "batch [gs://uri...]",
	Short: "Parse several documents concurrently",
	Long: `Parse a list of documents with Document AI, a few at a time.

Documents are read from the arguments and from --file (one URI per line,
# starts a comment). Transient failures are retried with exponential
backoff. Results keep the input order.`,
	Example: `  # Parse three documents, two at a time
  docparse batch gs://b/a.pdf gs://b/b.pdf gs://b/c.pdf --max-concurrent 2

  # Parse a list of documents and save the batch report
  docparse batch --file uris.txt -o batch.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("file", "f", "", "File with one document URI per line")
	batchCmd.Flags().Int("max-concurrent", batch.DefaultConcurrency, "Documents processed in parallel (max 5)")
	batchCmd.Flags().Int("retries", batch.DefaultAttempts, "Attempts per document (max 3)")
	batchCmd.Flags().Float64("threshold", models.DefaultConfidenceThreshold, "Minimum confidence for entities and key-value pairs")
	batchCmd.Flags().String("processor", "", "Document AI processor ID (default: DOCUMENT_AI_PROCESSOR_ID)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	listFile, _ := cmd.Flags().GetString("file")
	maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
	retries, _ := cmd.Flags().GetInt("retries")
	processorID, _ := cmd.Flags().GetString("processor")
	threshold, err := thresholdFlag(cmd)
	if err != nil {
		return err
	}

	uris := append([]string(nil), args...)
	if listFile != "" {
		listed, err := readURIList(listFile)
		if err != nil {
			return err
		}
		uris = append(uris, listed...)
	}
	if len(uris) == 0 {
		return fmt.Errorf("no documents given. Pass URIs as arguments or use --file")
	}

	reqs := make([]models.ParseRequest, len(uris))
	for i, uri := range uris {
		reqs[i] = models.ParseRequest{
			GCSURI:              uri,
			ProcessorID:         processorID,
			ConfidenceThreshold: threshold,
		}
		if err := reqs[i].Validate(true); err != nil {
			return fmt.Errorf("document %d (%s): %w", i+1, uri, err)
		}
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	reg, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	log.Info().
		Int("documents", len(reqs)).
		Int("max_concurrent", maxConcurrent).
		Int("retries", retries).
		Msg("Starting batch parse")

	resp := pipeline.New(reg).ParseBatch(ctx, reqs, services.BatchOptions{
		MaxConcurrent: maxConcurrent,
		MaxAttempts:   retries,
	})

	log.Info().
		Str("batch_id", resp.BatchID).
		Int("succeeded", resp.Succeeded).
		Int("failed", resp.Failed).
		Float64("seconds", resp.ProcessingTimeSeconds).
		Msg("Batch parse finished")

	if err := writeJSON(cmd, resp, log); err != nil {
		return err
	}
	if resp.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", resp.Failed, len(reqs))
	}
	return nil
}

func readURIList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URI list: %w", err)
	}
	defer f.Close()

	var uris []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URI list: %w", err)
	}
	return uris, nil
}
