package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docparse/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docparse",
	Short: "docparse - legal and insurance document parsing",
	Long: `docparse turns PDF documents into structured, span-anchored data.

Documents go through Google Cloud Vision OCR and Document AI, then a local
parser extracts entities, key-value pairs, clauses and cross references,
flags documents that need manual review and classifies them against a
legal keyword taxonomy. Every run writes its JSON artifacts to ARTIFACTS_DIR.

Parsing, classification and extraction of already exported documents work
without any cloud access.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Int("timeout", 300, "Processing timeout in seconds")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")
}
