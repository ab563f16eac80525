package cmd

import (
	"github.com/spf13/cobra"

	"docparse/internal/fallback"
	"docparse/internal/logger"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract insurance fields with the regex fallback extractor",
	Long: `Run the pattern based extractor over document text and print the fields
it found (policy number, insured name, dates, sums and so on), each with its
normalized value and text offsets.

The input can be plain text, a PDF with a text layer, or a
parsed_document.json. Use - for stdin.`,
	Example: `  docparse extract policy.txt
  pdftotext policy.pdf - | docparse extract -`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	text, err := readText(args[0])
	if err != nil {
		return err
	}

	res := fallback.Run(text)
	log.Info().
		Strs("fields", res.Found()).
		Int("mandatory_found", res.MandatoryFound).
		Int("total_mandatory", res.TotalMandatory).
		Float64("success_rate", res.SuccessRate).
		Msg("Extraction completed")

	return writeJSON(cmd, res, log)
}
