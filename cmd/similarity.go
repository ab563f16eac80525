package cmd

import (
	"github.com/spf13/cobra"

	"docparse/internal/logger"
	"docparse/internal/textnorm"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity [file-a] [file-b]",
	Short: "Compare two extracted texts",
	Long: `Score how alike two texts are, for example Vision OCR output against
the Document AI full text. Both inputs are normalized first; the combined
score weighs character, word and length similarity.`,
	Example: `  docparse similarity ocr.txt parsed_document.json`,
	Args:    cobra.ExactArgs(2),
	RunE:    runSimilarity,
}

func init() {
	rootCmd.AddCommand(similarityCmd)
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("similarity")

	a, err := readText(args[0])
	if err != nil {
		return err
	}
	b, err := readText(args[1])
	if err != nil {
		return err
	}

	sim := textnorm.Compare(a, b)
	log.Info().
		Float64("combined", sim.Combined).
		Msg("Texts compared")
	return writeJSON(cmd, sim, log)
}
