package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"docparse/internal/classifier"
	"docparse/internal/clients"
	"docparse/internal/kag"
	"docparse/internal/logger"
	"docparse/internal/textnorm"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file|-]",
	Short: "Classify document text against the legal keyword taxonomy",
	Long: `Score text against the legal keyword taxonomy and print the verdict.

The input can be plain text, a PDF with a text layer, or a
parsed_document.json written by the parse command. Use - for stdin.

With --kag the verdict is also turned into a kag_input.json handoff file
below ARTIFACTS_DIR. No cloud access is needed.`,
	Example: `  # Classify extracted text
  docparse classify contract.txt

  # Classify a parsed document with a custom taxonomy
  docparse classify parsed_document.json --taxonomy my-taxonomy.yaml

  # Write the KAG handoff file as well
  docparse classify contract.txt --kag --session alice`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("taxonomy", "", "Taxonomy YAML file (default: built-in taxonomy)")
	classifyCmd.Flags().Bool("debug", false, "Log per-category scores")
	classifyCmd.Flags().Bool("kag", false, "Write kag_input.json for the verdict")
	classifyCmd.Flags().String("session", "anonymous", "User session ID recorded in the KAG handoff")
}

func runClassify(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("classify")

	taxonomyPath, _ := cmd.Flags().GetString("taxonomy")
	debug, _ := cmd.Flags().GetBool("debug")
	withKAG, _ := cmd.Flags().GetBool("kag")
	session, _ := cmd.Flags().GetString("session")

	text, err := readText(args[0])
	if err != nil {
		return err
	}
	if ok, issues := textnorm.ValidateEncoding(text); !ok {
		log.Warn().Strs("issues", issues).Msg("Input text has encoding issues")
	}

	tax, err := classifier.LoadTaxonomy(taxonomyPath)
	if err != nil {
		return err
	}
	c := classifier.New(tax, classifier.WithDebug(debug))

	meta := map[string]interface{}{"source_file": filepath.Base(args[0])}
	verdict := c.Classify(text, meta)

	log.Info().
		Str("label", verdict.Label).
		Float64("score", verdict.Score).
		Str("confidence", verdict.Confidence).
		Int("matches", verdict.TotalMatches).
		Msg("Classification completed")

	if !withKAG {
		return writeJSON(cmd, verdict, log)
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	reg, err := openRegistry(ctx, clients.Offline())
	if err != nil {
		return err
	}
	defer reg.Close()

	pipelineID := uuid.NewString()
	out := reg.KAG.Process(ctx, kag.Input{
		Text:          text,
		Verdict:       verdict,
		Metadata:      meta,
		PipelineID:    pipelineID,
		UserSessionID: session,
		Store:         reg.Artifacts.Sub(pipelineID),
	})
	if !out.Success {
		return fmt.Errorf("KAG handoff failed: %v", out.Errors)
	}

	return writeJSON(cmd, map[string]interface{}{
		"classification": verdict,
		"kag":            out,
	}, log)
}
