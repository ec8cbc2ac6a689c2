package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpusforge/docrefine/cmd/docrefine/ui"
	"github.com/corpusforge/docrefine/internal/pipeline"
)

// Each stage is exposed as its own dir-to-dir subcommand so a single stage
// can be re-run against an earlier stage's output.
func init() {
	for _, sc := range []struct {
		stage   string
		short   string
		spinner bool // stages that call the generative capability get a spinner
	}{
		{pipeline.StageIngest, "Extract raw text from source documents", false},
		{pipeline.StageClean, "Apply rule-based denoising to extracted text", false},
		{pipeline.StageSegment, "Reconstruct sentences and paragraphs", false},
		{pipeline.StagePrune, "Trim front and back matter at model-located boundaries", true},
		{pipeline.StageRefine, "Score chunks and repair the low-scoring ones", true},
	} {
		rootCmd.AddCommand(newStageCommand(sc.stage, sc.short, sc.spinner))
	}
}

func newStageCommand(stage, short string, withSpinner bool) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s <input-dir> <output-dir>", stage),
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			if withSpinner {
				spin := ui.NewSpinner(fmt.Sprintf("running %s stage", stage))
				spin.Start()
				defer spin.Stop()
			}

			report, err := p.RunStage(ctx, stage, args[0], args[1])
			if err != nil {
				return err
			}

			ui.Message("%s: %d processed, %d skipped, %d failed",
				stage, report.Processed, report.Skipped, report.Failed)
			for _, doc := range report.Documents {
				if doc.Status == pipeline.StatusFailed {
					ui.Error("%s: %s", doc.Name, doc.Error)
				}
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d documents failed in stage %s", report.Failed, stage)
			}
			ui.Success("Stage %s complete", stage)
			return nil
		},
	}
}
