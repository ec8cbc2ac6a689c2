package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpusforge/docrefine/cmd/docrefine/ui"
	"github.com/corpusforge/docrefine/internal/ingest"
	"github.com/corpusforge/docrefine/internal/pipeline"
)

var runWorkDir string

var runCmd = &cobra.Command{
	Use:   "run <source-dir>",
	Short: "Run the full refinement pipeline over a directory of documents",
	Long: `Extracts raw text from every supported document under <source-dir> and
takes each one through cleaning, segmentation, boundary pruning, and chunk
refinement. Stage outputs land in numbered directories under the work dir,
together with a report.json for the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorkDir, "out", "o", "", "work directory for stage outputs (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if runWorkDir != "" {
		cfg.Pipeline.WorkDir = runWorkDir
	}

	sourceDir := args[0]
	sources, err := ingest.FindDocuments(sourceDir)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		ui.Warning("No supported documents found in %s", sourceDir)
		return nil
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}

	ui.Section("Document Refinement")
	ui.KeyValue("Source", sourceDir)
	ui.KeyValue("Work dir", cfg.Pipeline.WorkDir)
	ui.KeyValue("Documents", fmt.Sprintf("%d", len(sources)))
	ui.KeyValue("Model", cfg.LLM.Model)

	bar := ui.NewProgressBar(int64(len(sources)), "refining")
	p.OnProgress = func(doc pipeline.DocumentReport) {
		bar.Add(1)
		if ui.Verbose() && doc.Status == pipeline.StatusFailed {
			ui.Error("%s: %s", doc.Name, doc.Error)
		}
	}

	started := time.Now()
	report, err := p.Run(ctx, sourceDir)
	bar.Finish()
	if err != nil {
		return err
	}

	printRunSummary(report, time.Since(started))
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, len(report.Documents))
	}
	return nil
}

func printRunSummary(report *pipeline.RunReport, elapsed time.Duration) {
	ui.Section("Summary")
	ui.KeyValue("Run ID", report.RunID)
	ui.KeyValue("Elapsed", ui.FormatDuration(elapsed))
	ui.KeyValue("Completed", fmt.Sprintf("%d", report.Completed))
	ui.KeyValue("Failed", fmt.Sprintf("%d", report.Failed))
	ui.KeyValue("Skipped", fmt.Sprintf("%d", report.Skipped))

	var rows [][]string
	for _, doc := range report.Documents {
		detail := doc.Language
		if doc.Status == pipeline.StatusFailed {
			detail = doc.Error
		} else if doc.Refine != nil {
			detail = fmt.Sprintf("%s, %d chunks, %d repaired", doc.Language, doc.Refine.Chunks, doc.Refine.Repaired)
		}
		rows = append(rows, []string{doc.Name, doc.Status, detail})
	}
	ui.Table([]string{"Document", "Status", "Detail"}, rows)

	if report.Failed == 0 {
		ui.Success("All documents refined")
	} else {
		ui.Error("%d documents failed", report.Failed)
	}
}
