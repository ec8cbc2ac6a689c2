package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corpusforge/docrefine/internal/ingest"
	"github.com/corpusforge/docrefine/internal/segment"
)

// StageReport summarizes a single-stage invocation.
type StageReport struct {
	Stage     string           `json:"stage"`
	Processed int              `json:"processed"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Documents []DocumentReport `json:"documents"`
}

// RunStage applies one stage to every document in inDir, writing results to
// outDir. This backs the per-stage CLI subcommands, which let a stage be
// re-run in isolation against an earlier stage's output.
func (p *Pipeline) RunStage(ctx context.Context, stage, inDir, outDir string) (*StageReport, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	if stage == StageIngest {
		return p.runIngestStage(ctx, inDir, outDir)
	}

	transform, err := p.transformFor(stage)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	report := &StageReport{Stage: stage}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".txt")
		outPath := filepath.Join(outDir, entry.Name())

		if p.opts.SkipExisting && exists(outPath) {
			report.Skipped++
			report.Documents = append(report.Documents,
				DocumentReport{Name: stem, Status: StatusSkipped, Stage: stage})
			continue
		}

		data, err := os.ReadFile(filepath.Join(inDir, entry.Name()))
		if err != nil {
			report.Failed++
			report.Documents = append(report.Documents, failedReport(stem, "", stage, err))
			continue
		}

		result, err := transform(ctx, string(data))
		if err != nil {
			p.logger.Error().Err(err).Str("document", stem).Str("stage", stage).Msg("stage failed")
			report.Failed++
			report.Documents = append(report.Documents, failedReport(stem, "", stage, err))
			continue
		}

		if err := writeArtifact(outPath, result); err != nil {
			report.Failed++
			report.Documents = append(report.Documents, failedReport(stem, "", stage, err))
			continue
		}
		report.Processed++
		report.Documents = append(report.Documents,
			DocumentReport{Name: stem, Status: StatusCompleted, Stage: stage})
	}
	return report, nil
}

// transformFor maps a stage name to its text transformation.
func (p *Pipeline) transformFor(stage string) (func(context.Context, string) (string, error), error) {
	switch stage {
	case StageClean:
		return func(_ context.Context, text string) (string, error) {
			return p.stages.Cleaner.Clean(text)
		}, nil
	case StageSegment:
		return func(ctx context.Context, text string) (string, error) {
			return p.stages.Segmenter.Segment(ctx, text, segment.DetectLanguage(text))
		}, nil
	case StagePrune:
		return func(ctx context.Context, text string) (string, error) {
			_, pruned, err := p.stages.Pruner.Prune(ctx, text)
			return pruned, err
		}, nil
	case StageRefine:
		return func(ctx context.Context, text string) (string, error) {
			refined, _, err := p.stages.Refiner.Refine(ctx, text)
			return refined, err
		}, nil
	default:
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
}

// runIngestStage extracts raw text from every supported source file in inDir.
func (p *Pipeline) runIngestStage(ctx context.Context, inDir, outDir string) (*StageReport, error) {
	sources, err := ingest.FindDocuments(inDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)

	report := &StageReport{Stage: StageIngest}
	for _, src := range sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stem := stemOf(src)
		outPath := filepath.Join(outDir, stem+".txt")

		if p.opts.SkipExisting && exists(outPath) {
			report.Skipped++
			report.Documents = append(report.Documents,
				DocumentReport{Name: stem, Source: src, Status: StatusSkipped, Stage: StageIngest})
			continue
		}

		text, err := p.stages.Extractor.Extract(src)
		if err != nil {
			report.Failed++
			report.Documents = append(report.Documents, failedReport(stem, src, StageIngest, err))
			continue
		}
		if err := writeArtifact(outPath, text); err != nil {
			report.Failed++
			report.Documents = append(report.Documents, failedReport(stem, src, StageIngest, err))
			continue
		}
		report.Processed++
		report.Documents = append(report.Documents,
			DocumentReport{Name: stem, Source: src, Status: StatusCompleted, Stage: StageIngest})
	}
	return report, nil
}
