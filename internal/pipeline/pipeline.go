// Package pipeline orchestrates the refinement stages over a directory of
// documents. Each document moves through the stages strictly in order;
// documents are processed in parallel with a bounded worker pool, and one
// document's failure never affects its siblings. The filesystem is the
// boundary between stages: every stage reads its input directory and writes
// one text artifact per document.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/corpusforge/docrefine/internal/clean"
	"github.com/corpusforge/docrefine/internal/ingest"
	"github.com/corpusforge/docrefine/internal/observability"
	"github.com/corpusforge/docrefine/internal/prune"
	"github.com/corpusforge/docrefine/internal/refine"
	"github.com/corpusforge/docrefine/internal/segment"
)

// Stage directory names, in processing order.
const (
	DirRaw       = "01_raw"
	DirCleaned   = "02_cleaned"
	DirSegmented = "03_segmented"
	DirPruned    = "04_pruned"
	DirRefined   = "05_refined"
)

// Stage names as used in reports, errors, and the CLI.
const (
	StageIngest  = "ingest"
	StageClean   = "clean"
	StageSegment = "segment"
	StagePrune   = "prune"
	StageRefine  = "refine"
)

// StageError identifies the stage and document a failure belongs to.
type StageError struct {
	Stage    string
	Document string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: document %s: %v", e.Stage, e.Document, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stages bundles the five stage implementations.
type Stages struct {
	Extractor *ingest.Extractor
	Cleaner   *clean.Cleaner
	Segmenter *segment.Segmenter
	Pruner    *prune.Pruner
	Refiner   *refine.Refiner
}

// Options holds run-level settings.
type Options struct {
	WorkDir                string
	MaxConcurrentDocuments int
	SkipExisting           bool
}

// Pipeline runs documents through the refinement stages.
type Pipeline struct {
	stages Stages
	opts   Options
	logger *observability.Logger

	// OnProgress, when set, is called after each document finishes during a
	// full run. It may be called from multiple goroutines.
	OnProgress func(doc DocumentReport)
}

// New creates a Pipeline.
func New(stages Stages, opts Options, logger *observability.Logger) *Pipeline {
	if opts.MaxConcurrentDocuments <= 0 {
		opts.MaxConcurrentDocuments = 2
	}
	return &Pipeline{stages: stages, opts: opts, logger: logger}
}

// Run ingests every supported document under sourceDir and takes each one
// through cleaning, segmentation, pruning, and refinement. The returned
// report lists every document's outcome; Run itself fails only on setup
// problems or context cancellation.
func (p *Pipeline) Run(ctx context.Context, sourceDir string) (*RunReport, error) {
	report := newRunReport(sourceDir, p.opts.WorkDir)
	logger := p.logger.WithRun(report.RunID)
	logger.Info().Str("source_dir", sourceDir).Msg("starting run")

	for _, dir := range []string{DirRaw, DirCleaned, DirSegmented, DirPruned, DirRefined} {
		if err := os.MkdirAll(filepath.Join(p.opts.WorkDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create stage directory: %w", err)
		}
	}

	stems, ingestReports, err := p.ingestAll(ctx, sourceDir)
	if err != nil {
		return nil, err
	}
	report.add(ingestReports...)

	docReports := make([]DocumentReport, len(stems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrentDocuments)
	for i, stem := range stems {
		i, stem := i, stem
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			docReports[i] = p.processDocument(gctx, stem)
			if p.OnProgress != nil {
				p.OnProgress(docReports[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.add(docReports...)

	report.finish()
	if err := report.write(filepath.Join(p.opts.WorkDir, "report.json")); err != nil {
		logger.Warn().Err(err).Msg("could not write run report")
	}

	logger.Info().
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("run finished")
	return report, nil
}

// ingestAll extracts raw text for every supported source document. It
// returns the stems to process further plus a report entry for each source
// file that failed or was skipped at ingest.
func (p *Pipeline) ingestAll(ctx context.Context, sourceDir string) ([]string, []DocumentReport, error) {
	sources, err := ingest.FindDocuments(sourceDir)
	if err != nil {
		return nil, nil, err
	}

	var (
		stems   []string
		reports []DocumentReport
		seen    = map[string]string{} // stem -> source path
	)
	for _, src := range sources {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		stem := stemOf(src)
		if prev, dup := seen[stem]; dup {
			p.logger.Warn().
				Str("source", src).
				Str("conflicts_with", prev).
				Msg("duplicate document stem, skipping")
			reports = append(reports, DocumentReport{
				Name: stem, Source: src, Status: StatusSkipped,
				Stage: StageIngest, Error: "duplicate document stem",
			})
			continue
		}
		seen[stem] = src

		rawPath := p.artifactPath(DirRaw, stem)
		if p.opts.SkipExisting && exists(rawPath) {
			p.logger.Debug().Str("document", stem).Msg("raw text already extracted")
			stems = append(stems, stem)
			continue
		}

		text, err := p.stages.Extractor.Extract(src)
		if err != nil {
			p.logger.Error().Err(err).Str("source", src).Msg("extraction failed")
			reports = append(reports, failedReport(stem, src, StageIngest, err))
			continue
		}
		if err := writeArtifact(rawPath, text); err != nil {
			return nil, nil, err
		}
		stems = append(stems, stem)
	}
	return stems, reports, nil
}

// processDocument runs one document through the four refinement stages.
func (p *Pipeline) processDocument(ctx context.Context, stem string) DocumentReport {
	logger := p.logger.WithDocument(stem)

	refinedPath := p.artifactPath(DirRefined, stem)
	if p.opts.SkipExisting && exists(refinedPath) {
		logger.Info().Msg("refined output already exists, skipping")
		return DocumentReport{Name: stem, Status: StatusSkipped}
	}

	raw, err := os.ReadFile(p.artifactPath(DirRaw, stem))
	if err != nil {
		return failedReport(stem, "", StageClean, err)
	}

	cleaned, err := p.stages.Cleaner.Clean(string(raw))
	if err != nil {
		return failedReport(stem, "", StageClean, err)
	}
	if err := writeArtifact(p.artifactPath(DirCleaned, stem), cleaned); err != nil {
		return failedReport(stem, "", StageClean, err)
	}

	lang := segment.DetectLanguage(cleaned)
	logger.Debug().Str("language", string(lang)).Msg("language detected")

	segmented, err := p.stages.Segmenter.Segment(ctx, cleaned, lang)
	if err != nil {
		return failedReport(stem, "", StageSegment, err)
	}
	if err := writeArtifact(p.artifactPath(DirSegmented, stem), segmented); err != nil {
		return failedReport(stem, "", StageSegment, err)
	}

	markers, pruned, err := p.stages.Pruner.Prune(ctx, segmented)
	if err != nil {
		return failedReport(stem, "", StagePrune, err)
	}
	if err := writeArtifact(p.artifactPath(DirPruned, stem), pruned); err != nil {
		return failedReport(stem, "", StagePrune, err)
	}

	refined, stats, err := p.stages.Refiner.Refine(ctx, pruned)
	if err != nil {
		return failedReport(stem, "", StageRefine, err)
	}
	if err := writeArtifact(refinedPath, refined); err != nil {
		return failedReport(stem, "", StageRefine, err)
	}

	logger.Info().
		Int("chunks", stats.Chunks).
		Int("repaired", stats.Repaired).
		Msg("document refined")
	return DocumentReport{
		Name:     stem,
		Status:   StatusCompleted,
		Language: string(lang),
		Trimmed:  markers.Trimmed(),
		Refine:   &stats,
	}
}

func (p *Pipeline) artifactPath(stageDir, stem string) string {
	return filepath.Join(p.opts.WorkDir, stageDir, stem+".txt")
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeArtifact(path, text string) error {
	if err := os.WriteFile(path, []byte(text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func failedReport(stem, source, stage string, err error) DocumentReport {
	return DocumentReport{
		Name:   stem,
		Source: source,
		Status: StatusFailed,
		Stage:  stage,
		Error:  (&StageError{Stage: stage, Document: stem, Err: err}).Error(),
	}
}
