// Package api exposes the in-process refinement pipeline over HTTP: a posted
// document runs through cleaning, segmentation, pruning, and refinement
// without touching the filesystem.
package api

import (
	"context"
	"fmt"

	"github.com/corpusforge/docrefine/internal/clean"
	"github.com/corpusforge/docrefine/internal/document"
	"github.com/corpusforge/docrefine/internal/observability"
	"github.com/corpusforge/docrefine/internal/prune"
	"github.com/corpusforge/docrefine/internal/refine"
	"github.com/corpusforge/docrefine/internal/segment"
)

// Service runs the refinement stages over in-memory documents.
type Service struct {
	cleaner   *clean.Cleaner
	segmenter *segment.Segmenter
	pruner    *prune.Pruner
	refiner   *refine.Refiner
	logger    *observability.Logger
}

// NewService creates a Service.
func NewService(cleaner *clean.Cleaner, segmenter *segment.Segmenter, pruner *prune.Pruner, refiner *refine.Refiner, logger *observability.Logger) *Service {
	return &Service{
		cleaner:   cleaner,
		segmenter: segmenter,
		pruner:    pruner,
		refiner:   refiner,
		logger:    logger,
	}
}

// Result carries the refined text plus per-stage artifacts.
type Result struct {
	Document *document.Document
	Markers  document.BoundaryMarkers
	Stats    refine.Stats
}

// Stage artifact keys on the result document.
const (
	ArtifactCleaned   = "cleaned"
	ArtifactSegmented = "segmented"
	ArtifactPruned    = "pruned"
	ArtifactRefined   = "refined"
)

// Refine runs one document through the four stages.
func (s *Service) Refine(ctx context.Context, name, text string) (*Result, error) {
	doc := document.New(name, "", text)
	logger := s.logger.WithDocument(name)

	cleaned, err := s.cleaner.Clean(text)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	doc.SetArtifact(ArtifactCleaned, cleaned)

	doc.Language = segment.DetectLanguage(cleaned)
	segmented, err := s.segmenter.Segment(ctx, cleaned, doc.Language)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	doc.SetArtifact(ArtifactSegmented, segmented)

	markers, pruned, err := s.pruner.Prune(ctx, segmented)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	doc.SetArtifact(ArtifactPruned, pruned)

	refined, stats, err := s.refiner.Refine(ctx, pruned)
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}
	doc.SetArtifact(ArtifactRefined, refined)

	logger.Info().
		Str("language", string(doc.Language)).
		Int("chunks", stats.Chunks).
		Int("repaired", stats.Repaired).
		Msg("document refined")

	return &Result{Document: doc, Markers: markers, Stats: stats}, nil
}
