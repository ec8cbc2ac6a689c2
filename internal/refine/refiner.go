// Package refine implements the classify-then-repair stage: the pruned text is
// split into overlapping, paragraph-aligned chunks, every chunk is scored by
// the generative capability, and only low-scoring chunks receive the more
// expensive repair pass. Reassembly deduplicates overlaps deterministically.
package refine

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/corpusforge/docrefine/internal/document"
	"github.com/corpusforge/docrefine/internal/llm"
	"github.com/corpusforge/docrefine/internal/observability"
)

// ScoreParseError records a scoring response that carried no usable score.
// It is not fatal: the chunk is treated as needing repair.
type ScoreParseError struct {
	Raw string
}

func (e *ScoreParseError) Error() string {
	return fmt.Sprintf("unparseable quality score in response: %q", truncate(e.Raw, 120))
}

// Config holds refiner settings.
type Config struct {
	ChunkSize      int // paragraphs per chunk
	ChunkOverlap   int // paragraphs shared by neighbors, 0 < overlap < size
	ScoreThreshold int // scores below this trigger repair
	MaxConcurrent  int // concurrent capability requests per document
	// RescoreAfterRepair re-verifies a repaired chunk and reverts it when the
	// repair scored worse than the original.
	RescoreAfterRepair bool
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 5
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 1
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = 7
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
}

// Stats summarizes one document's refinement.
type Stats struct {
	Chunks    int `json:"chunks"`
	Flagged   int `json:"flagged"`
	Repaired  int `json:"repaired"`
	Rejected  int `json:"rejected"`  // repairs discarded for altering paragraph structure
	Reverted  int `json:"reverted"`  // repairs reverted after re-scoring worse
	Fallbacks int `json:"fallbacks"` // chunks kept as-is after capability failures
}

// Refiner is the chunk-level classify-then-repair stage.
type Refiner struct {
	gen    llm.Generator
	cfg    Config
	logger *observability.Logger
}

// New creates a Refiner.
func New(gen llm.Generator, cfg Config, logger *observability.Logger) *Refiner {
	cfg.applyDefaults()
	return &Refiner{gen: gen, cfg: cfg, logger: logger}
}

// Refine scores every chunk of the pruned text concurrently, repairs the
// low-scoring ones, and reassembles the document. The output carries the same
// paragraphs in the same order, with no paragraph added or removed; a chunk
// whose capability calls ultimately fail falls back to its pre-refinement
// text rather than dropping content.
func (r *Refiner) Refine(ctx context.Context, text string) (string, Stats, error) {
	var stats Stats

	paragraphs := document.SplitParagraphs(text)
	if len(paragraphs) == 0 {
		return "", stats, nil
	}

	chunks := BuildChunks(paragraphs, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
	stats.Chunks = len(chunks)

	// One outcome slot per chunk keeps the fan-out race-free; tallying
	// happens after the join point, which reassembly requires anyway.
	outcomes := make([]chunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)
	for i := range chunks {
		chunk := &chunks[i]
		outcome := &outcomes[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				// The document was aborted; stop issuing capability requests.
				return gctx.Err()
			}
			*outcome = r.processChunk(gctx, chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", stats, err
	}

	for _, outcome := range outcomes {
		switch outcome {
		case outcomeClean:
		case outcomeRepaired:
			stats.Flagged++
			stats.Repaired++
		case outcomeRejected:
			stats.Flagged++
			stats.Rejected++
		case outcomeReverted:
			stats.Flagged++
			stats.Reverted++
		case outcomeRepairFallback:
			stats.Flagged++
			stats.Fallbacks++
		case outcomeScoreFallback:
			stats.Fallbacks++
		}
	}

	refined := Reassemble(chunks, len(paragraphs))
	return document.JoinParagraphs(refined), stats, nil
}

type chunkOutcome int

const (
	outcomeClean chunkOutcome = iota
	outcomeRepaired
	outcomeRejected
	outcomeReverted
	outcomeRepairFallback
	outcomeScoreFallback
)

// processChunk scores one chunk and repairs it if flagged.
func (r *Refiner) processChunk(ctx context.Context, chunk *document.Chunk) chunkOutcome {
	logger := r.logger.WithStage("refine")

	verdict, err := r.scoreChunk(ctx, chunk.Text())
	if err != nil {
		// Capability failure: keep the pre-refinement text.
		logger.Warn().Err(err).Int("chunk", chunk.Index).Msg("scoring failed, keeping original chunk")
		return outcomeScoreFallback
	}
	chunk.Verdict = verdict
	if !verdict.NeedsRepair {
		return outcomeClean
	}

	logger.Debug().
		Int("chunk", chunk.Index).
		Int("score", verdict.Score).
		Str("reason", verdict.Reason).
		Msg("chunk flagged for repair")

	repaired, err := r.repairChunk(ctx, chunk.Text(), verdict.Reason)
	if err != nil {
		logger.Warn().Err(err).Int("chunk", chunk.Index).Msg("repair failed, keeping original chunk")
		return outcomeRepairFallback
	}

	repairedParas := document.SplitParagraphs(repaired)
	if len(repairedParas) != chunk.Len() {
		// The capability merged or split paragraphs; accepting it would break
		// the stage contract, so the original text stays.
		logger.Warn().
			Int("chunk", chunk.Index).
			Int("want_paragraphs", chunk.Len()).
			Int("got_paragraphs", len(repairedParas)).
			Msg("repair altered paragraph structure, rejected")
		return outcomeRejected
	}

	if r.cfg.RescoreAfterRepair {
		rescored, err := r.scoreChunk(ctx, repaired)
		if err == nil && rescored.Parsed && rescored.Score < verdict.Score {
			logger.Warn().
				Int("chunk", chunk.Index).
				Int("old_score", verdict.Score).
				Int("new_score", rescored.Score).
				Msg("repair scored worse than original, reverted")
			return outcomeReverted
		}
	}

	chunk.Paragraphs = repairedParas
	chunk.Repaired = true
	return outcomeRepaired
}

type scoreResponse struct {
	Score  *int   `json:"score"`
	Reason string `json:"reason"`
}

// scoreChunk asks the capability for a quality verdict. A malformed response
// is a verdict too: score 1, needs repair. The stage fails toward more
// correction, not less.
func (r *Refiner) scoreChunk(ctx context.Context, text string) (document.QualityVerdict, error) {
	response, err := r.gen.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(scorePrompt, text),
		JSONMode:    true,
		Temperature: 0,
	})
	if err != nil {
		return document.QualityVerdict{}, err
	}

	verdict, perr := parseVerdict(response, r.cfg.ScoreThreshold)
	if perr != nil {
		r.logger.Debug().Err(perr).Msg("treating chunk as needing repair")
	}
	return verdict, nil
}

func parseVerdict(response string, threshold int) (document.QualityVerdict, error) {
	fallback := document.QualityVerdict{
		Score:       1,
		Reason:      "The text could not be assessed and may contain structural errors.",
		NeedsRepair: true,
	}

	raw, err := llm.ExtractObject(response)
	if err != nil {
		return fallback, &ScoreParseError{Raw: response}
	}
	var parsed scoreResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Score == nil {
		return fallback, &ScoreParseError{Raw: response}
	}

	score := *parsed.Score
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	reason := parsed.Reason
	if reason == "" {
		reason = "The text contains structural errors from document conversion."
	}
	return document.QualityVerdict{
		Score:       score,
		Reason:      reason,
		NeedsRepair: score < threshold,
		Parsed:      true,
	}, nil
}

func (r *Refiner) repairChunk(ctx context.Context, text, reason string) (string, error) {
	return r.gen.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(repairPrompt, reason, text),
		Temperature: 0,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
