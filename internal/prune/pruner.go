// Package prune implements the boundary-pruning stage: the generative
// capability names the document's start-of-body and end-of-references
// headings, and everything outside that span is discarded. Every ambiguity
// fails open: when a heading cannot be matched, that boundary defaults to the
// document's true start or end and no content is lost.
package prune

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/corpusforge/docrefine/internal/document"
	"github.com/corpusforge/docrefine/internal/llm"
	"github.com/corpusforge/docrefine/internal/observability"
)

// Config holds pruner settings.
type Config struct {
	// ContextBudget is the prompt token budget. A document whose full
	// paragraph list fits is sent whole; sampling is only a fallback for
	// oversized documents.
	ContextBudget int
	// SampleSize is how many paragraphs from each end the fallback sample
	// keeps.
	SampleSize int
	// MinParagraphs below which pruning is skipped entirely.
	MinParagraphs int
	// HeadingMaxRunes bounds which paragraphs count as heading-like match
	// candidates.
	HeadingMaxRunes int
}

func (c *Config) applyDefaults() {
	if c.ContextBudget <= 0 {
		c.ContextBudget = 6144
	}
	if c.SampleSize <= 0 {
		c.SampleSize = 20
	}
	if c.MinParagraphs <= 0 {
		c.MinParagraphs = 10
	}
	if c.HeadingMaxRunes <= 0 {
		c.HeadingMaxRunes = 200
	}
}

// Pruner is the boundary-pruning stage.
type Pruner struct {
	gen     llm.Generator
	counter TokenCounter
	cfg     Config
	logger  *observability.Logger
}

// New creates a Pruner. The token counter decides whether the whole document
// fits the capability context.
func New(gen llm.Generator, counter TokenCounter, cfg Config, logger *observability.Logger) *Pruner {
	cfg.applyDefaults()
	if counter == nil {
		counter = NewCounter(logger)
	}
	return &Pruner{gen: gen, counter: counter, cfg: cfg, logger: logger}
}

type boundaryResponse struct {
	StartHeading string `json:"start_heading"`
	EndHeading   string `json:"end_heading"`
}

// Prune asks the capability for the body boundaries and slices the segmented
// text accordingly. The returned markers record which headings were actually
// matched; an empty marker means that side was left untrimmed.
func (p *Pruner) Prune(ctx context.Context, text string) (document.BoundaryMarkers, string, error) {
	paragraphs := document.SplitParagraphs(text)

	if len(paragraphs) < p.cfg.MinParagraphs {
		p.logger.Debug().Int("paragraphs", len(paragraphs)).Msg("document too short, skipping pruning")
		return document.BoundaryMarkers{}, text, nil
	}

	prompt := p.buildPrompt(paragraphs)

	response, err := p.gen.Complete(ctx, llm.Request{Prompt: prompt, JSONMode: true, Temperature: 0})
	if err != nil {
		if ctx.Err() != nil {
			return document.BoundaryMarkers{}, "", ctx.Err()
		}
		// Capability failure is not a reason to lose content.
		p.logger.Warn().Err(err).Msg("boundary analysis failed, keeping full document")
		return document.BoundaryMarkers{}, text, nil
	}

	parsed, ok := parseBoundaries(response)
	if !ok {
		p.logger.Warn().Str("response", truncate(response, 200)).Msg("malformed boundary response, keeping full document")
		return document.BoundaryMarkers{}, text, nil
	}

	markers, body := p.slice(paragraphs, parsed)
	p.logger.Info().
		Str("start_heading", markers.StartHeading).
		Str("end_heading", markers.EndHeading).
		Int("paragraphs_before", len(paragraphs)).
		Int("paragraphs_after", len(document.SplitParagraphs(body))).
		Msg("pruned document boundaries")

	return markers, body, nil
}

// buildPrompt prefers the whole paragraph list; only a document that exceeds
// the context budget falls back to a head/tail sample.
func (p *Pruner) buildPrompt(paragraphs []string) string {
	full := strings.Join(paragraphs, "\n")
	prompt := fmt.Sprintf(boundaryPrompt, full)
	if p.counter.Count(prompt) <= p.cfg.ContextBudget {
		return prompt
	}

	n := p.cfg.SampleSize
	if 2*n >= len(paragraphs) {
		return prompt
	}
	head := strings.Join(paragraphs[:n], "\n")
	tail := strings.Join(paragraphs[len(paragraphs)-n:], "\n")
	sampled := head + "\n\n...[DOCUMENT TRUNCATED]...\n\n" + tail

	p.logger.Debug().
		Int("paragraphs", len(paragraphs)).
		Int("sample_size", n).
		Msg("document exceeds context budget, sampling head and tail")

	return fmt.Sprintf(boundaryPrompt, sampled)
}

func parseBoundaries(response string) (boundaryResponse, bool) {
	raw, err := llm.ExtractObject(response)
	if err != nil {
		return boundaryResponse{}, false
	}
	var parsed boundaryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return boundaryResponse{}, false
	}
	return parsed, true
}

// slice locates the returned headings among heading-like paragraphs and cuts
// the document to the span between them, exclusive of the headings themselves.
// An unmatched or empty heading leaves that side at the document edge.
func (p *Pruner) slice(paragraphs []string, resp boundaryResponse) (document.BoundaryMarkers, string) {
	var markers document.BoundaryMarkers
	lo, hi := 0, len(paragraphs)

	if h := strings.TrimSpace(resp.StartHeading); h != "" {
		if idx := p.findHeading(paragraphs, h, false); idx >= 0 {
			markers.StartHeading = h
			lo = idx + 1
		}
	}
	if h := strings.TrimSpace(resp.EndHeading); h != "" {
		if idx := p.findHeading(paragraphs, h, true); idx >= 0 && idx >= lo {
			markers.EndHeading = h
			hi = idx
		}
	}

	if lo >= hi {
		// Contradictory markers; fail open rather than emit an empty body.
		return document.BoundaryMarkers{}, document.JoinParagraphs(paragraphs)
	}
	return markers, document.JoinParagraphs(paragraphs[lo:hi])
}

// findHeading matches a heading against heading-like paragraphs using
// normalized substring matching. Start headings are searched from the top,
// end headings from the bottom.
func (p *Pruner) findHeading(paragraphs []string, heading string, fromEnd bool) int {
	needle := normalizeHeading(heading)
	if needle == "" {
		return -1
	}
	if fromEnd {
		for i := len(paragraphs) - 1; i >= 0; i-- {
			if p.headingMatches(paragraphs[i], needle) {
				return i
			}
		}
		return -1
	}
	for i, para := range paragraphs {
		if p.headingMatches(para, needle) {
			return i
		}
	}
	return -1
}

func (p *Pruner) headingMatches(paragraph, needle string) bool {
	if utf8.RuneCountInString(paragraph) > p.cfg.HeadingMaxRunes {
		return false
	}
	return strings.Contains(normalizeHeading(paragraph), needle)
}

// normalizeHeading case-folds and collapses whitespace so the match is
// insensitive to the model's incidental formatting.
func normalizeHeading(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

const boundaryPrompt = `You are an expert document analyst. Your task is to identify the start and end of the main narrative content in a document.
Analyze the provided text, which is a list of paragraphs from a document.
Your goal is to find the exact heading or phrase that marks the beginning of the introduction and the exact heading that marks the beginning of the references/bibliography.

Provide your response as a single, valid JSON object with two keys:
- "start_heading": The full, exact text of the heading where the main content begins (e.g., "1 Introduction", "1 引言").
- "end_heading": The full, exact text of the heading where the references or bibliography begins (e.g., "References", "参考文献").

If you cannot find a clear start or end heading, leave the corresponding value as an empty string.

<example>
Text:
...
some preamble...
1 Introduction
This is the first sentence.
...
This is the last sentence.
References
[1] Author, A. (2023).
...

JSON:
{
    "start_heading": "1 Introduction",
    "end_heading": "References"
}
</example>

Now, analyze this document's paragraphs:
<document_paragraphs>
%s
</document_paragraphs>

Provide only the raw JSON object as your response.`
