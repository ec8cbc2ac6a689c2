// Package segment reconstructs sentence and paragraph boundaries from
// rule-cleaned text. Language detection picks the sentence-boundary capability;
// each paragraph is segmented independently and stitched back in order.
package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpusforge/docrefine/internal/document"
	"github.com/corpusforge/docrefine/internal/observability"
)

// SegmentationError wraps a sentence-capability failure. The stage fails fast
// on it; retrying is the orchestrator's job.
type SegmentationError struct {
	Paragraph int
	Err       error
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segment paragraph %d: %v", e.Paragraph, e.Err)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// Segmenter is the sentence/paragraph reconstruction stage.
type Segmenter struct {
	splitter SentenceSplitter
	logger   *observability.Logger
}

// New creates a Segmenter using the given sentence-boundary capability.
func New(splitter SentenceSplitter, logger *observability.Logger) *Segmenter {
	return &Segmenter{splitter: splitter, logger: logger}
}

// Segment rebuilds text as sentence-joined paragraphs separated by blank
// lines. No source text is lost or duplicated: every paragraph reappears in
// order, with its sentences rejoined by single spaces. There is no silent
// fallback to unsegmented text; a capability failure fails the stage.
func (s *Segmenter) Segment(ctx context.Context, text string, lang document.Language) (string, error) {
	paragraphs := document.SplitParagraphs(text)
	rebuilt := make([]string, 0, len(paragraphs))

	for i, para := range paragraphs {
		sents, err := s.splitter.Split(ctx, para, lang)
		if err != nil {
			return "", &SegmentationError{Paragraph: i, Err: err}
		}
		if len(sents) == 0 {
			// A paragraph the capability found no boundaries in is still
			// content; keep it whole.
			rebuilt = append(rebuilt, para)
			continue
		}
		for j, sent := range sents {
			sents[j] = strings.Join(strings.Fields(sent), " ")
		}
		rebuilt = append(rebuilt, strings.Join(sents, " "))
	}

	s.logger.Debug().
		Str("language", string(lang)).
		Int("paragraphs", len(rebuilt)).
		Msg("segmented document")

	return document.JoinParagraphs(rebuilt), nil
}
