package segment

import (
	"context"
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"

	"github.com/corpusforge/docrefine/internal/document"
)

// SentenceSplitter is the sentence-boundary capability consumed by the
// segmenter. Implementations receive one paragraph-sized unit at a time to
// respect capability input-size limits.
type SentenceSplitter interface {
	Split(ctx context.Context, text string, lang document.Language) ([]string, error)
}

// LocalSplitter segments sentences in-process using Unicode UAX #29 boundary
// rules, which cover both English terminators and CJK full stops.
type LocalSplitter struct{}

// NewLocalSplitter creates a LocalSplitter.
func NewLocalSplitter() *LocalSplitter {
	return &LocalSplitter{}
}

// Split returns the trimmed, non-empty sentences of text.
func (*LocalSplitter) Split(_ context.Context, text string, _ document.Language) ([]string, error) {
	var out []string
	segs := sentences.FromString(text)
	for segs.Next() {
		s := strings.TrimSpace(segs.Value())
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
