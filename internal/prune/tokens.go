package prune

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/corpusforge/docrefine/internal/observability"
)

// TokenCounter estimates how many tokens a prompt will occupy in the
// capability's context window.
type TokenCounter interface {
	Count(text string) int
}

// NewCounter returns a BPE-based counter, falling back to a rune estimate when
// the encoding cannot be loaded (for example with no cached BPE data and no
// network).
func NewCounter(logger *observability.Logger) TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn().Err(err).Msg("tokenizer unavailable, estimating tokens from rune count")
		return estimateCounter{}
	}
	return &bpeCounter{enc: enc}
}

type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *bpeCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// estimateCounter approximates tokens at four runes apiece, the usual rule of
// thumb for mixed prose.
type estimateCounter struct{}

func (estimateCounter) Count(text string) int {
	return utf8.RuneCountInString(text)/4 + 1
}
