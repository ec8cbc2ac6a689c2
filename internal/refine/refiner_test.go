package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/docrefine/internal/document"
	"github.com/corpusforge/docrefine/internal/llm"
	"github.com/corpusforge/docrefine/internal/observability"
)

// fakeCapability scripts scoring and repair responses by matching substrings
// of the chunk text.
type fakeCapability struct {
	mu          sync.Mutex
	scoreFor    map[string]string // chunk substring -> raw scoring response
	repairFor   map[string]string // chunk substring -> repaired text
	scoreErr    error
	repairErr   error
	scoreCalls  int
	repairCalls int
}

func (f *fakeCapability) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.Contains(req.Prompt, "<text_to_analyze>") {
		f.scoreCalls++
		if f.scoreErr != nil {
			return "", f.scoreErr
		}
		for needle, response := range f.scoreFor {
			if strings.Contains(req.Prompt, needle) {
				return response, nil
			}
		}
		return `{"score": 9, "reason": "Well structured."}`, nil
	}

	f.repairCalls++
	if f.repairErr != nil {
		return "", f.repairErr
	}
	for needle, repaired := range f.repairFor {
		if strings.Contains(req.Prompt, needle) {
			return repaired, nil
		}
	}
	return "", errors.New("unexpected repair request")
}

func testConfig() Config {
	return Config{ChunkSize: 3, ChunkOverlap: 1, ScoreThreshold: 6, MaxConcurrent: 2}
}

func docText(n int) string {
	paras := make([]string, n)
	for i := range paras {
		paras[i] = fmt.Sprintf("Body paragraph %d stays readable.", i)
	}
	return document.JoinParagraphs(paras)
}

func TestRefine_HighScoringChunksPassThrough(t *testing.T) {
	cap := &fakeCapability{}
	r := New(cap, testConfig(), observability.Nop())

	input := docText(7)
	out, stats, err := r.Refine(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Zero(t, stats.Flagged)
	assert.Zero(t, stats.Repaired)
	assert.Zero(t, cap.repairCalls)
}

func TestRefine_LowScoringChunkIsRepaired(t *testing.T) {
	cap := &fakeCapability{
		scoreFor: map[string]string{
			"Body paragraph 0": `{"score": 2, "reason": "Broken sentence."}`,
		},
		repairFor: map[string]string{
			"Body paragraph 0": "Repaired paragraph 0.\n\nBody paragraph 1 stays readable.\n\nBody paragraph 2 stays readable.",
		},
	}
	r := New(cap, testConfig(), observability.Nop())

	out, stats, err := r.Refine(context.Background(), docText(7))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Flagged)
	assert.Equal(t, 1, stats.Repaired)
	assert.Contains(t, out, "Repaired paragraph 0.")
	assert.NotContains(t, out, "Body paragraph 0 stays readable.")
}

func TestRefine_ThresholdBoundaries(t *testing.T) {
	// Score 2 with threshold 6 must be flagged; score 8 must not.
	v, err := parseVerdict(`{"score": 2, "reason": "bad"}`, 6)
	require.NoError(t, err)
	assert.True(t, v.NeedsRepair)

	v, err = parseVerdict(`{"score": 8, "reason": "good"}`, 6)
	require.NoError(t, err)
	assert.False(t, v.NeedsRepair)

	// A score exactly at the threshold passes.
	v, err = parseVerdict(`{"score": 6, "reason": "ok"}`, 6)
	require.NoError(t, err)
	assert.False(t, v.NeedsRepair)
}

func TestParseVerdict_MalformedResponsesNeedRepair(t *testing.T) {
	for _, response := range []string{
		"I think this text is fine.",
		`{"reason": "missing score"}`,
		`{"score": "seven"}`,
		"",
	} {
		v, err := parseVerdict(response, 6)
		require.Error(t, err, "response %q", response)

		var parseErr *ScoreParseError
		assert.ErrorAs(t, err, &parseErr)
		assert.True(t, v.NeedsRepair, "response %q", response)
		assert.Equal(t, 1, v.Score)
		assert.False(t, v.Parsed)
	}
}

func TestParseVerdict_ClampsScoreRange(t *testing.T) {
	v, err := parseVerdict(`{"score": 42, "reason": "enthusiastic"}`, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, v.Score)

	v, err = parseVerdict(`{"score": -3, "reason": "grim"}`, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Score)
	assert.True(t, v.NeedsRepair)
}

func TestRefine_RepairAlteringParagraphCountIsRejected(t *testing.T) {
	cap := &fakeCapability{
		scoreFor: map[string]string{
			"Body paragraph 0": `{"score": 2, "reason": "Merged paragraphs."}`,
		},
		repairFor: map[string]string{
			// Repair collapses three paragraphs into one.
			"Body paragraph 0": "Everything merged into a single paragraph.",
		},
	}
	r := New(cap, testConfig(), observability.Nop())

	input := docText(7)
	out, stats, err := r.Refine(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, 1, stats.Rejected)
	assert.Zero(t, stats.Repaired)
}

func TestRefine_ScoringFailureFallsBackToOriginal(t *testing.T) {
	cap := &fakeCapability{scoreErr: errors.New("capability down")}
	r := New(cap, testConfig(), observability.Nop())

	input := docText(7)
	out, stats, err := r.Refine(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, stats.Chunks, stats.Fallbacks)
}

func TestRefine_RepairFailureFallsBackToOriginal(t *testing.T) {
	cap := &fakeCapability{
		scoreFor: map[string]string{
			"Body paragraph 0": `{"score": 2, "reason": "Broken."}`,
		},
		repairErr: errors.New("capability down"),
	}
	r := New(cap, testConfig(), observability.Nop())

	input := docText(7)
	out, stats, err := r.Refine(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, 1, stats.Fallbacks)
}

func TestRefine_RescoreRevertsWorseRepairs(t *testing.T) {
	cap := &fakeCapability{
		scoreFor: map[string]string{
			"Body paragraph 0": `{"score": 4, "reason": "Slightly broken."}`,
			"Made it worse":    `{"score": 2, "reason": "Now badly broken."}`,
		},
		repairFor: map[string]string{
			"Body paragraph 0": "Made it worse 0.\n\nBody paragraph 1 stays readable.\n\nBody paragraph 2 stays readable.",
		},
	}
	cfg := testConfig()
	cfg.RescoreAfterRepair = true
	r := New(cap, cfg, observability.Nop())

	input := docText(7)
	out, stats, err := r.Refine(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
	assert.Equal(t, 1, stats.Reverted)
	assert.Zero(t, stats.Repaired)
}

func TestRefine_EmptyInput(t *testing.T) {
	r := New(&fakeCapability{}, testConfig(), observability.Nop())

	out, stats, err := r.Refine(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, stats.Chunks)
}

func TestRefine_ContentPreservation(t *testing.T) {
	cap := &fakeCapability{}
	r := New(cap, Config{ChunkSize: 4, ChunkOverlap: 2, ScoreThreshold: 6, MaxConcurrent: 3}, observability.Nop())

	input := docText(18)
	out, _, err := r.Refine(context.Background(), input)
	require.NoError(t, err)

	want := document.SplitParagraphs(input)
	got := document.SplitParagraphs(out)
	assert.Equal(t, want, got, "every paragraph exactly once, in order")
}

func TestRefine_CancelledContextAbortsDocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(&fakeCapability{}, testConfig(), observability.Nop())
	_, _, err := r.Refine(ctx, docText(7))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
