package refine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/docrefine/internal/document"
)

func paragraphs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Paragraph %d.", i)
	}
	return out
}

func TestBuildChunks_ShortDocumentIsOneChunk(t *testing.T) {
	chunks := BuildChunks(paragraphs(3), 5, 1)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 3, chunks[0].End)
}

func TestBuildChunks_AdjacentChunksShareExactlyOverlap(t *testing.T) {
	for _, tc := range []struct{ n, size, overlap int }{
		{12, 5, 1},
		{20, 5, 2},
		{30, 7, 3},
		{11, 4, 1},
	} {
		chunks := BuildChunks(paragraphs(tc.n), tc.size, tc.overlap)
		require.True(t, len(chunks) >= 2, "n=%d size=%d", tc.n, tc.size)

		for i := 1; i < len(chunks); i++ {
			prev, cur := chunks[i-1], chunks[i]
			shared := prev.End - cur.Start
			if i == len(chunks)-1 {
				// The final chunk may overlap more at the document edge.
				assert.GreaterOrEqual(t, shared, tc.overlap)
			} else {
				assert.Equal(t, tc.overlap, shared,
					"chunks %d/%d for n=%d size=%d overlap=%d", i-1, i, tc.n, tc.size, tc.overlap)
			}
		}
	}
}

func TestBuildChunks_CoversEveryParagraph(t *testing.T) {
	paras := paragraphs(17)
	chunks := BuildChunks(paras, 5, 2)

	covered := make([]bool, len(paras))
	for _, c := range chunks {
		for p := c.Start; p < c.End; p++ {
			assert.Equal(t, paras[p], c.Paragraphs[p-c.Start])
			covered[p] = true
		}
	}
	for p, ok := range covered {
		assert.True(t, ok, "paragraph %d not covered", p)
	}
}

func TestBuildChunks_InteriorBoundariesSeenTwice(t *testing.T) {
	paras := paragraphs(15)
	chunks := BuildChunks(paras, 5, 1)

	// Every chunk-edge paragraph away from the document edges appears in at
	// least two chunks.
	for _, c := range chunks {
		for _, edge := range []int{c.Start, c.End - 1} {
			if edge == 0 || edge == len(paras)-1 {
				continue
			}
			count := 0
			for _, other := range chunks {
				if other.Contains(edge) {
					count++
				}
			}
			assert.GreaterOrEqual(t, count, 2, "edge paragraph %d", edge)
		}
	}
}

func TestReassemble_ExactlyOnceInOrder(t *testing.T) {
	paras := paragraphs(13)
	chunks := BuildChunks(paras, 5, 1)

	out := Reassemble(chunks, len(paras))
	assert.Equal(t, paras, out)
}

func TestReassemble_PrefersUniquelyRepairedChunk(t *testing.T) {
	paras := paragraphs(9)
	chunks := BuildChunks(paras, 5, 1)
	require.Len(t, chunks, 2)

	// Repair the first chunk only; its version of the shared paragraph wins.
	chunks[0].Repaired = true
	shared := chunks[1].Start
	chunks[0].Paragraphs[shared-chunks[0].Start] = "Repaired shared paragraph."

	out := Reassemble(chunks, len(paras))
	assert.Equal(t, "Repaired shared paragraph.", out[shared])
}

func TestReassemble_TieBreaksToLaterChunk(t *testing.T) {
	paras := paragraphs(9)

	// Neither repaired: later chunk's copy wins.
	chunks := BuildChunks(paras, 5, 1)
	shared := chunks[1].Start
	chunks[0].Paragraphs[shared-chunks[0].Start] = "Earlier copy."
	chunks[1].Paragraphs[0] = "Later copy."
	out := Reassemble(chunks, len(paras))
	assert.Equal(t, "Later copy.", out[shared])

	// Both repaired: still the later chunk.
	chunks = BuildChunks(paras, 5, 1)
	chunks[0].Repaired = true
	chunks[1].Repaired = true
	chunks[0].Paragraphs[shared-chunks[0].Start] = "Earlier repair."
	chunks[1].Paragraphs[0] = "Later repair."
	out = Reassemble(chunks, len(paras))
	assert.Equal(t, "Later repair.", out[shared])
}

func TestChunkText(t *testing.T) {
	c := document.Chunk{Paragraphs: []string{"One.", "Two."}}
	assert.Equal(t, "One.\n\nTwo.", c.Text())
}
