package refine

import "github.com/corpusforge/docrefine/internal/document"

// BuildChunks splits paragraphs into paragraph-aligned chunks of the target
// size with the configured overlap. Chunk boundaries always fall on paragraph
// boundaries. Adjacent chunks share exactly `overlap` paragraphs, except that
// the final chunk may overlap more when the tail is shorter than a stride.
func BuildChunks(paragraphs []string, size, overlap int) []document.Chunk {
	if size <= 0 {
		size = 5
	}
	if overlap <= 0 || overlap >= size {
		overlap = 1
	}

	if len(paragraphs) == 0 {
		return nil
	}
	if len(paragraphs) <= size {
		return []document.Chunk{{
			Index:      0,
			Start:      0,
			End:        len(paragraphs),
			Paragraphs: append([]string(nil), paragraphs...),
		}}
	}

	stride := size - overlap
	var chunks []document.Chunk
	for start := 0; start < len(paragraphs); start += stride {
		end := start + size
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		chunks = append(chunks, document.Chunk{
			Index:      len(chunks),
			Start:      start,
			End:        end,
			Paragraphs: append([]string(nil), paragraphs[start:end]...),
		})
		if end == len(paragraphs) {
			break
		}
	}
	return chunks
}

// Reassemble rebuilds the paragraph sequence from possibly-repaired chunks.
// Each paragraph position is emitted exactly once, in order. Where positions
// are covered by more than one chunk, the repaired chunk's version wins when
// exactly one of the candidates was repaired; otherwise the later chunk wins.
func Reassemble(chunks []document.Chunk, total int) []string {
	out := make([]string, total)
	for p := 0; p < total; p++ {
		var chosen, repaired *document.Chunk
		repairedCount := 0
		for i := range chunks {
			c := &chunks[i]
			if !c.Contains(p) {
				continue
			}
			chosen = c
			if c.Repaired {
				repairedCount++
				repaired = c
			}
		}
		if repairedCount == 1 {
			chosen = repaired
		}
		out[p] = chosen.Paragraphs[p-chosen.Start]
	}
	return out
}
