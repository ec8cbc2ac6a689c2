// Package document defines the core artifacts flowing through the refinement
// pipeline: documents, paragraph-aligned chunks, boundary markers, and
// per-chunk quality verdicts.
package document

import "strings"

// Language is the detected document language tag.
type Language string

const (
	// LangEN marks a predominantly English document.
	LangEN Language = "en"
	// LangZH marks a predominantly Chinese document.
	LangZH Language = "zh"
)

// Document tracks one source document through the pipeline. The raw text and
// every completed stage's output are kept as immutable artifacts; stages never
// mutate a prior artifact in place.
type Document struct {
	// Name is the artifact stem shared by all stage files (source filename
	// without extension).
	Name string
	// SourcePath is the original file the raw text was extracted from.
	SourcePath string
	// Language is inferred by the segmenter, never user-supplied.
	Language Language
	// Raw is the extracted text, immutable once set.
	Raw string

	artifacts map[string]string
}

// New creates a document for the given artifact stem and raw text.
func New(name, sourcePath, raw string) *Document {
	return &Document{
		Name:       name,
		SourcePath: sourcePath,
		Raw:        raw,
		artifacts:  make(map[string]string),
	}
}

// SetArtifact records the output of a completed stage. Setting the same stage
// twice is a programming error and panics.
func (d *Document) SetArtifact(stage, text string) {
	if d.artifacts == nil {
		d.artifacts = make(map[string]string)
	}
	if _, ok := d.artifacts[stage]; ok {
		panic("document: artifact for stage " + stage + " already set")
	}
	d.artifacts[stage] = text
}

// Artifact returns the output of a completed stage.
func (d *Document) Artifact(stage string) (string, bool) {
	text, ok := d.artifacts[stage]
	return text, ok
}

// QualityVerdict is the outcome of scoring one chunk.
type QualityVerdict struct {
	// Score is in the 1..10 range, 1 meaning structurally broken.
	Score int
	// Reason is the scorer's one-sentence explanation, reused to steer repair.
	Reason string
	// NeedsRepair is true when Score fell below the configured threshold, or
	// when the scoring response could not be parsed at all.
	NeedsRepair bool
	// Parsed is false when the scoring response was malformed.
	Parsed bool
}

// Chunk is a paragraph-aligned, half-open span [Start, End) of a document's
// pruned text. Chunks overlap their neighbors by a configured number of
// paragraphs so every paragraph boundary is evaluated in at least two chunks,
// except possibly at document edges.
type Chunk struct {
	Index      int
	Start, End int
	// Paragraphs holds the chunk's current text, one entry per paragraph
	// position in the span. Replaced wholesale when a repair is accepted.
	Paragraphs []string
	Repaired   bool
	Verdict    QualityVerdict
}

// Text renders the chunk as blank-line separated paragraphs.
func (c *Chunk) Text() string {
	return JoinParagraphs(c.Paragraphs)
}

// Len is the number of paragraph positions the chunk spans.
func (c *Chunk) Len() int {
	return c.End - c.Start
}

// Contains reports whether paragraph position p falls inside the chunk.
func (c *Chunk) Contains(p int) bool {
	return p >= c.Start && p < c.End
}

// BoundaryMarkers records the headings the pruner located. An empty string on
// either side means "no trim" for that boundary.
type BoundaryMarkers struct {
	StartHeading string
	EndHeading   string
}

// Trimmed reports whether either boundary was actually located.
func (m BoundaryMarkers) Trimmed() bool {
	return m.StartHeading != "" || m.EndHeading != ""
}

// SplitParagraphs splits text on blank lines into trimmed, non-empty
// paragraphs. This is the canonical paragraph unit for every stage after the
// rule cleaner.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// JoinParagraphs is the inverse of SplitParagraphs.
func JoinParagraphs(paras []string) string {
	return strings.Join(paras, "\n\n")
}
