// Package clean implements the rule-based denoising stage. Cleaning is
// deterministic and idempotent: the operations run in a fixed order and
// running the cleaner on its own output yields the same output.
package clean

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrMalformedEncoding is returned when the input is not valid UTF-8.
// Malformed input is reported, never silently dropped.
var ErrMalformedEncoding = errors.New("input is not valid UTF-8")

// Lines matching any of these are extraction noise and are dropped outright.
var lineDropPatterns = []*regexp.Regexp{
	// Standalone page numbers ("3", "23 24").
	regexp.MustCompile(`^\s*(\d+\s*)+$`),
	// "Page 3", "Page 3 of 12".
	regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?\s*$`),
	// Table-of-contents lines with dot leaders ("Chapter 1 ...... 5").
	regexp.MustCompile(`\.{2,}\s*\d+\s*$`),
	// Journal running headers.
	regexp.MustCompile(`(?i)^(journal of|proceedings of|transactions on|review of|advances in)\b`),
	// Bare URLs and DOI lines.
	regexp.MustCompile(`^https?://\S+\s*$`),
	regexp.MustCompile(`(?i)^doi:\S+\s*$`),
	// Copyright notices.
	regexp.MustCompile(`^©`),
	// Year-range footer artifacts ("2019 – 2023").
	regexp.MustCompile(`^\s*\d{4}\s*[–-]\s*\d{4}\s*$`),
	// Chinese journal volume headers.
	regexp.MustCompile(`^第\s*\d+\s*卷`),
}

// Academic front-matter labels. The label itself is noise, the text that may
// follow it on the same line is content.
var prefixStripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(摘要|关键词|中图分类号|文章编号|收稿日期|作者简介|参考文献)[:：]\s*`),
	regexp.MustCompile(`(?i)^(abstract|keywords|doi|article id|received|biography)\s*:\s*`),
}

// Inline citation and footnote markers, including full-width brackets and
// page-ranged forms ("[3]56-57").
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[\s*\d+\s*\](\d+-\d+)?`),
	regexp.MustCompile(`［\s*\d+\s*］(\d+-\d+)?`),
	regexp.MustCompile(`\[[①②③④⑤⑥⑦⑧⑨⑩]\]`),
	// Author-year markers: "(Smith, 2020)", "(Smith et al., 2020a)",
	// "(Smith and Jones, 2020)".
	regexp.MustCompile(`\(\s*\p{Lu}[\p{L}.\-]*(\s+(et\s+al\.?|and\s+\p{Lu}[\p{L}.\-]*|&\s*\p{Lu}[\p{L}.\-]*))?\s*,\s*(19|20)\d{2}[a-z]?\s*\)`),
}

var (
	lineNumberGutter = regexp.MustCompile(`^\s*\d+\s*\|\s*`)
	dehyphenate      = regexp.MustCompile(`([a-zA-Z])-\n([a-zA-Z])`)
	listItemPattern  = regexp.MustCompile(`^\s*(\([a-zA-Z0-9]+\)|[a-zA-Z0-9][.)]\s|[•●*–-]\s)`)
	captionPattern   = regexp.MustCompile(`(?i)^(fig(ure)?\.?\s*\d+|table\s*\d+|图\s*\d+|表\s*\d+)\b`)
	multiWhitespace  = regexp.MustCompile(`[ \t]+`)
	multiNewline     = regexp.MustCompile(`\n{3,}`)
)

// terminalPunctuation marks a line as a complete thought during paragraph
// rejoining.
var terminalPunctuation = []string{".", "?", "!", `"`, "”", "。", "？", "！", ":", "："}

// Cleaner applies the rule battery to raw extracted text.
type Cleaner struct{}

// New creates a Cleaner.
func New() *Cleaner {
	return &Cleaner{}
}

// Clean denoises raw extracted text. The only failure mode is malformed
// encoding; everything else is best-effort noise removal and re-flowing with
// no loss of semantic content.
func (c *Cleaner) Clean(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("clean: %w", ErrMalformedEncoding)
	}

	text = normalizeNewlines(text)
	text = stripBoilerplateLines(text)
	text = removeCitations(text)
	text = collapseDuplicateLines(text)
	text = stripLineNumberGutters(text)
	text = dehyphenate.ReplaceAllString(text, "$1$2")
	text = rejoinParagraphs(text)
	text = collapseDuplicatePhrases(text)
	text = normalizeWhitespace(text)

	return text, nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func stripBoilerplateLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := stripFrontMatterLabels(strings.TrimSpace(line))
		if trimmed != "" && matchesAny(trimmed, lineDropPatterns) {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// stripFrontMatterLabels removes front-matter labels from the start of a line
// until none remains. Extraction artifacts can double a label on one line, so
// a single pass is not enough to reach a fixpoint.
func stripFrontMatterLabels(line string) string {
	for {
		stripped := false
		for _, pat := range prefixStripPatterns {
			if loc := pat.FindStringIndex(line); loc != nil {
				line = line[loc[1]:]
				stripped = true
			}
		}
		if !stripped {
			return line
		}
	}
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, pat := range patterns {
		if pat.MatchString(line) {
			return true
		}
	}
	return false
}

// collapseDuplicateLines drops a line that exactly repeats the previous one,
// a common artifact of running headers surviving extraction at page breaks.
func collapseDuplicateLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(out) > 0 && line != "" && out[len(out)-1] == line {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// maxDuplicateWindow bounds how long a repeated phrase can be, in words.
const maxDuplicateWindow = 16

// collapseDuplicatePhrases removes phrases that are immediately repeated
// within a logical line ("Foreword Foreword", a sentence duplicated back to
// back). The collapse runs to a fixpoint so the operation is idempotent.
func collapseDuplicatePhrases(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseRepeatedWords(line)
	}
	return strings.Join(lines, "\n")
}

func collapseRepeatedWords(line string) string {
	words := strings.Fields(line)
	if len(words) < 2 {
		return line
	}
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(words); i++ {
			max := (len(words) - i) / 2
			if max > maxDuplicateWindow {
				max = maxDuplicateWindow
			}
			for n := max; n >= 1; n-- {
				if wordsEqual(words[i:i+n], words[i+n:i+2*n]) {
					words = append(words[:i+n], words[i+2*n:]...)
					changed = true
					break
				}
			}
		}
	}
	return strings.Join(words, " ")
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func removeCitations(text string) string {
	for _, pat := range citationPatterns {
		text = pat.ReplaceAllString(text, "")
	}
	return text
}

func stripLineNumberGutters(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = lineNumberGutter.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

// rejoinParagraphs merges lines that are fragments of a single paragraph: a
// line not ending in terminal punctuation is merged into the following line,
// unless either is a list item or caption. Blank lines are true paragraph
// breaks and are preserved.
func rejoinParagraphs(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			out = append(out, "")
			continue
		}
		if isCompleteThought(line) || i+1 >= len(lines) {
			out = append(out, line)
			continue
		}
		next := strings.TrimSpace(lines[i+1])
		if next != "" && !listItemPattern.MatchString(next) {
			lines[i+1] = line + " " + next
		} else {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isCompleteThought(line string) bool {
	for _, p := range terminalPunctuation {
		if strings.HasSuffix(line, p) {
			return true
		}
	}
	return listItemPattern.MatchString(line) || captionPattern.MatchString(line)
}

func normalizeWhitespace(text string) string {
	text = multiWhitespace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	text = strings.Join(lines, "\n")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
