package segment

import (
	"unicode"

	"github.com/corpusforge/docrefine/internal/document"
)

// detectSampleRunes is how much of the document prefix language detection
// inspects. Mixed documents resolve to the majority script in the sample.
const detectSampleRunes = 1000

// DetectLanguage classifies text as English or Chinese from the script ratio
// over a sampled prefix. The heuristic is deterministic: Han runes outnumbering
// Latin letters means Chinese, everything else is English.
func DetectLanguage(text string) document.Language {
	var han, latin, seen int
	for _, r := range text {
		if seen >= detectSampleRunes {
			break
		}
		seen++
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.IsLetter(r):
			latin++
		}
	}
	if han > latin {
		return document.LangZH
	}
	return document.LangEN
}
