// Package language guesses the document language for prompt steering.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"

	"github.com/local/slidenode/internal/pdf"
)

// Detect samples the first five chunks (500 chars each) and returns an
// ISO 639-1 code, defaulting to "en" when detection is inconclusive.
func Detect(chunks []pdf.Chunk) string {
	var parts []string
	for i, c := range chunks {
		if i >= 5 {
			break
		}
		text := []rune(c.Text)
		if len(text) > 500 {
			text = text[:500]
		}
		parts = append(parts, string(text))
	}
	sample := strings.TrimSpace(strings.Join(parts, " "))
	if sample == "" {
		return "en"
	}

	info := whatlanggo.Detect(sample)
	iso := info.Lang.Iso6391()
	if iso == "" {
		return "en"
	}
	return iso
}
