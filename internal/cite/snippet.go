// Package cite locates quotable snippets in source chunks for citations.
package cite

import "strings"

// DefaultSnippetLen is the target snippet length in characters.
const DefaultSnippetLen = 180

// BestSnippet scans chunkText in fixed steps and returns the window with
// the highest keyword overlap against the statement. Keywords are words
// longer than 3 characters. Chunks at or under maxLen come back whole.
func BestSnippet(statement, chunkText string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLen
	}
	if len(chunkText) <= maxLen {
		return chunkText
	}

	keywords := make(map[string]bool)
	for _, w := range strings.Fields(statement) {
		if len(w) > 3 {
			keywords[strings.ToLower(w)] = true
		}
	}
	if len(keywords) == 0 {
		return chunkText[:maxLen]
	}

	const step = 40
	bestScore := -1
	bestStart := 0
	for start := 0; start <= len(chunkText)-maxLen; start += step {
		window := strings.ToLower(chunkText[start : start+maxLen])
		score := 0
		for kw := range keywords {
			if strings.Contains(window, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
	}

	snippet := chunkText[bestStart : bestStart+maxLen]
	// Nudge to a word boundary when the window starts mid-word.
	if bestStart > 0 {
		if space := strings.IndexByte(snippet, ' '); space != -1 && space < 20 {
			snippet = snippet[space+1:]
		}
	}
	return strings.TrimSpace(snippet)
}
