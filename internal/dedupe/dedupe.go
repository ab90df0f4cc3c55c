// Package dedupe merges near-duplicate facts with fuzzy matching.
package dedupe

import (
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/local/slidenode/internal/llm"
)

// Merge collapses facts whose statements are at least threshold percent
// similar under token-sort matching, keeping the higher-importance
// variant. Earlier facts win position; order is otherwise preserved.
func Merge(facts []llm.FactCandidate, threshold int) []llm.FactCandidate {
	var kept []llm.FactCandidate
	var keptLower []string
	var keptLens []int

	// Length-based early rejection: if lengths differ by more than the
	// threshold ratio, token-sort similarity cannot reach it.
	maxLenRatio := float64(threshold) / 100.0

	for _, f := range facts {
		fLower := strings.ToLower(f.Statement)
		fLen := len(fLower)
		isDup := false
		for i, existing := range keptLower {
			eLen := keptLens[i]
			if eLen > 0 && fLen > 0 {
				ratioLen := float64(min(fLen, eLen)) / float64(max(fLen, eLen))
				if ratioLen < maxLenRatio {
					continue
				}
			}
			if TokenSortRatio(fLower, existing) >= threshold {
				isDup = true
				if f.Importance > kept[i].Importance {
					kept[i] = f
					keptLower[i] = fLower
					keptLens[i] = fLen
				}
				break
			}
		}
		if !isDup {
			kept = append(kept, f)
			keptLower = append(keptLower, fLower)
			keptLens = append(keptLens, fLen)
		}
	}
	return kept
}

var lev = metrics.NewLevenshtein()

// TokenSortRatio sorts whitespace tokens in both strings and returns
// Levenshtein similarity of the joined forms, scaled to 0-100.
func TokenSortRatio(a, b string) int {
	sim := strutil.Similarity(sortTokens(a), sortTokens(b), lev)
	return int(math.Round(sim * 100))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
