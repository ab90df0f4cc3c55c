package llm

import (
	"fmt"
	"strings"
)

// mockExtract splits the chunk into sentences and promotes the first five
// to facts. Used by the "mock" provider for tests and offline runs.
func mockExtract(chunkID, text string) []FactCandidate {
	var out []FactCandidate
	idx := 0
	for _, part := range strings.Split(text, ".") {
		line := strings.TrimSpace(part)
		if line == "" {
			continue
		}
		idx++
		if idx > 5 {
			break
		}
		out = append(out, FactCandidate{
			FactID:     fmt.Sprintf("f_%s_%d", chunkID, idx),
			ChunkID:    chunkID,
			Statement:  truncateRunes(line, 240),
			FactType:   "claim",
			Importance: 0.55,
		})
	}
	if len(out) == 0 {
		out = append(out, FactCandidate{
			FactID:     fmt.Sprintf("f_%s_1", chunkID),
			ChunkID:    chunkID,
			Statement:  truncateRunes(text, 220),
			FactType:   "definition",
			Importance: 0.5,
		})
	}
	return out
}

// mockOutline packs facts into fixed-size slides: four bullets per
// subsection, two subsections per section.
func mockOutline(facts []FactCandidate) Outline {
	const groupSize = 4
	var sections []OutlineSection
	for s := 0; s < len(facts); s += groupSize * 2 {
		end := min(s+groupSize*2, len(facts))
		group := facts[s:end]
		var subs []OutlineSubsection
		for ss := 0; ss < len(group); ss += groupSize {
			subEnd := min(ss+groupSize, len(group))
			indices := make([]int, 0, subEnd-ss)
			for j := ss; j < subEnd; j++ {
				indices = append(indices, s+j)
			}
			subs = append(subs, OutlineSubsection{
				Heading:     fmt.Sprintf("Topic %d.%d", s/(groupSize*2)+1, ss/groupSize+1),
				FactIndices: indices,
			})
		}
		sections = append(sections, OutlineSection{
			Heading:     fmt.Sprintf("Section %d", s/(groupSize*2)+1),
			SummaryNote: fmt.Sprintf("Covers facts %d-%d", s, end-1),
			Subsections: subs,
		})
	}
	if len(sections) == 0 {
		indices := make([]int, len(facts))
		for i := range indices {
			indices[i] = i
		}
		sections = append(sections, OutlineSection{
			Heading:     "Overview",
			SummaryNote: "All extracted content",
			Subsections: []OutlineSubsection{{Heading: "Key Points", FactIndices: indices}},
		})
	}
	return Outline{Sections: sections}
}
