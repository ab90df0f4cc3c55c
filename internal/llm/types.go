// Package llm talks to OpenAI-compatible and Anthropic model APIs to
// extract facts, build outlines and write speaker notes.
package llm

// FactCandidate is an atomic source-anchored statement proposed by the
// model for one chunk.
type FactCandidate struct {
	FactID     string
	ChunkID    string
	Statement  string
	FactType   string // definition|claim|method|result|limitation|formula
	Importance float64
}

// Outline organizes fact indices into sections and subsections. One
// subsection renders as one slide.
type Outline struct {
	Sections []OutlineSection
}

type OutlineSection struct {
	Heading     string
	SummaryNote string
	Subsections []OutlineSubsection
}

type OutlineSubsection struct {
	Heading     string
	FactIndices []int
}

// SectionDraft carries resolved bullet texts into annotation writing.
type SectionDraft struct {
	Heading     string
	Subsections []SubsectionDraft
}

type SubsectionDraft struct {
	Heading     string
	BulletTexts []string
}
