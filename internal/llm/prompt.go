package llm

import (
	"fmt"
	"strings"
)

func factPrompt(text string) (system, user string) {
	system = "You extract key learning points from academic text for presentation slides. " +
		"Each statement must be a self-contained bullet point, concise enough to fit " +
		"on one line of a slide (max ~20 words). Avoid academic jargon; prefer plain, " +
		"direct language a student can grasp at a glance. " +
		"Return strict JSON only with key 'facts'."
	user = "Extract up to 8 key points suitable as slide bullet points.\n" +
		"Rules:\n" +
		"- Each statement: max ~20 words, one core idea per bullet\n" +
		"- Start with the key noun or verb, not filler words\n" +
		"- Use active voice where possible\n" +
		"- Classify each as: definition, claim, method, result, limitation, or formula\n\n" +
		"Return JSON object: {\"facts\":[{\"statement\":string,\"fact_type\":string,\"importance\":number}]}" +
		" and nothing else.\n\n" +
		"Text:\n" + text
	return system, user
}

func outlinePrompt(facts []FactCandidate, language string) (system, user string) {
	var factList strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&factList, "[%d] (%s, importance=%.2f) %s\n", i, f.FactType, f.Importance, f.Statement)
	}

	system = "You are an expert instructional designer creating teaching slide decks. " +
		"Each subsection becomes ONE slide. Design for visual clarity and learning flow. " +
		fmt.Sprintf("Respond in %s. Return strict JSON only.", language)
	user = fmt.Sprintf("Organize the following %d facts into a presentation slide deck outline.\n\n", len(facts)) +
		"Slide design constraints:\n" +
		"- Each subsection = 1 slide. Max 6 bullets per slide (subsection).\n" +
		"- Ideal: 3-5 bullets per slide for readability.\n" +
		"- 3-8 sections total, each with 1-5 subsections (slides).\n" +
		"- Balance section sizes; avoid putting 80% of content in one section.\n\n" +
		"Learning flow:\n" +
		"- Order sections from foundational concepts to advanced/applied topics.\n" +
		"- Within each section, progress from overview to details to implications.\n" +
		"- Group related facts on the same slide; don't scatter related ideas.\n" +
		"- Section headings: short, topic-focused (2-5 words ideal).\n" +
		"- Subsection headings: describe the slide's key message.\n\n" +
		"Each subsection references facts by their [index] numbers.\n" +
		"Every fact index must appear in exactly one subsection.\n\n" +
		"Return JSON:\n" +
		"{\"sections\":[{\"heading\":string,\"summary_note\":string," +
		"\"subsections\":[{\"heading\":string,\"fact_indices\":[int,...]}]}]}\n\n" +
		"Facts:\n" + factList.String()
	return system, user
}

func annotationPrompt(sections []SectionDraft, language string, total int) (system, user string) {
	var desc strings.Builder
	i := 0
	for _, s := range sections {
		for _, ss := range s.Subsections {
			bullets := ss.BulletTexts
			if len(bullets) > 3 {
				bullets = bullets[:3]
			}
			fmt.Fprintf(&desc, "[%d] Section: %s / Subsection: %s -- Bullets: %s\n",
				i, s.Heading, ss.Heading, strings.Join(bullets, "; "))
			i++
		}
	}

	system = "You are a presentation coach writing speaker notes for teaching slides. " +
		"Your notes help the presenter explain each slide clearly and engage the audience. " +
		fmt.Sprintf("Respond in %s. Return strict JSON only.", language)
	user = fmt.Sprintf("Write a speaker note for each of the following %d slides (subsections).\n\n", total) +
		"Speaker note guidelines:\n" +
		"- 1-3 sentences that the presenter reads or paraphrases while showing the slide.\n" +
		"- Start with the key takeaway or 'why this matters'.\n" +
		"- Include a concrete example, analogy, or question to engage the audience when possible.\n" +
		"- Use conversational tone, as if speaking to students, not writing a paper.\n" +
		"- If the slide has a formula, briefly explain what each variable means.\n\n" +
		"Return JSON:\n" +
		"{\"annotations\":[{\"subsection_index\":int,\"annotation\":string}]}\n\n" +
		"Slides:\n" + desc.String()
	return system, user
}
