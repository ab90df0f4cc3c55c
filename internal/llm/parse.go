package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var fenceRes = []*regexp.Regexp{
	regexp.MustCompile("(?s)^```(?:json)?\\s*\n?(.*?)\n?```\\s*$"),
	regexp.MustCompile("(?s)^```\\s*\n?(.*?)\n?```\\s*$"),
}

// extractJSONObject strips markdown code fences and returns the first
// balanced top-level JSON object, or the input when none is found.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	for _, re := range fenceRes {
		if m := re.FindStringSubmatch(s); m != nil {
			s = strings.TrimSpace(m[1])
		}
	}
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return s
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// candidates yields the raw string and its fence-stripped form, in the
// order they should be tried.
func candidates(content string) []string {
	trimmed := strings.TrimSpace(content)
	return []string{trimmed, extractJSONObject(content)}
}

type factItem struct {
	Statement  string  `json:"statement"`
	FactType   string  `json:"fact_type"`
	Importance float64 `json:"importance"`
}

var allowedFactTypes = map[string]bool{
	"definition": true, "claim": true, "method": true,
	"result": true, "limitation": true, "formula": true,
}

// normalizeFactItems coerces loosely-shaped model output into valid fact
// items: statements padded to 8 chars and capped at 400, unknown types
// mapped to "claim", importance clamped to [0,1] with 0.5 fallback.
func normalizeFactItems(parsed map[string]any) []factItem {
	rawFacts, _ := parsed["facts"].([]any)
	out := make([]factItem, 0, len(rawFacts))
	for _, rf := range rawFacts {
		m, ok := rf.(map[string]any)
		if !ok {
			continue
		}
		st := strings.TrimSpace(asString(m["statement"]))
		if st == "" {
			st = "No statement."
		}
		if len([]rune(st)) < 8 {
			st = strings.TrimSpace(st + " (detail)")
		}
		st = truncateRunes(st, 400)

		ft := strings.ToLower(asString(m["fact_type"]))
		if ft == "" {
			ft = strings.ToLower(asString(m["type"]))
		}
		if !allowedFactTypes[ft] {
			ft = "claim"
		}

		imp := asFloat(m["importance"], 0.5)
		if imp < 0 {
			imp = 0
		}
		if imp > 1 {
			imp = 1
		}

		out = append(out, factItem{Statement: st, FactType: ft, Importance: imp})
	}
	return out
}

// parseFacts parses raw model output into normalized fact items.
func parseFacts(content string) ([]factItem, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("LLM_OUTPUT_INVALID: empty model output")
	}
	var lastErr error
	for _, cand := range candidates(content) {
		if cand == "" {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(cand), &parsed); err != nil {
			lastErr = err
			continue
		}
		return normalizeFactItems(parsed), nil
	}
	return nil, fmt.Errorf("LLM_OUTPUT_INVALID: invalid json schema (%v). Raw snippet: %q", lastErr, snippetOf(content))
}

type outlinePayload struct {
	Sections []struct {
		Heading     string `json:"heading"`
		SummaryNote string `json:"summary_note"`
		Subsections []struct {
			Heading     string `json:"heading"`
			FactIndices []int  `json:"fact_indices"`
		} `json:"subsections"`
	} `json:"sections"`
}

// parseOutline parses and validates an outline. Fact indices must be in
// [0, factCount).
func parseOutline(content string, factCount int) (Outline, error) {
	if strings.TrimSpace(content) == "" {
		return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: empty model output")
	}
	var lastErr error
	var payload outlinePayload
	ok := false
	for _, cand := range candidates(content) {
		if cand == "" {
			continue
		}
		payload = outlinePayload{}
		if err := json.Unmarshal([]byte(cand), &payload); err != nil {
			lastErr = err
			continue
		}
		ok = true
		break
	}
	if !ok {
		return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: cannot parse JSON (%v). Raw snippet: %q", lastErr, snippetOf(content))
	}

	if len(payload.Sections) == 0 || len(payload.Sections) > 15 {
		return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: outline needs 1-15 sections, got %d", len(payload.Sections))
	}
	out := Outline{Sections: make([]OutlineSection, 0, len(payload.Sections))}
	for _, sec := range payload.Sections {
		if len(sec.Heading) < 2 {
			return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: section heading too short")
		}
		if len(sec.Subsections) == 0 || len(sec.Subsections) > 5 {
			return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: section %q needs 1-5 subsections", sec.Heading)
		}
		os := OutlineSection{
			Heading:     truncateRunes(sec.Heading, 200),
			SummaryNote: truncateRunes(sec.SummaryNote, 500),
		}
		for _, sub := range sec.Subsections {
			if len(sub.Heading) < 2 {
				return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: subsection heading too short")
			}
			for _, idx := range sub.FactIndices {
				if idx < 0 || idx >= factCount {
					return Outline{}, fmt.Errorf("LLM_OUTPUT_INVALID: fact_index %d out of range [0, %d)", idx, factCount)
				}
			}
			os.Subsections = append(os.Subsections, OutlineSubsection{
				Heading:     truncateRunes(sub.Heading, 200),
				FactIndices: sub.FactIndices,
			})
		}
		out.Sections = append(out.Sections, os)
	}
	return out, nil
}

// parseAnnotations maps annotation items onto a dense slice ordered by
// subsection index. Out-of-range indices are dropped.
func parseAnnotations(content string, total int) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("LLM_OUTPUT_INVALID: empty model output")
	}
	var payload struct {
		Annotations []struct {
			SubsectionIndex int    `json:"subsection_index"`
			Annotation      string `json:"annotation"`
		} `json:"annotations"`
	}
	var lastErr error
	ok := false
	for _, cand := range candidates(content) {
		if cand == "" {
			continue
		}
		if err := json.Unmarshal([]byte(cand), &payload); err != nil {
			lastErr = err
			continue
		}
		ok = true
		break
	}
	if !ok {
		return nil, fmt.Errorf("LLM_OUTPUT_INVALID: cannot parse JSON (%v)", lastErr)
	}
	result := make([]string, total)
	for _, item := range payload.Annotations {
		if item.SubsectionIndex >= 0 && item.SubsectionIndex < total {
			result[item.SubsectionIndex] = truncateRunes(item.Annotation, 600)
		}
	}
	return result, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func snippetOf(content string) string {
	s := strings.TrimSpace(content)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
