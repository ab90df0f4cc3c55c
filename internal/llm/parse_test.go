package llm

import (
	"strings"
	"testing"
)

func TestExtractJSONObjectStripsFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"facts":[]}`, `{"facts":[]}`},
		{"json fence", "```json\n{\"facts\":[]}\n```", `{"facts":[]}`},
		{"bare fence", "```\n{\"facts\":[]}\n```", `{"facts":[]}`},
		{"leading prose", `Here you go: {"a":{"b":1}} trailing`, `{"a":{"b":1}}`},
		{"no object", "just text", "just text"},
		{"unbalanced", `{"a":1`, `{"a":1`},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Errorf("%s: extractJSONObject(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestExtractJSONObjectNestedBraces(t *testing.T) {
	in := `noise {"sections":[{"heading":"A","subsections":[{"heading":"B"}]}]} more noise`
	want := `{"sections":[{"heading":"A","subsections":[{"heading":"B"}]}]}`
	if got := extractJSONObject(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseFactsNormalization(t *testing.T) {
	content := `{"facts":[
		{"statement":"short","fact_type":"claim","importance":0.7},
		{"statement":"A perfectly fine statement here.","fact_type":"banana","importance":"0.3"},
		{"statement":"Another valid statement entirely.","type":"method","importance":7},
		{"statement":"Negative importance statement text.","fact_type":"result","importance":-2}
	]}`
	items, err := parseFacts(content)
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}

	if items[0].Statement != "short (detail)" {
		t.Errorf("short statement not padded: %q", items[0].Statement)
	}
	if items[1].FactType != "claim" {
		t.Errorf("unknown fact_type not mapped to claim: %q", items[1].FactType)
	}
	if items[1].Importance != 0.3 {
		t.Errorf("string importance not parsed: %v", items[1].Importance)
	}
	if items[2].FactType != "method" {
		t.Errorf("legacy 'type' key ignored: %q", items[2].FactType)
	}
	if items[2].Importance != 1.0 {
		t.Errorf("importance not clamped to 1: %v", items[2].Importance)
	}
	if items[3].Importance != 0.0 {
		t.Errorf("importance not clamped to 0: %v", items[3].Importance)
	}
}

func TestParseFactsTruncatesLongStatements(t *testing.T) {
	long := strings.Repeat("x", 500)
	items, err := parseFacts(`{"facts":[{"statement":"` + long + `","fact_type":"claim","importance":0.5}]}`)
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if got := len([]rune(items[0].Statement)); got != 400 {
		t.Errorf("statement length = %d, want 400", got)
	}
}

func TestParseFactsFencedContent(t *testing.T) {
	items, err := parseFacts("```json\n{\"facts\":[{\"statement\":\"A fenced fact statement.\",\"fact_type\":\"claim\",\"importance\":0.5}]}\n```")
	if err != nil {
		t.Fatalf("parseFacts: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestParseFactsErrors(t *testing.T) {
	if _, err := parseFacts(""); err == nil {
		t.Error("empty content should fail")
	}
	if _, err := parseFacts("not json at all"); err == nil {
		t.Error("non-json content should fail")
	} else if !strings.HasPrefix(err.Error(), "LLM_OUTPUT_INVALID") {
		t.Errorf("error should carry LLM_OUTPUT_INVALID prefix, got %q", err.Error())
	}
}

func TestParseOutlineValid(t *testing.T) {
	content := `{"sections":[
		{"heading":"Basics","summary_note":"intro","subsections":[
			{"heading":"Definitions","fact_indices":[0,1]},
			{"heading":"Context","fact_indices":[2]}
		]}
	]}`
	outline, err := parseOutline(content, 3)
	if err != nil {
		t.Fatalf("parseOutline: %v", err)
	}
	if len(outline.Sections) != 1 || len(outline.Sections[0].Subsections) != 2 {
		t.Fatalf("unexpected shape: %+v", outline)
	}
}

func TestParseOutlineRejectsOutOfRangeIndex(t *testing.T) {
	content := `{"sections":[{"heading":"Basics","subsections":[{"heading":"One","fact_indices":[5]}]}]}`
	if _, err := parseOutline(content, 3); err == nil {
		t.Error("out-of-range fact index should fail")
	}
}

func TestParseOutlineRejectsEmptySections(t *testing.T) {
	if _, err := parseOutline(`{"sections":[]}`, 3); err == nil {
		t.Error("empty sections should fail")
	}
	content := `{"sections":[{"heading":"Basics","subsections":[]}]}`
	if _, err := parseOutline(content, 3); err == nil {
		t.Error("section without subsections should fail")
	}
}

func TestParseAnnotationsIndexed(t *testing.T) {
	content := `{"annotations":[
		{"subsection_index":1,"annotation":"second"},
		{"subsection_index":0,"annotation":"first"},
		{"subsection_index":9,"annotation":"dropped"}
	]}`
	notes, err := parseAnnotations(content, 3)
	if err != nil {
		t.Fatalf("parseAnnotations: %v", err)
	}
	want := []string{"first", "second", ""}
	for i, w := range want {
		if notes[i] != w {
			t.Errorf("notes[%d] = %q, want %q", i, notes[i], w)
		}
	}
}
