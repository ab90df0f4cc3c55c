package language

import (
	"strings"
	"testing"

	"github.com/local/slidenode/internal/pdf"
)

func TestDetectEnglish(t *testing.T) {
	chunks := []pdf.Chunk{
		{Text: "The quick brown fox jumps over the lazy dog while the sun sets behind the hills."},
		{Text: "Language detection works best with a reasonable amount of natural prose to sample."},
	}
	if got := Detect(chunks); got != "en" {
		t.Errorf("Detect = %q, want en", got)
	}
}

func TestDetectSpanish(t *testing.T) {
	chunks := []pdf.Chunk{
		{Text: "El rápido zorro marrón salta sobre el perro perezoso mientras el sol se pone detrás de las colinas y los pájaros cantan en los árboles del bosque."},
	}
	if got := Detect(chunks); got != "es" {
		t.Errorf("Detect = %q, want es", got)
	}
}

func TestDetectEmptyDefaultsToEnglish(t *testing.T) {
	if got := Detect(nil); got != "en" {
		t.Errorf("Detect(nil) = %q, want en", got)
	}
	if got := Detect([]pdf.Chunk{{Text: "   "}}); got != "en" {
		t.Errorf("Detect(blank) = %q, want en", got)
	}
}

func TestDetectSamplesOnlyLeadingChunks(t *testing.T) {
	// Only the first five chunks feed the detector, so later chunks in
	// another language must not flip the result.
	chunks := make([]pdf.Chunk, 0, 8)
	for i := 0; i < 5; i++ {
		chunks = append(chunks, pdf.Chunk{Text: "The committee approved the annual budget after a long discussion about infrastructure spending."})
	}
	for i := 0; i < 3; i++ {
		chunks = append(chunks, pdf.Chunk{Text: "Der Ausschuss genehmigte den Jahreshaushalt nach langer Diskussion."})
	}
	if got := Detect(chunks); got != "en" {
		t.Errorf("Detect = %q, want en", got)
	}
}

func TestDetectTruncatesLongChunksSafely(t *testing.T) {
	// Multi-byte text far beyond the sample window must not panic.
	chunks := []pdf.Chunk{{Text: strings.Repeat("naïve café résumé ", 200)}}
	_ = Detect(chunks)
}
