// Package pdf turns uploaded PDF bytes into page-anchored text chunks and
// embedded images ready for downstream fact extraction.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Chunk is a contiguous run of paragraphs sized for a single model call.
// Char offsets are positions in the document-wide concatenated text.
type Chunk struct {
	ChunkID        string
	Page           int
	ParagraphIndex int
	Text           string
	CharStart      int
	CharEnd        int
}

// Image is an embedded raster image pulled from the PDF.
type Image struct {
	ImageID    string
	Page       int
	ImageIndex int
	Data       []byte
	Ext        string // "png", "jpeg"
	Width      int
	Height     int
	BBox       [4]float64
}

// Extractor parses PDFs with a configured chunk budget.
type Extractor struct {
	chunkSize int
}

func NewExtractor(chunkSizeTokens int) *Extractor {
	if chunkSizeTokens <= 0 {
		chunkSizeTokens = 1200
	}
	return &Extractor{chunkSize: chunkSizeTokens}
}

// Extract returns (page count, chunks, images). Image extraction is
// best-effort; text failures on individual pages are skipped, but a
// document with no extractable text at all is an error.
func (e *Extractor) Extract(data []byte) (int, []Chunk, []Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("invalid pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return 0, nil, nil, fmt.Errorf("empty pdf")
	}

	var paragraphs []pageParagraph
	for i := 0; i < pages; i++ {
		raw, err := doc.Text(i)
		if err != nil {
			log.Warn().Int("page", i+1).Err(err).Msg("page text extraction failed, skipping")
			continue
		}
		normalized := normalizeText(raw)
		if normalized == "" {
			continue
		}
		for _, para := range splitParagraphs(normalized) {
			paragraphs = append(paragraphs, pageParagraph{page: i + 1, text: para})
		}
	}

	images, err := extractImages(data)
	if err != nil {
		log.Warn().Err(err).Msg("image extraction failed, continuing without images")
		images = nil
	}

	if len(paragraphs) == 0 {
		return 0, nil, nil, fmt.Errorf("no extractable text")
	}

	return pages, buildChunks(paragraphs, e.chunkSize), images, nil
}

type pageParagraph struct {
	page int
	text string
}

var (
	spacesRe     = regexp.MustCompile(`[ \t]+`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
	paraSplitRe  = regexp.MustCompile(`\n\s*\n`)
)

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spacesRe.ReplaceAllString(text, " ")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// splitParagraphs splits on blank lines, falling back to single lines when
// the page has no paragraph breaks.
func splitParagraphs(pageText string) []string {
	var paras []string
	for _, p := range paraSplitRe.Split(pageText, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) > 0 {
		return paras
	}
	var lines []string
	for _, ln := range strings.Split(pageText, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// estimateTokens is a conservative estimate without a tokenizer dependency.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	n := int(float64(words) * 1.3)
	if n < 1 {
		return 1
	}
	return n
}

// buildChunks greedily packs paragraphs up to the token budget. A chunk is
// attributed to the page of its first paragraph.
func buildChunks(paragraphs []pageParagraph, chunkSize int) []Chunk {
	type row struct {
		page int
		text string
	}
	var rows []row

	currentPage := paragraphs[0].page
	var parts []string
	tokens := 0

	for _, pp := range paragraphs {
		paraTokens := estimateTokens(pp.text)

		if len(parts) > 0 && tokens+paraTokens > chunkSize {
			rows = append(rows, row{page: currentPage, text: strings.Join(parts, "\n\n")})
			parts = []string{pp.text}
			tokens = paraTokens
			currentPage = pp.page
			continue
		}

		if len(parts) == 0 {
			currentPage = pp.page
		}
		parts = append(parts, pp.text)
		tokens += paraTokens
	}
	if len(parts) > 0 {
		rows = append(rows, row{page: currentPage, text: strings.Join(parts, "\n\n")})
	}

	chunks := make([]Chunk, 0, len(rows))
	offset := 0
	for i, r := range rows {
		start := offset
		end := start + len(r.text)
		chunks = append(chunks, Chunk{
			ChunkID:        fmt.Sprintf("c_%04d", i+1),
			Page:           r.page,
			ParagraphIndex: i + 1,
			Text:           r.text,
			CharStart:      start,
			CharEnd:        end,
		})
		offset = end + 1
	}
	return chunks
}
