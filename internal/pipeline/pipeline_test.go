package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/local/slidenode/internal/config"
	"github.com/local/slidenode/internal/formula"
	"github.com/local/slidenode/internal/images"
	"github.com/local/slidenode/internal/llm"
	"github.com/local/slidenode/internal/models"
	"github.com/local/slidenode/internal/pdf"
	"github.com/local/slidenode/internal/storage"
	"github.com/local/slidenode/internal/store"
)

// pdfBytes passes the mimetype sniff; the fake extractor never parses it.
var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

type fakeExtractor struct {
	pages  int
	chunks []pdf.Chunk
	imgs   []pdf.Image
	err    error
}

func (f *fakeExtractor) Extract(data []byte) (int, []pdf.Chunk, []pdf.Image, error) {
	if f.err != nil {
		return 0, nil, nil, f.err
	}
	return f.pages, f.chunks, f.imgs, nil
}

func testChunks() []pdf.Chunk {
	return []pdf.Chunk{
		{ChunkID: "c_0001", Page: 1, ParagraphIndex: 1, CharStart: 0, CharEnd: 88,
			Text: "The system converts uploaded documents into slides. Every claim keeps its source page."},
		{ChunkID: "c_0002", Page: 2, ParagraphIndex: 2, CharStart: 89, CharEnd: 180,
			Text: "Duplicate statements are merged before the outline. Quality gates reject uncited output."},
	}
}

func testEnv(t *testing.T, ex Extractor, gw Gateway) (*gorm.DB, *store.Store, *Pipeline) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	cfg := config.PipelineConfig{
		MaxPages:                 200,
		ChunkSizeTokens:          1200,
		DedupeThreshold:          0.86,
		QualityCoverageThreshold: 0.85,
	}
	if gw == nil {
		gw = llm.New(config.LLMConfig{Provider: "mock", MaxRetries: 1})
	}
	ingestor := images.New(storage.NewLocal(t.TempDir()), formula.NewDetector(nil))
	return db, store.New(db), New(cfg, ex, gw, ingestor)
}

func seed(t *testing.T, st *store.Store) (*models.Document, *models.Job) {
	t.Helper()
	doc := &models.Document{Title: "Paper", Status: models.DocumentUploaded, FileKey: "documents/x/source.pdf"}
	if err := st.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	job := &models.Job{DocumentID: doc.ID, Status: models.JobQueued}
	if err := st.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return doc, job
}

func TestRunHappyPath(t *testing.T) {
	ex := &fakeExtractor{
		pages:  3,
		chunks: testChunks(),
		imgs: []pdf.Image{
			{ImageID: "img-1", Page: 1, ImageIndex: 0, Data: []byte("raster bytes"), Ext: "png", Width: 120, Height: 60},
		},
	}
	db, st, p := testEnv(t, ex, nil)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err != nil {
		t.Fatalf("Run: %v", err)
	}

	gotJob, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if gotJob.Status != models.JobDone || gotJob.Progress != 1.0 {
		t.Errorf("job status/progress = %q/%v", gotJob.Status, gotJob.Progress)
	}
	for _, key := range []string{"coverage_ratio", "citation_completeness", "dedupe_ratio"} {
		if _, ok := gotJob.Metrics[key]; !ok {
			t.Errorf("job metrics missing %q: %v", key, gotJob.Metrics)
		}
	}

	gotDoc, err := st.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if gotDoc.Status != models.DocumentReady {
		t.Errorf("document status = %q, want ready", gotDoc.Status)
	}
	if gotDoc.Pages != 3 || gotDoc.Language != "en" {
		t.Errorf("pages/language = %d/%q", gotDoc.Pages, gotDoc.Language)
	}

	var imageRows int64
	if err := db.Model(&models.DocumentImage{}).Where("document_id = ?", doc.ID).Count(&imageRows).Error; err != nil {
		t.Fatalf("count images: %v", err)
	}
	if imageRows != 1 {
		t.Errorf("got %d image rows, want 1", imageRows)
	}

	sections, err := st.LoadDeck(doc.ID)
	if err != nil {
		t.Fatalf("LoadDeck: %v", err)
	}
	if len(sections) == 0 {
		t.Fatal("no deck sections persisted")
	}
	for _, sec := range sections {
		for _, sub := range sec.Subsections {
			for _, b := range sub.Bullets {
				if len(b.Citations) != 1 {
					t.Errorf("bullet %q has %d citations, want 1", b.Text, len(b.Citations))
				}
			}
		}
	}
}

func TestRunDocTooLarge(t *testing.T) {
	ex := &fakeExtractor{pages: 500, chunks: testChunks()}
	db, st, p := testEnv(t, ex, nil)
	doc, job := seed(t, st)

	err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes)
	if err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeDocTooLarge)
}

func TestRunRejectsNonPDF(t *testing.T) {
	ex := &fakeExtractor{pages: 1, chunks: testChunks()}
	db, st, p := testEnv(t, ex, nil)
	doc, job := seed(t, st)

	err := p.Run(context.Background(), db, doc.ID, job.ID, []byte("plain text, not a pdf"))
	if err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeParseFailed)
}

func TestRunExtractorFailure(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("invalid pdf: broken xref")}
	db, st, p := testEnv(t, ex, nil)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeParseFailed)
}

// failingFactsGateway errors ExtractFacts for the listed chunks; a nil
// set fails every chunk. Other operations delegate to the mock client.
type failingFactsGateway struct {
	*llm.Client
	failChunks map[string]bool
}

func (g *failingFactsGateway) ExtractFacts(ctx context.Context, chunkID, text string) ([]llm.FactCandidate, error) {
	if g.failChunks == nil || g.failChunks[chunkID] {
		return nil, errors.New("LLM_API_ERROR (503): provider unavailable")
	}
	return g.Client.ExtractFacts(ctx, chunkID, text)
}

func TestRunFailsWhenAllChunksFailExtraction(t *testing.T) {
	ex := &fakeExtractor{pages: 2, chunks: testChunks()}
	gw := &failingFactsGateway{Client: llm.New(config.LLMConfig{Provider: "mock"})}
	db, st, p := testEnv(t, ex, gw)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeLLMOutputInvalid)

	// The first per-chunk error surfaces in the job detail.
	got, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !strings.Contains(got.ErrorDetail, "provider unavailable") {
		t.Errorf("error detail = %q, want first chunk error", got.ErrorDetail)
	}
}

func TestRunToleratesPartialExtractionFailure(t *testing.T) {
	ex := &fakeExtractor{pages: 2, chunks: testChunks()}
	gw := &failingFactsGateway{
		Client:     llm.New(config.LLMConfig{Provider: "mock"}),
		failChunks: map[string]bool{"c_0002": true},
	}
	db, st, p := testEnv(t, ex, gw)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.JobDone || got.Progress != 1.0 {
		t.Errorf("job status/progress = %q/%v, want done despite one failed chunk", got.Status, got.Progress)
	}

	// Surviving bullets all come from the chunk that succeeded.
	sections, err := st.LoadDeck(doc.ID)
	if err != nil {
		t.Fatalf("LoadDeck: %v", err)
	}
	bullets := 0
	for _, sec := range sections {
		for _, sub := range sec.Subsections {
			bullets += len(sub.Bullets)
		}
	}
	if bullets == 0 {
		t.Error("no bullets persisted from the surviving chunk")
	}
}

// orphanFactGateway emits facts whose chunk id matches no source chunk,
// leaving their bullets without citations.
type orphanFactGateway struct {
	*llm.Client
}

func (g *orphanFactGateway) ExtractFacts(ctx context.Context, chunkID, text string) ([]llm.FactCandidate, error) {
	return []llm.FactCandidate{{
		FactID:     "f_" + chunkID + "_1",
		ChunkID:    "c_9999",
		Statement:  "A statement with no source chunk to cite",
		FactType:   "claim",
		Importance: 0.5,
	}}, nil
}

func TestRunUncitedBulletsFailGate(t *testing.T) {
	ex := &fakeExtractor{pages: 2, chunks: testChunks()}
	gw := &orphanFactGateway{Client: llm.New(config.LLMConfig{Provider: "mock"})}
	db, st, p := testEnv(t, ex, gw)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeCitationIncomplete)
}

type failingOutlineGateway struct {
	*llm.Client
}

func (g *failingOutlineGateway) BuildOutline(ctx context.Context, facts []llm.FactCandidate, lang string) (llm.Outline, error) {
	return llm.Outline{}, errors.New("LLM_OUTPUT_INVALID: sections out of range")
}

func TestRunOutlineFailure(t *testing.T) {
	ex := &fakeExtractor{pages: 2, chunks: testChunks()}
	gw := &failingOutlineGateway{Client: llm.New(config.LLMConfig{Provider: "mock"})}
	db, st, p := testEnv(t, ex, gw)
	doc, job := seed(t, st)

	if err := p.Run(context.Background(), db, doc.ID, job.ID, pdfBytes); err == nil {
		t.Fatal("expected error")
	}
	assertFailed(t, st, doc.ID, job.ID, CodeLLMOutputInvalid)
}

func TestRunMissingJob(t *testing.T) {
	ex := &fakeExtractor{pages: 1, chunks: testChunks()}
	db, st, p := testEnv(t, ex, nil)
	doc := &models.Document{Title: "Paper", Status: models.DocumentUploaded}
	if err := st.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	err := p.Run(context.Background(), db, doc.ID, "no-such-job", pdfBytes)
	if err == nil {
		t.Fatal("expected error")
	}
	code, _ := Classify(err)
	if code != CodeJobNotFound {
		t.Errorf("code = %q, want %q", code, CodeJobNotFound)
	}
}

func TestRunMissingDocument(t *testing.T) {
	ex := &fakeExtractor{pages: 1, chunks: testChunks()}
	db, _, p := testEnv(t, ex, nil)

	err := p.Run(context.Background(), db, "no-such-doc", "no-such-job", pdfBytes)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func assertFailed(t *testing.T, st *store.Store, docID, jobID, wantCode string) {
	t.Helper()
	job, err := st.GetJob(jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != models.JobFailed {
		t.Errorf("job status = %q, want failed", job.Status)
	}
	if job.ErrorCode != wantCode {
		t.Errorf("error code = %q, want %q", job.ErrorCode, wantCode)
	}
	doc, err := st.GetDocument(docID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Status != models.DocumentFailed {
		t.Errorf("document status = %q, want failed", doc.Status)
	}
}
