// Package pipeline drives a document through parse, fact extraction,
// outline building and deck persistence, tracking job progress along
// the way.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/local/slidenode/internal/cite"
	"github.com/local/slidenode/internal/config"
	"github.com/local/slidenode/internal/dedupe"
	"github.com/local/slidenode/internal/images"
	"github.com/local/slidenode/internal/language"
	"github.com/local/slidenode/internal/llm"
	"github.com/local/slidenode/internal/metrics"
	"github.com/local/slidenode/internal/models"
	"github.com/local/slidenode/internal/pdf"
	"github.com/local/slidenode/internal/store"
)

// Extractor parses PDF bytes into page count, chunks and images.
type Extractor interface {
	Extract(data []byte) (int, []pdf.Chunk, []pdf.Image, error)
}

// Gateway is the model call surface the pipeline depends on.
type Gateway interface {
	ExtractFacts(ctx context.Context, chunkID, text string) ([]llm.FactCandidate, error)
	BuildOutline(ctx context.Context, facts []llm.FactCandidate, lang string) (llm.Outline, error)
	WriteAnnotations(ctx context.Context, sections []llm.SectionDraft, lang string) []string
}

// ImageIngestor uploads and classifies embedded images.
type ImageIngestor interface {
	Ingest(ctx context.Context, rec images.Recorder, doc *models.Document, imgs []pdf.Image) []models.DocumentImage
}

// Pipeline holds the stage implementations and limits.
type Pipeline struct {
	cfg       config.PipelineConfig
	extractor Extractor
	gateway   Gateway
	ingestor  ImageIngestor
}

func New(cfg config.PipelineConfig, extractor Extractor, gateway Gateway, ingestor ImageIngestor) *Pipeline {
	return &Pipeline{cfg: cfg, extractor: extractor, gateway: gateway, ingestor: ingestor}
}

// Run processes one generation job end to end. The document and job rows
// must already exist; a missing document or job aborts before any state
// is touched. Any stage failure marks the job failed with a classified
// code and flips the document to failed.
func (p *Pipeline) Run(ctx context.Context, db *gorm.DB, documentID, jobID string, fileBytes []byte) error {
	st := store.New(db)

	doc, err := st.GetDocument(documentID)
	if err != nil {
		return err
	}
	job, err := st.GetJob(jobID)
	if err != nil {
		return Errf(CodeJobNotFound, "job missing")
	}

	if err := p.execute(ctx, st, doc, job, fileBytes); err != nil {
		code, detail := Classify(err)
		if e := st.MarkJobFailed(job, code, detail); e != nil {
			log.Error().Err(e).Str("job_id", job.ID).Msg("failed to persist job failure")
		}
		_ = st.SetDocumentStatus(doc, models.DocumentFailed)
		metrics.IncJob(code)
		log.Error().
			Str("document_id", doc.ID).
			Str("job_id", job.ID).
			Str("code", code).
			Str("detail", detail).
			Msg("generation job failed")
		return err
	}

	metrics.IncJob("done")
	log.Info().
		Str("document_id", doc.ID).
		Str("job_id", job.ID).
		Msg("generation job done")
	return nil
}

func (p *Pipeline) execute(ctx context.Context, st *store.Store, doc *models.Document, job *models.Job, fileBytes []byte) error {
	if err := st.MarkJobRunning(job); err != nil {
		return err
	}
	_ = st.SetJobProgress(job, 0.05)
	if err := st.SetDocumentStatus(doc, models.DocumentProcessing); err != nil {
		return err
	}

	// Parse + size limit
	start := time.Now()
	if mt := mimetype.Detect(fileBytes); !mt.Is("application/pdf") {
		return Errf(CodeParseFailed, "unsupported file type %s", mt.String())
	}
	pages, chunks, imgs, err := p.extractor.Extract(fileBytes)
	if err != nil {
		return Errf(CodeParseFailed, "%v", err)
	}
	if pages > p.cfg.MaxPages {
		return Errf(CodeDocTooLarge, "pages=%d", pages)
	}
	doc.Pages = pages
	if err := st.SaveDocument(doc); err != nil {
		return err
	}
	metrics.ObserveStage("parse", time.Since(start))
	_ = st.SetJobProgress(job, 0.15)

	// Language detection
	lang := language.Detect(chunks)
	doc.Language = lang
	if err := st.SaveDocument(doc); err != nil {
		return err
	}
	_ = st.SetJobProgress(job, 0.20)

	// Image upload + formula classification
	start = time.Now()
	var docImages []models.DocumentImage
	if len(imgs) > 0 {
		docImages = p.ingestor.Ingest(ctx, st, doc, imgs)
		formulas := 0
		for _, di := range docImages {
			if di.IsFormula {
				formulas++
			}
		}
		log.Info().
			Str("document_id", doc.ID).
			Int("images", len(docImages)).
			Int("formulas", formulas).
			Msg("ingested document images")
	}
	metrics.ObserveStage("images", time.Since(start))
	_ = st.SetJobProgress(job, 0.25)

	formulaFacts, formulaImages := buildFormulaFacts(docImages)

	// Fact extraction, fanned out per chunk
	start = time.Now()
	facts, extractErrs := p.extractAll(ctx, chunks)
	if len(extractErrs) > 0 && len(facts) == 0 {
		return Errf(CodeLLMOutputInvalid, "%s", extractErrs[0])
	}
	facts = append(facts, formulaFacts...)
	metrics.ObserveStage("facts", time.Since(start))
	_ = st.SetJobProgress(job, 0.35)

	// Dedupe
	chunkByID := make(map[string]pdf.Chunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ChunkID] = c
	}
	factChunk := make(map[string]pdf.Chunk, len(facts))
	for _, f := range facts {
		if c, ok := chunkByID[f.ChunkID]; ok {
			factChunk[f.FactID] = c
		}
	}
	threshold := int(math.Round(p.cfg.DedupeThreshold * 100))
	merged := dedupe.Merge(facts, threshold)
	_ = st.SetJobProgress(job, 0.50)

	// Outline
	start = time.Now()
	outline, err := p.gateway.BuildOutline(ctx, merged, lang)
	if err != nil {
		return Errf(CodeLLMOutputInvalid, "outline generation failed: %v", err)
	}
	metrics.ObserveStage("outline", time.Since(start))
	_ = st.SetJobProgress(job, 0.65)

	// Speaker notes
	annotations := p.gateway.WriteAnnotations(ctx, buildDrafts(outline, merged), lang)
	_ = st.SetJobProgress(job, 0.75)

	// Persist deck + citations
	start = time.Now()
	sections, usedFacts := assembleDeck(outline, merged, annotations, factChunk, formulaImages)
	stats, err := st.ReplaceDeck(doc, sections)
	if err != nil {
		return err
	}
	metrics.ObserveStage("persist", time.Since(start))
	_ = st.SetJobProgress(job, 0.90)

	// Quality gate
	coverage := 1.0
	if len(merged) > 0 {
		coverage = float64(usedFacts) / float64(len(merged))
	}
	completeness := 1.0
	if stats.Bullets > 0 {
		completeness = float64(stats.Cited) / float64(stats.Bullets)
	}
	if completeness < 1.0 {
		return Errf(CodeCitationIncomplete, "every bullet needs citation")
	}
	if coverage < p.cfg.QualityCoverageThreshold {
		return Errf(CodeQualityGateFailed, "coverage=%v", coverage)
	}

	dedupeRatio := 0.0
	if len(facts) > 0 {
		dedupeRatio = 1 - float64(len(merged))/float64(len(facts))
	}
	if err := st.MarkJobDone(job, map[string]any{
		"coverage_ratio":        coverage,
		"citation_completeness": completeness,
		"dedupe_ratio":          dedupeRatio,
	}); err != nil {
		return err
	}
	return st.SetDocumentStatus(doc, models.DocumentReady)
}

// extractAll fans fact extraction out over chunks with a bounded pool.
// Per-chunk failures are collected, not fatal; results keep chunk order.
func (p *Pipeline) extractAll(ctx context.Context, chunks []pdf.Chunk) ([]llm.FactCandidate, []string) {
	if len(chunks) == 0 {
		return nil, nil
	}

	perChunk := make([][]llm.FactCandidate, len(chunks))
	var mu sync.Mutex
	var errs []string

	var eg errgroup.Group
	eg.SetLimit(min(8, len(chunks)))
	for i, c := range chunks {
		eg.Go(func() error {
			fs, err := p.gateway.ExtractFacts(ctx, c.ChunkID, c.Text)
			if err != nil {
				mu.Lock()
				errs = append(errs, err.Error())
				mu.Unlock()
				return nil
			}
			perChunk[i] = fs
			return nil
		})
	}
	_ = eg.Wait()

	var facts []llm.FactCandidate
	for _, fs := range perChunk {
		facts = append(facts, fs...)
	}
	return facts, errs
}

// buildFormulaFacts promotes OCRed formula images to high-importance
// facts so the outline can place them as slides. The importance of 5 is
// a sentinel that beats any text fact in dedupe conflicts.
func buildFormulaFacts(docImages []models.DocumentImage) ([]llm.FactCandidate, map[string]models.DocumentImage) {
	var facts []llm.FactCandidate
	byFactID := make(map[string]models.DocumentImage)
	for _, di := range docImages {
		if !di.IsFormula || di.Latex == "" {
			continue
		}
		factID := "formula_" + di.ID
		facts = append(facts, llm.FactCandidate{
			FactID:     factID,
			ChunkID:    fmt.Sprintf("c_img_%04d", di.Page),
			Statement:  fmt.Sprintf("Formula on page %d: $%s$", di.Page, di.Latex),
			FactType:   "formula",
			Importance: 5,
		})
		byFactID[factID] = di
	}
	return facts, byFactID
}

func buildDrafts(outline llm.Outline, merged []llm.FactCandidate) []llm.SectionDraft {
	drafts := make([]llm.SectionDraft, 0, len(outline.Sections))
	for _, sec := range outline.Sections {
		draft := llm.SectionDraft{Heading: sec.Heading}
		for _, sub := range sec.Subsections {
			sd := llm.SubsectionDraft{Heading: sub.Heading}
			for _, idx := range sub.FactIndices {
				if idx < len(merged) {
					sd.BulletTexts = append(sd.BulletTexts, merged[idx].Statement)
				}
			}
			draft.Subsections = append(draft.Subsections, sd)
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

// assembleDeck materializes the outline into store inputs. Every bullet
// gets a span: text facts cite their source chunk snippet, formula facts
// cite a placeholder span on the image's page.
func assembleDeck(
	outline llm.Outline,
	merged []llm.FactCandidate,
	annotations []string,
	factChunk map[string]pdf.Chunk,
	formulaImages map[string]models.DocumentImage,
) ([]store.SectionInput, int) {
	usedFactIDs := make(map[string]bool)
	annotationIdx := 0

	sections := make([]store.SectionInput, 0, len(outline.Sections))
	for _, sec := range outline.Sections {
		si := store.SectionInput{Heading: sec.Heading, SummaryNote: sec.SummaryNote}

		for _, sub := range sec.Subsections {
			ann := ""
			if annotationIdx < len(annotations) {
				ann = annotations[annotationIdx]
			}
			annotationIdx++

			ssi := store.SubsectionInput{Heading: sub.Heading, Annotation: ann}
			for _, factIdx := range sub.FactIndices {
				if factIdx >= len(merged) {
					continue
				}
				mf := merged[factIdx]
				usedFactIDs[mf.FactID] = true

				bullet := store.BulletInput{Text: mf.Statement}
				if di, ok := formulaImages[mf.FactID]; ok {
					id := di.ID
					bullet.ImageID = &id
				}

				if src, ok := factChunk[mf.FactID]; ok {
					cs, ce := src.CharStart, src.CharEnd
					bullet.Span = &store.SpanInput{
						Page:           src.Page,
						ParagraphIndex: src.ParagraphIndex,
						QuoteSnippet:   cite.BestSnippet(mf.Statement, src.Text, cite.DefaultSnippetLen),
						CharStart:      &cs,
						CharEnd:        &ce,
					}
				} else if di, ok := formulaImages[mf.FactID]; ok {
					bullet.Span = &store.SpanInput{
						Page:           di.Page,
						ParagraphIndex: 0,
						QuoteSnippet:   fmt.Sprintf("[Formula image on page %d]", di.Page),
					}
				}

				ssi.Bullets = append(ssi.Bullets, bullet)
			}
			si.Subsections = append(si.Subsections, ssi)
		}
		sections = append(sections, si)
	}
	return sections, len(usedFactIDs)
}
