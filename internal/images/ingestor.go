// Package images uploads extracted document images and classifies them
// as formulas.
package images

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/slidenode/internal/formula"
	"github.com/local/slidenode/internal/metrics"
	"github.com/local/slidenode/internal/models"
	"github.com/local/slidenode/internal/pdf"
	"github.com/local/slidenode/internal/storage"
)

// Recorder persists image rows; satisfied by store.Store.
type Recorder interface {
	CreateDocumentImage(img *models.DocumentImage) error
}

// Ingestor runs formula detection and blob upload in parallel per image,
// then records rows serially in input order.
type Ingestor struct {
	blobs    storage.Store
	detector *formula.Detector
}

func New(blobs storage.Store, detector *formula.Detector) *Ingestor {
	return &Ingestor{blobs: blobs, detector: detector}
}

type result struct {
	latex     string
	isFormula bool
	key       string
	uploaded  bool
}

// Ingest processes all images for a document. Upload failures drop the
// image; they never fail the job.
func (g *Ingestor) Ingest(ctx context.Context, rec Recorder, doc *models.Document, imgs []pdf.Image) []models.DocumentImage {
	if len(imgs) == 0 {
		return nil
	}

	results := make(map[string]result, len(imgs))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(min(4, len(imgs)))
	for _, img := range imgs {
		eg.Go(func() error {
			latex, isFormula := g.detector.Detect(egCtx, img.Data)
			key := fmt.Sprintf("documents/%s/images/%s.%s", doc.ID, img.ImageID, img.Ext)
			uploaded := true
			if err := g.blobs.Upload(egCtx, key, bytes.NewReader(img.Data)); err != nil {
				log.Warn().Str("image_id", img.ImageID).Err(err).Msg("image upload failed")
				uploaded = false
			}
			mu.Lock()
			results[img.ImageID] = result{latex: latex, isFormula: isFormula, key: key, uploaded: uploaded}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	var out []models.DocumentImage
	for _, img := range imgs {
		res, ok := results[img.ImageID]
		if !ok || !res.uploaded {
			metrics.IncImage("upload_failed")
			continue
		}
		row := models.DocumentImage{
			DocumentID: doc.ID,
			Page:       img.Page,
			ImageIndex: img.ImageIndex,
			StorageKey: res.key,
			Width:      img.Width,
			Height:     img.Height,
			IsFormula:  res.isFormula,
			Latex:      res.latex,
		}
		if err := rec.CreateDocumentImage(&row); err != nil {
			log.Warn().Str("image_id", img.ImageID).Err(err).Msg("image record insert failed")
			continue
		}
		if res.isFormula {
			metrics.IncImage("formula")
		} else {
			metrics.IncImage("stored")
		}
		out = append(out, row)
	}
	return out
}
