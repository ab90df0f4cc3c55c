package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/local/slidenode/internal/formula"
	"github.com/local/slidenode/internal/models"
	"github.com/local/slidenode/internal/pdf"
)

// flakyStore fails uploads whose key contains a marker and records the
// rest. Uploads run concurrently, so recording is locked.
type flakyStore struct {
	failOn string

	mu   sync.Mutex
	keys []string
}

func (s *flakyStore) Upload(_ context.Context, key string, _ io.Reader) error {
	if s.failOn != "" && strings.Contains(key, s.failOn) {
		return errors.New("bucket unavailable")
	}
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return nil
}

func (s *flakyStore) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *flakyStore) Delete(context.Context, string) error { return nil }

type rowRecorder struct {
	rows []models.DocumentImage
}

func (r *rowRecorder) CreateDocumentImage(img *models.DocumentImage) error {
	r.rows = append(r.rows, *img)
	return nil
}

func testImage(id string, page, index int) pdf.Image {
	return pdf.Image{
		ImageID:    id,
		Page:       page,
		ImageIndex: index,
		Data:       []byte("raster bytes for " + id),
		Ext:        "png",
		Width:      120,
		Height:     60,
	}
}

func TestIngestRecordsSuccessfulUploads(t *testing.T) {
	blobs := &flakyStore{}
	rec := &rowRecorder{}
	doc := &models.Document{ID: "doc-1"}

	out := New(blobs, formula.NewDetector(nil)).Ingest(context.Background(), rec, doc,
		[]pdf.Image{testImage("img-1", 1, 0), testImage("img-2", 2, 0)})

	if len(out) != 2 || len(rec.rows) != 2 {
		t.Fatalf("got %d results, %d rows, want 2 each", len(out), len(rec.rows))
	}
	// Rows come back in input order even though uploads are concurrent.
	if rec.rows[0].Page != 1 || rec.rows[1].Page != 2 {
		t.Errorf("row order wrong: pages %d, %d", rec.rows[0].Page, rec.rows[1].Page)
	}
	if want := "documents/doc-1/images/img-1.png"; rec.rows[0].StorageKey != want {
		t.Errorf("storage key = %q, want %q", rec.rows[0].StorageKey, want)
	}
	if rec.rows[0].IsFormula {
		t.Error("formula detection should be disabled without an ocr client")
	}
}

func TestIngestSkipsFailedUploads(t *testing.T) {
	blobs := &flakyStore{failOn: "img-bad"}
	rec := &rowRecorder{}
	doc := &models.Document{ID: "doc-1"}

	out := New(blobs, formula.NewDetector(nil)).Ingest(context.Background(), rec, doc,
		[]pdf.Image{testImage("img-ok", 1, 0), testImage("img-bad", 1, 1)})

	if len(out) != 1 || len(rec.rows) != 1 {
		t.Fatalf("got %d results, %d rows, want 1 each (failed upload skipped)", len(out), len(rec.rows))
	}
	if !strings.Contains(rec.rows[0].StorageKey, "img-ok") {
		t.Errorf("wrong image survived: %q", rec.rows[0].StorageKey)
	}
	for _, k := range blobs.keys {
		if strings.Contains(k, "img-bad") {
			t.Errorf("failed image recorded as uploaded: %q", k)
		}
	}
}

func TestIngestEmptyInput(t *testing.T) {
	out := New(&flakyStore{}, formula.NewDetector(nil)).Ingest(context.Background(), &rowRecorder{}, &models.Document{ID: "d"}, nil)
	if out != nil {
		t.Errorf("got %v, want nil for empty input", out)
	}
}

type stubOCR struct{ latex string }

func (s *stubOCR) Predict(context.Context, []byte) (string, error) { return s.latex, nil }

func TestIngestClassifiesFormulas(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 60))
	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, white)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	formulaImg := testImage("img-f", 4, 0)
	formulaImg.Data = buf.Bytes()

	rec := &rowRecorder{}
	out := New(&flakyStore{}, formula.NewDetector(&stubOCR{latex: `a^2+b^2=c^2`})).
		Ingest(context.Background(), rec, &models.Document{ID: "doc-1"}, []pdf.Image{formulaImg})

	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}
	if !out[0].IsFormula || out[0].Latex != `a^2+b^2=c^2` {
		t.Errorf("formula not classified: %+v", out[0])
	}
}
