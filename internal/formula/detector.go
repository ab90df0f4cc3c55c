// Package formula classifies embedded images as math formulas and turns
// them into LaTeX via an OCR sidecar.
package formula

import (
	"bytes"
	"context"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
)

// LatexOCR converts a formula image into a LaTeX string.
type LatexOCR interface {
	Predict(ctx context.Context, imageBytes []byte) (string, error)
}

// Detector gates images through a cheap raster heuristic before paying
// for OCR. A nil OCR client disables formula detection entirely.
type Detector struct {
	ocr LatexOCR
}

func NewDetector(ocr LatexOCR) *Detector {
	return &Detector{ocr: ocr}
}

// Detect returns the LaTeX for the image and true when it is a formula.
// Undecodable images, gate rejections and OCR failures all return false.
func (d *Detector) Detect(ctx context.Context, imageBytes []byte) (string, bool) {
	if d == nil || d.ocr == nil {
		return "", false
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", false
	}
	if !isCandidate(img) {
		return "", false
	}

	latex, err := d.ocr.Predict(ctx, imageBytes)
	if err != nil {
		log.Debug().Err(err).Msg("latex ocr failed on image")
		return "", false
	}
	latex = strings.TrimSpace(latex)
	if !acceptLatex(latex) {
		return "", false
	}
	return latex, true
}

// isCandidate filters for formula-shaped images: moderate size, not
// extremely tall, mostly light background.
func isCandidate(img image.Image) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > 2000 || h > 2000 {
		return false
	}
	if w < 20 || h < 20 {
		return false
	}

	aspect := float64(w) / float64(max(h, 1))
	if aspect < 0.3 {
		return false
	}

	return lightRatio(img) >= 0.5
}

// lightRatio is the fraction of pixels with gray intensity above 200.
func lightRatio(img image.Image) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	light := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels scaled to 8-bit
			gray := (19595*r + 38470*g + 7471*bl + 1<<15) >> 24
			if gray > 200 {
				light++
			}
		}
	}
	return float64(light) / float64(total)
}

const mathIndicators = `\^_{}+=()-*/`

// acceptLatex rejects trivial OCR output. Short strings must contain at
// least one math-like character to count as a formula.
func acceptLatex(latex string) bool {
	if len(latex) < 2 {
		return false
	}
	if strings.ContainsAny(latex, mathIndicators) {
		return true
	}
	return len(latex) >= 10
}
