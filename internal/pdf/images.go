package pdf

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

// Images smaller than this on either axis are decorative (icons, rules).
const minImageDim = 20

// extractImages pulls embedded raster images from every page. Individual
// image failures are skipped. pdfcpu does not report page placement, so
// the bounding box defaults to the intrinsic pixel rect.
func extractImages(data []byte) ([]Image, error) {
	conf := model.NewDefaultConfiguration()
	pageImages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, err
	}

	var out []Image
	for _, byObj := range pageImages {
		objNrs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		idx := 0
		for _, nr := range objNrs {
			img := byObj[nr]
			raw, err := io.ReadAll(img)
			if err != nil || len(raw) == 0 {
				log.Debug().Int("obj", nr).Int("page", img.PageNr).Msg("skipping unreadable image object")
				continue
			}

			ext := strings.ToLower(img.FileType)
			if ext == "jpg" {
				ext = "jpeg"
			}
			if img.Width < minImageDim || img.Height < minImageDim {
				continue
			}

			out = append(out, Image{
				ImageID:    uuid.NewString(),
				Page:       img.PageNr,
				ImageIndex: idx,
				Data:       raw,
				Ext:        ext,
				Width:      img.Width,
				Height:     img.Height,
				BBox:       [4]float64{0, 0, float64(img.Width), float64(img.Height)},
			})
			idx++
		}
	}
	return out, nil
}
