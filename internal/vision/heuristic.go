package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/rwcarlsen/goexif/exif"

	"photosweep/internal/catalog"
)

// Default heuristic thresholds. Blur scores are Laplacian variances on a
// 0-255 luma scale; sharp photos usually land well above 100.
const (
	defaultBlurThreshold = 60.0
	underexposedLuma     = 40.0
	overexposedLuma      = 215.0
	clippedFraction      = 0.80
)

// HeuristicProvider detects photo issues from pure image statistics. It is
// the default provider and needs no API key or network access.
type HeuristicProvider struct {
	blurThreshold float64
}

// NewHeuristicProvider creates a heuristic provider. A non-positive
// threshold selects the default.
func NewHeuristicProvider(blurThreshold float64) *HeuristicProvider {
	if blurThreshold <= 0 {
		blurThreshold = defaultBlurThreshold
	}
	return &HeuristicProvider{blurThreshold: blurThreshold}
}

func (p *HeuristicProvider) Name() string {
	return "heuristic"
}

// Inspect computes blur, exposure, orientation and screenshot signals.
func (p *HeuristicProvider) Inspect(ctx context.Context, imageData []byte, meta *PhotoMeta) (*Inspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	luma := lumaPlane(img)
	inspection := &Inspection{Confidence: 1.0}

	if variance := laplacianVariance(luma); variance < p.blurThreshold {
		inspection.BlurScore = &variance
	}

	if exposure := classifyExposure(luma); exposure != "" {
		inspection.Exposure = &exposure
	}

	if rotation := exifRotation(imageData); rotation != 0 {
		inspection.Orientation = &rotation
	}

	if meta != nil {
		if IsScreenshotName(meta.Name) || IsScreenSize(meta.Width, meta.Height) {
			inspection.Screenshot = true
		}
	}

	return inspection, nil
}

// lumaPlane converts an image to a BT.601 luma grid.
func lumaPlane(img image.Image) [][]float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	luma := make([][]float64, h)
	for y := 0; y < h; y++ {
		luma[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			luma[y][x] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
		}
	}
	return luma
}

// laplacianVariance measures sharpness as the variance of the 4-neighbor
// Laplacian. Blurry photos have weak edges and a low variance.
func laplacianVariance(luma [][]float64) float64 {
	h := len(luma)
	if h < 3 {
		return 0
	}
	w := len(luma[0])
	if w < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := luma[y-1][x] + luma[y+1][x] + luma[y][x-1] + luma[y][x+1] - 4*luma[y][x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// classifyExposure flags photos whose luma mass sits at either histogram
// extreme. Returns "" for acceptable exposure.
func classifyExposure(luma [][]float64) catalog.ExposureCategory {
	var total, dark, bright float64
	for _, row := range luma {
		for _, v := range row {
			total++
			if v < underexposedLuma {
				dark++
			}
			if v > overexposedLuma {
				bright++
			}
		}
	}
	if total == 0 {
		return ""
	}
	if dark/total > clippedFraction {
		return catalog.ExposureUnder
	}
	if bright/total > clippedFraction {
		return catalog.ExposureOver
	}
	return ""
}

// exifRotation returns the rotation in degrees implied by the EXIF
// orientation tag, or 0 when the photo is upright or has no tag.
func exifRotation(imageData []byte) int {
	x, err := exif.Decode(bytes.NewReader(imageData))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 0
	}

	switch orientation {
	case 3:
		return 180
	case 6:
		return 90
	case 8:
		return 270
	default:
		return 0
	}
}
