package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Rotate turns an image clockwise by the given number of degrees (90, 180
// or 270) and re-encodes it as JPEG. The degrees value matches the
// Orientation field of an inspection: how far the photo must turn to be
// upright.
func Rotate(data []byte, degrees int) ([]byte, error) {
	if degrees%360 == 0 {
		return data, nil
	}
	if degrees != 90 && degrees != 180 && degrees != 270 {
		return nil, fmt.Errorf("unsupported rotation %d degrees", degrees)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var rotated *image.RGBA
	if degrees == 180 {
		rotated = image.NewRGBA(image.Rect(0, 0, width, height))
	} else {
		rotated = image.NewRGBA(image.Rect(0, 0, height, width))
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch degrees {
			case 90:
				rotated.Set(height-1-y, x, c)
			case 180:
				rotated.Set(width-1-x, height-1-y, c)
			case 270:
				rotated.Set(y, width-1-x, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rotated, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode rotated image: %w", err)
	}
	return buf.Bytes(), nil
}
