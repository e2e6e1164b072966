package phash

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodePNG renders an image to PNG bytes for hashing.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// halfAndHalf builds an image whose left half is dark and right half bright.
func halfAndHalf(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			c := color.RGBA{0, 0, 0, 255}
			if x >= w/2 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestAverageHashIdenticalImages(t *testing.T) {
	a := encodePNG(t, halfAndHalf(64, 64))
	b := encodePNG(t, halfAndHalf(64, 64))

	hashA, err := AverageHash(a)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}
	hashB, err := AverageHash(b)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}

	if hashA != hashB {
		t.Errorf("identical images must hash equally: %s != %s", hashA, hashB)
	}
	if len(hashA) != 16 {
		t.Errorf("expected 16 hex chars, got %d (%s)", len(hashA), hashA)
	}
}

func TestAverageHashScaleInvariance(t *testing.T) {
	// The same pattern at different resolutions should land in the same bucket.
	small := encodePNG(t, halfAndHalf(32, 32))
	large := encodePNG(t, halfAndHalf(256, 256))

	hashSmall, err := AverageHash(small)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}
	hashLarge, err := AverageHash(large)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}

	if hashSmall != hashLarge {
		t.Errorf("scaled copies should hash equally: %s != %s", hashSmall, hashLarge)
	}
}

func TestAverageHashDistinguishesImages(t *testing.T) {
	left := encodePNG(t, halfAndHalf(64, 64))

	// Inverted pattern: bright left, dark right.
	inv := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			c := color.RGBA{255, 255, 255, 255}
			if x >= 32 {
				c = color.RGBA{0, 0, 0, 255}
			}
			inv.Set(x, y, c)
		}
	}
	right := encodePNG(t, inv)

	hashLeft, err := AverageHash(left)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}
	hashRight, err := AverageHash(right)
	if err != nil {
		t.Fatalf("AverageHash failed: %v", err)
	}

	if hashLeft == hashRight {
		t.Error("opposite patterns must not share a hash")
	}
}

func TestAverageHashDecodeFailure(t *testing.T) {
	if _, err := AverageHash([]byte("not an image")); err == nil {
		t.Error("expected decode error for garbage input")
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xffff, 0xffff, 0},
		{"one bit", 0b1000, 0b0000, 1},
		{"all bits", 0, ^uint64(0), 64},
		{"mixed", 0b1010, 0b0101, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HammingDistance(tc.a, tc.b); got != tc.want {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
