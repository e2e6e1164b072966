// Package phash computes coarse perceptual fingerprints used for
// exact-duplicate bucketing.
package phash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// gridSize is the edge length of the downsampled luminance grid.
const gridSize = 8

// AverageHash computes a 64-bit average hash for the given encoded image.
// The image is downsampled to an 8x8 luminance grid and each bit is set iff
// the cell's luminance exceeds the grid mean. Two images with an identical
// hash are treated as exact duplicates.
//
// Returns the hash as a hex string usable as a bucket key. Decode failures
// return an error; the caller excludes the asset from hash bucketing but it
// stays eligible for embedding-based clustering.
func AverageHash(imageData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	return fmt.Sprintf("%016x", averageHashBits(img)), nil
}

// averageHashBits computes the raw 64-bit average hash of a decoded image.
func averageHashBits(img image.Image) uint64 {
	gray := toGrayscale(resizeImage(img, gridSize, gridSize))

	var sum float64
	for x := range gridSize {
		for y := range gridSize {
			sum += gray[x][y]
		}
	}
	mean := sum / (gridSize * gridSize)

	var hash uint64
	bit := 63
	for y := range gridSize {
		for x := range gridSize {
			if gray[x][y] > mean {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}
