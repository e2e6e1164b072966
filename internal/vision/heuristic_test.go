package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func uniformImage(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return encodePNG(t, img)
}

func checkerboardImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return encodePNG(t, img)
}

func TestInspectFlagsBlurryImage(t *testing.T) {
	provider := NewHeuristicProvider(0)
	ctx := context.Background()

	// A mid-gray uniform image has no edges at all.
	flat := uniformImage(t, 32, 32, color.RGBA{128, 128, 128, 255})
	inspection, err := provider.Inspect(ctx, flat, nil)
	if err != nil {
		t.Fatalf("failed to inspect: %v", err)
	}
	if inspection.BlurScore == nil {
		t.Fatal("expected blur score for edgeless image")
	}
	if *inspection.BlurScore >= defaultBlurThreshold {
		t.Errorf("expected blur score below threshold, got %f", *inspection.BlurScore)
	}
}

func TestInspectPassesSharpImage(t *testing.T) {
	provider := NewHeuristicProvider(0)
	ctx := context.Background()

	sharp := checkerboardImage(t, 32, 32)
	inspection, err := provider.Inspect(ctx, sharp, nil)
	if err != nil {
		t.Fatalf("failed to inspect: %v", err)
	}
	if inspection.BlurScore != nil {
		t.Errorf("expected no blur flag for checkerboard, got score %f", *inspection.BlurScore)
	}
}

func TestInspectClassifiesExposure(t *testing.T) {
	provider := NewHeuristicProvider(0)
	ctx := context.Background()

	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"dark", uniformImage(t, 16, 16, color.RGBA{5, 5, 5, 255}), "underexposed"},
		{"bright", uniformImage(t, 16, 16, color.RGBA{250, 250, 250, 255}), "overexposed"},
		{"balanced", uniformImage(t, 16, 16, color.RGBA{128, 128, 128, 255}), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspection, err := provider.Inspect(ctx, tt.data, nil)
			if err != nil {
				t.Fatalf("failed to inspect: %v", err)
			}
			if tt.expected == "" {
				if inspection.Exposure != nil {
					t.Errorf("expected no exposure flag, got %s", *inspection.Exposure)
				}
				return
			}
			if inspection.Exposure == nil {
				t.Fatalf("expected exposure %s, got none", tt.expected)
			}
			if string(*inspection.Exposure) != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, *inspection.Exposure)
			}
		})
	}
}

func TestInspectDetectsScreenshots(t *testing.T) {
	provider := NewHeuristicProvider(0)
	ctx := context.Background()
	data := checkerboardImage(t, 16, 16)

	tests := []struct {
		name     string
		meta     *PhotoMeta
		expected bool
	}{
		{"by filename", &PhotoMeta{Name: "Screenshot 2023-01-15.png"}, true},
		{"localized filename", &PhotoMeta{Name: "Snímek obrazovky 2023.png"}, true},
		{"by dimensions", &PhotoMeta{Name: "photo.png", Width: 1080, Height: 1920}, true},
		{"ordinary photo", &PhotoMeta{Name: "beach.jpg", Width: 4000, Height: 3000}, false},
		{"no metadata", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspection, err := provider.Inspect(ctx, data, tt.meta)
			if err != nil {
				t.Fatalf("failed to inspect: %v", err)
			}
			if inspection.Screenshot != tt.expected {
				t.Errorf("expected screenshot=%v, got %v", tt.expected, inspection.Screenshot)
			}
		})
	}
}

func TestInspectBadImage(t *testing.T) {
	provider := NewHeuristicProvider(0)
	_, err := provider.Inspect(context.Background(), []byte("not an image"), nil)
	if err == nil {
		t.Fatal("expected error for undecodable data")
	}
}

func TestInspectCancelledContext(t *testing.T) {
	provider := NewHeuristicProvider(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Inspect(ctx, checkerboardImage(t, 8, 8), nil)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
