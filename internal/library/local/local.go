// Package local implements library.Library over a plain directory tree.
package local

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"photosweep/internal/library"
)

// trashDirName is where deleted photos are moved so a delete is recoverable
// outside the tool.
const trashDirName = ".photosweep-trash"

// burstPattern matches burst sequence filenames like IMG_BURST001_003.jpg or
// 00012IMG_00012_BURST20230101.jpg. The shared prefix up to and including the
// burst token identifies the burst.
var burstPattern = regexp.MustCompile(`(?i)^(.*burst[0-9]*)`)

// Library reads photos from a directory tree.
type Library struct {
	root string
}

// New opens a local library rooted at dir.
func New(dir string) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("could not open library directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library path %s is not a directory", dir)
	}
	return &Library{root: dir}, nil
}

// ListAssets walks the tree and returns every supported image. Files that
// cannot be read or decoded are skipped.
func (l *Library) ListAssets(ctx context.Context) ([]library.Asset, error) {
	var assets []library.Asset

	err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			if info.Name() == trashDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !library.IsSupportedImage(path) {
			return nil
		}

		asset := library.Asset{
			ID:         path,
			Name:       info.Name(),
			CreatedAt:  captureTime(path, info),
			FileSizeMB: float64(info.Size()) / (1024 * 1024),
			BurstID:    burstID(info.Name()),
		}
		if w, h, err := imageDimensions(path); err == nil {
			asset.Width = w
			asset.Height = h
		}

		assets = append(assets, asset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not walk library directory: %w", err)
	}

	return assets, nil
}

// Image reads the image bytes for an asset. The asset ID must be a path
// inside the library root.
func (l *Library) Image(_ context.Context, assetID string) ([]byte, error) {
	if err := l.checkInsideRoot(assetID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(assetID)
	if err != nil {
		return nil, fmt.Errorf("could not read image %s: %w", assetID, err)
	}
	return data, nil
}

// DeleteAssets moves photos into the trash directory instead of unlinking
// them. Already-missing files are treated as deleted.
func (l *Library) DeleteAssets(_ context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	trashDir := filepath.Join(l.root, trashDirName)
	if err := os.MkdirAll(trashDir, 0750); err != nil {
		return fmt.Errorf("could not create trash directory: %w", err)
	}

	for _, id := range assetIDs {
		if err := l.checkInsideRoot(id); err != nil {
			return err
		}
		target := filepath.Join(trashDir, filepath.Base(id))
		// Avoid clobbering an earlier trashed file with the same name.
		if _, err := os.Stat(target); err == nil {
			target = filepath.Join(trashDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(id)))
		}
		if err := os.Rename(id, target); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("could not move %s to trash: %w", id, err)
		}
	}

	return nil
}

// ReplaceWithEdited writes the edited rendition next to the original with an
// "_edited" suffix, leaving the original untouched.
func (l *Library) ReplaceWithEdited(_ context.Context, assetID string, imageData []byte) error {
	if err := l.checkInsideRoot(assetID); err != nil {
		return err
	}

	ext := filepath.Ext(assetID)
	edited := strings.TrimSuffix(assetID, ext) + "_edited" + ext
	if err := os.WriteFile(edited, imageData, 0600); err != nil {
		return fmt.Errorf("could not write edited image: %w", err)
	}
	return nil
}

func (l *Library) checkInsideRoot(path string) error {
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("asset %s is outside the library root", path)
	}
	return nil
}

// captureTime prefers the EXIF DateTimeOriginal and falls back to the file
// modification time.
func captureTime(path string, info os.FileInfo) time.Time {
	f, err := os.Open(path)
	if err != nil {
		return info.ModTime()
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return info.ModTime()
	}
	taken, err := x.DateTime()
	if err != nil {
		return info.ModTime()
	}
	return taken
}

// imageDimensions decodes only the image header.
func imageDimensions(path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// burstID derives a burst identifier from burst sequence filenames. Photos
// sharing the prefix up to the burst token belong to the same burst.
func burstID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	m := burstPattern.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
