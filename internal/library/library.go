// Package library abstracts the photo store the cleanup engine works
// against. Implementations exist for a local directory and for a remote
// PhotoPrism instance.
package library

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Asset is one photo as the backing store knows it. ID is the store's
// stable identifier (a file path for local libraries, a photo UID for
// PhotoPrism).
type Asset struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	Width      int
	Height     int
	FileSizeMB float64
	BurstID    string // empty when the asset is not part of a burst
}

// Library is the photo store contract the analyzer and the ledger need.
type Library interface {
	// ListAssets returns all photos in the library.
	ListAssets(ctx context.Context) ([]Asset, error)

	// Image returns the full-resolution image bytes for one asset.
	Image(ctx context.Context, assetID string) ([]byte, error)

	// DeleteAssets removes the given assets from the library. A partial
	// failure must leave the store in a state where retrying is safe.
	DeleteAssets(ctx context.Context, assetIDs []string) error

	// ReplaceWithEdited stores an edited rendition of an asset without
	// destroying the original.
	ReplaceWithEdited(ctx context.Context, assetID string, imageData []byte) error
}

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsSupportedImage reports whether the path has a decodable image extension.
func IsSupportedImage(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}
