package cache

import (
	"context"
	"time"

	"photosweep/internal/catalog"
)

// StoredEmbedding is a persisted embedding vector for one asset, cached so
// re-scans only embed assets that are new to the library.
type StoredEmbedding struct {
	AssetID   string
	Vector    []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// Store is the durable backend behind the analysis cache and the pending
// group state. Implementations must give MarkAnalyzed merge/union semantics
// across process restarts (idempotent append, no total-overwrite race) and
// return nil, not an error, for lookups that find nothing.
type Store interface {
	// Analysis negatives ("scanned and clean") per module.
	MarkAnalyzed(ctx context.Context, records []catalog.AnalysisRecord) error
	Analyzed(ctx context.Context, module catalog.Category) (map[string]time.Time, error)
	ClearAnalyzed(ctx context.Context, module catalog.Category) error
	ClearAllAnalyzed(ctx context.Context) error

	// Pending candidate groups surviving across sessions. Groups round-trip
	// membership by image id; image bytes are never persisted.
	SavePendingGroups(ctx context.Context, groups []catalog.PhotoGroup) error
	LoadPendingGroups(ctx context.Context) ([]catalog.PhotoGroup, error)
	ClearCategory(ctx context.Context, category catalog.Category) error

	// Embedding cache.
	SaveEmbedding(ctx context.Context, emb StoredEmbedding) error
	Embedding(ctx context.Context, assetID string) (*StoredEmbedding, error)
	Embeddings(ctx context.Context) ([]StoredEmbedding, error)

	Close() error
}
