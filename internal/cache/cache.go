// Package cache tracks which assets were already analyzed per module so
// rescans stay incremental.
package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"photosweep/internal/catalog"
)

// writeChunkSize bounds the size of one store write during background
// persistence.
const writeChunkSize = 100

// AnalysisCache remembers, per module, the assets that were scanned and
// found clean. Assets with an issue are represented by their presence in a
// result group instead and are never recorded here: they get re-evaluated
// on every pass until deleted, kept or corrected. This asymmetry is
// deliberate.
//
// Reads and writes are safe to interleave from concurrent scan passes as
// long as at most one pass writes a given module at a time.
type AnalysisCache struct {
	mu      sync.RWMutex
	records map[catalog.Category]map[string]time.Time
	store   Store // nil for a memory-only cache
}

// New creates an empty memory-only cache.
func New() *AnalysisCache {
	return &AnalysisCache{records: make(map[catalog.Category]map[string]time.Time)}
}

// Load builds a cache backed by the given store, warmed with the persisted
// negatives of every module.
func Load(ctx context.Context, store Store) (*AnalysisCache, error) {
	c := New()
	c.store = store
	for _, module := range catalog.AllCategories {
		analyzed, err := store.Analyzed(ctx, module)
		if err != nil {
			return nil, err
		}
		if len(analyzed) > 0 {
			c.records[module] = analyzed
		}
	}
	return c, nil
}

// IsAnalyzed reports whether the asset was already scanned clean for the module.
func (c *AnalysisCache) IsAnalyzed(assetID string, module catalog.Category) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[module][assetID]
	return ok
}

// RecordsFor returns the set of asset ids scanned clean for the module.
func (c *AnalysisCache) RecordsFor(module catalog.Category) map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]struct{}, len(c.records[module]))
	for id := range c.records[module] {
		out[id] = struct{}{}
	}
	return out
}

// Union returns the combined negatives of the given modules.
func (c *AnalysisCache) Union(modules []catalog.Category) map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]struct{})
	for _, module := range modules {
		for id := range c.records[module] {
			out[id] = struct{}{}
		}
	}
	return out
}

// MarkAnalyzed records the batch in memory and, when a store is attached,
// persists it. The append is idempotent.
func (c *AnalysisCache) MarkAnalyzed(ctx context.Context, records []catalog.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}

	c.remember(records)

	if c.store == nil {
		return nil
	}
	return c.store.MarkAnalyzed(ctx, records)
}

// MarkAnalyzedBackground records the batch in memory immediately and
// persists it in the background in chunks, best effort: a failed chunk is
// logged and skipped. A lost write only degrades future incrementality, it
// never corrupts the current session.
func (c *AnalysisCache) MarkAnalyzedBackground(ctx context.Context, records []catalog.AnalysisRecord) {
	if len(records) == 0 {
		return
	}

	c.remember(records)

	if c.store == nil {
		return
	}

	go func() {
		for start := 0; start < len(records); start += writeChunkSize {
			end := min(start+writeChunkSize, len(records))
			if err := c.store.MarkAnalyzed(ctx, records[start:end]); err != nil {
				log.Printf("analysis cache: failed to persist %d records: %v", end-start, err)
			}
		}
	}()
}

func (c *AnalysisCache) remember(records []catalog.AnalysisRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		byModule := c.records[rec.Module]
		if byModule == nil {
			byModule = make(map[string]time.Time)
			c.records[rec.Module] = byModule
		}
		if _, exists := byModule[rec.AssetID]; !exists {
			byModule[rec.AssetID] = rec.Timestamp
		}
	}
}

// Clear drops the negatives for one module, forcing a full rescan of it.
func (c *AnalysisCache) Clear(ctx context.Context, module catalog.Category) error {
	c.mu.Lock()
	delete(c.records, module)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.ClearAnalyzed(ctx, module)
}

// ClearAll drops the negatives for every module.
func (c *AnalysisCache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	c.records = make(map[catalog.Category]map[string]time.Time)
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.ClearAllAnalyzed(ctx)
}

// Count returns the number of recorded negatives for a module.
func (c *AnalysisCache) Count(module catalog.Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records[module])
}

// CachedEmbedding returns the persisted embedding for an asset, or nil when
// absent, computed by a different model, or without a store. Lookup errors
// are logged and treated as a miss so a flaky store only costs a recompute.
func (c *AnalysisCache) CachedEmbedding(ctx context.Context, assetID, model string) []float32 {
	if c.store == nil {
		return nil
	}
	emb, err := c.store.Embedding(ctx, assetID)
	if err != nil {
		log.Printf("analysis cache: failed to read embedding for %s: %v", assetID, err)
		return nil
	}
	if emb == nil || emb.Model != model {
		return nil
	}
	return emb.Vector
}

// StoreEmbedding persists a freshly computed embedding, best effort.
func (c *AnalysisCache) StoreEmbedding(ctx context.Context, assetID, model string, vector []float32) {
	if c.store == nil || len(vector) == 0 {
		return
	}
	err := c.store.SaveEmbedding(ctx, StoredEmbedding{
		AssetID:   assetID,
		Vector:    vector,
		Model:     model,
		Dim:       len(vector),
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("analysis cache: failed to persist embedding for %s: %v", assetID, err)
	}
}
