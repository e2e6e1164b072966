// Package mock provides an in-memory Store implementation for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
)

// Store is an in-memory cache.Store with error injection.
type Store struct {
	mu       sync.RWMutex
	analyzed map[catalog.Category]map[string]time.Time
	pending  []catalog.PhotoGroup
	embs     map[string]cache.StoredEmbedding

	// Error injection
	MarkAnalyzedError error
	AnalyzedError     error
	SaveGroupsError   error
	LoadGroupsError   error
	ClearError        error
	EmbeddingError    error
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		analyzed: make(map[catalog.Category]map[string]time.Time),
		embs:     make(map[string]cache.StoredEmbedding),
	}
}

// MarkAnalyzed appends analysis records idempotently.
func (s *Store) MarkAnalyzed(ctx context.Context, records []catalog.AnalysisRecord) error {
	if s.MarkAnalyzedError != nil {
		return s.MarkAnalyzedError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		byModule := s.analyzed[rec.Module]
		if byModule == nil {
			byModule = make(map[string]time.Time)
			s.analyzed[rec.Module] = byModule
		}
		if _, ok := byModule[rec.AssetID]; !ok {
			byModule[rec.AssetID] = rec.Timestamp
		}
	}
	return nil
}

// Analyzed returns the recorded negatives for a module.
func (s *Store) Analyzed(ctx context.Context, module catalog.Category) (map[string]time.Time, error) {
	if s.AnalyzedError != nil {
		return nil, s.AnalyzedError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.analyzed[module]))
	for id, ts := range s.analyzed[module] {
		out[id] = ts
	}
	return out, nil
}

// ClearAnalyzed drops the negatives for one module.
func (s *Store) ClearAnalyzed(ctx context.Context, module catalog.Category) error {
	if s.ClearError != nil {
		return s.ClearError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.analyzed, module)
	return nil
}

// ClearAllAnalyzed drops every module's negatives.
func (s *Store) ClearAllAnalyzed(ctx context.Context) error {
	if s.ClearError != nil {
		return s.ClearError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyzed = make(map[catalog.Category]map[string]time.Time)
	return nil
}

// SavePendingGroups replaces the persisted pending groups.
func (s *Store) SavePendingGroups(ctx context.Context, groups []catalog.PhotoGroup) error {
	if s.SaveGroupsError != nil {
		return s.SaveGroupsError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]catalog.PhotoGroup(nil), groups...)
	return nil
}

// LoadPendingGroups returns the persisted pending groups.
func (s *Store) LoadPendingGroups(ctx context.Context) ([]catalog.PhotoGroup, error) {
	if s.LoadGroupsError != nil {
		return nil, s.LoadGroupsError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.PhotoGroup(nil), s.pending...), nil
}

// ClearCategory removes pending groups of one category.
func (s *Store) ClearCategory(ctx context.Context, category catalog.Category) error {
	if s.ClearError != nil {
		return s.ClearError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []catalog.PhotoGroup
	for _, g := range s.pending {
		if g.Category != category {
			kept = append(kept, g)
		}
	}
	s.pending = kept
	return nil
}

// SaveEmbedding stores an embedding keyed by asset id.
func (s *Store) SaveEmbedding(ctx context.Context, emb cache.StoredEmbedding) error {
	if s.EmbeddingError != nil {
		return s.EmbeddingError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embs[emb.AssetID] = emb
	return nil
}

// Embedding returns the stored embedding for an asset, or nil.
func (s *Store) Embedding(ctx context.Context, assetID string) (*cache.StoredEmbedding, error) {
	if s.EmbeddingError != nil {
		return nil, s.EmbeddingError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	emb, ok := s.embs[assetID]
	if !ok {
		return nil, nil
	}
	return &emb, nil
}

// Embeddings returns all stored embeddings.
func (s *Store) Embeddings(ctx context.Context) ([]cache.StoredEmbedding, error) {
	if s.EmbeddingError != nil {
		return nil, s.EmbeddingError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cache.StoredEmbedding, 0, len(s.embs))
	for _, emb := range s.embs {
		out = append(out, emb)
	}
	return out, nil
}

// Close is a no-op for the mock store.
func (s *Store) Close() error { return nil }
