package cluster

import (
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSW index parameters for image embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswSearchMultiplier is the factor to request more candidates from
	// HNSW to ensure enough remain after distance filtering.
	hnswSearchMultiplier = 3
)

// IndexedEmbedding is one entry of the in-memory similarity index.
type IndexedEmbedding struct {
	AssetID string
	Vector  []float32
}

// Index wraps an HNSW graph over asset embeddings for approximate
// nearest-neighbor lookup. Reported distances are exact cosine distances
// recomputed against the stored vectors.
type Index struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
	mu      sync.RWMutex
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{vectors: make(map[string][]float32)}
}

// Build replaces the index contents with the given embeddings. Entries with
// empty vectors are skipped.
func (ix *Index) Build(embeddings []IndexedEmbedding) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(embeddings) == 0 {
		ix.graph = nil
		ix.vectors = make(map[string][]float32)
		return
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	ix.vectors = make(map[string][]float32, len(embeddings))
	for _, emb := range embeddings {
		if len(emb.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(emb.AssetID, emb.Vector))
		ix.vectors[emb.AssetID] = emb.Vector
	}
	ix.graph = g
}

// Count returns the number of indexed embeddings.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Vector returns the stored vector for an asset, or nil if not indexed.
func (ix *Index) Vector(assetID string) []float32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.vectors[assetID]
}

// Search finds up to k nearest neighbors of the query vector, filtered to
// exact cosine distance below maxDistance. Pass maxDistance <= 0 to disable
// filtering.
func (ix *Index) Search(query []float32, k int, maxDistance float64) ([]string, []float64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, nil, fmt.Errorf("index not initialized")
	}

	searchK := k
	if maxDistance > 0 {
		// Request more candidates for better recall after filtering.
		searchK = k * hnswSearchMultiplier
	}

	neighbors := ix.graph.Search(query, searchK)

	var ids []string
	var distances []float64
	for _, n := range neighbors {
		vec, ok := ix.vectors[n.Key]
		if !ok {
			continue
		}
		dist, err := CosineDistance(query, vec)
		if err != nil {
			continue
		}
		if maxDistance > 0 && dist >= maxDistance {
			continue
		}
		ids = append(ids, n.Key)
		distances = append(distances, dist)
		if len(ids) == k {
			break
		}
	}

	return ids, distances, nil
}

// Save persists the graph to disk. An empty index removes the file.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		os.Remove(path)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	return ix.graph.Export(f)
}
