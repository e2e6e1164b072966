// Package cluster groups assets into candidate duplicate and similarity
// groups from embedding vectors, perceptual hash buckets and capture bursts.
package cluster

import (
	"photosweep/internal/catalog"
)

// Embedded pairs an image record with its embedding vector.
type Embedded struct {
	Record catalog.ImageRecord
	Vector []float32
}

// Clusterer produces similarity groups via greedy single-link clustering
// with a distance threshold. The algorithm is order-sensitive by design:
// results are deterministic for a given input order.
type Clusterer struct {
	threshold float64
	category  catalog.Category
}

// NewClusterer creates a clusterer. The threshold is exclusive: pairs at
// exactly the threshold distance are not grouped. Groups are emitted with
// the given category (tight threshold for duplicates, looser for similars).
func NewClusterer(threshold float64, category catalog.Category) *Clusterer {
	return &Clusterer{threshold: threshold, category: category}
}

// Cluster runs one clustering pass over the items in input order.
//
// Each item seeds at most one group; once an item is consumed into a group
// it is permanently ineligible for any other group in the same pass. A group
// is only emitted with at least two members. The group score is the mean of
// the recorded seed distances, or 0 when no distance samples were recorded.
// Malformed vectors fail per pair, never the pass.
func (c *Clusterer) Cluster(items []Embedded) []catalog.PhotoGroup {
	var groups []catalog.PhotoGroup

	processed := make([]bool, len(items))
	grouped := make(map[string]struct{}) // ids already placed in a group this pass

	for i := range items {
		if processed[i] {
			continue
		}
		processed[i] = true

		seed := items[i]
		members := []catalog.ImageRecord{seed.Record}
		var distances []float64

		for j := i + 1; j < len(items); j++ {
			if processed[j] {
				continue
			}
			if _, ok := grouped[items[j].Record.ID]; ok {
				continue
			}

			dist, err := CosineDistance(seed.Vector, items[j].Vector)
			if err != nil {
				continue // skip the pair, not the pass
			}
			if dist < c.threshold {
				members = append(members, items[j].Record)
				distances = append(distances, dist)
				processed[j] = true
			}
		}

		if len(members) < 2 {
			continue
		}

		group := catalog.NewPhotoGroup(c.category, members)
		group.Score = meanDistance(distances)
		groups = append(groups, group)

		for _, m := range members {
			grouped[m.ID] = struct{}{}
		}
	}

	return groups
}

func meanDistance(distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	var sum float64
	for _, d := range distances {
		sum += d
	}
	return sum / float64(len(distances))
}

// BucketByHash groups records sharing an identical perceptual hash into
// exact-duplicate groups with score 0. Records with an empty hash (decode
// failures) are ignored. Bucket iteration follows first appearance order so
// output is deterministic.
func BucketByHash(records []catalog.ImageRecord, hashes map[string]string) []catalog.PhotoGroup {
	buckets := make(map[string][]catalog.ImageRecord)
	var order []string

	for _, rec := range records {
		h := hashes[rec.ID]
		if h == "" {
			continue
		}
		if _, seen := buckets[h]; !seen {
			order = append(order, h)
		}
		buckets[h] = append(buckets[h], rec)
	}

	var groups []catalog.PhotoGroup
	for _, h := range order {
		members := buckets[h]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, catalog.NewPhotoGroup(catalog.CategoryDuplicates, members))
	}
	return groups
}
