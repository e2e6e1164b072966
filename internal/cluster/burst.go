package cluster

import (
	"photosweep/internal/catalog"
)

// BurstMember is one asset belonging to a capture burst.
type BurstMember struct {
	BurstID string
	Record  catalog.ImageRecord
}

// GroupBursts groups assets sharing a burst identifier into candidate
// duplicate groups with score 0.
//
// analyzed holds the duplicates-module negatives from the analysis cache: a
// burst is only emitted if at least two of its members are not already
// cleared, which avoids re-materializing bursts whose members were already
// reviewed. Each burst id is processed once per call.
func GroupBursts(members []BurstMember, analyzed map[string]struct{}) []catalog.PhotoGroup {
	bursts := make(map[string][]catalog.ImageRecord)
	var order []string

	for _, m := range members {
		if m.BurstID == "" {
			continue
		}
		if _, seen := bursts[m.BurstID]; !seen {
			order = append(order, m.BurstID)
		}
		bursts[m.BurstID] = append(bursts[m.BurstID], m.Record)
	}

	var groups []catalog.PhotoGroup
	for _, id := range order {
		records := bursts[id]
		if len(records) < 2 {
			continue
		}

		fresh := 0
		for _, rec := range records {
			if _, ok := analyzed[rec.ID]; !ok {
				fresh++
			}
		}
		if fresh < 2 {
			continue
		}

		groups = append(groups, catalog.NewPhotoGroup(catalog.CategoryDuplicates, records))
	}
	return groups
}
