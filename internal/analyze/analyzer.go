// Package analyze runs one full analysis pass over a photo library and
// assembles the candidate groups the review session works through.
package analyze

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
	"photosweep/internal/cluster"
	"photosweep/internal/library"
	"photosweep/internal/phash"
	"photosweep/internal/vision"
)

// Options tunes one analysis pass.
type Options struct {
	// BatchLimit caps how many not-yet-analyzed assets get detector
	// scanning this pass. Zero means no limit.
	BatchLimit int
	// EnabledModules selects which categories run. Orientation is excluded
	// from the default set for performance; enabling it here opts in.
	EnabledModules []catalog.Category
	// DuplicateThreshold is the tight embedding distance bound.
	DuplicateThreshold float64
	// SimilarThreshold is the loose embedding distance bound.
	SimilarThreshold float64
	// Workers bounds detector parallelism. Zero selects a default.
	Workers int
	// Progress receives milestone and per-asset callbacks.
	Progress *ProgressSink
}

const defaultWorkers = 4

// Analyzer assembles candidate groups from a library using the configured
// collaborators. Embedder and Provider may be nil; the corresponding
// signals are then skipped.
type Analyzer struct {
	library  library.Library
	embedder vision.Embedder
	provider vision.Provider
	cache    *cache.AnalysisCache
}

// New creates an analyzer.
func New(lib library.Library, embedder vision.Embedder, provider vision.Provider, analysisCache *cache.AnalysisCache) *Analyzer {
	return &Analyzer{
		library:  lib,
		embedder: embedder,
		provider: provider,
		cache:    analysisCache,
	}
}

// scannedAsset carries everything one pass learns about a single photo.
type scannedAsset struct {
	asset      library.Asset
	record     catalog.ImageRecord
	imageData  []byte
	hash       string
	embedding  []float32
	inspection *vision.Inspection
	inspected  bool
}

// Run executes one full pass and returns the assembled groups in category
// order. Cancellation discards all partial results.
func (a *Analyzer) Run(ctx context.Context, opts Options) ([]catalog.PhotoGroup, error) {
	enabled := enabledSet(opts.EnabledModules)

	assets, err := a.library.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	// Stable oldest-first ordering makes grouping reproducible.
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt.Before(assets[j].CreatedAt)
	})

	opts.Progress.milestone(MilestoneStarting)

	scanned, err := a.fetchAndFingerprint(ctx, assets)
	if err != nil {
		return nil, err
	}

	var groups []catalog.PhotoGroup

	if enabled[catalog.CategoryDuplicates] {
		groups = append(groups, a.duplicateGroups(scanned, opts)...)
		opts.Progress.milestone(MilestoneDuplicates)
	}

	if enabled[catalog.CategorySimilars] {
		groups = append(groups, a.similarGroups(scanned, opts)...)
		opts.Progress.milestone(MilestoneSimilars)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleanRecords, issueGroups, err := a.scanIssues(ctx, scanned, opts, enabled)
	if err != nil {
		return nil, err
	}
	groups = append(groups, issueGroups...)

	opts.Progress.milestone(MilestoneDone)

	// Clean markers are persisted after results are ready; delivery never
	// blocks on the cache.
	if len(cleanRecords) > 0 {
		a.cache.MarkAnalyzedBackground(context.WithoutCancel(ctx), cleanRecords)
	}

	return groups, nil
}

// fetchAndFingerprint downloads every asset and computes its hash and
// embedding with a bounded worker pool. Results come back in input order.
// Per-asset fetch or fingerprint failures leave those signals empty.
func (a *Analyzer) fetchAndFingerprint(ctx context.Context, assets []library.Asset) ([]scannedAsset, error) {
	scanned := make([]scannedAsset, len(assets))

	type result struct {
		index     int
		imageData []byte
		hash      string
		embedding []float32
	}

	resultsChan := make(chan result, len(assets))
	semaphore := make(chan struct{}, defaultWorkers)
	var wg sync.WaitGroup

	for i, asset := range assets {
		wg.Add(1)
		go func(idx int, as library.Asset) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- result{index: idx}
				return
			}

			data, err := a.library.Image(ctx, as.ID)
			if err != nil {
				log.Printf("warning: could not fetch %s: %v", as.ID, err)
				resultsChan <- result{index: idx}
				return
			}

			r := result{index: idx, imageData: data}
			if hash, err := phash.AverageHash(data); err == nil {
				r.hash = hash
			}
			if a.embedder != nil {
				model := a.embedder.Model()
				if cached := a.cache.CachedEmbedding(ctx, as.ID, model); cached != nil {
					r.embedding = cached
				} else if emb, err := a.embedder.ComputeEmbedding(ctx, data); err == nil {
					r.embedding = emb
					a.cache.StoreEmbedding(ctx, as.ID, model, emb)
				} else {
					log.Printf("warning: embedding failed for %s: %v", as.ID, err)
				}
			}
			resultsChan <- r
		}(i, asset)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for r := range resultsChan {
		scanned[r.index].imageData = r.imageData
		scanned[r.index].hash = r.hash
		scanned[r.index].embedding = r.embedding
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, asset := range assets {
		rec := catalog.NewImageRecord(asset.ID)
		rec.Name = asset.Name
		rec.CreatedAt = asset.CreatedAt
		rec.Width = asset.Width
		rec.Height = asset.Height
		rec.FileSizeMB = asset.FileSizeMB
		scanned[i].asset = asset
		scanned[i].record = rec
	}

	return scanned, nil
}

// duplicateGroups emits exact-hash buckets, then clusters the remaining
// embeddings with the tight threshold, then appends burst groups gated on
// the duplicates negatives.
func (a *Analyzer) duplicateGroups(scanned []scannedAsset, opts Options) []catalog.PhotoGroup {
	records := make([]catalog.ImageRecord, 0, len(scanned))
	hashes := make(map[string]string)
	for _, s := range scanned {
		records = append(records, s.record)
		if s.hash != "" {
			hashes[s.record.ID] = s.hash
		}
	}

	groups := cluster.BucketByHash(records, hashes)

	bucketed := make(map[string]struct{})
	for _, g := range groups {
		for _, id := range g.MemberIDs() {
			bucketed[id] = struct{}{}
		}
	}

	var items []cluster.Embedded
	for _, s := range scanned {
		if _, ok := bucketed[s.record.ID]; ok {
			continue
		}
		if len(s.embedding) == 0 {
			continue
		}
		items = append(items, cluster.Embedded{Record: s.record, Vector: s.embedding})
	}
	clusterer := cluster.NewClusterer(opts.DuplicateThreshold, catalog.CategoryDuplicates)
	groups = append(groups, clusterer.Cluster(items)...)

	var bursts []cluster.BurstMember
	for _, s := range scanned {
		if s.asset.BurstID == "" {
			continue
		}
		bursts = append(bursts, cluster.BurstMember{BurstID: s.asset.BurstID, Record: s.record})
	}
	groups = append(groups, cluster.GroupBursts(bursts, a.cache.RecordsFor(catalog.CategoryDuplicates))...)

	return groups
}

func (a *Analyzer) similarGroups(scanned []scannedAsset, opts Options) []catalog.PhotoGroup {
	var items []cluster.Embedded
	for _, s := range scanned {
		if len(s.embedding) == 0 {
			continue
		}
		items = append(items, cluster.Embedded{Record: s.record, Vector: s.embedding})
	}
	clusterer := cluster.NewClusterer(opts.SimilarThreshold, catalog.CategorySimilars)
	return clusterer.Cluster(items)
}

// issueModules are the per-asset detector categories in milestone order.
var issueModules = []struct {
	category  catalog.Category
	milestone Milestone
}{
	{catalog.CategoryBlurry, MilestoneBlurry},
	{catalog.CategoryExposure, MilestoneExposure},
	{catalog.CategoryFaces, MilestoneFaces},
	{catalog.CategoryOrientation, MilestoneOrientation},
}

// scanIssues runs the issue detectors over assets not yet cleared by the
// cache, up to the batch limit, and materializes one group per non-empty
// module. Screenshot collection runs over every asset with no cache gate.
func (a *Analyzer) scanIssues(ctx context.Context, scanned []scannedAsset, opts Options, enabled map[catalog.Category]bool) ([]catalog.AnalysisRecord, []catalog.PhotoGroup, error) {
	var gatedModules []catalog.Category
	for _, m := range issueModules {
		if enabled[m.category] {
			gatedModules = append(gatedModules, m.category)
		}
	}

	analyzed := a.cache.Union(gatedModules)

	// Pick scan targets in order, respecting the batch limit.
	var targets []int
	for i := range scanned {
		if scanned[i].imageData == nil {
			continue
		}
		if _, ok := analyzed[scanned[i].asset.ID]; ok {
			continue
		}
		if opts.BatchLimit > 0 && len(targets) >= opts.BatchLimit {
			break
		}
		targets = append(targets, i)
	}

	if len(gatedModules) > 0 && a.provider != nil {
		if err := a.inspectTargets(ctx, scanned, targets, opts); err != nil {
			return nil, nil, err
		}
	}

	var cleanRecords []catalog.AnalysisRecord
	var groups []catalog.PhotoGroup

	for _, m := range issueModules {
		if !enabled[m.category] {
			continue
		}
		var hits []catalog.ImageRecord
		for _, i := range targets {
			s := &scanned[i]
			if !s.inspected {
				continue
			}
			if hit, rec := moduleHit(m.category, s); hit {
				hits = append(hits, rec)
			} else {
				cleanRecords = append(cleanRecords, catalog.AnalysisRecord{
					AssetID:   s.asset.ID,
					Module:    m.category,
					Timestamp: time.Now(),
				})
			}
		}
		if len(hits) > 0 {
			groups = append(groups, catalog.NewPhotoGroup(m.category, hits))
		}
		opts.Progress.milestone(m.milestone)
	}

	if enabled[catalog.CategoryScreenshots] {
		var hits []catalog.ImageRecord
		for i := range scanned {
			s := &scanned[i]
			detected := vision.IsScreenshotName(s.asset.Name) ||
				vision.IsScreenSize(s.asset.Width, s.asset.Height) ||
				(s.inspection != nil && s.inspection.Screenshot)
			if detected {
				hits = append(hits, s.record)
			}
		}
		if len(hits) > 0 {
			groups = append(groups, catalog.NewPhotoGroup(catalog.CategoryScreenshots, hits))
		}
		opts.Progress.milestone(MilestoneScreenshots)
	}

	return cleanRecords, groups, nil
}

// inspectTargets fans the provider out over the target assets with a
// bounded worker pool, checking for cancellation per asset. Detection
// failures are swallowed; the asset is simply left uninspected.
func (a *Analyzer) inspectTargets(ctx context.Context, scanned []scannedAsset, targets []int, opts Options) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	type result struct {
		index      int
		inspection *vision.Inspection
		inspected  bool
	}

	resultsChan := make(chan result, len(targets))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, idx := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				resultsChan <- result{index: i}
				return
			}

			s := &scanned[i]
			meta := &vision.PhotoMeta{
				Name:       s.asset.Name,
				Width:      s.asset.Width,
				Height:     s.asset.Height,
				ScreenLike: vision.IsScreenSize(s.asset.Width, s.asset.Height),
			}
			if !s.asset.CreatedAt.IsZero() {
				meta.TakenAt = s.asset.CreatedAt.Format("2006-01-02")
			}

			inspection, err := a.provider.Inspect(ctx, s.imageData, meta)
			if err != nil {
				log.Printf("warning: inspection failed for %s: %v", s.asset.ID, err)
				resultsChan <- result{index: i}
				return
			}
			resultsChan <- result{index: i, inspection: inspection, inspected: true}
		}(idx)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	done := 0
	for r := range resultsChan {
		scanned[r.index].inspection = r.inspection
		scanned[r.index].inspected = r.inspected
		done++
		opts.Progress.asset(done, len(targets))
	}

	return ctx.Err()
}

// moduleHit reports whether an inspection flags the asset for the module
// and returns the record with its issue flags attached.
func moduleHit(module catalog.Category, s *scannedAsset) (bool, catalog.ImageRecord) {
	insp := s.inspection
	if insp == nil {
		return false, s.record
	}

	hit := false
	switch module {
	case catalog.CategoryBlurry:
		hit = insp.BlurScore != nil
	case catalog.CategoryExposure:
		hit = insp.Exposure != nil
	case catalog.CategoryFaces:
		hit = len(insp.FaceIssues) > 0
	case catalog.CategoryOrientation:
		hit = insp.Orientation != nil
	}
	if !hit {
		return false, s.record
	}

	rec := s.record
	rec.Issues = insp.Flags()
	return true, rec
}

func enabledSet(modules []catalog.Category) map[catalog.Category]bool {
	set := make(map[catalog.Category]bool, len(modules))
	for _, m := range modules {
		set[m] = true
	}
	return set
}
