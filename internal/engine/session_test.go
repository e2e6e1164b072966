package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"photosweep/internal/cache"
	"photosweep/internal/cache/mock"
	"photosweep/internal/catalog"
	"photosweep/internal/library"
)

type fakeLibrary struct {
	mu          sync.Mutex
	deleteCalls [][]string
	deleteErr   error
}

func (f *fakeLibrary) ListAssets(ctx context.Context) ([]library.Asset, error) {
	return nil, nil
}

func (f *fakeLibrary) Image(ctx context.Context, assetID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeLibrary) DeleteAssets(ctx context.Context, assetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, append([]string(nil), assetIDs...))
	return nil
}

func (f *fakeLibrary) ReplaceWithEdited(ctx context.Context, assetID string, imageData []byte) error {
	return nil
}

func group(category catalog.Category, ids ...string) catalog.PhotoGroup {
	images := make([]catalog.ImageRecord, len(ids))
	for i, id := range ids {
		images[i] = catalog.NewImageRecord(id)
	}
	return catalog.NewPhotoGroup(category, images)
}

func memberIDs(g catalog.PhotoGroup) []string {
	return g.MemberIDs()
}

func assertMembers(t *testing.T, g catalog.PhotoGroup, want ...string) {
	t.Helper()
	got := memberIDs(g)
	if len(got) != len(want) {
		t.Fatalf("expected members %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected members %v, got %v", want, got)
		}
	}
}

func TestApplyDecisionRemovesFromSingleGroup(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a", "b", "c"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("b", catalog.ActionDelete, catalog.CategoryDuplicates)

	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	assertMembers(t, groups[0], "a", "c")

	if len(s.history) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(s.history))
	}
	rec := s.history[0]
	if rec.ImageIndex != 1 {
		t.Errorf("expected image index 1, got %d", rec.ImageIndex)
	}
	if rec.GroupIndex != 0 {
		t.Errorf("expected group index 0, got %d", rec.GroupIndex)
	}
	if len(rec.GroupMemberIDs) != 3 {
		t.Errorf("expected snapshot of 3 members, got %v", rec.GroupMemberIDs)
	}

	actions := s.ActionsFor(catalog.CategoryDuplicates)
	if len(actions) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(actions))
	}
	if actions[0].Action != catalog.ActionDelete {
		t.Errorf("expected delete action, got %s", actions[0].Action)
	}
	if actions[0].Image.ID != "b" {
		t.Errorf("expected action for b, got %s", actions[0].Image.ID)
	}
}

func TestApplyDecisionRemovesFromAllGroups(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "x", "y"),
		group(catalog.CategoryFaces, "x", "z"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("x", catalog.ActionDelete, catalog.CategoryBlurry)

	groups := s.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	assertMembers(t, groups[0], "y")
	assertMembers(t, groups[1], "z")

	if len(s.history) != 2 {
		t.Fatalf("expected one record per containing group, got %d", len(s.history))
	}
	for _, rec := range s.history {
		if rec.DecidedCategory != catalog.CategoryBlurry {
			t.Errorf("expected decided category blurry, got %s", rec.DecidedCategory)
		}
	}
	if s.history[0].Category != catalog.CategoryBlurry || s.history[1].Category != catalog.CategoryFaces {
		t.Errorf("expected snapshot categories blurry and faces, got %s and %s",
			s.history[0].Category, s.history[1].Category)
	}

	// One event, one confirmation.
	if len(s.ledger) != 1 {
		t.Fatalf("expected 1 ledger action, got %d", len(s.ledger))
	}
	if s.ledger[0].Category != catalog.CategoryBlurry {
		t.Errorf("expected ledger category blurry, got %s", s.ledger[0].Category)
	}
}

func TestApplyDecisionUnknownImage(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("missing", catalog.ActionKeep, catalog.CategoryDuplicates)

	if len(s.history) != 0 || len(s.ledger) != 0 {
		t.Errorf("expected no state change for unknown image")
	}
	assertMembers(t, s.Groups()[0], "a")
}

func TestApplyDecisionPrunesEmptiedGroups(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategorySimilars, "a", "b"),
		group(catalog.CategorySimilars, "solo"),
		group(catalog.CategorySimilars, "c"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("solo", catalog.ActionDelete, catalog.CategorySimilars)

	groups := s.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected emptied group pruned, got %d groups", len(groups))
	}
	assertMembers(t, groups[0], "a", "b")
	assertMembers(t, groups[1], "c")
	for _, g := range groups {
		if len(g.Images) == 0 {
			t.Error("empty group survived pruning")
		}
	}
}

func TestUndoRoundTrip(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a", "b", "c"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("b", catalog.ActionDelete, catalog.CategoryDuplicates)
	s.Undo(catalog.CategoryDuplicates)

	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	assertMembers(t, groups[0], "a", "b", "c")

	if len(s.history) != 0 {
		t.Errorf("expected empty history after undo, got %d records", len(s.history))
	}
	if len(s.ledger) != 0 {
		t.Errorf("expected empty ledger after undo, got %d actions", len(s.ledger))
	}
	if s.MismatchCount() != 0 {
		t.Errorf("clean undo must not count a mismatch, got %d", s.MismatchCount())
	}
}

func TestUndoRestoresPrunedMiddleGroup(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "a", "b"),
		group(catalog.CategoryBlurry, "solo"),
		group(catalog.CategoryBlurry, "c"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("solo", catalog.ActionDelete, catalog.CategoryBlurry)
	s.Undo(catalog.CategoryBlurry)

	groups := s.Groups()
	if len(groups) != 3 {
		t.Fatalf("expected pruned group re-created, got %d groups", len(groups))
	}
	assertMembers(t, groups[0], "a", "b")
	assertMembers(t, groups[1], "solo")
	assertMembers(t, groups[2], "c")
	if s.MismatchCount() != 0 {
		t.Errorf("re-creating a pruned group must not count as mismatch, got %d", s.MismatchCount())
	}
}

func TestUndoRestoresAllContainingGroups(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "x", "y"),
		group(catalog.CategoryFaces, "z", "x"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("x", catalog.ActionDelete, catalog.CategoryBlurry)
	s.Undo(catalog.CategoryBlurry)

	groups := s.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	assertMembers(t, groups[0], "x", "y")
	assertMembers(t, groups[1], "z", "x")
}

func TestUndoEmptyHistory(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.Undo(catalog.CategoryDuplicates)

	assertMembers(t, s.Groups()[0], "a")
}

func TestUndoMatchesDecisionCategory(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "x", "y"),
		group(catalog.CategorySimilars, "p", "q"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("x", catalog.ActionDelete, catalog.CategoryBlurry)
	s.ApplyDecision("p", catalog.ActionDelete, catalog.CategorySimilars)

	// Undoing blurry must revert x, not the more recent similars decision.
	s.Undo(catalog.CategoryBlurry)

	groups := s.Groups()
	assertMembers(t, groups[0], "x", "y")
	assertMembers(t, groups[1], "q")
	if len(s.ledger) != 1 || s.ledger[0].Image.ID != "p" {
		t.Errorf("expected p's confirmation to survive the blurry undo")
	}
}

func TestUndoStructuralMismatch(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "x", "y"),
		group(catalog.CategoryFaces, "z"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("x", catalog.ActionDelete, catalog.CategoryBlurry)
	// y's removal empties and prunes the blurry group, so the faces group
	// shifts into index 0 and x's snapshot no longer matches.
	s.ApplyDecision("y", catalog.ActionDelete, catalog.CategoryFaces)

	s.Undo(catalog.CategoryBlurry)

	if s.MismatchCount() != 1 {
		t.Fatalf("expected 1 recovered mismatch, got %d", s.MismatchCount())
	}
	groups := s.Groups()
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	assertMembers(t, groups[0], "x")
	if groups[0].Category != catalog.CategoryBlurry {
		t.Errorf("expected placeholder to carry the snapshot category, got %s", groups[0].Category)
	}
}

func TestToggle(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a", "b"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("a", catalog.ActionDelete, catalog.CategoryDuplicates)
	actionID := s.ledger[0].ID

	s.Toggle(actionID)
	if s.ledger[0].Action != catalog.ActionKeep {
		t.Errorf("expected toggle to keep, got %s", s.ledger[0].Action)
	}
	s.Toggle(actionID)
	if s.ledger[0].Action != catalog.ActionDelete {
		t.Errorf("expected toggle back to delete, got %s", s.ledger[0].Action)
	}

	s.Toggle("no-such-action")
	if s.ledger[0].Action != catalog.ActionDelete {
		t.Errorf("unknown toggle must not change state")
	}
}

func TestActionsForNewestFirst(t *testing.T) {
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a", "b", "c"),
		group(catalog.CategorySimilars, "m", "n"),
	}, &fakeLibrary{}, cache.New(), nil)

	s.ApplyDecision("a", catalog.ActionDelete, catalog.CategoryDuplicates)
	s.ApplyDecision("m", catalog.ActionKeep, catalog.CategorySimilars)
	s.ApplyDecision("b", catalog.ActionDelete, catalog.CategoryDuplicates)

	actions := s.ActionsFor(catalog.CategoryDuplicates)
	if len(actions) != 2 {
		t.Fatalf("expected 2 duplicate actions, got %d", len(actions))
	}
	if actions[0].Image.ID != "b" || actions[1].Image.ID != "a" {
		t.Errorf("expected newest-first order [b a], got [%s %s]",
			actions[0].Image.ID, actions[1].Image.ID)
	}
}

func TestCommit(t *testing.T) {
	lib := &fakeLibrary{}
	store := mock.NewStore()
	analysisCache, err := cache.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("failed to load cache: %v", err)
	}

	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "p", "q", "r"),
		group(catalog.CategorySimilars, "m", "n"),
	}, lib, analysisCache, store)

	s.ApplyDecision("p", catalog.ActionDelete, catalog.CategoryDuplicates)
	s.ApplyDecision("q", catalog.ActionDelete, catalog.CategoryDuplicates)
	s.ApplyDecision("r", catalog.ActionKeep, catalog.CategoryDuplicates)
	s.ApplyDecision("m", catalog.ActionDelete, catalog.CategorySimilars)

	if err := s.Commit(context.Background(), catalog.CategoryDuplicates); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if len(lib.deleteCalls) != 1 {
		t.Fatalf("expected one batched delete call, got %d", len(lib.deleteCalls))
	}
	deleted := lib.deleteCalls[0]
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted assets, got %v", deleted)
	}
	wantDeleted := map[string]bool{"p": true, "q": true}
	for _, id := range deleted {
		if !wantDeleted[id] {
			t.Errorf("unexpected deleted asset %s", id)
		}
	}

	// Kept and deleted assets alike are settled for the category.
	for _, id := range []string{"p", "q", "r"} {
		if !analysisCache.IsAnalyzed(id, catalog.CategoryDuplicates) {
			t.Errorf("expected %s marked analyzed for duplicates", id)
		}
	}
	if analysisCache.IsAnalyzed("m", catalog.CategorySimilars) {
		t.Error("similars decision must not be settled by a duplicates commit")
	}

	if got := s.ActionsFor(catalog.CategoryDuplicates); len(got) != 0 {
		t.Errorf("expected duplicates ledger cleared, got %d actions", len(got))
	}
	if got := s.ActionsFor(catalog.CategorySimilars); len(got) != 1 {
		t.Errorf("expected similars ledger untouched, got %d actions", len(got))
	}

	// Committed decisions are final; their history is gone.
	for _, rec := range s.history {
		if rec.Image.ID == "p" || rec.Image.ID == "q" || rec.Image.ID == "r" {
			t.Errorf("expected committed image %s purged from history", rec.Image.ID)
		}
	}
}

func TestCommitDeleteFailureLeavesStateIntact(t *testing.T) {
	lib := &fakeLibrary{deleteErr: errors.New("library unavailable")}
	analysisCache := cache.New()

	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "p", "q"),
	}, lib, analysisCache, nil)

	s.ApplyDecision("p", catalog.ActionDelete, catalog.CategoryDuplicates)

	if err := s.Commit(context.Background(), catalog.CategoryDuplicates); err == nil {
		t.Fatal("expected commit to propagate the delete failure")
	}

	if got := s.ActionsFor(catalog.CategoryDuplicates); len(got) != 1 {
		t.Errorf("expected ledger intact after failed commit, got %d actions", len(got))
	}
	if len(s.history) != 1 {
		t.Errorf("expected history intact after failed commit, got %d records", len(s.history))
	}
	if analysisCache.IsAnalyzed("p", catalog.CategoryDuplicates) {
		t.Error("failed commit must not settle any asset")
	}
}

func TestCommitKeepOnly(t *testing.T) {
	lib := &fakeLibrary{}
	analysisCache := cache.New()

	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryBlurry, "a", "b"),
	}, lib, analysisCache, nil)

	s.ApplyDecision("a", catalog.ActionKeep, catalog.CategoryBlurry)

	if err := s.Commit(context.Background(), catalog.CategoryBlurry); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(lib.deleteCalls) != 0 {
		t.Errorf("keep-only commit must not call the library, got %d calls", len(lib.deleteCalls))
	}
	if !analysisCache.IsAnalyzed("a", catalog.CategoryBlurry) {
		t.Error("expected kept asset settled for blurry")
	}
}

func TestCommitEmptyCategory(t *testing.T) {
	lib := &fakeLibrary{}
	s := NewSession(nil, lib, cache.New(), nil)

	if err := s.Commit(context.Background(), catalog.CategoryDuplicates); err != nil {
		t.Fatalf("empty commit failed: %v", err)
	}
	if len(lib.deleteCalls) != 0 {
		t.Errorf("empty commit must not call the library")
	}
}

func TestSavePersistsPendingGroups(t *testing.T) {
	store := mock.NewStore()
	s := NewSession([]catalog.PhotoGroup{
		group(catalog.CategoryDuplicates, "a", "b"),
	}, &fakeLibrary{}, cache.New(), store)

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.LoadPendingGroups(context.Background())
	if err != nil {
		t.Fatalf("failed to load pending groups: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 persisted group, got %d", len(loaded))
	}
	assertMembers(t, loaded[0], "a", "b")
}
