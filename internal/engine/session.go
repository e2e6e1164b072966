// Package engine owns the state of one cleanup session: the working group
// list, the decision history and the confirmation ledger. All mutation goes
// through the session so the invariants stay enforced in one place.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"photosweep/internal/cache"
	"photosweep/internal/catalog"
	"photosweep/internal/library"
)

// Session drives the keep/delete/undo workflow over one pass's groups.
// Methods are safe for concurrent use; logically the session still has a
// single owner and operations are serialized in call order.
type Session struct {
	mu         sync.Mutex
	groups     []catalog.PhotoGroup
	history    []catalog.DecisionRecord
	ledger     []catalog.ConfirmationAction
	mismatches int

	library library.Library
	cache   *cache.AnalysisCache
	store   cache.Store // nil when pending state is not persisted
}

// NewSession creates a session over the given groups.
func NewSession(groups []catalog.PhotoGroup, lib library.Library, analysisCache *cache.AnalysisCache, store cache.Store) *Session {
	return &Session{
		groups:  groups,
		library: lib,
		cache:   analysisCache,
		store:   store,
	}
}

// Groups returns a snapshot of the current working groups.
func (s *Session) Groups() []catalog.PhotoGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.PhotoGroup, len(s.groups))
	for i, g := range s.groups {
		out[i] = g
		out[i].Images = append([]catalog.ImageRecord(nil), g.Images...)
	}
	return out
}

// MismatchCount returns how many structural mismatches undo has recovered
// from. A rising count indicates a history-tracking bug.
func (s *Session) MismatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mismatches
}

// ApplyDecision records a keep or delete verdict for an image. The image is
// removed from every group containing it, one history record is written per
// such group, and one confirmation action lands at the head of the ledger.
// An unknown image id is a logged no-op.
func (s *Session) ApplyDecision(imageID string, action catalog.Action, category catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	containing := s.groupIndexesOf(imageID)
	if len(containing) == 0 {
		log.Printf("decision for unknown image %s ignored", imageID)
		return
	}

	now := time.Now()
	var image catalog.ImageRecord

	for _, gi := range containing {
		g := &s.groups[gi]
		ii := g.IndexOf(imageID)
		image = g.Images[ii]

		s.history = append(s.history, catalog.DecisionRecord{
			ID:              uuid.NewString(),
			Action:          action,
			Image:           image,
			GroupIndex:      gi,
			ImageIndex:      ii,
			GroupMemberIDs:  g.MemberIDs(),
			Category:        g.Category,
			DecidedCategory: category,
			CreatedAt:       now,
		})
	}

	for _, gi := range containing {
		g := &s.groups[gi]
		ii := g.IndexOf(imageID)
		g.Images = append(g.Images[:ii], g.Images[ii+1:]...)
	}
	s.pruneEmptyGroups()

	s.ledger = append([]catalog.ConfirmationAction{{
		ID:       uuid.NewString(),
		Image:    image,
		Action:   action,
		Category: category,
	}}, s.ledger...)
}

// Undo reverses the most recent decision in the given category. All history
// records of that decision event are replayed back into the groups; each
// record restores its own group from its snapshot. Empty history for the
// category is a logged no-op.
func (s *Session) Undo(category catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imageID := ""
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].DecidedCategory == category {
			imageID = s.history[i].Image.ID
			break
		}
	}
	if imageID == "" {
		log.Printf("nothing to undo for category %s", category)
		return
	}

	// One decision event spans every group that contained the image.
	var collected []catalog.DecisionRecord
	remaining := s.history[:0]
	for _, rec := range s.history {
		if rec.Image.ID == imageID {
			collected = append(collected, rec)
		} else {
			remaining = append(remaining, rec)
		}
	}
	s.history = remaining

	for _, rec := range collected {
		s.restore(rec)
	}

	// Drop the image's pending confirmations.
	filtered := s.ledger[:0]
	for _, a := range s.ledger {
		if a.Image.ID != imageID {
			filtered = append(filtered, a)
		}
	}
	s.ledger = filtered
}

// restore reinserts one record's image into the group its snapshot points
// at. A group pruned by the decision is re-created at its old position so
// the list round-trips exactly; an out-of-bounds index or a membership
// mismatch substitutes a fresh placeholder group, favoring safety over
// silent misplacement.
func (s *Session) restore(rec catalog.DecisionRecord) {
	gi := rec.GroupIndex

	if gi >= len(s.groups) || s.snapshotHeldOnly(rec) {
		placeholder := catalog.NewPhotoGroup(rec.Category, nil)
		pos := min(gi, len(s.groups))
		s.groups = append(s.groups[:pos], append([]catalog.PhotoGroup{placeholder}, s.groups[pos:]...)...)
		gi = pos
	} else if !s.membershipMatches(gi, rec) {
		log.Printf("structural mismatch restoring image %s into group %d", rec.Image.ID, gi)
		s.mismatches++
		s.groups[gi] = catalog.NewPhotoGroup(rec.Category, nil)
	}

	g := &s.groups[gi]
	if g.Contains(rec.Image.ID) {
		return
	}

	ii := min(rec.ImageIndex, len(g.Images))
	g.Images = append(g.Images[:ii], append([]catalog.ImageRecord{rec.Image}, g.Images[ii:]...)...)
}

// membershipMatches checks the group at gi against the record's snapshot,
// ignoring the restored image on both sides.
func (s *Session) membershipMatches(gi int, rec catalog.DecisionRecord) bool {
	expected := make([]string, 0, len(rec.GroupMemberIDs))
	for _, id := range rec.GroupMemberIDs {
		if id != rec.Image.ID {
			expected = append(expected, id)
		}
	}

	current := make([]string, 0, len(s.groups[gi].Images))
	for _, img := range s.groups[gi].Images {
		if img.ID != rec.Image.ID {
			current = append(current, img.ID)
		}
	}

	if len(expected) != len(current) {
		return false
	}
	for i := range expected {
		if expected[i] != current[i] {
			return false
		}
	}
	return true
}

// snapshotHeldOnly reports whether the record's group held nothing but the
// restored image. Removing it emptied and pruned the group, so undo must
// re-create the group rather than compare against whatever shifted into its
// index.
func (s *Session) snapshotHeldOnly(rec catalog.DecisionRecord) bool {
	for _, id := range rec.GroupMemberIDs {
		if id != rec.Image.ID {
			return false
		}
	}
	return true
}

func (s *Session) groupIndexesOf(imageID string) []int {
	var out []int
	for i := range s.groups {
		if s.groups[i].Contains(imageID) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Session) pruneEmptyGroups() {
	kept := s.groups[:0]
	for _, g := range s.groups {
		if len(g.Images) > 0 {
			kept = append(kept, g)
		}
	}
	s.groups = kept
}
