package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"photosweep/internal/catalog"
)

// ActionsFor returns the pending confirmations for one category, newest
// first, matching their relative order in the full ledger.
func (s *Session) ActionsFor(category catalog.Category) []catalog.ConfirmationAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.ConfirmationAction
	for _, a := range s.ledger {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

// Toggle flips a pending confirmation between keep and delete. An unknown
// action id is a logged no-op.
func (s *Session) Toggle(actionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.ledger {
		if s.ledger[i].ID != actionID {
			continue
		}
		if s.ledger[i].Action == catalog.ActionDelete {
			s.ledger[i].Action = catalog.ActionKeep
		} else {
			s.ledger[i].Action = catalog.ActionDelete
		}
		return
	}
	log.Printf("toggle for unknown action %s ignored", actionID)
}

// Commit finalizes every pending confirmation in the given category. All
// delete verdicts go to the library in one batched call; if that call fails
// the ledger and history are left untouched so the commit can be retried.
// On success every committed asset, kept or deleted, is marked analyzed for
// the category and its pending state is cleared.
func (s *Session) Commit(ctx context.Context, category catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var committed []catalog.ConfirmationAction
	var deleteIDs []string
	for _, a := range s.ledger {
		if a.Category != category {
			continue
		}
		committed = append(committed, a)
		if a.Action == catalog.ActionDelete && a.Image.AssetID != "" {
			deleteIDs = append(deleteIDs, a.Image.AssetID)
		}
	}
	if len(committed) == 0 {
		return nil
	}

	if len(deleteIDs) > 0 {
		if err := s.library.DeleteAssets(ctx, deleteIDs); err != nil {
			return fmt.Errorf("could not delete assets: %w", err)
		}
	}

	// The photos are gone (or confirmed kept); everything past this point
	// is bookkeeping and must not resurrect the batch on failure.
	now := time.Now()
	records := make([]catalog.AnalysisRecord, 0, len(committed))
	for _, a := range committed {
		if a.Image.AssetID == "" {
			continue
		}
		records = append(records, catalog.AnalysisRecord{
			AssetID:   a.Image.AssetID,
			Module:    category,
			Timestamp: now,
		})
	}
	if s.cache != nil {
		if err := s.cache.MarkAnalyzed(ctx, records); err != nil {
			log.Printf("failed to mark committed assets analyzed: %v", err)
		}
	}

	filtered := s.ledger[:0]
	for _, a := range s.ledger {
		if a.Category != category {
			filtered = append(filtered, a)
		}
	}
	s.ledger = filtered

	committedImages := make(map[string]struct{}, len(committed))
	for _, a := range committed {
		committedImages[a.Image.ID] = struct{}{}
	}
	remaining := s.history[:0]
	for _, rec := range s.history {
		if _, ok := committedImages[rec.Image.ID]; !ok {
			remaining = append(remaining, rec)
		}
	}
	s.history = remaining

	if s.store != nil {
		if err := s.store.ClearCategory(ctx, category); err != nil {
			log.Printf("failed to clear pending groups for %s: %v", category, err)
		}
	}
	return nil
}

// Save persists the current working groups so a later session can resume
// reviewing them. A session without a store is a no-op.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.SavePendingGroups(ctx, s.groups); err != nil {
		return fmt.Errorf("could not save pending groups: %w", err)
	}
	return nil
}
