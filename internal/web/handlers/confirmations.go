package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"photosweep/internal/catalog"
	"photosweep/internal/engine"
)

// ConfirmationsHandler serves the pending-verdict ledger.
type ConfirmationsHandler struct {
	holder *SessionHolder
}

// NewConfirmationsHandler creates a new confirmations handler.
func NewConfirmationsHandler(holder *SessionHolder) *ConfirmationsHandler {
	return &ConfirmationsHandler{holder: holder}
}

func (h *ConfirmationsHandler) requireSession(w http.ResponseWriter) *engine.Session {
	session := h.holder.Get()
	if session == nil {
		respondError(w, http.StatusConflict, "no completed scan, start one first")
	}
	return session
}

func categoryParam(w http.ResponseWriter, r *http.Request) (catalog.Category, bool) {
	category := catalog.Category(chi.URLParam(r, "category"))
	if !category.Valid() {
		respondError(w, http.StatusBadRequest, "unknown category")
		return "", false
	}
	return category, true
}

// List returns the pending confirmations for one category, newest first.
func (h *ConfirmationsHandler) List(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	actions := session.ActionsFor(category)
	respondJSON(w, http.StatusOK, map[string]any{
		"actions": actions,
		"count":   len(actions),
	})
}

// Toggle flips one pending confirmation between keep and delete.
func (h *ConfirmationsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}

	actionID := chi.URLParam(r, "actionId")
	if actionID == "" {
		respondError(w, http.StatusBadRequest, "missing action ID")
		return
	}

	session.Toggle(actionID)
	respondJSON(w, http.StatusOK, map[string]bool{"toggled": true})
}

// Commit finalizes every pending confirmation in one category.
func (h *ConfirmationsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	if err := session.Commit(r.Context(), category); err != nil {
		respondError(w, http.StatusBadGateway, "commit failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "committed",
		"category": string(category),
	})
}
