package handlers

import (
	"encoding/json"
	"net/http"

	"photosweep/internal/catalog"
	"photosweep/internal/engine"
)

// GroupsHandler serves the working group list and the decision endpoints.
type GroupsHandler struct {
	holder *SessionHolder
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(holder *SessionHolder) *GroupsHandler {
	return &GroupsHandler{holder: holder}
}

// requireSession fetches the active session or responds with 409 when no
// scan has completed yet.
func (h *GroupsHandler) requireSession(w http.ResponseWriter) *engine.Session {
	session := h.holder.Get()
	if session == nil {
		respondError(w, http.StatusConflict, "no completed scan, start one first")
	}
	return session
}

// List returns the current candidate groups.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}

	groups := session.Groups()
	respondJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// DecisionRequest represents a keep/delete verdict on one image.
type DecisionRequest struct {
	ImageID  string `json:"image_id"`
	Action   string `json:"action"`
	Category string `json:"category"`
}

// Decide applies a keep or delete decision.
func (h *GroupsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ImageID == "" {
		respondError(w, http.StatusBadRequest, "image_id is required")
		return
	}

	action := catalog.Action(req.Action)
	if action != catalog.ActionKeep && action != catalog.ActionDelete {
		respondError(w, http.StatusBadRequest, "action must be keep or delete")
		return
	}
	category := catalog.Category(req.Category)
	if !category.Valid() {
		respondError(w, http.StatusBadRequest, "unknown category")
		return
	}

	session.ApplyDecision(req.ImageID, action, category)
	respondJSON(w, http.StatusOK, map[string]any{
		"groups": session.Groups(),
	})
}

// UndoRequest names the category whose newest decision should be reverted.
type UndoRequest struct {
	Category string `json:"category"`
}

// Undo reverses the most recent decision in a category.
func (h *GroupsHandler) Undo(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w)
	if session == nil {
		return
	}

	var req UndoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	category := catalog.Category(req.Category)
	if !category.Valid() {
		respondError(w, http.StatusBadRequest, "unknown category")
		return
	}

	session.Undo(category)
	respondJSON(w, http.StatusOK, map[string]any{
		"groups":     session.Groups(),
		"mismatches": session.MismatchCount(),
	})
}
