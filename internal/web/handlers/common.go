// Package handlers implements the REST API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"photosweep/internal/cache"
	"photosweep/internal/config"
	"photosweep/internal/engine"
	"photosweep/internal/library"
	"photosweep/internal/vision"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Deps bundles the collaborators the API handlers share.
type Deps struct {
	Config   *config.Config
	Library  library.Library
	Embedder vision.Embedder
	Provider vision.Provider
	Cache    *cache.AnalysisCache
	Store    cache.Store // nil when running without persistence
}

// SessionHolder shares the active review session between the scan handler,
// which creates it, and the group/confirmation handlers, which read it.
type SessionHolder struct {
	mu      sync.RWMutex
	session *engine.Session
}

// Set replaces the active session.
func (h *SessionHolder) Set(s *engine.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = s
}

// Get returns the active session, or nil before any scan completed.
func (h *SessionHolder) Get() *engine.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
