package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"photosweep/internal/analyze"
	"photosweep/internal/catalog"
	"photosweep/internal/engine"
)

// ScanHandler starts and tracks library scans.
type ScanHandler struct {
	deps       Deps
	jobManager *JobManager
	holder     *SessionHolder
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(deps Deps, jm *JobManager, holder *SessionHolder) *ScanHandler {
	return &ScanHandler{
		deps:       deps,
		jobManager: jm,
		holder:     holder,
	}
}

// StartScanRequest represents a scan start request.
type StartScanRequest struct {
	BatchLimit int      `json:"batch_limit"`
	Modules    []string `json:"modules"`
	DryRun     bool     `json:"dry_run"`
}

// Start kicks off a new scan job.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	options := ScanJobOptions{
		BatchLimit: req.BatchLimit,
		DryRun:     req.DryRun,
	}
	if options.BatchLimit <= 0 {
		options.BatchLimit = h.deps.Config.Analysis.BatchLimit
	}
	options.Modules = h.resolveModules(req.Modules)

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, options)

	go h.runScanJob(job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// Status returns the status of a scan job.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Events streams job events via SSE.
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job
		},
	)
}

// Cancel cancels a scan job.
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// resolveModules maps requested module names onto known categories, falling
// back to the configured defaults.
func (h *ScanHandler) resolveModules(requested []string) []catalog.Category {
	if len(requested) == 0 {
		return h.deps.Config.Analysis.EnabledModules()
	}
	var out []catalog.Category
	for _, name := range requested {
		cat := catalog.Category(name)
		if cat.Valid() {
			out = append(out, cat)
		} else {
			log.Printf("ignoring unknown module %s", sanitizeForLog(name))
		}
	}
	return out
}

// runScanJob runs the scan in the background and publishes progress events.
func (h *ScanHandler) runScanJob(job *ScanJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Scan started"})

	progress := &analyze.ProgressSink{
		OnMilestone: func(m analyze.Milestone) {
			job.mu.Lock()
			job.Milestone = m
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "milestone", Message: string(m)})
		},
		OnAsset: func(done, total int) {
			job.mu.Lock()
			job.ProcessedPhotos = done
			job.TotalPhotos = total
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "progress", Data: map[string]int{"done": done, "total": total}})
		},
	}

	analyzer := analyze.New(h.deps.Library, h.deps.Embedder, h.deps.Provider, h.deps.Cache)
	groups, err := analyzer.Run(ctx, analyze.Options{
		BatchLimit:         job.Options.BatchLimit,
		EnabledModules:     job.Options.Modules,
		DuplicateThreshold: h.deps.Config.Analysis.DuplicateThreshold,
		SimilarThreshold:   h.deps.Config.Analysis.SimilarThreshold,
		Workers:            h.deps.Config.Analysis.Workers,
		Progress:           progress,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled jobs keep their cancelled status.
			return
		}
		h.failJob(job, fmt.Sprintf("scan failed: %v", err))
		return
	}

	session := engine.NewSession(groups, h.deps.Library, h.deps.Cache, h.deps.Store)
	h.holder.Set(session)

	if !job.Options.DryRun {
		if err := session.Save(context.Background()); err != nil {
			log.Printf("failed to persist pending groups: %v", err)
		}
	}

	byCategory := make(map[catalog.Category]int)
	for _, g := range groups {
		byCategory[g.Category]++
	}

	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.CompletedAt = &now
	job.Result = &ScanJobResult{
		GroupCount:    len(groups),
		GroupsByClass: byCategory,
	}
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "completed", Data: job.Result})
}

// failJob marks a job as failed and notifies listeners.
func (h *ScanHandler) failJob(job *ScanJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "failed", Message: message})
}
