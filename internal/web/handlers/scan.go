package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tomasrezac/photo-companion/internal/config"
	"github.com/tomasrezac/photo-companion/internal/dupes"
)

// ScanRunner is the slice of the scan coordinator the handler needs.
type ScanRunner interface {
	FullScan(ctx context.Context, opts dupes.ScanOptions) (*dupes.ScanSummary, error)
	Running() bool
}

// ScanHandler handles duplicate scan endpoints.
type ScanHandler struct {
	coordinator ScanRunner
	jobManager  *JobManager
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(coordinator ScanRunner, jm *JobManager) *ScanHandler {
	return &ScanHandler{
		coordinator: coordinator,
		jobManager:  jm,
	}
}

// ScanStartRequest represents a scan start request.
type ScanStartRequest struct {
	Threshold   float64 `json:"threshold"`
	Concurrency int     `json:"concurrency"`
}

// Start starts a new duplicate scan job.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ScanStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.Threshold == 0 {
		req.Threshold = config.DefaultSimilarityThreshold
	}
	if req.Threshold < config.MinSimilarityThreshold || req.Threshold > config.MaxSimilarityThreshold {
		respondError(w, http.StatusBadRequest, fmt.Sprintf(
			"threshold must be between %.1f and %.1f", config.MinSimilarityThreshold, config.MaxSimilarityThreshold))
		return
	}
	if req.Concurrency <= 0 {
		req.Concurrency = config.DefaultMaxConcurrentExtractions
	}

	if h.coordinator.Running() {
		respondError(w, http.StatusConflict, "a scan is already running")
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, ScanJobOptions{
		Threshold:   req.Threshold,
		Concurrency: req.Concurrency,
	})

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

// runScanJob runs the scan in the background.
func (h *ScanHandler) runScanJob(job *ScanJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Duplicate scan started"})

	summary, err := h.coordinator.FullScan(ctx, dupes.ScanOptions{
		Threshold:   job.Options.Threshold,
		Concurrency: job.Options.Concurrency,
		OnProgress: func(info dupes.ProgressInfo) {
			job.mu.Lock()
			job.Phase = info.Phase
			job.Current = info.Current
			job.Total = info.Total
			if info.Total > 0 {
				job.Progress = int(float64(info.Current) / float64(info.Total) * 100)
			}
			job.mu.Unlock()
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"phase":     info.Phase,
					"current":   info.Current,
					"total":     info.Total,
					"photo_uid": info.PhotoUID,
				},
			})
		},
	})

	if err != nil {
		if errors.Is(err, dupes.ErrScanInFlight) {
			h.failJob(job, "a scan is already running")
			return
		}
		if ctx.Err() != nil {
			job.mu.Lock()
			job.Status = JobStatusCancelled
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
			return
		}
		h.failJob(job, fmt.Sprintf("scan failed: %v", err))
		return
	}

	now := time.Now()
	job.mu.Lock()
	if summary.Cancelled {
		job.Status = JobStatusCancelled
	} else {
		job.Status = JobStatusCompleted
	}
	job.Summary = summary
	job.CompletedAt = &now
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: "completed", Data: summary})
	log.Printf("scan job %s finished: %d clusters, %d groups created, %d merged",
		sanitizeForLog(job.ID), summary.ClustersFound, summary.GroupsCreated, summary.GroupsMerged)
}

func (h *ScanHandler) failJob(job *ScanJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "error", Message: message})
}
