package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// maxRequestSize bounds the body of a classification submission
const maxRequestSize = 256 << 20

// Handlers contains HTTP request handlers
type Handlers struct {
	jobService *JobService
	startTime  time.Time
}

// NewHandlers creates new API handlers
func NewHandlers(jobService *JobService) *Handlers {
	return &Handlers{
		jobService: jobService,
		startTime:  time.Now(),
	}
}

// CreateClassification queues a classification of the submitted network
func (h *Handlers) CreateClassification(w http.ResponseWriter, r *http.Request) {
	var req ClassificationRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err := decoder.Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode classification request")
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.jobService.Submit(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidJob) {
			status = http.StatusBadRequest
		}
		writeErrorResponse(w, status, "Failed to submit classification", err)
		return
	}

	writeSuccessResponse(w, http.StatusAccepted, "Classification queued", job)
}

// ListClassifications returns all known jobs
func (h *Handlers) ListClassifications(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Classifications retrieved", h.jobService.List())
}

// GetClassification returns a job with its result once completed
func (h *Handlers) GetClassification(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "Classification not found", err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Classification retrieved", job)
}

// CancelClassification stops a queued or running job
func (h *Handlers) CancelClassification(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Cancel(jobID); err != nil {
		writeErrorResponse(w, http.StatusNotFound, "Classification not found", err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Classification cancellation requested", nil)
}

// HealthCheck reports service liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Service is healthy", map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startTime).String(),
	})
}
