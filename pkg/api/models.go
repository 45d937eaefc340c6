package api

import (
	"encoding/json"
	"time"

	"github.com/gilchrisn/publication-classification/pkg/network"
	"github.com/gilchrisn/publication-classification/pkg/pipeline"
)

// JobStatus is the state of a classification job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job can no longer change
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Publication is one node of a submitted citation network
type Publication struct {
	PubNo int  `json:"pub_no"`
	Core  bool `json:"core"`
}

// ClassificationRequest is the body of a classification submission. Config
// is merged over the default configuration.
type ClassificationRequest struct {
	Publications []Publication   `json:"publications"`
	Links        []network.Link  `json:"links"`
	Config       json.RawMessage `json:"config,omitempty"`
}

// Job is a classification job
type Job struct {
	ID          string           `json:"id"`
	Status      JobStatus        `json:"status"`
	Config      pipeline.Config  `json:"config"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
