package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an asynchronous pipeline job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
)

// Job is a pipeline run over an object the caller already stored.
// The caller owns both SourceKey and OutputKey.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	SourceKey string          `json:"source_key"`
	OutputKey string          `json:"output_key"`
	Config    json.RawMessage `json:"config"` // pipeline configuration as submitted
	Status    JobStatus       `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobMessage is the queue payload announcing a new job.
type JobMessage struct {
	ID uuid.UUID `json:"id"`
}
