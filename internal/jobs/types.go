package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// RenderReceiptJob asks a worker to render the receipt for one transaction
// record. Exactly one job is published per record, immediately after its
// PENDING persistence; a failed render is terminal for the record, so jobs
// are never retried or re-published.
type RenderReceiptJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// RecordID is the transaction record's ID.
	RecordID string `json:"record_id"`

	// BusinessID scopes the record to its owning tenant.
	BusinessID string `json:"business_id"`

	// Code is the provider reference code; it also keys the artifact.
	Code string `json:"code"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher defines the interface for publishing render jobs to a queue.
// This abstraction allows for different queue implementations.
type Publisher interface {
	// PublishRenderReceipt publishes a receipt rendering job.
	PublishRenderReceipt(ctx context.Context, job *RenderReceiptJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a render job. The returned error
// is recorded on the job; the record's own FAILED status is the handler's
// responsibility.
type JobHandler func(ctx context.Context, job *RenderReceiptJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RenderReceiptJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RenderReceiptJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RenderReceiptJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// RecordID filters jobs by transaction record ID.
	RecordID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
