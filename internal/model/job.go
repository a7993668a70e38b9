package model

import "time"

// JobStatus represents the lifecycle state of a discovery job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobSummary carries the outcome counters of a completed job.
type JobSummary struct {
	TotalFound       int   `json:"total_found"`
	TotalEnriched    int   `json:"total_enriched"`
	TotalScored      int   `json:"total_scored"`
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

// Job owns exactly one batch of leads for one submitted query. Re-scoring
// mutates lead rows in place and does not create a new job.
type Job struct {
	ID        string      `json:"id" db:"id"`
	Query     Query       `json:"query" db:"query"`
	Status    JobStatus   `json:"status" db:"status"`
	Summary   *JobSummary `json:"summary,omitempty" db:"summary"`
	Error     string      `json:"error,omitempty" db:"error"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}
