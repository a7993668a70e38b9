// Package store persists jobs, candidates, signals, and ranked leads behind
// a single interface with postgres and sqlite backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
)

// ErrNotFound is returned when a requested row does not exist. Callers use
// errors.Is to distinguish a miss from a real failure.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, query model.Query) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Candidates
	SaveBusinesses(ctx context.Context, businesses []model.Business) error
	GetBusiness(ctx context.Context, id string) (*model.Business, error)

	// Signals are append-only: writing the same (business_id, type,
	// source_key) twice keeps the first observation.
	SaveSignals(ctx context.Context, signals []model.Signal) error
	GetSignals(ctx context.Context, businessID string) ([]model.Signal, error)

	// Leads
	UpsertLeads(ctx context.Context, leads []model.Lead) error
	ListLeads(ctx context.Context, jobID string) ([]model.Lead, error)
	UpdateLeadRanks(ctx context.Context, jobID string, ranks map[string]int) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
