// Package pipeline sequences Discovery, Extraction, Scoring, and Persistence
// for one submitted query, tracking job state and progress along the way.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/discover"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/resilience"
	"github.com/sells-group/leadscout/internal/scoring"
	"github.com/sells-group/leadscout/internal/store"
)

// Discoverer resolves a query into a deduplicated candidate set.
type Discoverer interface {
	Discover(ctx context.Context, query model.Query, startCursor string) (*discover.Result, error)
}

// Extractor derives signals for a batch of candidates. onDone fires once per
// fully processed candidate so progress stays observable mid-batch.
type Extractor interface {
	ExtractAll(ctx context.Context, candidates []*model.Business, onDone func()) ([]model.Signal, int, error)
}

// Pipeline orchestrates one job from query to ranked leads.
type Pipeline struct {
	store      store.Store
	discoverer Discoverer
	extractor  Extractor
	profiles   map[string]scoring.Profile
	defaultPro string
	progress   *progressTable
	now        func() time.Time
}

// New wires a Pipeline from its collaborators. defaultProfile must name a
// key in profiles.
func New(st store.Store, d Discoverer, e Extractor, profiles map[string]scoring.Profile, defaultProfile string) (*Pipeline, error) {
	if _, err := scoring.Lookup(profiles, defaultProfile); err != nil {
		return nil, err
	}
	return &Pipeline{
		store:      st,
		discoverer: d,
		extractor:  e,
		profiles:   profiles,
		defaultPro: defaultProfile,
		progress:   newProgressTable(),
		now:        time.Now,
	}, nil
}

// Submit validates the query and creates a queued job. Malformed queries are
// rejected before any job exists.
func (p *Pipeline) Submit(ctx context.Context, query model.Query) (*model.Job, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return p.store.CreateJob(ctx, query)
}

// Progress reports a running job's counters. The second return is false once
// the job has reached a terminal state.
func (p *Pipeline) Progress(jobID string) (Snapshot, bool) {
	prog, ok := p.progress.get(jobID)
	if !ok {
		return Snapshot{}, false
	}
	return prog.Snapshot(), true
}

// persistRetry covers transient database hiccups during batch writes.
func persistRetry(operation string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("store", operation)
	return cfg
}

// Run executes a queued job to a terminal state. Discovery errors fail the
// job; per-candidate extraction problems do not, they become signals. The
// returned error mirrors what was written to the job row.
func (p *Pipeline) Run(ctx context.Context, job *model.Job) error {
	log := zap.L().With(zap.String("job_id", job.ID))
	start := p.now()

	prog := p.progress.start(job.ID, job.Query.Target())
	defer p.progress.drop(job.ID)

	if err := p.store.UpdateJobStatus(ctx, job.ID, model.JobStatusRunning); err != nil {
		return eris.Wrap(err, "pipeline: mark running")
	}
	log.Info("job started",
		zap.String("vertical", job.Query.Vertical),
		zap.String("city", job.Query.Geo.City),
		zap.Int("target", job.Query.Target()))

	// Discovery. Pages are sequential; an unrecoverable provider error is
	// the one thing that fails a job outright.
	disc, err := p.discoverer.Discover(ctx, job.Query, "")
	if err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: discovery"))
	}
	candidates := disc.Candidates
	prog.found.Store(int64(len(candidates)))
	log.Info("discovery complete",
		zap.Int("raw", disc.RawCount),
		zap.Int("unique", len(candidates)),
		zap.Int("pages", disc.Pages))

	if err := resilience.Do(ctx, persistRetry("save_businesses"), func(ctx context.Context) error {
		return p.store.SaveBusinesses(ctx, candidates)
	}); err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: persist candidates"))
	}

	// Extraction over the worker pool. Best effort per candidate: a dead
	// website becomes a website_error signal, not a job failure.
	ptrs := make([]*model.Business, len(candidates))
	for i := range candidates {
		ptrs[i] = &candidates[i]
	}
	signals, enriched, err := p.extractor.ExtractAll(ctx, ptrs, func() {
		prog.enriched.Add(1)
	})
	if err != nil {
		// Cancellation mid-extraction: keep what we have, fail the job.
		if persistErr := p.store.SaveSignals(ctx, signals); persistErr != nil {
			log.Warn("persisting partial signals failed", zap.Error(persistErr))
		}
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: extraction aborted"))
	}

	if err := resilience.Do(ctx, persistRetry("save_signals"), func(ctx context.Context) error {
		return p.store.SaveSignals(ctx, signals)
	}); err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: persist signals"))
	}

	// Scoring is pure and cheap; run it inline over the completed batch.
	profile := p.profiles[p.defaultPro]
	byBusiness := groupSignals(signals)
	leads := make([]model.Lead, 0, len(candidates))
	scoredAt := p.now().UTC()
	for i := range candidates {
		b := &candidates[i]
		res := scoring.Score(byBusiness[b.ID], profile)
		leads = append(leads, model.Lead{
			JobID:          job.ID,
			BusinessID:     b.ID,
			Score:          res.Score,
			Subscores:      res.Subscores,
			Justifications: res.Justifications,
			InsertionSeq:   i,
			ScoredAt:       scoredAt,
		})
		prog.scored.Add(1)
	}

	// Rank is assigned in a single pass over the whole batch, never
	// incrementally.
	ranks := store.ComputeRanks(leads)

	if err := resilience.Do(ctx, persistRetry("save_leads"), func(ctx context.Context) error {
		return p.store.UpsertLeads(ctx, leads)
	}); err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: persist leads"))
	}
	if err := p.store.UpdateLeadRanks(ctx, job.ID, ranks); err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: persist ranks"))
	}

	summary := model.JobSummary{
		TotalFound:       len(candidates),
		TotalEnriched:    enriched,
		TotalScored:      len(leads),
		ProcessingTimeMS: p.now().Sub(start).Milliseconds(),
	}
	if err := p.store.CompleteJob(ctx, job.ID, summary); err != nil {
		return p.fail(ctx, job.ID, eris.Wrap(err, "pipeline: complete job"))
	}

	log.Info("job completed",
		zap.Int("found", summary.TotalFound),
		zap.Int("enriched", summary.TotalEnriched),
		zap.Int("scored", summary.TotalScored),
		zap.Int64("processing_time_ms", summary.ProcessingTimeMS))
	return nil
}

// fail marks the job failed with the error's message and returns the error.
// Whatever was persisted before the failure stays queryable.
func (p *Pipeline) fail(ctx context.Context, jobID string, err error) error {
	zap.L().Error("job failed", zap.String("job_id", jobID), zap.Error(err))
	if markErr := p.store.FailJob(ctx, jobID, err.Error()); markErr != nil {
		zap.L().Warn("marking job failed also failed",
			zap.String("job_id", jobID),
			zap.Error(markErr))
	}
	return err
}

func groupSignals(signals []model.Signal) map[string][]model.Signal {
	grouped := make(map[string][]model.Signal)
	for i := range signals {
		grouped[signals[i].BusinessID] = append(grouped[signals[i].BusinessID], signals[i])
	}
	return grouped
}
