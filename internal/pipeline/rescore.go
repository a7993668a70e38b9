package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scoring"
	"github.com/sells-group/leadscout/internal/store"
)

// Rescore rewrites score, subscores, and rank on a completed job's existing
// leads using a different named profile. No discovery or extraction is
// re-run, the job's state does not change, and running it twice with the
// same profile writes identical rows both times. Returns the number of leads
// updated.
func (p *Pipeline) Rescore(ctx context.Context, jobID, profileName string) (int, error) {
	profile, err := scoring.Lookup(p.profiles, profileName)
	if err != nil {
		return 0, err
	}
	return p.RescoreWith(ctx, jobID, profile)
}

// RescoreWith is Rescore for an ad-hoc profile, such as explicit weights
// passed by a caller. The profile is validated before any work happens.
func (p *Pipeline) RescoreWith(ctx context.Context, jobID string, profile scoring.Profile) (int, error) {
	if err := profile.Validate(); err != nil {
		return 0, err
	}

	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if job.Status != model.JobStatusCompleted {
		return 0, eris.Errorf("pipeline: job %s is %s, only completed jobs can be re-scored", jobID, job.Status)
	}

	leads, err := p.store.ListLeads(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if len(leads) == 0 {
		return 0, nil
	}

	scoredAt := p.now().UTC()
	for i := range leads {
		signals, err := p.store.GetSignals(ctx, leads[i].BusinessID)
		if err != nil {
			return 0, err
		}
		res := scoring.Score(signals, profile)
		leads[i].Score = res.Score
		leads[i].Subscores = res.Subscores
		leads[i].Justifications = res.Justifications
		leads[i].ScoredAt = scoredAt
	}

	ranks := store.ComputeRanks(leads)

	if err := p.store.UpsertLeads(ctx, leads); err != nil {
		return 0, eris.Wrap(err, "pipeline: rescore persist leads")
	}
	if err := p.store.UpdateLeadRanks(ctx, jobID, ranks); err != nil {
		return 0, eris.Wrap(err, "pipeline: rescore persist ranks")
	}

	zap.L().Info("job re-scored",
		zap.String("job_id", jobID),
		zap.String("profile", profile.Name),
		zap.Int("updated", len(leads)))
	return len(leads), nil
}
