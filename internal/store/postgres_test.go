package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	query := model.Query{Vertical: "dentist", Geo: model.Geo{City: "Columbia", State: "SC"}}
	job, err := s.CreateJob(context.Background(), query)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE id = \$1`).
		WithArgs("nonexistent-job").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nonexistent-job")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	queryJSON, _ := json.Marshal(model.Query{Vertical: "dentist", Geo: model.Geo{City: "Columbia", State: "SC"}})
	summaryJSON := []byte(`{"total_found":5,"total_enriched":5,"total_scored":5,"processing_time_ms":1200}`)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, query, status, summary, error, created_at, updated_at FROM jobs`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "status", "summary", "error", "created_at", "updated_at"}).
			AddRow("job-1", queryJSON, "completed", &summaryJSON, (*string)(nil), now, now))

	job, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, "dentist", job.Query.Vertical)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 5, job.Summary.TotalFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJobStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJobStatus(context.Background(), "missing", model.JobStatusRunning)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1, error = \$2`).
		WithArgs("failed", "provider quota exhausted", pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailJob(context.Background(), "job-1", "provider quota exhausted")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSignals_AppendOnly(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_signals"}, signalColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "signals" .+ DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	signals := []model.Signal{{
		BusinessID: "b1",
		Type:       model.SignalNoWebsite,
		Value:      model.BoolValue(true),
		Confidence: 0.95,
		SourceKey:  "website",
		ObservedAt: time.Now().UTC(),
	}}
	require.NoError(t, s.SaveSignals(context.Background(), signals))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSignals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	valueJSON := []byte(`{"kind":"bool","bool":true}`)

	mock.ExpectQuery(`SELECT business_id, type, value, .+ FROM signals WHERE business_id = \$1`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"business_id", "type", "value", "confidence", "evidence_url", "evidence_snippet", "source_key", "observed_at"}).
			AddRow("b1", "no_website", valueJSON, 0.95, "", "", "website", now))

	signals, err := s.GetSignals(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, model.SignalNoWebsite, signals[0].Type)
	assert.True(t, signals[0].Value.Bool)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_leads"}, leadColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "leads" .+ DO UPDATE SET "score" = EXCLUDED\."score"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	leads := []model.Lead{{
		JobID:          "j1",
		BusinessID:     "b1",
		Score:          72,
		Subscores:      model.Subscores{ICP: 35, Pain: 25, Reachability: 20, ComplianceRisk: 5},
		Justifications: []string{"No website at all (+15 Pain points)"},
		InsertionSeq:   0,
		ScoredAt:       time.Now().UTC(),
	}}
	require.NoError(t, s.UpsertLeads(context.Background(), leads))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadRanks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads SET rank`).
		WithArgs(1, "j1", "b1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := s.UpdateLeadRanks(context.Background(), "j1", map[string]int{"b1": 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	subJSON := []byte(`{"icp":35,"pain":15,"reachability":3,"compliance_risk":5}`)
	justJSON := []byte(`["No website at all (+15 Pain points)"]`)

	mock.ExpectQuery(`SELECT job_id, business_id, score, .+ FROM leads WHERE job_id = \$1 ORDER BY rank`).
		WithArgs("j1").
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "business_id", "score", "subscores", "rank", "justifications", "insertion_seq", "scored_at"}).
			AddRow("j1", "b1", 18, subJSON, 1, justJSON, 0, now).
			AddRow("j1", "b2", 12, subJSON, 2, justJSON, 1, now))

	leads, err := s.ListLeads(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, 1, leads[0].Rank)
	assert.Equal(t, 15.0, leads[0].Subscores.Pain)
	assert.NoError(t, mock.ExpectationsWereMet())
}
