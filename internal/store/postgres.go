package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/db"
	"github.com/sells-group/leadscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_job":        `INSERT INTO jobs (id, query, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_job_status": `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_job":           `SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE id = $1`,
	"get_signals":       `SELECT business_id, type, value, confidence, evidence_url, evidence_snippet, source_key, observed_at FROM signals WHERE business_id = $1 ORDER BY observed_at`,
	"list_leads":        `SELECT job_id, business_id, score, subscores, rank, justifications, insertion_seq, scored_at FROM leads WHERE job_id = $1 ORDER BY rank`,
	"update_lead_rank":  `UPDATE leads SET rank = $1 WHERE job_id = $2 AND business_id = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	query      JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	website         TEXT,
	phone           TEXT,
	address         TEXT NOT NULL DEFAULT '',
	lat             DOUBLE PRECISION,
	lng             DOUBLE PRECISION,
	rating          DOUBLE PRECISION,
	review_count    INTEGER,
	franchise_guess BOOLEAN,
	provider_ref    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	business_id      TEXT NOT NULL REFERENCES businesses(id),
	type             TEXT NOT NULL,
	value            JSONB NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	evidence_url     TEXT NOT NULL DEFAULT '',
	evidence_snippet TEXT NOT NULL DEFAULT '',
	source_key       TEXT NOT NULL,
	observed_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (business_id, type, source_key)
);

CREATE TABLE IF NOT EXISTS leads (
	job_id         TEXT NOT NULL REFERENCES jobs(id),
	business_id    TEXT NOT NULL REFERENCES businesses(id),
	score          INTEGER NOT NULL,
	subscores      JSONB NOT NULL,
	rank           INTEGER NOT NULL DEFAULT 0,
	justifications JSONB NOT NULL DEFAULT '[]',
	insertion_seq  INTEGER NOT NULL,
	scored_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (job_id, business_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_signals_business_id ON signals(business_id);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
CREATE INDEX IF NOT EXISTS idx_leads_job_rank ON leads(job_id, rank);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, query model.Query) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal query")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, query, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, queryJSON, string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}

	return &model.Job{
		ID:        id,
		Query:     query,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, summary = $2, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusCompleted), summaryJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	var queryJSON []byte
	var summaryJSON *[]byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &queryJSON, &j.Status, &summaryJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %s", jobID)
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}

	if err := json.Unmarshal(queryJSON, &j.Query); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal query")
	}
	if summaryJSON != nil {
		j.Summary = &model.JobSummary{}
		if err := json.Unmarshal(*summaryJSON, j.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var queryJSON []byte
		var summaryJSON *[]byte
		var errMsg *string

		if err := rows.Scan(&j.ID, &queryJSON, &j.Status, &summaryJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if err := json.Unmarshal(queryJSON, &j.Query); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal query")
		}
		if summaryJSON != nil {
			j.Summary = &model.JobSummary{}
			if err := json.Unmarshal(*summaryJSON, j.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		if errMsg != nil {
			j.Error = *errMsg
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

var businessColumns = []string{
	"id", "name", "website", "phone", "address", "lat", "lng",
	"rating", "review_count", "franchise_guess", "provider_ref", "created_at",
}

func (s *PostgresStore) SaveBusinesses(ctx context.Context, businesses []model.Business) error {
	if len(businesses) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(businesses))
	for i := range businesses {
		b := &businesses[i]
		rows = append(rows, []any{
			b.ID, b.Name, b.Website, b.Phone, b.Address, b.Lat, b.Lng,
			b.Rating, b.ReviewCount, b.FranchiseGuess, b.ProviderRef, b.CreatedAt,
		})
	}

	// A candidate rediscovered by a later job keeps its original row.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "businesses",
		Columns:      businessColumns,
		ConflictKeys: []string{"id"},
		DoNothing:    true,
	}, rows)
	return eris.Wrap(err, "postgres: save businesses")
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var b model.Business
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, website, phone, address, lat, lng, rating, review_count, franchise_guess, provider_ref, created_at
		 FROM businesses WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Website, &b.Phone, &b.Address, &b.Lat, &b.Lng,
		&b.Rating, &b.ReviewCount, &b.FranchiseGuess, &b.ProviderRef, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "business %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}
	return &b, nil
}

var signalColumns = []string{
	"business_id", "type", "value", "confidence",
	"evidence_url", "evidence_snippet", "source_key", "observed_at",
}

func (s *PostgresStore) SaveSignals(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(signals))
	for i := range signals {
		sig := &signals[i]
		valueJSON, err := sig.MarshalValue()
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			sig.BusinessID, string(sig.Type), valueJSON, sig.Confidence,
			sig.EvidenceURL, sig.EvidenceSnippet, sig.SourceKey, sig.ObservedAt,
		})
	}

	// Append-only: replays of the same observation are dropped, never
	// overwritten.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "signals",
		Columns:      signalColumns,
		ConflictKeys: []string{"business_id", "type", "source_key"},
		DoNothing:    true,
	}, rows)
	return eris.Wrap(err, "postgres: save signals")
}

func (s *PostgresStore) GetSignals(ctx context.Context, businessID string) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT business_id, type, value, confidence, evidence_url, evidence_snippet, source_key, observed_at
		 FROM signals WHERE business_id = $1 ORDER BY observed_at`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get signals %s", businessID)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var valueJSON []byte
		if err := rows.Scan(&sig.BusinessID, &sig.Type, &valueJSON, &sig.Confidence,
			&sig.EvidenceURL, &sig.EvidenceSnippet, &sig.SourceKey, &sig.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		sig.Value, err = model.UnmarshalValue(valueJSON)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "postgres: get signals iterate")
}

var leadColumns = []string{
	"job_id", "business_id", "score", "subscores", "rank",
	"justifications", "insertion_seq", "scored_at",
}

func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(leads))
	for i := range leads {
		l := &leads[i]
		subscoresJSON, err := json.Marshal(l.Subscores)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal subscores")
		}
		justJSON, err := json.Marshal(l.Justifications)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal justifications")
		}
		rows = append(rows, []any{
			l.JobID, l.BusinessID, l.Score, subscoresJSON, l.Rank,
			justJSON, l.InsertionSeq, l.ScoredAt,
		})
	}

	// Re-scoring rewrites score, subscores, and rank; insertion_seq is
	// preserved as the stable tie-break key.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"job_id", "business_id"},
		UpdateCols:   []string{"score", "subscores", "rank", "justifications", "scored_at"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert leads")
}

func (s *PostgresStore) ListLeads(ctx context.Context, jobID string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, business_id, score, subscores, rank, justifications, insertion_seq, scored_at
		 FROM leads WHERE job_id = $1 ORDER BY rank`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads %s", jobID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var subscoresJSON, justJSON []byte
		if err := rows.Scan(&l.JobID, &l.BusinessID, &l.Score, &subscoresJSON, &l.Rank,
			&justJSON, &l.InsertionSeq, &l.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		if err := json.Unmarshal(subscoresJSON, &l.Subscores); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal subscores")
		}
		if err := json.Unmarshal(justJSON, &l.Justifications); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal justifications")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadRanks(ctx context.Context, jobID string, ranks map[string]int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: rank tx begin")
	}
	defer tx.Rollback(ctx)

	for businessID, rank := range ranks {
		tag, err := tx.Exec(ctx,
			`UPDATE leads SET rank = $1 WHERE job_id = $2 AND business_id = $3`,
			rank, jobID, businessID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update rank %s/%s", jobID, businessID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "lead %s/%s", jobID, businessID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: rank tx commit")
}
