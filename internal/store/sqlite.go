package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-binary
// local use without a postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS businesses (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	website         TEXT,
	phone           TEXT,
	address         TEXT NOT NULL DEFAULT '',
	lat             REAL,
	lng             REAL,
	rating          REAL,
	review_count    INTEGER,
	franchise_guess INTEGER,
	provider_ref    TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	business_id      TEXT NOT NULL REFERENCES businesses(id),
	type             TEXT NOT NULL,
	value            TEXT NOT NULL,
	confidence       REAL NOT NULL,
	evidence_url     TEXT NOT NULL DEFAULT '',
	evidence_snippet TEXT NOT NULL DEFAULT '',
	source_key       TEXT NOT NULL,
	observed_at      DATETIME NOT NULL,
	PRIMARY KEY (business_id, type, source_key)
);

CREATE TABLE IF NOT EXISTS leads (
	job_id         TEXT NOT NULL REFERENCES jobs(id),
	business_id    TEXT NOT NULL REFERENCES businesses(id),
	score          INTEGER NOT NULL,
	subscores      TEXT NOT NULL,
	rank           INTEGER NOT NULL DEFAULT 0,
	justifications TEXT NOT NULL DEFAULT '[]',
	insertion_seq  INTEGER NOT NULL,
	scored_at      DATETIME NOT NULL,
	PRIMARY KEY (job_id, business_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_signals_business_id ON signals(business_id);
CREATE INDEX IF NOT EXISTS idx_leads_job_id ON leads(job_id);
CREATE INDEX IF NOT EXISTS idx_leads_job_rank ON leads(job_id, rank);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, query model.Query) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal query")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, query, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(queryJSON), string(model.JobStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		Query:     query,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, summary model.JobSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusCompleted), string(summaryJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), errMsg, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	var queryJSON string
	var summaryJSON, errMsg sql.NullString
	var status string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID,
	).Scan(&j.ID, &queryJSON, &status, &summaryJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(ErrNotFound, "job %s", jobID)
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}

	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(queryJSON), &j.Query); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal query")
	}
	if summaryJSON.Valid {
		j.Summary = &model.JobSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), j.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	return &j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, query, status, summary, error, created_at, updated_at FROM jobs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var queryJSON, status string
		var summaryJSON, errMsg sql.NullString

		if err := rows.Scan(&j.ID, &queryJSON, &status, &summaryJSON, &errMsg, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		j.Status = model.JobStatus(status)
		if err := json.Unmarshal([]byte(queryJSON), &j.Query); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal query")
		}
		if summaryJSON.Valid {
			j.Summary = &model.JobSummary{}
			if err := json.Unmarshal([]byte(summaryJSON.String), j.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal summary")
			}
		}
		if errMsg.Valid {
			j.Error = errMsg.String
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) SaveBusinesses(ctx context.Context, businesses []model.Business) error {
	if len(businesses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save businesses begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO businesses (id, name, website, phone, address, lat, lng, rating, review_count, franchise_guess, provider_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save businesses")
	}
	defer stmt.Close()

	for i := range businesses {
		b := &businesses[i]
		if _, err := stmt.ExecContext(ctx,
			b.ID, b.Name, b.Website, b.Phone, b.Address, b.Lat, b.Lng,
			b.Rating, b.ReviewCount, b.FranchiseGuess, b.ProviderRef, b.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: save business %s", b.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: save businesses commit")
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	var b model.Business
	var website, phone sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, phone, address, lat, lng, rating, review_count, franchise_guess, provider_ref, created_at
		 FROM businesses WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Name, &website, &phone, &b.Address, &b.Lat, &b.Lng,
		&b.Rating, &b.ReviewCount, &b.FranchiseGuess, &b.ProviderRef, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(ErrNotFound, "business %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}
	b.Website = website.String
	b.Phone = phone.String
	return &b, nil
}

func (s *SQLiteStore) SaveSignals(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save signals begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO signals (business_id, type, value, confidence, evidence_url, evidence_snippet, source_key, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (business_id, type, source_key) DO NOTHING`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save signals")
	}
	defer stmt.Close()

	for i := range signals {
		sig := &signals[i]
		valueJSON, err := sig.MarshalValue()
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			sig.BusinessID, string(sig.Type), string(valueJSON), sig.Confidence,
			sig.EvidenceURL, sig.EvidenceSnippet, sig.SourceKey, sig.ObservedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: save signal %s/%s", sig.BusinessID, sig.Type)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: save signals commit")
}

func (s *SQLiteStore) GetSignals(ctx context.Context, businessID string) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT business_id, type, value, confidence, evidence_url, evidence_snippet, source_key, observed_at
		 FROM signals WHERE business_id = ? ORDER BY observed_at`,
		businessID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get signals %s", businessID)
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var typ, valueJSON string
		if err := rows.Scan(&sig.BusinessID, &typ, &valueJSON, &sig.Confidence,
			&sig.EvidenceURL, &sig.EvidenceSnippet, &sig.SourceKey, &sig.ObservedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.Type = model.SignalType(typ)
		sig.Value, err = model.UnmarshalValue([]byte(valueJSON))
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "sqlite: get signals iterate")
}

func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert leads begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (job_id, business_id, score, subscores, rank, justifications, insertion_seq, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (job_id, business_id) DO UPDATE SET
		   score = excluded.score, subscores = excluded.subscores, rank = excluded.rank,
		   justifications = excluded.justifications, scored_at = excluded.scored_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert leads")
	}
	defer stmt.Close()

	for i := range leads {
		l := &leads[i]
		subscoresJSON, err := json.Marshal(l.Subscores)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal subscores")
		}
		justJSON, err := json.Marshal(l.Justifications)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal justifications")
		}
		if _, err := stmt.ExecContext(ctx,
			l.JobID, l.BusinessID, l.Score, string(subscoresJSON), l.Rank,
			string(justJSON), l.InsertionSeq, l.ScoredAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert lead %s/%s", l.JobID, l.BusinessID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: upsert leads commit")
}

func (s *SQLiteStore) ListLeads(ctx context.Context, jobID string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, business_id, score, subscores, rank, justifications, insertion_seq, scored_at
		 FROM leads WHERE job_id = ? ORDER BY rank`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads %s", jobID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var subscoresJSON, justJSON string
		if err := rows.Scan(&l.JobID, &l.BusinessID, &l.Score, &subscoresJSON, &l.Rank,
			&justJSON, &l.InsertionSeq, &l.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		if err := json.Unmarshal([]byte(subscoresJSON), &l.Subscores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal subscores")
		}
		if err := json.Unmarshal([]byte(justJSON), &l.Justifications); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal justifications")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadRanks(ctx context.Context, jobID string, ranks map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: rank tx begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE leads SET rank = ? WHERE job_id = ? AND business_id = ?`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare rank update")
	}
	defer stmt.Close()

	for businessID, rank := range ranks {
		res, err := stmt.ExecContext(ctx, rank, jobID, businessID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update rank %s/%s", jobID, businessID)
		}
		if err := checkRowsAffected(res, "lead", jobID+"/"+businessID); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: rank tx commit")
}

// Open constructs a store for the given driver: "postgres" or "sqlite". A
// sqlite DSN like "file:leads.db" or a bare path both work; use
// ":memory:" for throwaway runs.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
