package model

import "time"

// Subscores is the four-way score breakdown before weighting is applied to
// produce the final score.
type Subscores struct {
	ICP            float64 `json:"icp"`
	Pain           float64 `json:"pain"`
	Reachability   float64 `json:"reachability"`
	ComplianceRisk float64 `json:"compliance_risk"`
}

// Lead is a scored, ranked candidate within a specific job. Rank is dense
// (1..N, no gaps) per job, strictly decreasing by score with ties broken by
// candidate insertion order so re-scoring is deterministic.
type Lead struct {
	JobID          string    `json:"job_id" db:"job_id"`
	BusinessID     string    `json:"business_id" db:"business_id"`
	Score          int       `json:"score" db:"score"`
	Subscores      Subscores `json:"subscores" db:"subscores"`
	Rank           int       `json:"rank" db:"rank"`
	Justifications []string  `json:"justifications" db:"justifications"`
	// InsertionSeq is the order the candidate entered the job's batch; it is
	// the stable secondary sort key for rank ties.
	InsertionSeq int       `json:"insertion_seq" db:"insertion_seq"`
	ScoredAt     time.Time `json:"scored_at" db:"scored_at"`
}
