package pipeline

import (
	"sync"
	"sync/atomic"
)

// Progress tracks a running job's counters. Extraction workers update it
// concurrently; polling clients read a consistent snapshot.
type Progress struct {
	target   int64
	found    atomic.Int64
	enriched atomic.Int64
	scored   atomic.Int64
}

// Snapshot is a point-in-time view of a job's progress.
type Snapshot struct {
	Target   int `json:"target"`
	Found    int `json:"found"`
	Enriched int `json:"enriched"`
	Scored   int `json:"scored"`
}

func (p *Progress) Snapshot() Snapshot {
	return Snapshot{
		Target:   int(p.target),
		Found:    int(p.found.Load()),
		Enriched: int(p.enriched.Load()),
		Scored:   int(p.scored.Load()),
	}
}

// progressTable holds per-job progress while the job is running. Entries are
// dropped once the job reaches a terminal state; finished jobs report their
// counters from the stored summary instead.
type progressTable struct {
	mu      sync.Mutex
	entries map[string]*Progress
}

func newProgressTable() *progressTable {
	return &progressTable{entries: make(map[string]*Progress)}
}

func (t *progressTable) start(jobID string, target int) *Progress {
	p := &Progress{target: int64(target)}
	t.mu.Lock()
	t.entries[jobID] = p
	t.mu.Unlock()
	return p
}

func (t *progressTable) get(jobID string) (*Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[jobID]
	return p, ok
}

func (t *progressTable) drop(jobID string) {
	t.mu.Lock()
	delete(t.entries, jobID)
	t.mu.Unlock()
}
