package store

import (
	"sort"

	"github.com/sells-group/leadscout/internal/model"
)

// ComputeRanks assigns ranks 1..N over a job's completed lead set in a single
// pass: score descending, ties broken by insertion order so repeated runs
// over the same scores produce the same ordering. Ranks are a dense
// permutation of 1..N. The input slice is reordered in place.
func ComputeRanks(leads []model.Lead) map[string]int {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].InsertionSeq < leads[j].InsertionSeq
	})

	ranks := make(map[string]int, len(leads))
	for i := range leads {
		leads[i].Rank = i + 1
		ranks[leads[i].BusinessID] = i + 1
	}
	return ranks
}
