package main

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

// orderLeads applies the query's sort order to an already-ranked lead list.
// Rank order is the default; sort_by rating reorders by the directory rating,
// highest first, with unrated businesses last and rank breaking ties.
func orderLeads(ctx context.Context, st store.Store, q model.Query, leads []model.Lead) error {
	if q.SortBy != model.SortByRating {
		return nil
	}

	ratings := make(map[string]float64, len(leads))
	for i := range leads {
		b, err := st.GetBusiness(ctx, leads[i].BusinessID)
		if err != nil {
			return eris.Wrapf(err, "load business %s", leads[i].BusinessID)
		}
		if b.Rating != nil {
			ratings[leads[i].BusinessID] = *b.Rating
		}
	}

	sort.SliceStable(leads, func(i, j int) bool {
		ri, rj := ratings[leads[i].BusinessID], ratings[leads[j].BusinessID]
		if ri != rj {
			return ri > rj
		}
		return leads[i].Rank < leads[j].Rank
	})
	return nil
}
