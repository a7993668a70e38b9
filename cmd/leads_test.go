package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

func ratingPtr(v float64) *float64 { return &v }

func seedRatedLeads(t *testing.T) (store.Store, []model.Lead) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	businesses := []model.Business{
		{ID: "mid", Name: "Mid", Address: "1 A St", Rating: ratingPtr(3.5), CreatedAt: now},
		{ID: "top", Name: "Top", Address: "2 B St", Rating: ratingPtr(4.8), CreatedAt: now},
		{ID: "unrated", Name: "Unrated", Address: "3 C St", CreatedAt: now},
	}
	require.NoError(t, st.SaveBusinesses(context.Background(), businesses))

	leads := []model.Lead{
		{BusinessID: "mid", Rank: 1, Score: 50},
		{BusinessID: "top", Rank: 2, Score: 40},
		{BusinessID: "unrated", Rank: 3, Score: 30},
	}
	return st, leads
}

func TestOrderLeads_ByRating(t *testing.T) {
	st, leads := seedRatedLeads(t)

	q := model.Query{SortBy: model.SortByRating}
	require.NoError(t, orderLeads(context.Background(), st, q, leads))

	assert.Equal(t, "top", leads[0].BusinessID)
	assert.Equal(t, "mid", leads[1].BusinessID)
	assert.Equal(t, "unrated", leads[2].BusinessID, "unrated businesses sink to the bottom")
}

func TestOrderLeads_DefaultKeepsRankOrder(t *testing.T) {
	st, leads := seedRatedLeads(t)

	require.NoError(t, orderLeads(context.Background(), st, model.Query{}, leads))

	assert.Equal(t, "mid", leads[0].BusinessID)
	assert.Equal(t, "top", leads[1].BusinessID)
	assert.Equal(t, "unrated", leads[2].BusinessID)

	require.NoError(t, orderLeads(context.Background(), st, model.Query{SortBy: model.SortByScore}, leads))
	assert.Equal(t, "mid", leads[0].BusinessID, "score order is the rank order leads already carry")
}

func TestOrderLeads_RatingTieBreaksByRank(t *testing.T) {
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.SaveBusinesses(context.Background(), []model.Business{
		{ID: "b1", Name: "One", Address: "1 A St", Rating: ratingPtr(4.0), CreatedAt: now},
		{ID: "b2", Name: "Two", Address: "2 B St", Rating: ratingPtr(4.0), CreatedAt: now},
	}))
	leads := []model.Lead{
		{BusinessID: "b2", Rank: 1},
		{BusinessID: "b1", Rank: 2},
	}

	q := model.Query{SortBy: model.SortByRating}
	require.NoError(t, orderLeads(context.Background(), st, q, leads))

	assert.Equal(t, "b2", leads[0].BusinessID, "equal ratings keep rank order")
}
