package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuery() Query {
	return Query{
		Vertical: "dentist",
		Geo:      Geo{City: "Columbia", State: "SC", RadiusKM: 40},
		ResultSize: ResultSize{
			Target: 5,
		},
	}
}

func TestQuery_Validate_OK(t *testing.T) {
	q := validQuery()
	require.NoError(t, q.Validate())
}

func TestQuery_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Query)
		field  string
	}{
		{"empty vertical", func(q *Query) { q.Vertical = " " }, "vertical"},
		{"empty city", func(q *Query) { q.Geo.City = "" }, "geo.city"},
		{"bad state", func(q *Query) { q.Geo.State = "South Carolina" }, "geo.state"},
		{"zero radius", func(q *Query) { q.Geo.RadiusKM = 0 }, "geo.radius_km"},
		{"huge radius", func(q *Query) { q.Geo.RadiusKM = 500 }, "geo.radius_km"},
		{"lat without lng", func(q *Query) { lat := 34.0; q.Geo.Lat = &lat }, "geo"},
		{"negative target", func(q *Query) { q.ResultSize.Target = -1 }, "result_size.target"},
		{"bad constraint op", func(q *Query) {
			q.Constraints.Must = []Constraint{{Field: "rating", Op: "above", Value: "4"}}
		}, "constraints"},
		{"empty constraint field", func(q *Query) {
			q.Constraints.Optional = []Constraint{{Field: "", Op: "eq", Value: "x"}}
		}, "constraints"},
		{"unknown sort", func(q *Query) { q.SortBy = "alphabetical" }, "sort_by"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuery()
			tt.mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestQuery_Target_Default(t *testing.T) {
	q := validQuery()
	assert.Equal(t, 5, q.Target())

	q.ResultSize.Target = 0
	assert.Equal(t, DefaultResultTarget, q.Target())
}

func TestQuery_SearchTerms(t *testing.T) {
	q := validQuery()
	q.Geo.State = "sc"
	assert.Equal(t, "dentist in Columbia, SC", q.SearchTerms())
}
