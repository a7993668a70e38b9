package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
)

func TestBuildQuery_FromFlags(t *testing.T) {
	searchVertical = "plumber"
	searchCity = "Charleston"
	searchState = "SC"
	searchRadiusKM = 30
	searchTarget = 10
	searchQueryFile = ""
	t.Cleanup(func() { searchQueryFile = "" })

	q, err := buildQuery()
	require.NoError(t, err)
	assert.Equal(t, "plumber", q.Vertical)
	assert.Equal(t, "Charleston", q.Geo.City)
	assert.Equal(t, 30.0, q.Geo.RadiusKM)
	assert.Equal(t, 10, q.ResultSize.Target)
	assert.NoError(t, q.Validate())
}

func TestBuildQuery_FromFile(t *testing.T) {
	query := model.Query{
		Vertical:   "dentist",
		Geo:        model.Geo{City: "Columbia", State: "SC", RadiusKM: 25},
		Exclusions: []string{"corporate chains"},
		ResultSize: model.ResultSize{Target: 40},
	}
	data, err := json.Marshal(query)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "query.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	searchQueryFile = path
	t.Cleanup(func() { searchQueryFile = "" })

	q, err := buildQuery()
	require.NoError(t, err)
	assert.Equal(t, query, q)
}

func TestBuildQuery_FileNotFound(t *testing.T) {
	searchQueryFile = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { searchQueryFile = "" })

	_, err := buildQuery()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read query file")
}
