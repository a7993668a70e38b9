package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/scoring"
)

func resetRescoreFlags() {
	rescoreProfile = ""
	rescoreWeights = nil
}

func TestResolveRescoreProfile_Named(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)
	rescoreProfile = "pain_first"

	profile, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.NoError(t, err)
	assert.Equal(t, "pain_first", profile.Name)
	assert.Equal(t, 45, profile.Weights.Pain)
}

func TestResolveRescoreProfile_UnknownName(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)
	rescoreProfile = "nope"

	_, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "nope"`)
}

func TestResolveRescoreProfile_ExplicitWeights(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)
	rescoreWeights = []int{40, 30, 20, 10}

	profile, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.NoError(t, err)
	assert.Equal(t, "custom", profile.Name)
	assert.Equal(t, 40, profile.Weights.ICP)
	assert.Equal(t, 10, profile.Weights.ComplianceRisk)
}

func TestResolveRescoreProfile_BadWeights(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)

	rescoreWeights = []int{40, 30, 20}
	_, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "four values")

	rescoreWeights = []int{40, 30, 20, 20}
	_, err = resolveRescoreProfile(scoring.BuiltinProfiles())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 110")
}

func TestResolveRescoreProfile_MutuallyExclusive(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)
	rescoreProfile = "generic"
	rescoreWeights = []int{35, 35, 20, 10}

	_, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestResolveRescoreProfile_NothingGiven(t *testing.T) {
	resetRescoreFlags()
	t.Cleanup(resetRescoreFlags)

	_, err := resolveRescoreProfile(scoring.BuiltinProfiles())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}
