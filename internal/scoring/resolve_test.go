package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
)

func TestResolve_HighestConfidenceWins(t *testing.T) {
	now := time.Now()
	signals := []model.Signal{
		{Type: model.SignalHasChatWidget, Value: model.BoolValue(false), Confidence: 0.7, SourceKey: "website", ObservedAt: now},
		{Type: model.SignalHasChatWidget, Value: model.BoolValue(true), Confidence: 0.95, SourceKey: "website", ObservedAt: now.Add(-time.Hour)},
	}

	resolved := Resolve(signals)
	require.Contains(t, resolved, model.SignalHasChatWidget)
	assert.True(t, resolved[model.SignalHasChatWidget].Value.Bool,
		"the older but more confident vendor match wins over the generic absence")
}

func TestResolve_TieGoesToMostRecent(t *testing.T) {
	now := time.Now()
	signals := []model.Signal{
		{Type: model.SignalRating, Value: model.NumberValue(4.1), Confidence: 0.95, SourceKey: "directory", ObservedAt: now.Add(-time.Hour)},
		{Type: model.SignalRating, Value: model.NumberValue(4.4), Confidence: 0.95, SourceKey: "directory", ObservedAt: now},
	}

	resolved := Resolve(signals)
	assert.Equal(t, 4.4, resolved[model.SignalRating].Value.Number)
}

func TestResolve_FullTieBreaksBySourceKey(t *testing.T) {
	now := time.Now()
	a := model.Signal{Type: model.SignalHasPhone, Value: model.BoolValue(false), Confidence: 0.95, SourceKey: "directory", ObservedAt: now}
	b := model.Signal{Type: model.SignalHasPhone, Value: model.BoolValue(true), Confidence: 0.95, SourceKey: "website", ObservedAt: now}

	forward := Resolve([]model.Signal{a, b})
	backward := Resolve([]model.Signal{b, a})

	// Same confidence, same timestamp: the winner must not depend on slice
	// order, so the greater source key takes it both ways.
	assert.Equal(t, "website", forward[model.SignalHasPhone].SourceKey)
	assert.Equal(t, forward, backward)
}

func TestResolve_OrderIndependent(t *testing.T) {
	now := time.Now()
	a := model.Signal{Type: model.SignalRating, Value: model.NumberValue(4.1), Confidence: 0.9, ObservedAt: now.Add(-time.Hour)}
	b := model.Signal{Type: model.SignalRating, Value: model.NumberValue(4.4), Confidence: 0.95, ObservedAt: now}

	forward := Resolve([]model.Signal{a, b})
	backward := Resolve([]model.Signal{b, a})
	assert.Equal(t, forward, backward)
}
