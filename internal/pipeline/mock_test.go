package pipeline

import (
	"context"

	"github.com/sells-group/leadscout/internal/discover"
	"github.com/sells-group/leadscout/internal/model"
)

// mockDiscoverer returns a canned discovery result or error.
type mockDiscoverer struct {
	result *discover.Result
	err    error
	calls  int
}

func (m *mockDiscoverer) Discover(_ context.Context, _ model.Query, _ string) (*discover.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockExtractor maps business id to a fixed signal set.
type mockExtractor struct {
	signals map[string][]model.Signal
	err     error
}

func (m *mockExtractor) ExtractAll(_ context.Context, candidates []*model.Business, onDone func()) ([]model.Signal, int, error) {
	var out []model.Signal
	processed := 0
	for _, b := range candidates {
		out = append(out, m.signals[b.ID]...)
		processed++
		if onDone != nil {
			onDone()
		}
	}
	if m.err != nil {
		return out, processed, m.err
	}
	return out, processed, nil
}
