package discover

import (
	"context"

	"github.com/sells-group/leadscout/pkg/places"
)

// mockPlaces implements places.Client for testing. Pages are served in
// order; each non-final page hands out the cursor of the next one.
type mockPlaces struct {
	pages        []places.SearchResponse
	details      map[string]places.Place
	searchErr    error
	searchCalls  int
	detailCalls  int
	seenCursors  []string
	seenRequests []places.SearchRequest
}

func (m *mockPlaces) Search(_ context.Context, req places.SearchRequest) (*places.SearchResponse, error) {
	m.searchCalls++
	m.seenCursors = append(m.seenCursors, req.PageToken)
	m.seenRequests = append(m.seenRequests, req)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	idx := m.searchCalls - 1
	if idx >= len(m.pages) {
		return &places.SearchResponse{}, nil
	}
	return &m.pages[idx], nil
}

func (m *mockPlaces) Details(_ context.Context, placeID string) (*places.Place, error) {
	m.detailCalls++
	if p, ok := m.details[placeID]; ok {
		return &p, nil
	}
	return &places.Place{ID: placeID}, nil
}
