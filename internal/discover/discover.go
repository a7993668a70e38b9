// Package discover implements the place discovery adapter: it resolves a
// structured query into a deduplicated candidate set by paging through the
// directory provider under a rate limit.
package discover

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/pkg/places"
)

// Adapter wraps the directory provider. Discovery is strictly sequential per
// job because the provider returns an opaque next-page cursor.
type Adapter struct {
	client    places.Client
	limiter   *rate.Limiter
	pageSize  int
	pageDelay time.Duration
}

// Result is the outcome of one discovery pass.
type Result struct {
	// Candidates are unique businesses in insertion order.
	Candidates []model.Business
	// RawCount is the number of records observed before deduplication.
	RawCount int
	// Pages is the number of provider pages requested.
	Pages int
	// LastCursor is the provider cursor after the final requested page; a
	// later pass can resume from it.
	LastCursor string
}

// New creates an Adapter from config.
func New(client places.Client, cfg config.PlacesConfig) *Adapter {
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 10
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > places.MaxPageSize {
		pageSize = places.MaxPageSize
	}
	pageDelay := time.Duration(cfg.PageDelayMS) * time.Millisecond
	if pageDelay <= 0 {
		pageDelay = 2 * time.Second
	}
	return &Adapter{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(rateLimit), 1),
		pageSize:  pageSize,
		pageDelay: pageDelay,
	}
}

// Discover pages through the provider until it reports no more pages or the
// query's target has been observed pre-dedup, whichever comes first.
// startCursor resumes a previous pass; pass "" for a fresh search.
//
// A provider error aborts discovery with the provider's status and message
// attached; an empty result set is not an error.
func (a *Adapter) Discover(ctx context.Context, query model.Query, startCursor string) (*Result, error) {
	log := zap.L().With(zap.String("terms", query.SearchTerms()))

	req := places.SearchRequest{
		TextQuery: query.SearchTerms(),
		PageSize:  a.pageSize,
		PageToken: startCursor,
	}
	if query.Geo.Lat != nil && query.Geo.Lng != nil {
		req.LocationBias = &places.LocationBias{
			Circle: places.Circle{
				Center: places.LatLng{Latitude: *query.Geo.Lat, Longitude: *query.Geo.Lng},
				Radius: query.Geo.RadiusKM * 1000,
			},
		}
	}

	target := query.Target()
	dedup := NewDeduper()
	result := &Result{}

	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "discover: rate limit wait")
		}
		if result.Pages > 0 {
			// Minimum inter-page delay on top of the limiter; the provider
			// needs time before a fresh cursor becomes valid.
			if err := sleepCtx(ctx, a.pageDelay); err != nil {
				return nil, err
			}
		}

		resp, err := a.client.Search(ctx, req)
		if err != nil {
			var pe *places.ProviderError
			if errors.As(err, &pe) {
				return nil, eris.Wrapf(err, "discover: provider error on page %d", result.Pages+1)
			}
			return nil, eris.Wrapf(err, "discover: search page %d", result.Pages+1)
		}
		result.Pages++

		// The target bounds page requests, not records within a page: a page
		// already fetched is processed whole, then paging stops.
		for i := range resp.Places {
			result.RawCount++

			b := a.toBusiness(ctx, &resp.Places[i], query.Exclusions)
			if b == nil {
				continue
			}
			if dedup.Add(b) && len(result.Candidates) < target {
				result.Candidates = append(result.Candidates, *b)
			}
		}

		result.LastCursor = resp.NextPageToken
		if resp.NextPageToken == "" || result.RawCount >= target {
			break
		}
		req.PageToken = resp.NextPageToken
	}

	// Franchise guess needs the whole batch's name counts, so it is set in a
	// second pass once paging is done.
	for i := range result.Candidates {
		guess := dedup.FranchiseGuess(result.Candidates[i].Name)
		result.Candidates[i].FranchiseGuess = &guess
	}

	log.Info("discovery complete",
		zap.Int("raw", result.RawCount),
		zap.Int("unique", len(result.Candidates)),
		zap.Int("pages", result.Pages),
	)

	return result, nil
}

// toBusiness converts a provider record into a candidate, filling missing
// phone/website via a details lookup. Returns nil for excluded names.
func (a *Adapter) toBusiness(ctx context.Context, place *places.Place, exclusions []string) *model.Business {
	name := place.DisplayName.Text
	for _, ex := range exclusions {
		if ex != "" && strings.Contains(strings.ToLower(name), strings.ToLower(ex)) {
			return nil
		}
	}

	// The search field mask covers most records; fall back to a details
	// lookup when both contact fields are missing. Best-effort: a failed
	// lookup keeps the record as-is.
	if place.NationalPhoneNumber == "" && place.WebsiteURI == "" && place.ID != "" {
		if err := a.limiter.Wait(ctx); err == nil {
			if details, err := a.client.Details(ctx, place.ID); err != nil {
				zap.L().Debug("details lookup failed",
					zap.String("place_id", place.ID),
					zap.Error(err),
				)
			} else {
				if place.NationalPhoneNumber == "" {
					place.NationalPhoneNumber = details.NationalPhoneNumber
				}
				if place.WebsiteURI == "" {
					place.WebsiteURI = details.WebsiteURI
				}
				if place.Location == nil {
					place.Location = details.Location
				}
			}
		}
	}

	b := &model.Business{
		ID:          uuid.New().String(),
		Name:        name,
		Website:     place.WebsiteURI,
		Phone:       place.NationalPhoneNumber,
		Address:     place.FormattedAddress,
		ProviderRef: place.ID,
	}
	if place.Location != nil {
		lat, lng := place.Location.Latitude, place.Location.Longitude
		b.Lat, b.Lng = &lat, &lng
	}
	if place.Rating > 0 {
		r := place.Rating
		b.Rating = &r
	}
	if place.UserRatingCount > 0 {
		n := place.UserRatingCount
		b.ReviewCount = &n
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "discover: canceled between pages")
	case <-timer.C:
		return nil
	}
}
