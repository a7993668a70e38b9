package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/resilience"
)

const (
	// maxBodyBytes caps how much of a page we read. Small-business sites
	// rarely exceed this; anything bigger is truncated, not rejected.
	maxBodyBytes = 2 << 20

	websiteConfidence      = 0.95
	websiteErrorConfidence = 0.85

	sourceWebsite = "website"
)

// Fetcher downloads a candidate's website and turns the page into signals.
type Fetcher struct {
	client    *http.Client
	userAgent string
	cat       *Catalogue
}

// NewFetcher builds a Fetcher from extraction config and a pattern catalogue.
func NewFetcher(cfg config.ExtractConfig, cat *Catalogue) *Fetcher {
	timeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		cat:       cat,
	}
}

// page is the fetched state of a candidate's site after redirects.
type page struct {
	finalURL string
	body     string
}

// WebsiteSignals fetches the candidate's site and derives all page-based
// signals. A candidate without a website yields only no_website; a site that
// cannot be reached yields only website_error. Neither is a failure of the
// extraction itself.
func (f *Fetcher) WebsiteSignals(ctx context.Context, b *model.Business, now time.Time) []model.Signal {
	mk := func(typ model.SignalType, v model.SignalValue, conf float64) model.Signal {
		return model.Signal{
			BusinessID: b.ID,
			Type:       typ,
			Value:      v,
			Confidence: conf,
			SourceKey:  sourceWebsite,
			ObservedAt: now,
		}
	}

	if b.Website == "" {
		return []model.Signal{mk(model.SignalNoWebsite, model.BoolValue(true), websiteConfidence)}
	}

	pg, err := f.fetch(ctx, b.Website)
	if err != nil {
		zap.L().Debug("website fetch failed",
			zap.String("business_id", b.ID),
			zap.String("url", b.Website),
			zap.Error(err))
		s := mk(model.SignalWebsiteError, model.ObjectValue(map[string]string{
			"url":    b.Website,
			"reason": errorReason(err),
		}), websiteErrorConfidence)
		s.EvidenceURL = b.Website
		return []model.Signal{s}
	}

	signals := f.pageSignals(b, pg, now)

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(pg.body))
	if docErr == nil {
		signals = append(signals, ContactSignals(b, doc, pg, now)...)
	}

	return signals
}

// fetch downloads the page. Network flakes get one retry; an HTTP error
// status answer is a fact about the site and is reported, not retried.
func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*page, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	return resilience.DoVal(ctx, fetchRetry(), func(ctx context.Context) (*page, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: build request for %s", rawURL)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: fetch %s", rawURL)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &httpStatusError{url: rawURL, status: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read body for %s", rawURL)
		}

		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		return &page{finalURL: finalURL, body: string(body)}, nil
	})
}

func fetchRetry() resilience.RetryConfig {
	cfg := resilience.FetchRetryConfig()
	cfg.ShouldRetry = resilience.IsNetworkError
	return cfg
}

// httpStatusError marks a reachable site that answered with an error status.
type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("extract: %s answered %d", e.url, e.status)
}

func errorReason(err error) string {
	var se *httpStatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("http_status_%d", se.status)
	}
	if strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "Client.Timeout") {
		return "timeout"
	}
	return "unreachable"
}

// pageSignals derives everything that can be read off the fetched page body.
func (f *Fetcher) pageSignals(b *model.Business, pg *page, now time.Time) []model.Signal {
	lower := strings.ToLower(pg.body)

	mk := func(typ model.SignalType, v model.SignalValue, conf float64) model.Signal {
		return model.Signal{
			BusinessID:  b.ID,
			Type:        typ,
			Value:       v,
			Confidence:  conf,
			EvidenceURL: pg.finalURL,
			SourceKey:   sourceWebsite,
			ObservedAt:  now,
		}
	}

	var signals []model.Signal

	// Vendor families: the page was scanned, so absence is an explicit
	// false observation, not a gap.
	for i := range f.cat.Families {
		fam := &f.cat.Families[i]
		match := f.cat.MatchFamily(fam, lower)
		s := mk(fam.Signal, model.BoolValue(match.Matched), match.Confidence)
		if match.Matched {
			s.EvidenceSnippet = snippetAround(pg.body, match.Pattern)
		}
		signals = append(signals, s)
	}

	if socials := f.cat.MatchSocials(lower); len(socials) > 0 {
		signals = append(signals, mk(model.SignalSocialLinks, model.ObjectValue(socials), websiteConfidence))
	}

	signals = append(signals,
		mk(model.SignalHasSSL, model.BoolValue(strings.HasPrefix(pg.finalURL, "https://")), websiteConfidence),
		mk(model.SignalMobileFriendly, model.BoolValue(hasViewportMeta(lower)), 0.85),
		mk(model.SignalHasPrivacyPolicy, model.BoolValue(hasPrivacyPolicy(lower)), 0.85),
		mk(model.SignalStructuredData, model.BoolValue(hasStructuredData(lower)), websiteConfidence),
		mk(model.SignalHoursListed, model.BoolValue(hasHoursListed(lower)), 0.8),
	)

	return signals
}

func hasViewportMeta(lower string) bool {
	return strings.Contains(lower, `name="viewport"`) || strings.Contains(lower, `name='viewport'`)
}

func hasPrivacyPolicy(lower string) bool {
	return strings.Contains(lower, "privacy policy") || strings.Contains(lower, "privacy-policy")
}

func hasStructuredData(lower string) bool {
	return strings.Contains(lower, "application/ld+json") || strings.Contains(lower, "itemscope")
}

var dayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// hasHoursListed is a heuristic: an hours mention plus at least two weekday
// names, or JSON-LD opening hours.
func hasHoursListed(lower string) bool {
	if strings.Contains(lower, "openinghours") {
		return true
	}
	if !strings.Contains(lower, "hours") {
		return false
	}
	days := 0
	for _, d := range dayNames {
		if strings.Contains(lower, d) {
			days++
			if days >= 2 {
				return true
			}
		}
	}
	return false
}

// snippetAround returns a short sanitized window of page text around the
// first occurrence of pattern, for evidence display.
func snippetAround(body, pattern string) string {
	idx := strings.Index(strings.ToLower(body), strings.ToLower(pattern))
	if idx < 0 {
		return pattern
	}
	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + len(pattern) + 40
	if end > len(body) {
		end = len(body)
	}
	return sanitizeSnippet(body[start:end])
}
