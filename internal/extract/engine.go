package extract

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

// Extractor runs signal extraction for candidate businesses.
type Extractor struct {
	fetcher *Fetcher
	workers int
	now     func() time.Time
}

// NewExtractor builds an Extractor from config, loading the pattern catalogue
// from the configured path or the embedded default.
func NewExtractor(cfg config.ExtractConfig) (*Extractor, error) {
	var cat *Catalogue
	var err error
	if cfg.CataloguePath != "" {
		cat, err = LoadCatalogue(cfg.CataloguePath)
	} else {
		cat, err = DefaultCatalogue()
	}
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	return &Extractor{
		fetcher: NewFetcher(cfg, cat),
		workers: workers,
		now:     time.Now,
	}, nil
}

// Extract derives all signals for a single candidate. Extraction is
// best-effort per candidate: an unreachable site still yields the directory
// signals plus a website_error observation.
func (e *Extractor) Extract(ctx context.Context, b *model.Business) []model.Signal {
	now := e.now().UTC()

	signals := DirectorySignals(b, now)
	signals = append(signals, e.fetcher.WebsiteSignals(ctx, b, now)...)

	// Invalid signals are an extractor bug; drop them rather than poison
	// the store.
	valid := signals[:0]
	for i := range signals {
		if err := signals[i].Validate(); err != nil {
			zap.L().Warn("dropping malformed signal",
				zap.String("business_id", b.ID),
				zap.String("type", string(signals[i].Type)),
				zap.Error(err))
			continue
		}
		valid = append(valid, signals[i])
	}
	return valid
}

// ExtractAll fans extraction out over the worker pool. Cancellation stops
// workers from claiming new candidates; in-flight fetches finish or time out
// on their own. onDone, when non-nil, fires once per fully processed
// candidate so callers can track progress mid-batch. Returns the signals
// gathered and how many candidates were fully processed.
func (e *Extractor) ExtractAll(ctx context.Context, candidates []*model.Business, onDone func()) ([]model.Signal, int, error) {
	var (
		mu        sync.Mutex
		signals   []model.Signal
		processed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, b := range candidates {
		if ctx.Err() != nil {
			break
		}
		b := b
		g.Go(func() error {
			got := e.Extract(ctx, b)
			mu.Lock()
			signals = append(signals, got...)
			processed++
			mu.Unlock()
			if onDone != nil {
				onDone()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return signals, processed, err
	}
	return signals, processed, ctx.Err()
}
