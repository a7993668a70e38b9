package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/discover"
	"github.com/sells-group/leadscout/internal/extract"
	"github.com/sells-group/leadscout/internal/pipeline"
	"github.com/sells-group/leadscout/internal/scoring"
	"github.com/sells-group/leadscout/internal/store"
	"github.com/sells-group/leadscout/pkg/places"
)

// env bundles the wired collaborators a command needs.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Profiles map[string]scoring.Profile
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == "sqlite" && dsn == "" {
		dsn = "leadscout.db"
	}
	return store.Open(ctx, cfg.Store.Driver, dsn, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	profiles, err := scoring.LoadProfiles(cfg.Scoring.ProfilesPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	var opts []places.Option
	if cfg.Places.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	client := places.NewClient(cfg.Places.APIKey, opts...)
	discoverer := discover.New(client, cfg.Places)

	extractor, err := extract.NewExtractor(cfg.Extract)
	if err != nil {
		st.Close()
		return nil, err
	}

	p, err := pipeline.New(st, discoverer, extractor, profiles, cfg.Scoring.DefaultProfile)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &env{Store: st, Pipeline: p, Profiles: profiles}, nil
}
