package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/config"
	"github.com/sells-group/frc-county-map/internal/fetcher"
	"github.com/sells-group/frc-county-map/internal/metrics"
	"github.com/sells-group/frc-county-map/internal/pipeline"
	"github.com/sells-group/frc-county-map/internal/region"
	"github.com/sells-group/frc-county-map/internal/store"
	"github.com/sells-group/frc-county-map/pkg/tba"
)

// runEnv holds the long-lived dependencies shared by the run-style commands.
type runEnv struct {
	Store   store.Store
	Regions *region.Table
}

// initRunEnv validates config for mode and opens the store and region table.
func initRunEnv(ctx context.Context, mode string) (*runEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, apperr.NewConfigError(err)
	}

	regions, err := region.LoadFile(cfg.Region.File)
	if err != nil {
		return nil, apperr.NewConfigError(err)
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	return &runEnv{Store: st, Regions: regions}, nil
}

// Close releases the store.
func (e *runEnv) Close() error {
	return e.Store.Close()
}

// Pipeline builds a pipeline for rc. Each pipeline gets its own metrics
// registry so the textfile reflects one run.
func (e *runEnv) Pipeline(rc config.RunConfig) *pipeline.Pipeline {
	m := metrics.New()
	var client tba.Client
	if rc.APIKey != "" {
		client = newTBAClient(rc, e.Store, m)
	}
	return pipeline.New(rc, e.Store, client, e.Regions, pipeline.WithMetrics(m))
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// newTBAClient wires the provider client with the configured pacing, the
// store-backed response cache, and request metrics.
func newTBAClient(rc config.RunConfig, cache tba.Cache, m *metrics.Metrics) tba.Client {
	opts := []tba.Option{
		tba.WithBaseURL(cfg.TBA.BaseURL),
		tba.WithDelay(rc.RequestDelay),
		tba.WithUserAgent(cfg.TBA.UserAgent),
		tba.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TBA.TimeoutSecs) * time.Second}),
	}
	if cache != nil && rc.CacheTTL > 0 {
		opts = append(opts, tba.WithCache(cache, rc.CacheTTL))
	}
	if m != nil {
		opts = append(opts, tba.WithObserver(m.ObserveRequest))
	}
	return tba.NewClient(rc.APIKey, opts...)
}

// newFetcher returns the downloader used for reference data.
func newFetcher() *fetcher.Router {
	return fetcher.NewRouter(
		fetcher.HTTPOptions{
			UserAgent:    cfg.TBA.UserAgent,
			Timeout:      10 * time.Minute,
			MaxRetries:   3,
			BackoffBase:  time.Second,
			RateLimiters: fetcher.DefaultRateLimiters(),
		},
		fetcher.FTPOptions{Timeout: 10 * time.Minute},
	)
}

func pollInterval() time.Duration {
	return time.Duration(cfg.Progress.PollIntervalMS) * time.Millisecond
}
