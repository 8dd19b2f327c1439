package main

import (
	"fmt"
	"log"

	"StockLens/internal/cache"
	"StockLens/internal/collector"
	"StockLens/internal/config"
	"StockLens/internal/metrics"
	"StockLens/internal/recorder"
	"StockLens/internal/stock"
)

// app is the wiring shared by every subcommand.
type app struct {
	Config   *config.Config
	Loader   *stock.Loader
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	ds := cfg.DataSource
	switch ds.Provider {
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, ds.Timeout, ds.RatePerSecond)
	default:
		f := collector.NewYahooFetcher(cfg.Proxy, ds.Timeout, ds.RatePerSecond)
		if ds.BaseURL != "" {
			f.BaseURL = ds.BaseURL
		}
		return f
	}
}

func newRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

// newApp loads and validates the config at path and builds the loader.
func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return newAppFromConfig(cfg), nil
}

func newAppFromConfig(cfg *config.Config) *app {
	fetcher := newFetcher(cfg)
	log.Printf("[INFO] data source: %s", fetcher.Name())

	a := &app{
		Config:   cfg,
		Recorder: newRecorder(cfg.Database.SQLitePath),
		Metrics:  metrics.New(),
	}
	a.Loader = stock.NewLoader(cache.NewParquetStore(cfg.Cache.Dir), fetcher)
	a.Loader.Recorder = a.Recorder
	a.Loader.Metrics = a.Metrics
	a.Loader.Years = cfg.Load.Years
	a.Loader.Policy = stock.CachePolicy{MaxAge: cfg.Cache.MaxAge, RefetchEmpty: cfg.Cache.RefetchEmpty}
	return a
}

func (a *app) Close() {
	if err := a.Recorder.Close(); err != nil {
		log.Printf("[ERROR] close recorder: %v", err)
	}
}
