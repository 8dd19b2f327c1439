// Package stock loads per-ticker price tables, serving them from the local
// cache and falling back to the remote provider on a miss.
package stock

import (
	"context"
	"fmt"
	"log"
	"time"

	"StockLens/internal/cache"
	"StockLens/internal/collector"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/recorder"

	"github.com/google/uuid"
)

// CachePolicy decides when a cache entry is served. The zero value is
// NeverExpire.
type CachePolicy struct {
	// MaxAge > 0 treats entries older than MaxAge as a miss.
	MaxAge time.Duration
	// RefetchEmpty treats a cached empty table as a miss.
	RefetchEmpty bool
}

// NeverExpire serves any existing entry forever, including empty ones, and
// ignores the requested date range on a hit.
var NeverExpire = CachePolicy{}

// fresh reports whether entry may be served under the policy.
func (p CachePolicy) fresh(entry cache.Entry, now time.Time) bool {
	if p.RefetchEmpty && entry.Table.Len() == 0 {
		return false
	}
	if p.MaxAge > 0 && now.Sub(entry.SavedAt) > p.MaxAge {
		return false
	}
	return true
}

// Loader is the data access entry point: cache first, remote provider on a miss.
type Loader struct {
	Cache    cache.Store
	Fetcher  collector.Fetcher
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Policy   CachePolicy
	Years    int
	Now      func() time.Time
}

// NewLoader creates a Loader with NeverExpire, DefaultYears and a no-op recorder.
func NewLoader(store cache.Store, fetcher collector.Fetcher) *Loader {
	return &Loader{
		Cache:    store,
		Fetcher:  fetcher,
		Recorder: recorder.NewNoopRecorder(),
		Policy:   NeverExpire,
		Years:    DefaultYears,
		Now:      time.Now,
	}
}

func (l *Loader) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l *Loader) years() int {
	if l.Years <= 0 {
		return DefaultYears
	}
	return l.Years
}

// Load returns the price table for ticker. An existing cache entry is
// returned in full whatever rng says; rng only bounds the remote fetch on a
// miss. Fetch failures are returned as *model.FetchError and nothing is
// cached. A successful fetch, even an empty one, replaces the cache entry.
func (l *Loader) Load(ctx context.Context, ticker string, rng DateRange) (*model.PriceTable, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	evt := &recorder.LoadEvent{ID: uuid.NewString(), Ticker: t}
	defer l.record(evt)

	entry, ok, err := l.Cache.Get(t)
	if err != nil {
		evt.Err = err.Error()
		return nil, fmt.Errorf("load %s: %w", t, err)
	}
	now := l.now()
	if ok && l.Policy.fresh(entry, now) {
		log.Printf("[INFO] %s: cache hit (%d rows)", t, entry.Table.Len())
		evt.Source = recorder.SourceCache
		evt.Start, evt.End = entry.Table.FirstDate(), entry.Table.LastDate()
		evt.Rows = entry.Table.Len()
		l.Metrics.ObserveLoad(recorder.SourceCache)
		return entry.Table, nil
	}
	if ok {
		log.Printf("[INFO] %s: cache entry saved %s is stale, refetching", t, entry.SavedAt.Format(time.RFC3339))
	}

	evt.Source = recorder.SourceRemote
	r, err := rng.Resolve(now, l.years())
	if err != nil {
		evt.Err = err.Error()
		return nil, err
	}
	evt.Start, evt.End = r.Start, r.End

	log.Printf("[INFO] %s: fetching %s to %s from %s", t,
		r.Start.Format(model.DateFormat), r.End.Format(model.DateFormat), l.Fetcher.Name())
	began := time.Now()
	bars, err := l.Fetcher.FetchHistory(ctx, t, r.Start, r.End)
	l.Metrics.ObserveFetch(time.Since(began), err)
	if err != nil {
		fe := &model.FetchError{Ticker: t, Source: l.Fetcher.Name(), Err: err}
		evt.Err = fe.Error()
		return nil, fe
	}

	table := model.NewPriceTable(t, bars)
	if table.Len() == 0 {
		log.Printf("[WARN] %s: provider returned no rows; caching the empty result", t)
	}
	if err := l.Cache.Put(t, table); err != nil {
		evt.Err = err.Error()
		return nil, fmt.Errorf("cache %s: %w", t, err)
	}
	evt.Rows = table.Len()
	l.Metrics.ObserveLoad(recorder.SourceRemote)
	return table, nil
}

func (l *Loader) record(evt *recorder.LoadEvent) {
	if l.Recorder == nil {
		return
	}
	evt.At = l.now()
	if err := l.Recorder.RecordLoad(evt); err != nil {
		log.Printf("[ERROR] record load %s: %v", evt.Ticker, err)
	}
}
