package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"StockLens/internal/cache"
	"StockLens/internal/collector"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var janRange = stock.DateRange{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
}

// flakyFetcher fails for one ticker and delegates the rest.
type flakyFetcher struct {
	collector.MockFetcher
	failFor string
}

func (f *flakyFetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error) {
	if ticker == f.failFor {
		return nil, errors.New("upstream 500")
	}
	return f.MockFetcher.FetchHistory(ctx, ticker, start, end)
}

func newWarmer(t *testing.T, f collector.Fetcher, tickers ...string) *Warmer {
	t.Helper()
	l := stock.NewLoader(cache.NewParquetStore(filepath.Join(t.TempDir(), "ohlcv")), f)
	return &Warmer{Loader: l, Watchlist: tickers, Range: janRange, Metrics: metrics.New()}
}

func TestWarmAll_ContinuesPastFailures(t *testing.T) {
	f := &flakyFetcher{MockFetcher: collector.MockFetcher{Price: 10}, failFor: "BAD"}
	w := newWarmer(t, f, "AAPL", "BAD", "MSFT")

	report, err := w.WarmAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, report.Loaded)
	require.Contains(t, report.Failed, "BAD")
	assert.True(t, errors.Is(report.Failed["BAD"], model.ErrFetch))
	assert.Contains(t, report.String(), "warmed 2/3 tickers")

	assert.Equal(t, 2.0, testutil.ToFloat64(w.Metrics.WarmRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(w.Metrics.WarmRuns.WithLabelValues("error")))
}

func TestWarmAll_SecondRunHitsCache(t *testing.T) {
	f := &collector.MockFetcher{Price: 10}
	w := newWarmer(t, f, "AAPL", "MSFT")

	_, err := w.WarmAll(context.Background())
	require.NoError(t, err)
	_, err = w.WarmAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.Calls(), 2, "cached tickers are not refetched")
}

func TestWarmAll_Canceled(t *testing.T) {
	f := &collector.MockFetcher{Price: 10}
	w := newWarmer(t, f, "AAPL", "MSFT")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := w.WarmAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Loaded)
	assert.Empty(t, f.Calls())
}

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	f := &collector.MockFetcher{Price: 10}
	s := NewScheduler(context.Background(), newWarmer(t, f, "AAPL"))

	require.NoError(t, s.Register("0 0 22 * * 1-5"))
	assert.Error(t, s.Register("not a cron"))
	assert.Len(t, s.Cron.Entries(), 1)

	s.RunNow()
	assert.Equal(t, []string{"AAPL"}, s.LastReport().Loaded)

	s.Start()
	s.Stop()
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.messages = append(f.messages, text)
	return nil
}

func TestScheduler_NotifiesOnFailure(t *testing.T) {
	f := &flakyFetcher{MockFetcher: collector.MockFetcher{Price: 10}, failFor: "BAD"}
	n := &fakeNotifier{}
	s := NewScheduler(context.Background(), newWarmer(t, f, "AAPL", "BAD"))
	s.Notifier = n

	s.RunNow()
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "loaded: 1, failed: 1")
	assert.Contains(t, n.messages[0], "• BAD: fetch BAD from mock: upstream 500")

	f.failFor = ""
	s.RunNow()
	assert.Len(t, n.messages, 1, "clean runs are silent by default")

	s.NotifyAlways = true
	s.RunNow()
	assert.Len(t, n.messages, 2)
}
