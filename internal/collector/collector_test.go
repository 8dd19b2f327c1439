package collector

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

const yahooBody = `{"chart":{"result":[{
  "meta":{"gmtoffset":-18000},
  "timestamp":[1609770600,1609857000,1609943400],
  "indicators":{
    "quote":[{"open":[133.52,128.89,null],"high":[133.61,131.74,null],"low":[126.76,128.43,null],
              "close":[129.41,131.01,null],"volume":[143301900,97664900,null]}],
    "adjclose":[{"adjclose":[126.83,null,null]}]
  }}],"error":null}}`

func newYahoo(t *testing.T, h http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("", 5*time.Second, 0)
	f.BaseURL = srv.URL
	return f
}

func TestYahooFetcher_FetchHistory(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(yahooBody))
	})

	bars, err := f.FetchHistory(context.Background(), "AAPL", day(2021, 1, 1), day(2021, 1, 8))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1609459200", gotQuery["period1"][0])
	assert.Equal(t, "1610064000", gotQuery["period2"][0])
	assert.Equal(t, "1d", gotQuery["interval"][0])

	require.Len(t, bars, 2, "all-null bar is skipped")
	assert.Equal(t, day(2021, 1, 4), bars[0].Time)
	assert.Equal(t, day(2021, 1, 5), bars[1].Time)
	assert.Equal(t, 129.41, bars[0].Close)
	assert.Equal(t, 126.83, bars[0].AdjClose)
	assert.True(t, math.IsNaN(bars[1].AdjClose), "null becomes NaN, not zero")
	assert.Equal(t, 97664900.0, bars[1].Volume)
}

func TestYahooFetcher_SymbolMap(t *testing.T) {
	var gotPath string
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	})
	bars, err := f.FetchHistory(context.Background(), "SPX500", day(2021, 1, 1), day(2021, 2, 1))
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, "/v8/finance/chart/%5EGSPC", gotPath)
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "api error", status: http.StatusNotFound, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, wantMsg: "symbol may be delisted"},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantMsg: "status 500"},
		{name: "bad json", status: http.StatusOK, body: "{", wantMsg: "yahoo decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := f.FetchHistory(context.Background(), "NOPE", day(2021, 1, 1), day(2021, 2, 1))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestYahooFetcher_ContextCanceled(t *testing.T) {
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(yahooBody))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchHistory(ctx, "AAPL", day(2021, 1, 1), day(2021, 1, 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRESTFetcher_FetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2021-01-01", r.URL.Query().Get("start"))
		_, _ = w.Write([]byte(`[
			{"timestamp":1609891200,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10},
			{"timestamp":1609804800,"open":1,"high":2,"low":0.5,"close":1.2,"adj_close":1.1,"volume":10},
			{"timestamp":1612137600,"open":1,"high":2,"low":0.5,"close":9,"volume":10}
		]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", time.Second, 0)
	bars, err := f.FetchHistory(context.Background(), "MSFT", day(2021, 1, 1), day(2021, 2, 1))
	require.NoError(t, err)
	require.Len(t, bars, 2, "bar on the exclusive end date is dropped")
	assert.Equal(t, day(2021, 1, 5), bars[0].Time)
	assert.Equal(t, 1.1, bars[0].AdjClose)
	assert.True(t, math.IsNaN(bars[1].AdjClose))
}

func TestRESTFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "", "", time.Second, 0)
	_, err := f.FetchHistory(context.Background(), "MSFT", day(2021, 1, 1), day(2021, 2, 1))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 403"))
}

func TestMockFetcher(t *testing.T) {
	m := &MockFetcher{Price: 100}
	bars, err := m.FetchHistory(context.Background(), "AAPL", day(2021, 1, 1), day(2021, 1, 11))
	require.NoError(t, err)
	assert.Len(t, bars, 6, "weekdays between Jan 1 and Jan 10 2021")
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "AAPL", m.Calls()[0].Ticker)

	m.Err = errors.New("down")
	_, err = m.FetchHistory(context.Background(), "AAPL", day(2021, 1, 1), day(2021, 1, 11))
	assert.EqualError(t, err, "down")
}
