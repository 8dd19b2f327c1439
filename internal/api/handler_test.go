package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"StockLens/internal/cache"
	"StockLens/internal/collector"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func closeBar(t time.Time, c float64) model.OHLCV {
	nan := math.NaN()
	return model.OHLCV{Time: t, Open: nan, High: nan, Low: nan, Close: c, AdjClose: nan, Volume: nan}
}

func newServer(t *testing.T, f *collector.MockFetcher) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	l := stock.NewLoader(cache.NewParquetStore(filepath.Join(t.TempDir(), "ohlcv")), f)
	l.Now = func() time.Time { return day(2022, 12, 30) }
	m := metrics.New()
	l.Metrics = m
	srv := httptest.NewServer(NewHandler(l, m).Routes())
	t.Cleanup(srv.Close)
	return srv, m
}

func fixtureFetcher() *collector.MockFetcher {
	return &collector.MockFetcher{Bars: []model.OHLCV{
		closeBar(day(2021, 1, 4), 100),
		closeBar(day(2021, 6, 1), 150),
		closeBar(day(2022, 1, 3), 120),
		closeBar(day(2022, 6, 1), 180),
	}}
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type seriesBody struct {
	Ticker string `json:"ticker"`
	Column string `json:"column"`
	Points []struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	} `json:"points"`
}

func (b seriesBody) values() []float64 {
	out := make([]float64, len(b.Points))
	for i, p := range b.Points {
		if p.Value != nil {
			out[i] = *p.Value
		}
	}
	return out
}

func TestGetBars(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())

	var body struct {
		Ticker  string                   `json:"ticker"`
		Columns []string                 `json:"columns"`
		Count   int                      `json:"count"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/aapl/bars", &body))
	assert.Equal(t, "AAPL", body.Ticker)
	assert.Equal(t, []string{model.ColumnClose}, body.Columns)
	assert.Equal(t, 4, body.Count)
	assert.Equal(t, "2021-01-04", body.Rows[0]["date"])
	assert.Equal(t, 100.0, body.Rows[0][model.ColumnClose])
}

func TestGetRebase(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())

	var body seriesBody
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase", &body))
	assert.Equal(t, model.ColumnClose, body.Column, "falls back to Close when Adjusted Close is absent")
	assert.Equal(t, []float64{100, 150, 120, 180}, body.values())

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase?column=close&base=1", &body))
	assert.InDeltaSlice(t, []float64{1, 1.5, 1.2, 1.8}, body.values(), 1e-12)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase?base=NaN", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase?base=x", nil))
}

func TestGetNormalize(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())

	var body seriesBody
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/AAPL/normalize?column=Close", &body))
	assert.InDeltaSlice(t, []float64{0, 62.5, 25, 100}, body.values(), 1e-9)
}

func TestGetYears(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())

	var body struct {
		Column string `json:"column"`
		Years  map[string][]struct {
			Value float64 `json:"value"`
		} `json:"years"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/AAPL/years", &body))
	require.Len(t, body.Years, 2)
	assert.Equal(t, 120.0, body.Years["2022"][0].Value, "years are slices of one global rebase")

	var year seriesBody
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/stocks/AAPL/years/2021", &year))
	assert.Equal(t, []float64{100, 150}, year.values())

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/stocks/AAPL/years/2019", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stocks/AAPL/years/abc", nil))
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stocks/..%2Fetc/bars", &e))
	assert.Equal(t, http.StatusBadRequest, e.Status)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/stocks/AAPL/bars?start=2021-13-01", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase?column=Volume", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/stocks/AAPL/rebase?column=Dividends", nil))

	flat := &collector.MockFetcher{Bars: []model.OHLCV{closeBar(day(2022, 1, 3), 5), closeBar(day(2022, 1, 4), 5)}}
	srv2, _ := newServer(t, flat)
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv2.URL+"/api/stocks/FLAT/normalize", nil))

	broken := &collector.MockFetcher{Err: assert.AnError}
	srv3, m := newServer(t, broken)
	require.Equal(t, http.StatusBadGateway, getJSON(t, srv3.URL+"/api/stocks/AAPL/bars", &e))
	assert.Contains(t, e.Error, "fetch AAPL from mock")

	resp, err := http.Get(srv3.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, m)
}

func TestGetCompare(t *testing.T) {
	srv, _ := newServer(t, &collector.MockFetcher{Price: 100})

	var body struct {
		Tickers []string             `json:"tickers"`
		Dates   []string             `json:"dates"`
		Series  map[string][]float64 `json:"series"`
	}
	url := srv.URL + "/api/compare?tickers=MSFT,%20aapl&start=2022-03-01&end=2022-04-01"
	require.Equal(t, http.StatusOK, getJSON(t, url, &body))
	assert.Equal(t, []string{"AAPL", "MSFT"}, body.Tickers)
	require.NotEmpty(t, body.Dates)
	assert.Equal(t, "2022-03-01", body.Dates[0])
	assert.Equal(t, 100.0, body.Series["AAPL"][0])
	assert.Len(t, body.Series["MSFT"], len(body.Dates))

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/compare?tickers=AAPL", nil))
}

func TestCompare_InsufficientOverlap(t *testing.T) {
	srv, _ := newServer(t, &collector.MockFetcher{Bars: []model.OHLCV{closeBar(day(2022, 1, 3), 1)}})
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, srv.URL+"/api/compare?tickers=A,B", nil))
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t, fixtureFetcher())
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}
