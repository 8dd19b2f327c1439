package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"StockLens/internal/model"

	"golang.org/x/time/rate"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *rate.Limiter     // nil means unlimited
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher. ratePerSecond <= 0
// disables request pacing.
func NewYahooFetcher(proxyURL string, timeout time.Duration, ratePerSecond float64) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			log.Printf("[WARN] ignoring invalid proxy %q: %v", proxyURL, err)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &YahooFetcher{
		BaseURL: DefaultYahooBaseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
	}
	if ratePerSecond > 0 {
		f.Limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []interface{} `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat converts a decoded JSON number to float64. null and anything
// non-numeric become NaN.
func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return math.NaN()
	}
}

// at returns vals[i] or NaN when the provider sent a short array.
func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return math.NaN()
	}
	return toFloat(vals[i])
}

// FetchHistory downloads daily bars for [start, end).
func (f *YahooFetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("yahoo rate limit: %w", err)
		}
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "div,split")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	var chart yahooChart
	if resp.StatusCode != http.StatusOK {
		// Yahoo reports unknown symbols as 404 with a chart.error body.
		if json.Unmarshal(body, &chart) == nil && chart.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
		}
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return []model.OHLCV{}, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: response has timestamps but no quote block")
	}
	quote := result.Indicators.Quote[0]
	var adj []interface{}
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]model.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := model.OHLCV{
			// shift to exchange local time so the calendar date is the trading day
			Time:     model.ToDate(time.Unix(ts+result.Meta.GMTOffset, 0).UTC()),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    at(quote.Close, i),
			AdjClose: at(adj, i),
			Volume:   at(quote.Volume, i),
		}
		if math.IsNaN(b.Open) && math.IsNaN(b.High) && math.IsNaN(b.Low) && math.IsNaN(b.Close) {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, b)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
