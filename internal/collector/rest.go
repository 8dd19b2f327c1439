package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"StockLens/internal/model"

	"golang.org/x/time/rate"
)

// RESTFetcher implements Fetcher against a generic JSON bar provider.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration, ratePerSecond float64) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
	if ratePerSecond > 0 {
		f.Limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return f
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the provider. Pointers distinguish
// null from zero.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	AdjClose  *float64 `json:"adj_close"`
	Volume    *float64 `json:"volume"`
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func (f *RESTFetcher) FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rest rate limit: %w", err)
		}
	}
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("start", start.Format(model.DateFormat))
	q.Set("end", end.Format(model.DateFormat))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
	}
	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	bars := make([]model.OHLCV, 0, len(raw))
	for _, rb := range raw {
		t := model.ToDate(time.Unix(rb.Timestamp, 0).UTC())
		if t.Before(model.ToDate(start)) || !t.Before(end) {
			continue
		}
		bars = append(bars, model.OHLCV{
			Time:     t,
			Open:     orNaN(rb.Open),
			High:     orNaN(rb.High),
			Low:      orNaN(rb.Low),
			Close:    orNaN(rb.Close),
			AdjClose: orNaN(rb.AdjClose),
			Volume:   orNaN(rb.Volume),
		})
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
