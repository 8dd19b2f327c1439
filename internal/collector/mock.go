package collector

import (
	"context"
	"sync"
	"time"

	"StockLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.OHLCV
	Err   error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records the arguments of one FetchHistory call.
type MockCall struct {
	Ticker     string
	Start, End time.Time
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchHistory(_ context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Ticker: ticker, Start: start, End: end})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		out := make([]model.OHLCV, 0, len(m.Bars))
		for _, b := range m.Bars {
			if !b.Time.Before(start) && b.Time.Before(end) {
				out = append(out, b)
			}
		}
		return out, nil
	}
	return generateMockBars(m.Price, start, end), nil
}

// Calls returns the calls made so far.
func (m *MockFetcher) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// generateMockBars produces one weekday bar per day in [start, end).
func generateMockBars(basePrice float64, start, end time.Time) []model.OHLCV {
	var bars []model.OHLCV
	i := 0
	for d := model.ToDate(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i%20-10)*0.001)
		bars = append(bars, model.OHLCV{
			Time:     d,
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p * 0.98,
			Volume:   1000000,
		})
		i++
	}
	return bars
}
