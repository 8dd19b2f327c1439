package collector

import (
	"context"
	"time"

	"StockLens/internal/model"
)

// Fetcher retrieves daily bars for a ticker from a remote quote provider.
// start is inclusive and end is exclusive. An empty result is not an error.
type Fetcher interface {
	FetchHistory(ctx context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error)
	Name() string
}
