// Package cache stores one price table per ticker on local disk.
package cache

import (
	"time"

	"StockLens/internal/model"
)

// Entry is a cached table and the time it was written.
type Entry struct {
	Table   *model.PriceTable
	SavedAt time.Time
}

// Store persists price tables keyed by ticker.
type Store interface {
	// Get returns ok=false when no entry exists for ticker.
	Get(ticker string) (entry Entry, ok bool, err error)
	// Put replaces the entry for ticker.
	Put(ticker string, table *model.PriceTable) error
	// Path returns where the entry for ticker lives.
	Path(ticker string) string
}
