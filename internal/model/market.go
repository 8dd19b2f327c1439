package model

import (
	"math"
	"sort"
	"strings"
	"time"
)

// OHLCV represents a single daily bar. A missing value is NaN.
type OHLCV struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Column names of a PriceTable.
const (
	ColumnOpen     = "Open"
	ColumnHigh     = "High"
	ColumnLow      = "Low"
	ColumnClose    = "Close"
	ColumnAdjClose = "Adjusted Close"
	ColumnVolume   = "Volume"
)

// AllColumns lists the columns in table order.
var AllColumns = []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnAdjClose, ColumnVolume}

var columnAliases = map[string]string{
	"open":           ColumnOpen,
	"high":           ColumnHigh,
	"low":            ColumnLow,
	"close":          ColumnClose,
	"adjusted close": ColumnAdjClose,
	"adj close":      ColumnAdjClose,
	"adj_close":      ColumnAdjClose,
	"adjclose":       ColumnAdjClose,
	"volume":         ColumnVolume,
}

// CanonicalColumn maps a user supplied column name to its canonical form.
// Unknown names are returned unchanged with ok=false.
func CanonicalColumn(name string) (string, bool) {
	c, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return name, false
	}
	return c, true
}

// Value returns the bar's value for a canonical column name.
func (b OHLCV) Value(column string) float64 {
	switch column {
	case ColumnOpen:
		return b.Open
	case ColumnHigh:
		return b.High
	case ColumnLow:
		return b.Low
	case ColumnClose:
		return b.Close
	case ColumnAdjClose:
		return b.AdjClose
	case ColumnVolume:
		return b.Volume
	}
	return math.NaN()
}

// PriceTable is an ordered, date-indexed sequence of bars for one ticker.
// Dates are UTC calendar days, unique and strictly increasing.
type PriceTable struct {
	Ticker string
	Bars   []OHLCV
}

// NewPriceTable normalizes bars into a PriceTable: times are truncated to UTC
// dates, zero dates are dropped, and duplicate dates keep the last bar.
func NewPriceTable(ticker string, bars []OHLCV) *PriceTable {
	cleaned := make([]OHLCV, 0, len(bars))
	for _, b := range bars {
		if b.Time.IsZero() {
			continue
		}
		b.Time = ToDate(b.Time)
		cleaned = append(cleaned, b)
	}
	sort.SliceStable(cleaned, func(i, j int) bool { return cleaned[i].Time.Before(cleaned[j].Time) })

	out := cleaned[:0]
	for _, b := range cleaned {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return &PriceTable{Ticker: ticker, Bars: out}
}

// Len returns the number of rows.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Bars)
}

// Has reports whether the column exists in the table. A column exists when
// at least one row holds a non-missing value for it.
func (t *PriceTable) Has(column string) bool {
	if t == nil {
		return false
	}
	c, ok := CanonicalColumn(column)
	if !ok {
		return false
	}
	for _, b := range t.Bars {
		if !math.IsNaN(b.Value(c)) {
			return true
		}
	}
	return false
}

// Columns returns the present columns in table order.
func (t *PriceTable) Columns() []string {
	var cols []string
	for _, c := range AllColumns {
		if t.Has(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Column extracts one column as a Series named after the column. Missing
// values are kept as NaN.
func (t *PriceTable) Column(column string) (Series, error) {
	if t == nil || !t.Has(column) {
		return Series{}, &DataNotLoadedError{Column: column}
	}
	c, _ := CanonicalColumn(column)
	s := Series{Name: c, Points: make([]Point, len(t.Bars))}
	for i, b := range t.Bars {
		s.Points[i] = Point{Date: b.Time, Value: b.Value(c)}
	}
	return s, nil
}

// FirstDate and LastDate return the table bounds, zero when empty.
func (t *PriceTable) FirstDate() time.Time {
	if t.Len() == 0 {
		return time.Time{}
	}
	return t.Bars[0].Time
}

func (t *PriceTable) LastDate() time.Time {
	if t.Len() == 0 {
		return time.Time{}
	}
	return t.Bars[len(t.Bars)-1].Time
}

// ToDate truncates t to midnight UTC of its calendar date.
func ToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateFormat is the layout used for dates in files and URLs.
const DateFormat = "2006-01-02"
