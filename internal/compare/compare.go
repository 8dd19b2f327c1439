// Package compare lines several tickers up on their shared trading days.
package compare

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"StockLens/internal/calculator"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"golang.org/x/sync/errgroup"
)

// TableLoader is satisfied by *stock.Loader.
type TableLoader interface {
	Load(ctx context.Context, ticker string, rng stock.DateRange) (*model.PriceTable, error)
}

// ChoiceKind tells which branch of the column policy fired.
type ChoiceKind int

const (
	NoneAvailable ChoiceKind = iota
	Found
	FellBack
)

func (k ChoiceKind) String() string {
	switch k {
	case Found:
		return "found"
	case FellBack:
		return "fell_back"
	default:
		return "none_available"
	}
}

// ColumnChoice is the outcome of SelectPriceColumn.
type ColumnChoice struct {
	Kind   ChoiceKind
	Column string
}

func (c ColumnChoice) String() string {
	if c.Kind == NoneAvailable {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", c.Kind, c.Column)
}

// fallbackOrder is tried after Adjusted Close.
var fallbackOrder = []string{
	model.ColumnClose,
	model.ColumnOpen,
	model.ColumnHigh,
	model.ColumnLow,
	model.ColumnVolume,
}

// SelectPriceColumn picks Adjusted Close when present, otherwise the first
// present column of Close, Open, High, Low, Volume.
func SelectPriceColumn(table *model.PriceTable) ColumnChoice {
	if table.Has(model.ColumnAdjClose) {
		return ColumnChoice{Kind: Found, Column: model.ColumnAdjClose}
	}
	for _, c := range fallbackOrder {
		if table.Has(c) {
			return ColumnChoice{Kind: FellBack, Column: c}
		}
	}
	return ColumnChoice{Kind: NoneAvailable}
}

// LoadAdjustedClose loads ticker and returns its price series named after
// the ticker, with missing values dropped. A table with no usable column
// yields an empty series and a NoneAvailable choice.
func LoadAdjustedClose(ctx context.Context, loader TableLoader, ticker string, rng stock.DateRange) (model.Series, ColumnChoice, error) {
	table, err := loader.Load(ctx, ticker, rng)
	if err != nil {
		return model.Series{}, ColumnChoice{}, err
	}
	name := table.Ticker
	if name == "" {
		name = ticker
	}

	choice := SelectPriceColumn(table)
	if choice.Kind == NoneAvailable {
		log.Printf("[WARN] %s: no price column available", name)
		return model.Series{Name: name}, choice, nil
	}
	if choice.Kind == FellBack {
		log.Printf("[INFO] %s: %s missing, using %s", name, model.ColumnAdjClose, choice.Column)
	}
	s, err := table.Column(choice.Column)
	if err != nil {
		return model.Series{}, choice, err
	}
	return s.DropMissing().Rename(name), choice, nil
}

// MergeOnCommonDates inner-joins the series on their shared dates. Rows are
// sorted by date and columns by name. Missing values are treated as absent
// dates, so every cell of the result is a real value.
func MergeOnCommonDates(seriesByName map[string]model.Series) model.Frame {
	frame := model.Frame{Values: make(map[string][]float64, len(seriesByName))}
	if len(seriesByName) == 0 {
		return frame
	}

	names := make([]string, 0, len(seriesByName))
	for name := range seriesByName {
		names = append(names, name)
	}
	sort.Strings(names)

	lookup := make(map[string]map[time.Time]float64, len(names))
	var common map[time.Time]struct{}
	for _, name := range names {
		vals := make(map[time.Time]float64)
		for _, p := range seriesByName[name].DropMissing().Points {
			vals[model.ToDate(p.Date)] = p.Value
		}
		lookup[name] = vals

		if common == nil {
			common = make(map[time.Time]struct{}, len(vals))
			for d := range vals {
				common[d] = struct{}{}
			}
			continue
		}
		for d := range common {
			if _, ok := vals[d]; !ok {
				delete(common, d)
			}
		}
	}

	dates := make([]time.Time, 0, len(common))
	for d := range common {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	frame.Dates = dates
	frame.Columns = names
	for _, name := range names {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = lookup[name][d]
		}
		frame.Values[name] = col
	}
	return frame
}

// Overlay loads every ticker concurrently, merges them on common dates and
// rebases each column to calculator.DefaultBase at the first shared date.
func Overlay(ctx context.Context, loader TableLoader, tickers []string, rng stock.DateRange) (model.Frame, error) {
	if len(tickers) == 0 {
		return model.Frame{}, fmt.Errorf("%w: no tickers", model.ErrInvalidTicker)
	}
	names := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		n, err := stock.NormalizeTicker(t)
		if err != nil {
			return model.Frame{}, err
		}
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	series := make([]model.Series, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			s, _, err := LoadAdjustedClose(gctx, loader, name, rng)
			if err != nil {
				return err
			}
			series[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Frame{}, err
	}

	byName := make(map[string]model.Series, len(names))
	for i, name := range names {
		byName[name] = series[i]
	}
	frame := MergeOnCommonDates(byName)
	if !frame.HasSufficientOverlap() {
		return frame, fmt.Errorf("%w: %d common dates across %v", model.ErrInsufficientOverlap, frame.Len(), names)
	}

	for _, name := range frame.Columns {
		s, _ := frame.Series(name)
		rebased, err := calculator.RebaseSeries(s, calculator.DefaultBase)
		if err != nil {
			return model.Frame{}, err
		}
		frame.Values[name] = rebased.Values()
	}
	return frame, nil
}
