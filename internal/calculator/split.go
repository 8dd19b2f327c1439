package calculator

import (
	"sort"

	"StockLens/internal/model"
)

// YearSplit maps a calendar year to its slice of a rebased series.
type YearSplit map[int]model.Series

// Years returns the years present, ascending.
func (ys YearSplit) Years() []int {
	years := make([]int, 0, len(ys))
	for y := range ys {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Len returns the total number of points across all years.
func (ys YearSplit) Len() int {
	n := 0
	for _, s := range ys {
		n += s.Len()
	}
	return n
}

// SplitByYear rebases column once over the whole table to DefaultBase and
// slices the result by calendar year. Each year is a slice of the single
// global rebase, so only the earliest year starts at exactly 100.
func SplitByYear(table *model.PriceTable, column string) (YearSplit, error) {
	rebased, err := Rebase(table, column, DefaultBase)
	if err != nil {
		return nil, err
	}

	out := YearSplit{}
	for _, p := range rebased.Points {
		if p.Date.IsZero() {
			continue
		}
		d := model.ToDate(p.Date)
		y := d.Year()
		s := out[y]
		s.Name = rebased.Name
		s.Points = append(s.Points, model.Point{Date: d, Value: p.Value})
		out[y] = s
	}
	return out, nil
}
