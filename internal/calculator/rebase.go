package calculator

import (
	"fmt"
	"math"

	"StockLens/internal/model"
)

// DefaultBase is the value a rebased series starts at.
const DefaultBase = 100.0

// Rebase scales the non-missing values of column so the first equals base.
func Rebase(table *model.PriceTable, column string, base float64) (model.Series, error) {
	s, err := loadColumn(table, column)
	if err != nil {
		return model.Series{}, err
	}
	return RebaseSeries(s, base)
}

// RebaseSeries drops missing values and divides every value by the first
// remaining one, multiplied by base. Dates keep their original order.
func RebaseSeries(s model.Series, base float64) (model.Series, error) {
	if math.IsNaN(base) || math.IsInf(base, 0) {
		return model.Series{}, fmt.Errorf("rebase %q: base must be finite, got %v", s.Name, base)
	}
	s = s.DropMissing()
	first, ok := s.First()
	if !ok {
		return model.Series{}, &model.DegenerateSeriesError{Op: "rebase", Column: s.Name, Reason: "no values"}
	}
	if first.Value == 0 {
		return model.Series{}, &model.DegenerateSeriesError{Op: "rebase", Column: s.Name, Reason: "first value is zero"}
	}

	out := model.Series{Name: s.Name, Points: make([]model.Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i] = model.Point{Date: p.Date, Value: p.Value / first.Value * base}
	}
	return out, nil
}

func loadColumn(table *model.PriceTable, column string) (model.Series, error) {
	if table == nil {
		return model.Series{}, &model.DataNotLoadedError{Column: column}
	}
	return table.Column(column)
}
