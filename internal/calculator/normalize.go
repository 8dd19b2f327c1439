package calculator

import (
	"math"

	"StockLens/internal/model"
)

// Normalize rescales the non-missing values of column linearly onto [0, 100].
func Normalize(table *model.PriceTable, column string) (model.Series, error) {
	s, err := loadColumn(table, column)
	if err != nil {
		return model.Series{}, err
	}
	return NormalizeSeries(s)
}

// NormalizeSeries maps min to 0 and max to 100. A series without at least two
// distinct values has no range and is rejected.
func NormalizeSeries(s model.Series) (model.Series, error) {
	s = s.DropMissing()
	if s.Len() == 0 {
		return model.Series{}, &model.DegenerateSeriesError{Op: "normalize", Column: s.Name, Reason: "no values"}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range s.Points {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	span := hi - lo
	if span == 0 || math.IsInf(span, 0) {
		return model.Series{}, &model.DegenerateSeriesError{Op: "normalize", Column: s.Name, Reason: "all values are equal"}
	}

	out := model.Series{Name: s.Name, Points: make([]model.Point, len(s.Points))}
	for i, p := range s.Points {
		v := (p.Value - lo) / span * 100
		// clamp rounding drift
		v = math.Max(0, math.Min(100, v))
		out.Points[i] = model.Point{Date: p.Date, Value: v}
	}
	return out, nil
}
