package model

import (
	"math"
	"time"
)

// Point is a single dated value.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is a named, date-ordered sequence of values.
type Series struct {
	Name   string
	Points []Point
}

func (s Series) Len() int { return len(s.Points) }

// DropMissing returns a copy without NaN values, preserving order.
func (s Series) DropMissing() Series {
	out := Series{Name: s.Name, Points: make([]Point, 0, len(s.Points))}
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}

// Values returns the values in order.
func (s Series) Values() []float64 {
	v := make([]float64, len(s.Points))
	for i, p := range s.Points {
		v[i] = p.Value
	}
	return v
}

// Dates returns the dates in order.
func (s Series) Dates() []time.Time {
	d := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		d[i] = p.Date
	}
	return d
}

// First returns the first point. ok is false for an empty series.
func (s Series) First() (p Point, ok bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[0], true
}

// Rename returns the same points under a new name.
func (s Series) Rename(name string) Series {
	return Series{Name: name, Points: s.Points}
}

// Frame is a set of equally indexed columns, one per series name.
type Frame struct {
	Dates   []time.Time
	Columns []string
	Values  map[string][]float64
}

// MinOverlapRows is the smallest Frame length that still describes movement.
const MinOverlapRows = 2

func (f Frame) Len() int { return len(f.Dates) }

// HasSufficientOverlap reports whether the frame has at least MinOverlapRows rows.
func (f Frame) HasSufficientOverlap() bool { return f.Len() >= MinOverlapRows }

// Row returns the values of row i in column order.
func (f Frame) Row(i int) []float64 {
	row := make([]float64, len(f.Columns))
	for j, c := range f.Columns {
		row[j] = f.Values[c][i]
	}
	return row
}

// Series returns one column of the frame as a Series.
func (f Frame) Series(column string) (Series, bool) {
	vals, ok := f.Values[column]
	if !ok {
		return Series{}, false
	}
	s := Series{Name: column, Points: make([]Point, len(vals))}
	for i, v := range vals {
		s.Points[i] = Point{Date: f.Dates[i], Value: v}
	}
	return s, true
}
