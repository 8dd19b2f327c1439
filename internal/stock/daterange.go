package stock

import (
	"fmt"
	"time"

	"StockLens/internal/model"
)

// DefaultYears is how far back a load reaches when no range is given.
const DefaultYears = 5

// DateRange is a requested [Start, End) window. Zero fields are filled in by
// Resolve.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DefaultRange ends today and starts on January 1 of the year `years` before today.
func DefaultRange(now time.Time, years int) DateRange {
	end := model.ToDate(now)
	return DateRange{
		Start: time.Date(end.AddDate(-years, 0, 0).Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   end,
	}
}

// Resolve fills missing bounds: End defaults to today, Start to January 1 of
// the year `years` before End.
func (r DateRange) Resolve(now time.Time, years int) (DateRange, error) {
	if r.Start.IsZero() && r.End.IsZero() {
		return DefaultRange(now, years), nil
	}
	if r.End.IsZero() {
		r.End = model.ToDate(now)
	}
	if r.Start.IsZero() {
		r.Start = time.Date(r.End.AddDate(-years, 0, 0).Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: start %s after end %s", model.ErrInvalidRange,
			r.Start.Format(model.DateFormat), r.End.Format(model.DateFormat))
	}
	return r, nil
}

// ParseRange parses optional YYYY-MM-DD bounds. Empty strings stay zero.
func ParseRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if start != "" {
		if r.Start, err = time.Parse(model.DateFormat, start); err != nil {
			return DateRange{}, fmt.Errorf("%w: start %q: %v", model.ErrInvalidRange, start, err)
		}
	}
	if end != "" {
		if r.End, err = time.Parse(model.DateFormat, end); err != nil {
			return DateRange{}, fmt.Errorf("%w: end %q: %v", model.ErrInvalidRange, end, err)
		}
	}
	return r, nil
}
