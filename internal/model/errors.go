package model

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrDataNotLoaded       = errors.New("data not loaded")
	ErrFetch               = errors.New("fetch failed")
	ErrDegenerateSeries    = errors.New("degenerate series")
	ErrInvalidTicker       = errors.New("invalid ticker")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrInsufficientOverlap = errors.New("insufficient overlap")
)

// DataNotLoadedError reports a transform on an absent table or column.
type DataNotLoadedError struct {
	Column string
}

func (e *DataNotLoadedError) Error() string {
	return fmt.Sprintf("data not loaded or column %q not found", e.Column)
}

func (e *DataNotLoadedError) Is(target error) bool { return target == ErrDataNotLoaded }

// FetchError wraps a failure of the remote data provider.
type FetchError struct {
	Ticker string
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Ticker, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// DegenerateSeriesError reports a transform whose divisor is zero.
type DegenerateSeriesError struct {
	Op     string
	Column string
	Reason string
}

func (e *DegenerateSeriesError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Op, e.Column, e.Reason)
}

func (e *DegenerateSeriesError) Is(target error) bool { return target == ErrDegenerateSeries }
