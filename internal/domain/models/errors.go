package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMalformedSeries     = errors.New("malformed series")
	// ErrDegenerateStatistic is only returned by internal helpers; callers replace it with a neutral value.
	ErrDegenerateStatistic = errors.New("degenerate statistic")
	ErrSeriesNotFound      = errors.New("series not found")
	ErrJobNotFound         = errors.New("job not found")
)

// InsufficientHistoryError reports a series shorter than a component's minimum.
type InsufficientHistoryError struct {
	Component string
	Have      int
	Need      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: insufficient history: have %d observations, need %d", e.Component, e.Have, e.Need)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// MalformedSeriesError reports structurally invalid input rejected at ingestion.
type MalformedSeriesError struct {
	Symbol string
	Index  int
	Reason string
}

func (e *MalformedSeriesError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed series %q: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("malformed series %q at index %d: %s", e.Symbol, e.Index, e.Reason)
}

func (e *MalformedSeriesError) Is(target error) bool { return target == ErrMalformedSeries }
