package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date layout used on the wire and in cache keys.
const DateLayout = "2006-01-02"

// PriceRecord is one trading day of a single instrument.
type PriceRecord struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"` // 0 when the provider does not report volume
}

// PriceHistory is an ascending, duplicate-free sequence of daily records.
type PriceHistory struct {
	Ticker  string        `json:"ticker"`
	Records []PriceRecord `json:"records"`
}

// Len returns the number of records.
func (h PriceHistory) Len() int { return len(h.Records) }

// Closes returns the close prices in chronological order.
func (h PriceHistory) Closes() []float64 {
	out := make([]float64, len(h.Records))
	for i, r := range h.Records {
		out[i] = r.Close
	}
	return out
}

// Last returns the most recent record. ok is false for an empty history.
func (h PriceHistory) Last() (PriceRecord, bool) {
	if len(h.Records) == 0 {
		return PriceRecord{}, false
	}
	return h.Records[len(h.Records)-1], true
}

// Validate checks ordering, uniqueness and positivity of closes.
func (h PriceHistory) Validate() error {
	for i, r := range h.Records {
		if !(r.Close > 0) {
			return fmt.Errorf("%w: close on %s must be positive, got %v",
				ErrInvalidParameter, r.Date.Format(DateLayout), r.Close)
		}
		if r.Volume < 0 {
			return fmt.Errorf("%w: negative volume on %s", ErrInvalidParameter, r.Date.Format(DateLayout))
		}
		if i > 0 && !r.Date.After(h.Records[i-1].Date) {
			return fmt.Errorf("%w: dates not strictly increasing at %s",
				ErrInvalidParameter, r.Date.Format(DateLayout))
		}
	}
	return nil
}

// DateRange is a half-open [Start, End) range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty or inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidParameter)
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start %s must be before end %s",
			ErrInvalidParameter, r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// Contains reports whether t falls inside [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}
