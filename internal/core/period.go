package core

import (
	"fmt"
	"time"
)

// Period selects one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates a year and a 1-based month number.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d outside 1-12", ErrInvalidPeriod, month)
	}
	if year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d outside 1900-9999", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Contains reports whether d falls inside the period's calendar month.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Prev returns the period immediately before p.
func (p Period) Prev() Period {
	return PeriodOf(time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0))
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
