// Package model defines the core domain types shared across the application.
package model

import (
	"fmt"
	"time"
)

// Period identifies a calendar month that transactions and balances are
// attributed to.
type Period struct {
	Label string
	ID    int64
	Year  int
	Month time.Month
}

// MakeLabel builds the canonical display label for a year and month,
// e.g. "March 2024".
func MakeLabel(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", month.String(), year)
}

// Next returns the (year, month) pair of the calendar successor.
func (p *Period) Next() (int, time.Month) {
	if p.Month == time.December {
		return p.Year + 1, time.January
	}
	return p.Year, p.Month + 1
}

// LastDay returns the final day of the period in UTC.
func (p *Period) LastDay() time.Time {
	firstOfNext := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// Before reports whether p precedes other in calendar order.
func (p *Period) Before(other *Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// ValidatePeriod checks that a (year, month) pair denotes a real calendar
// month.
func ValidatePeriod(year int, month time.Month) error {
	if year < 1 {
		return fmt.Errorf("year must be positive, got %d", year)
	}
	if month < time.January || month > time.December {
		return fmt.Errorf("month must be between 1 and 12, got %d", month)
	}
	return nil
}
