package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const monthKeyLayout = "2006-01"

// Month represents a calendar month with no day or time component.
// It is the period key for snapshots and the unit of every chart axis.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month from a year and a calendar month
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the Month containing the given instant, evaluated in UTC
func MonthOf(t time.Time) Month {
	year, month, _ := t.UTC().Date()
	return Month{Year: year, Month: month}
}

// ParseMonth parses a period key in "YYYY-MM" form
// Returns an error if the key does not match the layout
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Key returns the canonical "YYYY-MM" period key
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Label returns the human-readable chart label, e.g. "Mar 2026"
func (m Month) Label() string {
	return m.Time().Format("Jan 2006")
}

// Time returns midnight UTC on the first day of the month
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the month immediately after m
func (m Month) Next() Month {
	return MonthOf(m.Time().AddDate(0, 1, 0))
}

// Prev returns the month immediately before m
func (m Month) Prev() Month {
	return MonthOf(m.Time().AddDate(0, -1, 0))
}

// Before reports whether m is strictly earlier than other
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// After reports whether m is strictly later than other
func (m Month) After(other Month) bool {
	return other.Before(m)
}

// IsZero reports whether m is the zero value
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// MarshalJSON encodes the month as its "YYYY-MM" key
func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Key())
}

// UnmarshalJSON decodes a month from its "YYYY-MM" key
func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
