// Package period provides the calendar arithmetic that governs a billing month.
// All functions are deterministic with no side effects; "now" is always passed in.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned for malformed months, dates or configuration.
var ErrInvalidPeriod = errors.New("invalid period")

// Default values for Config.
const (
	DefaultConfirmationDay      = 20
	DefaultPaymentDueDay        = 25
	DefaultCreditValidityMonths = 1

	// MaxDay keeps configured days valid in every month, February included.
	MaxDay = 28
)

// Config holds the fixed days that govern a billing month (value type).
type Config struct {
	ConfirmationDay      int            // day in the month before the billing month
	PaymentDueDay        int            // day inside the billing month
	CreditValidityMonths int            // makeup credit lifetime
	Location             *time.Location // nil means UTC
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmationDay:      DefaultConfirmationDay,
		PaymentDueDay:        DefaultPaymentDueDay,
		CreditValidityMonths: DefaultCreditValidityMonths,
		Location:             time.UTC,
	}
}

// Validate checks that the configured days exist in every month.
func (c Config) Validate() error {
	if c.ConfirmationDay < 1 || c.ConfirmationDay > MaxDay {
		return fmt.Errorf("%w: confirmation day %d not in 1..%d", ErrInvalidPeriod, c.ConfirmationDay, MaxDay)
	}
	if c.PaymentDueDay < 1 || c.PaymentDueDay > MaxDay {
		return fmt.Errorf("%w: payment due day %d not in 1..%d", ErrInvalidPeriod, c.PaymentDueDay, MaxDay)
	}
	if c.CreditValidityMonths < 1 {
		return fmt.Errorf("%w: credit validity must be at least one month, got %d", ErrInvalidPeriod, c.CreditValidityMonths)
	}
	return nil
}

func (c Config) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Month identifies a calendar month (value type).
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth builds a Month, rejecting out-of-range values instead of normalising them.
func NewMonth(year int, month time.Month) (Month, error) {
	m := Month{Year: year, Month: month}
	if err := m.Validate(); err != nil {
		return Month{}, err
	}
	return m, nil
}

// MonthOf returns the calendar month a date falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return Month{}, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Month{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Month{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, parts[1])
	}
	return NewMonth(year, time.Month(month))
}

// Validate reports whether the month is a real calendar month.
func (m Month) Validate() error {
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, m.Year)
	}
	if m.Month < time.January || m.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, int(m.Month))
	}
	return nil
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText encodes the month as "YYYY-MM".
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "YYYY-MM".
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Prev returns the preceding month, rolling over the year.
func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month, rolling over the year.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return daysIn(m.Year, m.Month)
}

// Contains reports whether a lesson date falls in the month.
// Dates are civil dates: only their own year and month are compared.
func (m Month) Contains(date time.Time) bool {
	return date.Year() == m.Year && date.Month() == m.Month
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Bounds is an inclusive range of calendar days.
type Bounds struct {
	Start time.Time // first day, 00:00
	End   time.Time // last day, 00:00
}

// BillingPeriod returns the first and last calendar day of the target month.
// This is a PURE function.
func (c Config) BillingPeriod(target Month) (Bounds, error) {
	if err := target.Validate(); err != nil {
		return Bounds{}, err
	}
	loc := c.loc()
	return Bounds{
		Start: time.Date(target.Year, target.Month, 1, 0, 0, 0, 0, loc),
		End:   time.Date(target.Year, target.Month, target.Days(), 0, 0, 0, 0, loc),
	}, nil
}

// ConfirmationDate returns the fixed day in the month preceding target.
// The invoice for target is final from 00:00 of this day.
// This is a PURE function.
func (c Config) ConfirmationDate(target Month) (time.Time, error) {
	if err := target.Validate(); err != nil {
		return time.Time{}, err
	}
	prev := target.Prev()
	return time.Date(prev.Year, prev.Month, c.ConfirmationDay, 0, 0, 0, 0, c.loc()), nil
}

// PaymentDueDate returns the fixed day inside target.
// This is a PURE function.
func (c Config) PaymentDueDate(target Month) (time.Time, error) {
	if err := target.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Date(target.Year, target.Month, c.PaymentDueDay, 0, 0, 0, 0, c.loc()), nil
}

// IsConfirmed reports whether now is on or after the confirmation date of target.
// This is a PURE function.
func (c Config) IsConfirmed(target Month, now time.Time) (bool, error) {
	if now.IsZero() {
		return false, fmt.Errorf("%w: zero now", ErrInvalidPeriod)
	}
	confirmAt, err := c.ConfirmationDate(target)
	if err != nil {
		return false, err
	}
	return !now.Before(confirmAt), nil
}

// CreditExpiry returns origin + the configured validity in calendar months.
// origin is a civil date; the credit expires at 00:00 of the resulting day in
// the configured location, the same zone the confirmation dates use.
// When the origin day does not exist in the target month the last day is used
// (Jan 31 + 1 month = Feb 28/29), so a credit never outlives its month.
// This is a PURE function.
func (c Config) CreditExpiry(origin time.Time) time.Time {
	months := c.CreditValidityMonths
	if months < 1 {
		months = DefaultCreditValidityMonths
	}
	y, m, d := origin.Date()
	return AddMonthsClamped(time.Date(y, m, d, 0, 0, 0, 0, c.loc()), months)
}

// AddMonthsClamped adds months keeping the day-of-month where possible.
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
