// Package makeup provides the makeup-credit value type and the pure ledger
// arithmetic over it. Persistence and locking live behind ports.CreditStore.
package makeup

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// ErrInsufficientBalance is matched by every InsufficientBalanceError.
var ErrInsufficientBalance = errors.New("insufficient makeup credit")

// ErrInvalidMinutes is returned for non-positive minute amounts.
var ErrInvalidMinutes = errors.New("minutes must be positive")

// InsufficientBalanceError reports how much was asked for and how much was available.
type InsufficientBalanceError struct {
	Needed    int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient makeup credit: need %d minutes, %d available", e.Needed, e.Available)
}

// Is lets errors.Is(err, ErrInsufficientBalance) match.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Credit is a grant of banked lesson minutes (value type).
// Exhausted and expired credits are kept for audit.
type Credit struct {
	ID             string
	StudentID      string
	TotalMinutes   int // remaining
	GrantedMinutes int // as issued
	ExpiresAt      time.Time
	OriginLessonID string // empty when not linked to a lesson
	CreatedAt      time.Time
}

// NewGrant builds a credit for a student-caused cancellation.
// ExpiresAt is the origin lesson date plus the configured validity.
func NewGrant(id, studentID string, minutes int, originLessonID string, originDate, now time.Time, cfg period.Config) (Credit, error) {
	if minutes <= 0 {
		return Credit{}, fmt.Errorf("%w: got %d", ErrInvalidMinutes, minutes)
	}
	if originDate.IsZero() {
		return Credit{}, fmt.Errorf("%w: zero origin date", period.ErrInvalidPeriod)
	}
	return Credit{
		ID:             id,
		StudentID:      studentID,
		TotalMinutes:   minutes,
		GrantedMinutes: minutes,
		ExpiresAt:      cfg.CreditExpiry(originDate),
		OriginLessonID: originLessonID,
		CreatedAt:      now,
	}, nil
}

// IsAvailable reports whether the credit can still be spent at now.
// A credit expiring exactly at now is not available.
func (c Credit) IsAvailable(now time.Time) bool {
	return c.TotalMinutes > 0 && c.ExpiresAt.After(now)
}

// IsExpired reports whether unspent minutes were lost to expiry.
func (c Credit) IsExpired(now time.Time) bool {
	return c.TotalMinutes > 0 && !c.ExpiresAt.After(now)
}

// AvailableBalance sums the spendable minutes across credits.
// This is a PURE function.
func AvailableBalance(credits []Credit, now time.Time) int {
	total := 0
	for _, c := range credits {
		if c.IsAvailable(now) {
			total += c.TotalMinutes
		}
	}
	return total
}

// Available returns the spendable credits, soonest-expiring first (ties by id).
// This is a PURE function.
func Available(credits []Credit, now time.Time) []Credit {
	out := make([]Credit, 0, len(credits))
	for _, c := range credits {
		if c.IsAvailable(now) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Debit is the number of minutes taken from one credit.
type Debit struct {
	CreditID string
	Minutes  int
}

// TotalDebited sums the minutes of a debit plan.
func TotalDebited(debits []Debit) int {
	total := 0
	for _, d := range debits {
		total += d.Minutes
	}
	return total
}

// Plan decides which credits pay for minutes, FIFO by expiry.
// The balance is checked before anything is planned, so the result is either
// a complete plan or an *InsufficientBalanceError with no plan.
// This is a PURE function.
func Plan(credits []Credit, minutes int, now time.Time) ([]Debit, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMinutes, minutes)
	}
	if available := AvailableBalance(credits, now); available < minutes {
		return nil, &InsufficientBalanceError{Needed: minutes, Available: available}
	}

	remaining := minutes
	var debits []Debit
	for _, c := range Available(credits, now) {
		if remaining == 0 {
			break
		}
		take := c.TotalMinutes
		if take > remaining {
			take = remaining
		}
		debits = append(debits, Debit{CreditID: c.ID, Minutes: take})
		remaining -= take
	}
	return debits, nil
}

// Apply returns a copy of credits with the debits subtracted.
// Unknown credit ids and overdrafts are rejected without touching the copy.
// This is a PURE function.
func Apply(credits []Credit, debits []Debit) ([]Credit, error) {
	out := make([]Credit, len(credits))
	copy(out, credits)

	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.ID] = i
	}
	for _, d := range debits {
		i, ok := index[d.CreditID]
		if !ok {
			return nil, fmt.Errorf("debit references unknown credit %s", d.CreditID)
		}
		if d.Minutes <= 0 || out[i].TotalMinutes < d.Minutes {
			return nil, &InsufficientBalanceError{Needed: d.Minutes, Available: out[i].TotalMinutes}
		}
		out[i].TotalMinutes -= d.Minutes
	}
	return out, nil
}

// Consume plans and applies in one step.
// This is a PURE function.
func Consume(credits []Credit, minutes int, now time.Time) ([]Credit, []Debit, error) {
	debits, err := Plan(credits, minutes, now)
	if err != nil {
		return nil, nil, err
	}
	updated, err := Apply(credits, debits)
	if err != nil {
		return nil, nil, err
	}
	return updated, debits, nil
}

// Summary is the audit view of a student's credits at a point in time.
// Granted = Consumed + Expired + Available holds for every student.
type Summary struct {
	Granted   int
	Consumed  int
	Expired   int
	Available int
}

// Summarize splits all minutes ever granted into consumed, expired and available.
// This is a PURE function.
func Summarize(credits []Credit, now time.Time) Summary {
	var s Summary
	for _, c := range credits {
		s.Granted += c.GrantedMinutes
		s.Consumed += c.GrantedMinutes - c.TotalMinutes
		switch {
		case c.IsAvailable(now):
			s.Available += c.TotalMinutes
		case c.IsExpired(now):
			s.Expired += c.TotalMinutes
		}
	}
	return s
}
