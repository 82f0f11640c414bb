// Package payment provides the monthly settlement record and its state machine.
package payment

import (
	"errors"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

var (
	ErrAlreadyReported  = errors.New("payment already reported")
	ErrAlreadyConfirmed = errors.New("payment already confirmed")
	ErrNotReported      = errors.New("payment has not been reported")
)

// Status is the settlement state of one student and month.
type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusReported  Status = "reported"
	StatusConfirmed Status = "confirmed"
)

// MonthlyPayment is the settlement record for (student, month).
// A missing record means unpaid.
type MonthlyPayment struct {
	ID          string
	StudentID   string
	Month       period.Month
	TotalAmount int64 // grand total snapshot at report time
	ReportedAt  *time.Time
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status derives the state from the recorded timestamps.
func (p MonthlyPayment) Status() Status {
	switch {
	case p.ConfirmedAt != nil:
		return StatusConfirmed
	case p.ReportedAt != nil:
		return StatusReported
	default:
		return StatusUnpaid
	}
}

// StatusOf handles the absent-record case.
func StatusOf(p *MonthlyPayment) Status {
	if p == nil {
		return StatusUnpaid
	}
	return p.Status()
}

// Report marks the payment as reported by the guardian and freezes amount.
// The amount may be negative when refunds outweigh the month's charges.
// This is a PURE function.
func Report(p MonthlyPayment, amount int64, now time.Time) (MonthlyPayment, error) {
	switch p.Status() {
	case StatusReported:
		return p, ErrAlreadyReported
	case StatusConfirmed:
		return p, ErrAlreadyConfirmed
	}
	p.TotalAmount = amount
	p.ReportedAt = &now
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	return p, nil
}

// Confirm marks a reported payment as verified by the teacher. Terminal.
// This is a PURE function.
func Confirm(p MonthlyPayment, now time.Time) (MonthlyPayment, error) {
	switch p.Status() {
	case StatusUnpaid:
		return p, ErrNotReported
	case StatusConfirmed:
		return p, ErrAlreadyConfirmed
	}
	p.ConfirmedAt = &now
	p.UpdatedAt = now
	return p, nil
}
