// Package lesson provides the lesson value type and its status transitions.
// All functions are pure: they return a new Lesson and never read a clock.
package lesson

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid lesson transition")

// Status represents the scheduling state of a lesson.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Cause records who caused a cancellation.
type Cause string

const (
	CauseNone    Cause = ""
	CauseStudent Cause = "student"
	CauseTeacher Cause = "teacher"
)

// Valid reports whether c is a concrete cause.
func (c Cause) Valid() bool {
	return c == CauseStudent || c == CauseTeacher
}

// CancellationState is the tag of the Cancellation variant.
type CancellationState string

const (
	CancellationUnrequested CancellationState = "unrequested"
	CancellationPending     CancellationState = "pending"
	CancellationApproved    CancellationState = "approved"
	CancellationRejected    CancellationState = "rejected"
)

// Cancellation is a tagged variant:
//
//	Unrequested
//	Pending{RequestedAt}
//	Approved{RequestedAt, ProcessedAt}
//	Rejected{RequestedAt, ProcessedAt}
//
// CausedBy is the structured category; Reason is free text for display only.
type Cancellation struct {
	State       CancellationState
	RequestedAt time.Time
	ProcessedAt time.Time
	CausedBy    Cause
	Reason      string
}

// Unrequested returns the empty variant.
func Unrequested() Cancellation {
	return Cancellation{State: CancellationUnrequested}
}

// Pending returns a requested, undecided cancellation.
func Pending(requestedAt time.Time, cause Cause, reason string) Cancellation {
	return Cancellation{State: CancellationPending, RequestedAt: requestedAt, CausedBy: cause, Reason: reason}
}

// Approved returns a processed cancellation.
func Approved(requestedAt, processedAt time.Time, cause Cause, reason string) Cancellation {
	return Cancellation{State: CancellationApproved, RequestedAt: requestedAt, ProcessedAt: processedAt, CausedBy: cause, Reason: reason}
}

// Rejected returns a refused cancellation request.
func Rejected(requestedAt, processedAt time.Time, cause Cause, reason string) Cancellation {
	return Cancellation{State: CancellationRejected, RequestedAt: requestedAt, ProcessedAt: processedAt, CausedBy: cause, Reason: reason}
}

// IsApproved reports whether the variant is Approved.
func (c Cancellation) IsApproved() bool {
	return c.State == CancellationApproved
}

// Lesson is one scheduled or completed tutoring session (value type).
type Lesson struct {
	ID              string
	StudentID       string
	Date            time.Time // civil date, time of day ignored
	StartTime       string    // "15:04"
	EndTime         string    // "15:04"
	DurationMinutes int
	Fee             int64 // yen; always 0 for makeup lessons
	TransportFee    int64 // yen
	Status          Status
	IsMakeup        bool
	Cancellation    Cancellation
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Hours returns the duration in hours.
func (l Lesson) Hours() float64 {
	return float64(l.DurationMinutes) / 60
}

// ChargeableFee returns the lesson fee that may be billed.
// Makeup lessons never carry a fee, whatever the stored value says.
func (l Lesson) ChargeableFee() int64 {
	if l.IsMakeup {
		return 0
	}
	return l.Fee
}

// Amount returns the billable fee plus transport.
func (l Lesson) Amount() int64 {
	return l.ChargeableFee() + l.TransportFee
}

// IsCancelled reports whether the lesson has been cancelled.
func (l Lesson) IsCancelled() bool {
	return l.Status == StatusCancelled
}

// Normalize enforces the invariants a stored lesson must satisfy.
func Normalize(l Lesson) Lesson {
	if l.IsMakeup {
		l.Fee = 0
	}
	if l.Status == "" {
		l.Status = StatusPlanned
	}
	if l.Cancellation.State == "" {
		l.Cancellation = Unrequested()
	}
	return l
}

// RequestCancellation moves a planned lesson into Pending.
func RequestCancellation(l Lesson, at time.Time, cause Cause, reason string) (Lesson, error) {
	if l.Status != StatusPlanned {
		return l, fmt.Errorf("%w: cannot request cancellation of %s lesson", ErrInvalidTransition, l.Status)
	}
	if l.Cancellation.State == CancellationPending {
		return l, fmt.Errorf("%w: cancellation already pending", ErrInvalidTransition)
	}
	if !cause.Valid() {
		return l, fmt.Errorf("%w: cancellation cause %q", ErrInvalidTransition, cause)
	}
	l.Cancellation = Pending(at, cause, reason)
	l.UpdatedAt = at
	return l, nil
}

// ApproveCancellation processes a pending request and cancels the lesson.
func ApproveCancellation(l Lesson, at time.Time) (Lesson, error) {
	if l.Status != StatusPlanned || l.Cancellation.State != CancellationPending {
		return l, fmt.Errorf("%w: no pending cancellation", ErrInvalidTransition)
	}
	c := l.Cancellation
	l.Cancellation = Approved(c.RequestedAt, at, c.CausedBy, c.Reason)
	l.Status = StatusCancelled
	l.UpdatedAt = at
	return l, nil
}

// Cancel requests and approves in one step (teacher-initiated cancellation).
func Cancel(l Lesson, at time.Time, cause Cause, reason string) (Lesson, error) {
	l, err := RequestCancellation(l, at, cause, reason)
	if err != nil {
		return l, err
	}
	return ApproveCancellation(l, at)
}

// RejectCancellation refuses a pending request; the lesson stays planned.
func RejectCancellation(l Lesson, at time.Time) (Lesson, error) {
	if l.Cancellation.State != CancellationPending {
		return l, fmt.Errorf("%w: no pending cancellation", ErrInvalidTransition)
	}
	c := l.Cancellation
	l.Cancellation = Rejected(c.RequestedAt, at, c.CausedBy, c.Reason)
	l.UpdatedAt = at
	return l, nil
}

// Complete marks a planned lesson as done.
func Complete(l Lesson, at time.Time) (Lesson, error) {
	if l.Status != StatusPlanned {
		return l, fmt.Errorf("%w: cannot complete %s lesson", ErrInvalidTransition, l.Status)
	}
	l.Status = StatusDone
	l.UpdatedAt = at
	return l, nil
}

// Refund describes what a cancellation gives back to the guardian.
type Refund struct {
	Fee           int64
	Transport     int64
	CreditMinutes int // makeup minutes to bank
}

// Total returns the money part of the refund.
func (r Refund) Total() int64 {
	return r.Fee + r.Transport
}

// ErrUnknownCause is returned when a cancelled lesson carries no usable cause.
var ErrUnknownCause = errors.New("cancelled lesson has no cancellation cause")

// RefundFor computes the compensation owed for a cancelled lesson.
// Teacher-caused: fee and transport. Student-caused: transport plus a makeup
// credit for the full duration. Makeup lessons: nothing.
// This is a PURE function.
func RefundFor(l Lesson) (Refund, error) {
	if !l.IsCancelled() {
		return Refund{}, nil
	}
	if l.IsMakeup {
		return Refund{}, nil
	}
	switch l.Cancellation.CausedBy {
	case CauseTeacher:
		return Refund{Fee: l.Fee, Transport: l.TransportFee}, nil
	case CauseStudent:
		return Refund{Transport: l.TransportFee, CreditMinutes: l.DurationMinutes}, nil
	default:
		return Refund{}, fmt.Errorf("lesson %s: %w", l.ID, ErrUnknownCause)
	}
}
