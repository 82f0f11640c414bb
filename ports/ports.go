// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// Store errors shared by every adapter so services can match them with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	ErrConflict  = errors.New("concurrent modification")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Locker serializes work on one key (a student id) across callers.
// Different keys never block each other.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	// The returned function releases the key and is safe to call once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LedgerMetrics receives business events from the services.
type LedgerMetrics interface {
	InvoiceComputed(confirmed bool)
	AdjustmentWarning(reason string)
	CreditsGranted(minutes int)
	CreditsConsumed(minutes int)
	ConsumeFailed(reason string)
	PaymentTransition(to payment.Status)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// LessonStore persists lessons. Lessons are never deleted.
type LessonStore interface {
	// Create stores a new lesson.
	Create(ctx context.Context, l lesson.Lesson) error

	// Get retrieves a lesson by ID.
	Get(ctx context.Context, id string) (lesson.Lesson, error)

	// Update replaces a lesson's mutable fields.
	Update(ctx context.Context, l lesson.Lesson) error

	// ListByStudent returns a student's lessons dated within [from, to],
	// compared as civil dates, ordered by date then ID.
	ListByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error)
}

// ChargeStore persists teacher-entered miscellaneous charges.
type ChargeStore interface {
	// Create stores a new charge.
	Create(ctx context.Context, c billing.OtherCharge) error

	// Get retrieves a charge by ID.
	Get(ctx context.Context, id string) (billing.OtherCharge, error)

	// Delete removes a charge.
	Delete(ctx context.Context, id string) error

	// ListByStudentMonth returns the charges for one invoice, oldest first.
	ListByStudentMonth(ctx context.Context, studentID string, month period.Month) ([]billing.OtherCharge, error)
}

// CreditStore persists makeup credits and applies FIFO consumption.
type CreditStore interface {
	// Create stores a new credit.
	Create(ctx context.Context, c makeup.Credit) error

	// ListByStudent returns every credit of a student, including
	// exhausted and expired ones.
	ListByStudent(ctx context.Context, studentID string) ([]makeup.Credit, error)

	// Consume takes minutes from the student's available credits, soonest
	// expiry first, as a single atomic change. On insufficient balance it
	// returns a *makeup.InsufficientBalanceError and changes nothing.
	Consume(ctx context.Context, studentID string, minutes int, now time.Time) ([]makeup.Debit, error)

	// Release puts debited minutes back on the same credits.
	Release(ctx context.Context, debits []makeup.Debit) error
}

// PaymentStore persists one settlement record per student and month.
type PaymentStore interface {
	// Get returns ErrNotFound when no record exists yet (unpaid).
	Get(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error)

	// Save inserts or updates the record for (StudentID, Month).
	Save(ctx context.Context, p payment.MonthlyPayment) error

	// ListByStudent returns a student's records, newest month first.
	ListByStudent(ctx context.Context, studentID string) ([]payment.MonthlyPayment, error)
}
