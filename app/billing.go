package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// BillingDeps contains dependencies for BillingService.
type BillingDeps struct {
	Lessons  ports.LessonStore
	Charges  ports.ChargeStore
	Payments ports.PaymentStore
	Clock    ports.Clock
	Metrics  ports.LedgerMetrics
	Logger   zerolog.Logger
}

// BillingService computes invoices on demand. Nothing is cached: every call
// re-derives the invoice from the current lesson state.
type BillingService struct {
	lessons  ports.LessonStore
	charges  ports.ChargeStore
	payments ports.PaymentStore
	clock    ports.Clock
	metrics  ports.LedgerMetrics
	logger   zerolog.Logger

	cfg *periodConfig
}

// Invoice is the computed bill together with its settlement state.
type Invoice struct {
	StudentID string
	At        time.Time
	billing.Info
	PaymentStatus payment.Status
	Payment       *payment.MonthlyPayment
}

// NewBillingService creates a new billing service.
func NewBillingService(deps BillingDeps, cfg period.Config) *BillingService {
	return &BillingService{
		lessons:  deps.Lessons,
		charges:  deps.Charges,
		payments: deps.Payments,
		clock:    deps.Clock,
		metrics:  metricsOrNop(deps.Metrics),
		logger:   deps.Logger,
		cfg:      newPeriodConfig(cfg),
	}
}

// SetPeriodConfig swaps the billing constants. Safe for concurrent use.
func (s *BillingService) SetPeriodConfig(cfg period.Config) {
	s.cfg.set(cfg)
}

// PeriodConfig returns the billing constants in effect.
func (s *BillingService) PeriodConfig() period.Config {
	return s.cfg.get()
}

// Invoice computes the bill for one student and month as of at.
// A zero at means now.
func (s *BillingService) Invoice(ctx context.Context, studentID string, month period.Month, at time.Time) (Invoice, error) {
	if studentID == "" {
		return Invoice{}, fmt.Errorf("%w: student id required", ErrInvalidInput)
	}
	cfg := s.cfg.get()
	now := nowOr(s.clock, at)

	lessons, err := s.loadLessons(ctx, studentID, month, cfg)
	if err != nil {
		return Invoice{}, err
	}
	charges, err := s.charges.ListByStudentMonth(ctx, studentID, month)
	if err != nil {
		return Invoice{}, fmt.Errorf("list charges: %w", err)
	}

	info, err := billing.Calculate(billing.Input{
		Lessons:      lessons,
		OtherCharges: charges,
		TargetMonth:  month,
		Now:          now,
	}, cfg)
	if err != nil {
		return Invoice{}, err
	}

	for _, w := range info.Warnings {
		s.logger.Warn().
			Str("student_id", studentID).
			Str("lesson_id", w.LessonID).
			Str("month", month.String()).
			Str("reason", w.Reason).
			Msg("lesson excluded from invoice")
		s.metrics.AdjustmentWarning(w.Reason)
	}
	s.metrics.InvoiceComputed(info.IsConfirmed)

	inv := Invoice{StudentID: studentID, At: now, Info: info, PaymentStatus: payment.StatusUnpaid}
	p, err := s.payments.Get(ctx, studentID, month)
	switch {
	case err == nil:
		inv.Payment = &p
		inv.PaymentStatus = p.Status()
	case errors.Is(err, ports.ErrNotFound):
	default:
		return Invoice{}, fmt.Errorf("get payment: %w", err)
	}

	s.logger.Debug().
		Str("student_id", studentID).
		Str("month", month.String()).
		Int64("grand_total", info.GrandTotal).
		Bool("confirmed", info.IsConfirmed).
		Msg("invoice computed")

	return inv, nil
}

// loadLessons fetches the target month and the month before it.
func (s *BillingService) loadLessons(ctx context.Context, studentID string, month period.Month, cfg period.Config) ([]lesson.Lesson, error) {
	prior, err := cfg.BillingPeriod(month.Prev())
	if err != nil {
		return nil, err
	}
	target, err := cfg.BillingPeriod(month)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByStudent(ctx, studentID, prior.Start, target.End)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}
