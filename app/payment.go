package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// PaymentDeps contains dependencies for PaymentService.
type PaymentDeps struct {
	Payments ports.PaymentStore
	Billing  *BillingService
	Locker   ports.Locker // optional
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.LedgerMetrics
	Logger   zerolog.Logger
}

// PaymentService moves monthly payments through unpaid, reported and confirmed.
type PaymentService struct {
	payments ports.PaymentStore
	billing  *BillingService
	locker   ports.Locker
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  ports.LedgerMetrics
	logger   zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(deps PaymentDeps) *PaymentService {
	return &PaymentService{
		payments: deps.Payments,
		billing:  deps.Billing,
		locker:   deps.Locker,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		metrics:  metricsOrNop(deps.Metrics),
		logger:   deps.Logger,
	}
}

// Get returns the record for the month. A month nobody has touched yet comes
// back as an unpaid record with an empty ID.
func (s *PaymentService) Get(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	p, err := s.payments.Get(ctx, studentID, month)
	if errors.Is(err, ports.ErrNotFound) {
		return payment.MonthlyPayment{StudentID: studentID, Month: month}, nil
	}
	return p, err
}

// List returns a student's records, newest month first.
func (s *PaymentService) List(ctx context.Context, studentID string) ([]payment.MonthlyPayment, error) {
	return s.payments.ListByStudent(ctx, studentID)
}

// Report records that the guardian has paid. The invoice's grand total at
// this moment is frozen on the record.
func (s *PaymentService) Report(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	if studentID == "" {
		return payment.MonthlyPayment{}, fmt.Errorf("%w: student id required", ErrInvalidInput)
	}
	unlock, err := s.lock(ctx, studentID)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	defer unlock()

	now := s.clock.Now()
	inv, err := s.billing.Invoice(ctx, studentID, month, now)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}

	p, err := s.Get(ctx, studentID, month)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	if p.ID == "" {
		p.ID = s.idGen.New()
		p.CreatedAt = now
	}

	p, err = payment.Report(p, inv.GrandTotal, now)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	return s.save(ctx, p)
}

// Confirm records that the teacher has received the money.
func (s *PaymentService) Confirm(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	unlock, err := s.lock(ctx, studentID)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	defer unlock()

	p, err := s.Get(ctx, studentID, month)
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	p, err = payment.Confirm(p, s.clock.Now())
	if err != nil {
		return payment.MonthlyPayment{}, err
	}
	return s.save(ctx, p)
}

func (s *PaymentService) save(ctx context.Context, p payment.MonthlyPayment) (payment.MonthlyPayment, error) {
	if err := s.payments.Save(ctx, p); err != nil {
		return payment.MonthlyPayment{}, fmt.Errorf("save payment: %w", err)
	}

	status := p.Status()
	s.metrics.PaymentTransition(status)
	s.logger.Info().
		Str("student_id", p.StudentID).
		Str("month", p.Month.String()).
		Str("status", string(status)).
		Int64("amount", p.TotalAmount).
		Msg("payment " + string(status))
	return p, nil
}

func (s *PaymentService) lock(ctx context.Context, studentID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, "payments:"+studentID)
	if err != nil {
		return nil, fmt.Errorf("lock student %s: %w", studentID, err)
	}
	return unlock, nil
}
