package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// ChargeService manages teacher-entered miscellaneous charges.
type ChargeService struct {
	charges ports.ChargeStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	logger  zerolog.Logger
}

// NewCharge describes a charge to add to an invoice.
type NewCharge struct {
	StudentID   string
	Month       period.Month
	ChargeDate  *time.Time
	Description string
	Amount      int64
}

// NewChargeService creates a new charge service.
func NewChargeService(charges ports.ChargeStore, clock ports.Clock, idGen ports.IDGenerator, logger zerolog.Logger) *ChargeService {
	return &ChargeService{
		charges: charges,
		clock:   clock,
		idGen:   idGen,
		logger:  logger,
	}
}

// Create adds a charge to the student's invoice for the month.
func (s *ChargeService) Create(ctx context.Context, in NewCharge) (billing.OtherCharge, error) {
	if in.StudentID == "" {
		return billing.OtherCharge{}, fmt.Errorf("%w: student id required", ErrInvalidInput)
	}
	if err := in.Month.Validate(); err != nil {
		return billing.OtherCharge{}, err
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return billing.OtherCharge{}, fmt.Errorf("%w: description required", ErrInvalidInput)
	}

	c := billing.OtherCharge{
		ID:          s.idGen.New(),
		StudentID:   in.StudentID,
		Month:       in.Month,
		ChargeDate:  in.ChargeDate,
		Description: desc,
		Amount:      in.Amount,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.charges.Create(ctx, c); err != nil {
		return billing.OtherCharge{}, fmt.Errorf("create charge: %w", err)
	}

	s.logger.Info().
		Str("student_id", c.StudentID).
		Str("charge_id", c.ID).
		Str("month", c.Month.String()).
		Int64("amount", c.Amount).
		Msg("charge added")
	return c, nil
}

// Delete removes a charge.
func (s *ChargeService) Delete(ctx context.Context, id string) error {
	if err := s.charges.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("charge_id", id).Msg("charge deleted")
	return nil
}

// List returns the charges of one invoice.
func (s *ChargeService) List(ctx context.Context, studentID string, month period.Month) ([]billing.OtherCharge, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	return s.charges.ListByStudentMonth(ctx, studentID, month)
}
