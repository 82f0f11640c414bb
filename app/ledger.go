package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// LedgerDeps contains dependencies for LedgerService.
type LedgerDeps struct {
	Credits ports.CreditStore
	Locker  ports.Locker // optional; the store is atomic on its own
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics ports.LedgerMetrics
	Logger  zerolog.Logger
}

// LedgerService manages makeup credits: grants, balance and FIFO consumption.
type LedgerService struct {
	credits ports.CreditStore
	locker  ports.Locker
	clock   ports.Clock
	idGen   ports.IDGenerator
	metrics ports.LedgerMetrics
	logger  zerolog.Logger

	cfg *periodConfig
}

// CreditReport is a student's credit position at one instant.
type CreditReport struct {
	StudentID string
	At        time.Time
	Balance   int
	Summary   makeup.Summary
	Credits   []makeup.Credit
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(deps LedgerDeps, cfg period.Config) *LedgerService {
	return &LedgerService{
		credits: deps.Credits,
		locker:  deps.Locker,
		clock:   deps.Clock,
		idGen:   deps.IDGen,
		metrics: metricsOrNop(deps.Metrics),
		logger:  deps.Logger,
		cfg:     newPeriodConfig(cfg),
	}
}

// SetPeriodConfig swaps the credit validity. Existing credits keep their expiry.
func (s *LedgerService) SetPeriodConfig(cfg period.Config) {
	s.cfg.set(cfg)
}

// CreditIDForLesson is the credit id granted for a cancelled lesson.
// A second grant for the same lesson collides with ports.ErrDuplicate.
func CreditIDForLesson(lessonID string) string {
	return "crd_" + lessonID
}

// Grant banks minutes for a student. When originLessonID is set the credit
// id is derived from it, so a lesson is never compensated twice.
func (s *LedgerService) Grant(ctx context.Context, studentID string, minutes int, originLessonID string, originDate time.Time) (makeup.Credit, error) {
	if studentID == "" {
		return makeup.Credit{}, fmt.Errorf("%w: student id required", ErrInvalidInput)
	}

	id := s.idGen.New()
	if originLessonID != "" {
		id = CreditIDForLesson(originLessonID)
	}

	c, err := makeup.NewGrant(id, studentID, minutes, originLessonID, originDate, s.clock.Now(), s.cfg.get())
	if err != nil {
		return makeup.Credit{}, err
	}
	if err := s.credits.Create(ctx, c); err != nil {
		return makeup.Credit{}, fmt.Errorf("grant credit: %w", err)
	}

	s.metrics.CreditsGranted(minutes)
	s.logger.Info().
		Str("student_id", studentID).
		Str("credit_id", c.ID).
		Str("origin_lesson_id", originLessonID).
		Int("minutes", minutes).
		Time("expires_at", c.ExpiresAt).
		Msg("makeup credit granted")

	return c, nil
}

// Balance returns the available minutes at at (zero means now).
func (s *LedgerService) Balance(ctx context.Context, studentID string, at time.Time) (int, error) {
	credits, err := s.credits.ListByStudent(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("list credits: %w", err)
	}
	return makeup.AvailableBalance(credits, nowOr(s.clock, at)), nil
}

// Credits returns every credit of a student, with balance and audit totals.
func (s *LedgerService) Credits(ctx context.Context, studentID string, at time.Time) (CreditReport, error) {
	credits, err := s.credits.ListByStudent(ctx, studentID)
	if err != nil {
		return CreditReport{}, fmt.Errorf("list credits: %w", err)
	}
	now := nowOr(s.clock, at)
	return CreditReport{
		StudentID: studentID,
		At:        now,
		Balance:   makeup.AvailableBalance(credits, now),
		Summary:   makeup.Summarize(credits, now),
		Credits:   credits,
	}, nil
}

// Consume takes minutes from the student's credits, soonest expiry first.
// Either every minute is taken or nothing changes.
func (s *LedgerService) Consume(ctx context.Context, studentID string, minutes int) ([]makeup.Debit, error) {
	if studentID == "" {
		return nil, fmt.Errorf("%w: student id required", ErrInvalidInput)
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", makeup.ErrInvalidMinutes, minutes)
	}

	unlock, err := s.lock(ctx, studentID)
	if err != nil {
		s.metrics.ConsumeFailed(ConsumeFailLock)
		return nil, err
	}
	defer unlock()

	debits, err := s.credits.Consume(ctx, studentID, minutes, s.clock.Now())
	if err != nil {
		s.metrics.ConsumeFailed(consumeFailReason(err))
		return nil, err
	}

	s.metrics.CreditsConsumed(minutes)
	s.logger.Info().
		Str("student_id", studentID).
		Int("minutes", minutes).
		Int("credits_touched", len(debits)).
		Msg("makeup credit consumed")

	return debits, nil
}

// Release returns debited minutes to their credits.
func (s *LedgerService) Release(ctx context.Context, studentID string, debits []makeup.Debit) error {
	if len(debits) == 0 {
		return nil
	}

	unlock, err := s.lock(ctx, studentID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.credits.Release(ctx, debits); err != nil {
		return fmt.Errorf("release credit: %w", err)
	}

	s.logger.Info().
		Str("student_id", studentID).
		Int("minutes", makeup.TotalDebited(debits)).
		Msg("makeup credit released")
	return nil
}

func (s *LedgerService) lock(ctx context.Context, studentID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, "credits:"+studentID)
	if err != nil {
		return nil, fmt.Errorf("lock student %s: %w", studentID, err)
	}
	return unlock, nil
}

func consumeFailReason(err error) string {
	switch {
	case errors.Is(err, makeup.ErrInsufficientBalance):
		return ConsumeFailInsufficient
	case errors.Is(err, ports.ErrConflict):
		return ConsumeFailConflict
	default:
		return ConsumeFailStore
	}
}
