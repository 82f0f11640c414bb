package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// LessonDeps contains dependencies for LessonService.
type LessonDeps struct {
	Lessons ports.LessonStore
	Ledger  *LedgerService
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  zerolog.Logger
}

// LessonService runs the lesson lifecycle and its credit side effects.
type LessonService struct {
	lessons ports.LessonStore
	ledger  *LedgerService
	clock   ports.Clock
	idGen   ports.IDGenerator
	logger  zerolog.Logger
}

// NewLesson describes a lesson to schedule.
type NewLesson struct {
	StudentID       string
	Date            time.Time
	StartTime       string
	EndTime         string
	DurationMinutes int
	Fee             int64
	TransportFee    int64
	IsMakeup        bool
}

// CancellationResult is a processed cancellation and the credit it banked, if any.
type CancellationResult struct {
	Lesson lesson.Lesson
	Credit *makeup.Credit
}

// MakeupBooking is a scheduled makeup lesson and the credit it drew on.
type MakeupBooking struct {
	Lesson lesson.Lesson
	Debits []makeup.Debit
}

// NewLessonService creates a new lesson service.
func NewLessonService(deps LessonDeps) *LessonService {
	return &LessonService{
		lessons: deps.Lessons,
		ledger:  deps.Ledger,
		clock:   deps.Clock,
		idGen:   deps.IDGen,
		logger:  deps.Logger,
	}
}

// Create schedules a lesson. Makeup lessons are stored with a zero fee.
func (s *LessonService) Create(ctx context.Context, in NewLesson) (lesson.Lesson, error) {
	if err := validateNewLesson(in); err != nil {
		return lesson.Lesson{}, err
	}
	l := s.build(in)
	if err := s.lessons.Create(ctx, l); err != nil {
		return lesson.Lesson{}, fmt.Errorf("create lesson: %w", err)
	}

	s.logger.Info().
		Str("student_id", l.StudentID).
		Str("lesson_id", l.ID).
		Str("date", l.Date.Format("2006-01-02")).
		Bool("makeup", l.IsMakeup).
		Msg("lesson created")
	return l, nil
}

// Get returns one lesson.
func (s *LessonService) Get(ctx context.Context, id string) (lesson.Lesson, error) {
	return s.lessons.Get(ctx, id)
}

// ListMonth returns a student's lessons dated in month.
func (s *LessonService) ListMonth(ctx context.Context, studentID string, month period.Month) ([]lesson.Lesson, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	from := time.Date(month.Year, month.Month, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(month.Year, month.Month, month.Days(), 0, 0, 0, 0, time.UTC)
	return s.lessons.ListByStudent(ctx, studentID, from, to)
}

// RequestCancellation files a pending cancellation.
func (s *LessonService) RequestCancellation(ctx context.Context, id string, cause lesson.Cause, reason string) (lesson.Lesson, error) {
	return s.transition(ctx, id, "cancellation requested", func(l lesson.Lesson, now time.Time) (lesson.Lesson, error) {
		return lesson.RequestCancellation(l, now, cause, reason)
	})
}

// RejectCancellation refuses a pending cancellation.
func (s *LessonService) RejectCancellation(ctx context.Context, id string) (lesson.Lesson, error) {
	return s.transition(ctx, id, "cancellation rejected", func(l lesson.Lesson, now time.Time) (lesson.Lesson, error) {
		return lesson.RejectCancellation(l, now)
	})
}

// Complete marks a lesson as held.
func (s *LessonService) Complete(ctx context.Context, id string) (lesson.Lesson, error) {
	return s.transition(ctx, id, "lesson completed", func(l lesson.Lesson, now time.Time) (lesson.Lesson, error) {
		return lesson.Complete(l, now)
	})
}

// ApproveCancellation cancels the lesson. A student-caused cancellation of a
// regular lesson banks its duration as a makeup credit.
func (s *LessonService) ApproveCancellation(ctx context.Context, id string) (CancellationResult, error) {
	return s.cancel(ctx, id, "cancellation approved", func(l lesson.Lesson, now time.Time) (lesson.Lesson, error) {
		return lesson.ApproveCancellation(l, now)
	})
}

// Cancel requests and approves in one step.
func (s *LessonService) Cancel(ctx context.Context, id string, cause lesson.Cause, reason string) (CancellationResult, error) {
	return s.cancel(ctx, id, "lesson cancelled", func(l lesson.Lesson, now time.Time) (lesson.Lesson, error) {
		return lesson.Cancel(l, now, cause, reason)
	})
}

// BookMakeup draws the lesson's duration from the student's credits and
// schedules the makeup lesson. If the lesson cannot be stored the minutes
// are put back.
func (s *LessonService) BookMakeup(ctx context.Context, in NewLesson) (MakeupBooking, error) {
	in.IsMakeup = true
	if err := validateNewLesson(in); err != nil {
		return MakeupBooking{}, err
	}

	debits, err := s.ledger.Consume(ctx, in.StudentID, in.DurationMinutes)
	if err != nil {
		return MakeupBooking{}, err
	}

	l := s.build(in)
	if err := s.lessons.Create(ctx, l); err != nil {
		if rerr := s.ledger.Release(context.WithoutCancel(ctx), in.StudentID, debits); rerr != nil {
			s.logger.Error().Err(rerr).
				Str("student_id", in.StudentID).
				Int("minutes", makeup.TotalDebited(debits)).
				Msg("release credit after failed makeup booking")
		}
		return MakeupBooking{}, fmt.Errorf("create makeup lesson: %w", err)
	}

	s.logger.Info().
		Str("student_id", l.StudentID).
		Str("lesson_id", l.ID).
		Int("minutes", l.DurationMinutes).
		Msg("makeup lesson booked")
	return MakeupBooking{Lesson: l, Debits: debits}, nil
}

// cancel applies a cancelling transition. The credit owed is granted before
// the lesson is saved, so a failed grant leaves the lesson unchanged and the
// call can be retried. The credit id is derived from the lesson, so a retry
// after a failed save does not grant twice.
func (s *LessonService) cancel(ctx context.Context, id, event string, fn func(lesson.Lesson, time.Time) (lesson.Lesson, error)) (CancellationResult, error) {
	l, err := s.lessons.Get(ctx, id)
	if err != nil {
		return CancellationResult{}, err
	}
	next, err := fn(l, s.clock.Now())
	if err != nil {
		return CancellationResult{}, err
	}
	refund, err := lesson.RefundFor(next)
	if err != nil {
		return CancellationResult{}, err
	}

	res := CancellationResult{Lesson: next}
	if refund.CreditMinutes > 0 {
		c, err := s.ledger.Grant(ctx, next.StudentID, refund.CreditMinutes, next.ID, next.Date)
		switch {
		case errors.Is(err, ports.ErrDuplicate):
			s.logger.Warn().Str("lesson_id", next.ID).Msg("makeup credit already granted")
		case err != nil:
			return CancellationResult{}, err
		default:
			res.Credit = &c
		}
	}

	if err := s.save(ctx, next, event); err != nil {
		return CancellationResult{}, err
	}
	return res, nil
}

func (s *LessonService) transition(ctx context.Context, id, event string, fn func(lesson.Lesson, time.Time) (lesson.Lesson, error)) (lesson.Lesson, error) {
	l, err := s.lessons.Get(ctx, id)
	if err != nil {
		return lesson.Lesson{}, err
	}
	next, err := fn(l, s.clock.Now())
	if err != nil {
		return lesson.Lesson{}, err
	}
	if err := s.save(ctx, next, event); err != nil {
		return lesson.Lesson{}, err
	}
	return next, nil
}

func (s *LessonService) save(ctx context.Context, l lesson.Lesson, event string) error {
	if err := s.lessons.Update(ctx, l); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	s.logger.Info().
		Str("student_id", l.StudentID).
		Str("lesson_id", l.ID).
		Str("status", string(l.Status)).
		Str("cancellation", string(l.Cancellation.State)).
		Msg(event)
	return nil
}

func (s *LessonService) build(in NewLesson) lesson.Lesson {
	now := s.clock.Now()
	y, m, d := in.Date.Date()
	return lesson.Normalize(lesson.Lesson{
		ID:              s.idGen.New(),
		StudentID:       in.StudentID,
		Date:            time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		DurationMinutes: in.DurationMinutes,
		Fee:             in.Fee,
		TransportFee:    in.TransportFee,
		IsMakeup:        in.IsMakeup,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

func validateNewLesson(in NewLesson) error {
	switch {
	case in.StudentID == "":
		return fmt.Errorf("%w: student id required", ErrInvalidInput)
	case in.Date.IsZero():
		return fmt.Errorf("%w: lesson date required", ErrInvalidInput)
	case in.DurationMinutes <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	case in.Fee < 0 || in.TransportFee < 0:
		return fmt.Errorf("%w: fees must not be negative", ErrInvalidInput)
	}
	return nil
}
