package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// AdjustmentType is the sign of an adjustment line.
type AdjustmentType string

const (
	AdjustmentCharge AdjustmentType = "charge"
	AdjustmentRefund AdjustmentType = "refund"
)

// Display reasons printed on the invoice.
const (
	ReasonAddedLesson       = "追加レッスン"
	ReasonTeacherCancel     = "講師都合キャンセル"
	ReasonStudentCancelFare = "生徒都合キャンセル（交通費）"
)

// AdjustmentDetail is one line of the prior-month section (②).
// Amount is always the positive magnitude; Type carries the sign.
type AdjustmentDetail struct {
	LessonID string
	Date     time.Time
	Reason   string
	Amount   int64
	Type     AdjustmentType
}

// Signed returns the amount with refunds negative.
func (d AdjustmentDetail) Signed() int64 {
	if d.Type == AdjustmentRefund {
		return -d.Amount
	}
	return d.Amount
}

// Adjustments is the signed prior-month correction added to the invoice.
type Adjustments struct {
	Total   int64
	Details []AdjustmentDetail
}

// Warning reasons.
const (
	WarnCancelledWithoutProcessing = "cancelled lesson has no processed cancellation"
	WarnCancelledWithoutCause      = "cancelled lesson has no cancellation cause"
)

// Warning flags a lesson whose stored state is inconsistent. Such lessons are
// left out of every money line rather than guessed at.
type Warning struct {
	LessonID string
	Date     time.Time
	Reason   string
}

func (w Warning) String() string {
	return fmt.Sprintf("lesson %s (%s): %s", w.LessonID, w.Date.Format("2006-01-02"), w.Reason)
}

// ResolveAdjustments derives the correction lines for lessons of priorMonth,
// a month whose invoice was frozen at its own confirmation date.
//
//   - lessons created on or after that date were never invoiced and are charged;
//   - invoiced non-makeup lessons cancelled on or after that date are refunded:
//     fee and transport when teacher-caused, transport only when student-caused
//     (the fee was banked as a makeup credit instead);
//   - cancelled makeup lessons give nothing back.
//
// Events after now are ignored, so the result is the view as of now.
// Lines are ordered by lesson date, then lesson id.
// This is a PURE function.
func ResolveAdjustments(priorLessons []lesson.Lesson, priorMonth period.Month, now time.Time, cfg period.Config) (Adjustments, []Warning, error) {
	confirmAt, err := cfg.ConfirmationDate(priorMonth)
	if err != nil {
		return Adjustments{}, nil, err
	}
	if now.IsZero() {
		return Adjustments{}, nil, fmt.Errorf("%w: zero now", period.ErrInvalidPeriod)
	}

	var (
		details  []AdjustmentDetail
		warnings []Warning
	)

	for _, l := range priorLessons {
		if !priorMonth.Contains(l.Date) {
			continue
		}
		if !l.CreatedAt.IsZero() && l.CreatedAt.After(now) {
			continue
		}
		late := !l.CreatedAt.IsZero() && !l.CreatedAt.Before(confirmAt)

		if !l.IsCancelled() {
			if late && l.Amount() > 0 {
				details = append(details, AdjustmentDetail{
					LessonID: l.ID,
					Date:     l.Date,
					Reason:   ReasonAddedLesson,
					Amount:   l.Amount(),
					Type:     AdjustmentCharge,
				})
			}
			continue
		}

		processed := l.Cancellation.ProcessedAt
		if !l.Cancellation.IsApproved() || processed.IsZero() {
			warnings = append(warnings, Warning{LessonID: l.ID, Date: l.Date, Reason: WarnCancelledWithoutProcessing})
			continue
		}
		if processed.After(now) {
			continue
		}
		// Never invoiced, or already left out of its own invoice.
		if late || processed.Before(confirmAt) {
			continue
		}

		refund, err := lesson.RefundFor(l)
		if err != nil {
			warnings = append(warnings, Warning{LessonID: l.ID, Date: l.Date, Reason: WarnCancelledWithoutCause})
			continue
		}
		if refund.Total() == 0 {
			continue
		}
		reason := ReasonStudentCancelFare
		if l.Cancellation.CausedBy == lesson.CauseTeacher {
			reason = ReasonTeacherCancel
		}
		details = append(details, AdjustmentDetail{
			LessonID: l.ID,
			Date:     l.Date,
			Reason:   reason,
			Amount:   refund.Total(),
			Type:     AdjustmentRefund,
		})
	}

	sort.SliceStable(details, func(i, j int) bool {
		a, b := details[i], details[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.LessonID < b.LessonID
	})
	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].LessonID < warnings[j].LessonID
	})

	adj := Adjustments{Details: details}
	for _, d := range details {
		adj.Total += d.Signed()
	}
	return adj, warnings, nil
}
