// Package billing provides the monthly invoice value types and pure functions.
package billing

import (
	"fmt"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// OtherCharge is a manually entered miscellaneous charge (value type).
type OtherCharge struct {
	ID          string
	StudentID   string
	Month       period.Month
	ChargeDate  *time.Time
	Description string
	Amount      int64 // yen
	CreatedAt   time.Time
}

// OtherCharges is the pass-through section of an invoice.
type OtherCharges struct {
	Total int64
	Items []OtherCharge
}

// Info is the computed invoice for one student and month (value type, never persisted).
type Info struct {
	TargetMonth       period.Month
	LessonCount       int
	LessonFeeTotal    int64
	TransportFeeTotal int64
	Adjustments       Adjustments
	OtherCharges      OtherCharges
	GrandTotal        int64
	IsConfirmed       bool
	ConfirmationDate  time.Time
	PaymentDueDate    time.Time
	Warnings          []Warning
}

// PrepaymentTotal returns the forward-looking lesson section (①).
func (i Info) PrepaymentTotal() int64 {
	return i.LessonFeeTotal + i.TransportFeeTotal
}

// Input collects everything Calculate needs.
// Lessons must already be filtered to one student and should cover the
// target month and the month before it; other months are ignored.
type Input struct {
	Lessons      []lesson.Lesson
	OtherCharges []OtherCharge
	TargetMonth  period.Month
	Now          time.Time
}

// Calculate builds the invoice for the target month.
//
// The prepayment section covers lessons dated in the target month that are
// still planned. Done and cancelled lessons drop out of it; corrections for
// them arrive through the following month's adjustments. IsConfirmed is
// reported but never changes the arithmetic.
//
// This is a PURE function.
func Calculate(in Input, cfg period.Config) (Info, error) {
	if err := in.TargetMonth.Validate(); err != nil {
		return Info{}, err
	}
	if in.Now.IsZero() {
		return Info{}, fmt.Errorf("%w: zero now", period.ErrInvalidPeriod)
	}

	confirmAt, err := cfg.ConfirmationDate(in.TargetMonth)
	if err != nil {
		return Info{}, err
	}
	dueAt, err := cfg.PaymentDueDate(in.TargetMonth)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		TargetMonth:      in.TargetMonth,
		IsConfirmed:      !in.Now.Before(confirmAt),
		ConfirmationDate: confirmAt,
		PaymentDueDate:   dueAt,
	}

	prevMonth := in.TargetMonth.Prev()
	var prior []lesson.Lesson
	for _, l := range in.Lessons {
		switch {
		case in.TargetMonth.Contains(l.Date):
			if l.Status != lesson.StatusPlanned {
				continue
			}
			info.LessonCount++
			info.LessonFeeTotal += l.ChargeableFee()
			info.TransportFeeTotal += l.TransportFee
		case prevMonth.Contains(l.Date):
			prior = append(prior, l)
		}
	}

	adj, warnings, err := ResolveAdjustments(prior, prevMonth, in.Now, cfg)
	if err != nil {
		return Info{}, err
	}
	info.Adjustments = adj
	info.Warnings = append(info.Warnings, warnings...)

	info.OtherCharges = passThrough(in.OtherCharges)

	info.GrandTotal = info.LessonFeeTotal + info.TransportFeeTotal +
		info.Adjustments.Total + info.OtherCharges.Total

	return info, nil
}

func passThrough(charges []OtherCharge) OtherCharges {
	out := OtherCharges{}
	if len(charges) == 0 {
		return out
	}
	out.Items = make([]OtherCharge, len(charges))
	copy(out.Items, charges)
	for _, c := range charges {
		out.Total += c.Amount
	}
	return out
}
