package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// seedApril schedules two April lessons and one March lesson early in
// February, then cancels the March lesson (teacher-caused) on March 22,
// after the March invoice was frozen.
func seedApril(t *testing.T, h *harness) {
	t.Helper()
	ctx := context.Background()

	h.clock.Set(time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC))
	for _, d := range []time.Time{day(time.April, 6), day(time.April, 13)} {
		if _, err := h.lesson.Create(ctx, app.NewLesson{StudentID: "s-1", Date: d, DurationMinutes: 120, Fee: 4000, TransportFee: 500}); err != nil {
			t.Fatalf("create lesson: %v", err)
		}
	}
	marchLesson, err := h.lesson.Create(ctx, app.NewLesson{StudentID: "s-1", Date: day(time.March, 23), DurationMinutes: 120, Fee: 4000, TransportFee: 500})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	h.clock.Set(time.Date(2024, time.March, 22, 9, 0, 0, 0, time.UTC))
	if _, err := h.lesson.Cancel(ctx, marchLesson.ID, lesson.CauseTeacher, "講師の体調不良"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.chargeSv.Create(ctx, app.NewCharge{StudentID: "s-1", Month: april, Description: "教材費", Amount: 1200}); err != nil {
		t.Fatalf("create charge: %v", err)
	}
}

func TestBillingService_Invoice(t *testing.T) {
	h := newHarness(t, day(time.February, 1))
	seedApril(t, h)
	h.clock.Set(day(time.March, 25))

	inv, err := h.billing.Invoice(context.Background(), "s-1", april, time.Time{})
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}

	if inv.LessonCount != 2 || inv.LessonFeeTotal != 8000 || inv.TransportFeeTotal != 1000 {
		t.Errorf("prepayment = %d lessons, %d fee, %d transport", inv.LessonCount, inv.LessonFeeTotal, inv.TransportFeeTotal)
	}
	if inv.Adjustments.Total != -4500 || len(inv.Adjustments.Details) != 1 {
		t.Fatalf("adjustments = %+v", inv.Adjustments)
	}
	if d := inv.Adjustments.Details[0]; d.Type != billing.AdjustmentRefund || d.Reason != billing.ReasonTeacherCancel {
		t.Errorf("detail = %+v", d)
	}
	if inv.OtherCharges.Total != 1200 {
		t.Errorf("other charges = %d, want 1200", inv.OtherCharges.Total)
	}
	if inv.GrandTotal != 5700 {
		t.Errorf("GrandTotal = %d, want 5700", inv.GrandTotal)
	}
	if !inv.IsConfirmed {
		t.Error("April invoice should be confirmed on March 25")
	}
	if inv.PaymentStatus != payment.StatusUnpaid || inv.Payment != nil {
		t.Errorf("payment = %s %+v", inv.PaymentStatus, inv.Payment)
	}
	if !inv.At.Equal(day(time.March, 25)) {
		t.Errorf("At = %v", inv.At)
	}
	if h.metrics.invoices != 1 {
		t.Errorf("invoices metric = %d", h.metrics.invoices)
	}
}

func TestBillingService_InvoiceAsOf(t *testing.T) {
	h := newHarness(t, day(time.February, 1))
	seedApril(t, h)

	// Before the confirmation date and before the cancellation was processed.
	inv, err := h.billing.Invoice(context.Background(), "s-1", april, day(time.March, 15))
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	if inv.IsConfirmed {
		t.Error("April invoice should not be confirmed on March 15")
	}
	if inv.Adjustments.Total != 0 {
		t.Errorf("adjustments = %+v, want none", inv.Adjustments)
	}
	if inv.GrandTotal != 10200 {
		t.Errorf("GrandTotal = %d, want 10200", inv.GrandTotal)
	}
}

func TestBillingService_Deterministic(t *testing.T) {
	h := newHarness(t, day(time.February, 1))
	seedApril(t, h)
	ctx := context.Background()

	a, err := h.billing.Invoice(ctx, "s-1", april, day(time.March, 25))
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.billing.Invoice(ctx, "s-1", april, day(time.March, 25))
	if err != nil {
		t.Fatal(err)
	}
	if a.GrandTotal != b.GrandTotal || len(a.Adjustments.Details) != len(b.Adjustments.Details) {
		t.Errorf("repeated invoice differs: %d vs %d", a.GrandTotal, b.GrandTotal)
	}
}

func TestBillingService_InconsistentLessonWarns(t *testing.T) {
	h := newHarness(t, day(time.February, 1))
	ctx := context.Background()

	broken := lesson.Lesson{
		ID:              "broken",
		StudentID:       "s-1",
		Date:            day(time.March, 20),
		DurationMinutes: 60,
		Fee:             2000,
		Status:          lesson.StatusCancelled,
		Cancellation:    lesson.Unrequested(),
		CreatedAt:       day(time.February, 1),
	}
	if err := h.lessons.Create(ctx, broken); err != nil {
		t.Fatal(err)
	}

	inv, err := h.billing.Invoice(ctx, "s-1", april, day(time.March, 25))
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	if inv.GrandTotal != 0 || inv.LessonCount != 0 {
		t.Errorf("inconsistent lesson was billed: %+v", inv.Info)
	}
	if len(inv.Warnings) != 1 || inv.Warnings[0].LessonID != "broken" {
		t.Errorf("warnings = %+v", inv.Warnings)
	}
	if len(h.metrics.warnings) != 1 {
		t.Errorf("warning metric = %v", h.metrics.warnings)
	}
}

func TestBillingService_SetPeriodConfig(t *testing.T) {
	h := newHarness(t, day(time.March, 22))

	cfg := period.DefaultConfig()
	cfg.ConfirmationDay = 25
	h.billing.SetPeriodConfig(cfg)

	inv, err := h.billing.Invoice(context.Background(), "s-1", april, time.Time{})
	if err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	if inv.IsConfirmed {
		t.Error("should not be confirmed before March 25")
	}
	if !inv.ConfirmationDate.Equal(day(time.March, 25)) {
		t.Errorf("ConfirmationDate = %v", inv.ConfirmationDate)
	}
	if got := h.billing.PeriodConfig().ConfirmationDay; got != 25 {
		t.Errorf("PeriodConfig().ConfirmationDay = %d", got)
	}
}

func TestBillingService_InvalidInput(t *testing.T) {
	h := newHarness(t, day(time.March, 22))
	ctx := context.Background()

	if _, err := h.billing.Invoice(ctx, "", april, time.Time{}); !errors.Is(err, app.ErrInvalidInput) {
		t.Errorf("empty student err = %v", err)
	}
	if _, err := h.billing.Invoice(ctx, "s-1", period.Month{Year: 2024, Month: 13}, time.Time{}); !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("bad month err = %v", err)
	}
}
