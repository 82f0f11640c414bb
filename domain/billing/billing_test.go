package billing_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/lesson"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

var (
	cfg   = period.DefaultConfig()
	april = period.Month{Year: 2024, Month: time.April}
	march = period.Month{Year: 2024, Month: time.March}
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func at(m time.Month, d, hour int) time.Time {
	return time.Date(2024, m, d, hour, 0, 0, 0, time.UTC)
}

// booked returns a planned lesson created well before any confirmation date.
func booked(id string, date time.Time, fee, transport int64) lesson.Lesson {
	return lesson.Normalize(lesson.Lesson{
		ID:              id,
		StudentID:       "s-1",
		Date:            date,
		DurationMinutes: 120,
		Fee:             fee,
		TransportFee:    transport,
		CreatedAt:       time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
	})
}

func cancelled(l lesson.Lesson, processedAt time.Time, cause lesson.Cause) lesson.Lesson {
	out, err := lesson.Cancel(l, processedAt, cause, "")
	if err != nil {
		panic(err)
	}
	return out
}

func calc(t *testing.T, lessons []lesson.Lesson, charges []billing.OtherCharge, now time.Time) billing.Info {
	t.Helper()
	info, err := billing.Calculate(billing.Input{
		Lessons:      lessons,
		OtherCharges: charges,
		TargetMonth:  april,
		Now:          now,
	}, cfg)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	return info
}

func assertDecomposes(t *testing.T, info billing.Info) {
	t.Helper()
	want := info.LessonFeeTotal + info.TransportFeeTotal + info.Adjustments.Total + info.OtherCharges.Total
	if info.GrandTotal != want {
		t.Errorf("GrandTotal = %d, want %d", info.GrandTotal, want)
	}
}

func TestCalculate_SinglePlannedLesson(t *testing.T) {
	info := calc(t, []lesson.Lesson{booked("l-1", day(time.April, 10), 4000, 900)}, nil, at(time.March, 1, 12))

	if info.LessonFeeTotal != 4000 {
		t.Errorf("LessonFeeTotal = %d, want 4000", info.LessonFeeTotal)
	}
	if info.TransportFeeTotal != 900 {
		t.Errorf("TransportFeeTotal = %d, want 900", info.TransportFeeTotal)
	}
	if info.LessonCount != 1 {
		t.Errorf("LessonCount = %d, want 1", info.LessonCount)
	}
	if info.GrandTotal != 4900 {
		t.Errorf("GrandTotal = %d, want 4900", info.GrandTotal)
	}
	if info.IsConfirmed {
		t.Error("invoice should be provisional before 2024-03-20")
	}
	if !info.ConfirmationDate.Equal(day(time.March, 20)) {
		t.Errorf("ConfirmationDate = %v", info.ConfirmationDate)
	}
	if !info.PaymentDueDate.Equal(day(time.April, 25)) {
		t.Errorf("PaymentDueDate = %v", info.PaymentDueDate)
	}
}

func TestCalculate_ConfirmationFlagIsInformational(t *testing.T) {
	lessons := []lesson.Lesson{booked("l-1", day(time.April, 10), 4000, 900)}
	before := calc(t, lessons, nil, at(time.March, 19, 23))
	after := calc(t, lessons, nil, at(time.March, 20, 0))

	if before.IsConfirmed || !after.IsConfirmed {
		t.Fatalf("IsConfirmed before=%v after=%v", before.IsConfirmed, after.IsConfirmed)
	}
	if before.GrandTotal != after.GrandTotal {
		t.Errorf("totals differ: %d vs %d", before.GrandTotal, after.GrandTotal)
	}
}

func TestCalculate_MakeupLessonChargesTransportOnly(t *testing.T) {
	mk := booked("l-mk", day(time.April, 12), 5000, 600)
	mk.IsMakeup = true // stored fee ignored

	info := calc(t, []lesson.Lesson{mk}, nil, at(time.March, 1, 0))
	if info.LessonFeeTotal != 0 {
		t.Errorf("LessonFeeTotal = %d, want 0", info.LessonFeeTotal)
	}
	if info.TransportFeeTotal != 600 {
		t.Errorf("TransportFeeTotal = %d, want 600", info.TransportFeeTotal)
	}
	if info.LessonCount != 1 {
		t.Errorf("LessonCount = %d, want 1", info.LessonCount)
	}
}

func TestCalculate_PrepaymentCountsPlannedOnly(t *testing.T) {
	now := at(time.April, 28, 12)

	done, err := lesson.Complete(booked("done", day(time.April, 2), 4000, 900), at(time.April, 2, 18))
	if err != nil {
		t.Fatal(err)
	}
	lateBooked := booked("late", day(time.April, 15), 3000, 500)
	lateBooked.CreatedAt = at(time.March, 25, 9) // after the March 20 confirmation date
	gone := cancelled(booked("gone", day(time.April, 8), 2000, 300), at(time.April, 1, 9), lesson.CauseTeacher)

	info := calc(t, []lesson.Lesson{done, lateBooked, gone}, nil, now)

	if info.LessonCount != 1 {
		t.Errorf("LessonCount = %d, want 1", info.LessonCount)
	}
	if info.LessonFeeTotal != 3000 {
		t.Errorf("LessonFeeTotal = %d, want 3000", info.LessonFeeTotal)
	}
	if info.TransportFeeTotal != 500 {
		t.Errorf("TransportFeeTotal = %d, want 500", info.TransportFeeTotal)
	}
	if len(info.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none", info.Warnings)
	}
	assertDecomposes(t, info)
}

func TestCalculate_CancellingDropsLessonFromPrepayment(t *testing.T) {
	l := booked("l-1", day(time.April, 10), 4000, 900)
	before := calc(t, []lesson.Lesson{l}, nil, at(time.March, 25, 0))

	l = cancelled(l, at(time.March, 26, 9), lesson.CauseStudent)
	after := calc(t, []lesson.Lesson{l}, nil, at(time.March, 26, 10))

	if before.PrepaymentTotal() != 4900 {
		t.Errorf("before PrepaymentTotal = %d, want 4900", before.PrepaymentTotal())
	}
	if after.PrepaymentTotal() != 0 || after.LessonCount != 0 {
		t.Errorf("after = %d over %d lessons, want 0", after.PrepaymentTotal(), after.LessonCount)
	}
	if !before.IsConfirmed || !after.IsConfirmed {
		t.Error("both invoices are past the confirmation date")
	}
}

func TestCalculate_PriorMonthAdjustments(t *testing.T) {
	now := at(time.March, 25, 12)

	lessons := []lesson.Lesson{
		booked("apr-1", day(time.April, 5), 4000, 500),
		// student-caused, transport only
		cancelled(booked("mar-student", day(time.March, 15), 4000, 500), at(time.March, 14, 20), lesson.CauseStudent),
		// teacher-caused, fee + transport
		cancelled(booked("mar-teacher", day(time.March, 8), 3000, 800), at(time.March, 7, 10), lesson.CauseTeacher),
	}
	late := booked("mar-added", day(time.March, 22), 4000, 500)
	late.CreatedAt = at(time.March, 1, 8)
	lessons = append(lessons, late)

	info := calc(t, lessons, nil, now)

	want := []billing.AdjustmentDetail{
		{LessonID: "mar-teacher", Date: day(time.March, 8), Reason: billing.ReasonTeacherCancel, Amount: 3800, Type: billing.AdjustmentRefund},
		{LessonID: "mar-student", Date: day(time.March, 15), Reason: billing.ReasonStudentCancelFare, Amount: 500, Type: billing.AdjustmentRefund},
		{LessonID: "mar-added", Date: day(time.March, 22), Reason: billing.ReasonAddedLesson, Amount: 4500, Type: billing.AdjustmentCharge},
	}
	if !reflect.DeepEqual(info.Adjustments.Details, want) {
		t.Errorf("Details =\n%+v\nwant\n%+v", info.Adjustments.Details, want)
	}
	if info.Adjustments.Total != 4500-3800-500 {
		t.Errorf("Adjustments.Total = %d, want %d", info.Adjustments.Total, 4500-3800-500)
	}
	if info.GrandTotal != 4500+200 {
		t.Errorf("GrandTotal = %d, want 4700", info.GrandTotal)
	}
	assertDecomposes(t, info)
}

func TestCalculate_OtherChargesPassThrough(t *testing.T) {
	chargeDate := day(time.April, 3)
	charges := []billing.OtherCharge{
		{ID: "c-1", StudentID: "s-1", Month: april, ChargeDate: &chargeDate, Description: "教材費", Amount: 1200},
		{ID: "c-2", StudentID: "s-1", Month: april, Description: "キャンセル料", Amount: 2000},
	}
	info := calc(t, []lesson.Lesson{booked("l-1", day(time.April, 10), 4000, 900)}, charges, at(time.March, 1, 0))

	if info.OtherCharges.Total != 3200 {
		t.Errorf("OtherCharges.Total = %d, want 3200", info.OtherCharges.Total)
	}
	if !reflect.DeepEqual(info.OtherCharges.Items, charges) {
		t.Errorf("Items changed: %+v", info.OtherCharges.Items)
	}
	charges[0].Amount = 1
	if info.OtherCharges.Items[0].Amount != 1200 {
		t.Error("Items must not alias the input slice")
	}
	assertDecomposes(t, info)
}

func TestCalculate_Deterministic(t *testing.T) {
	lessons := []lesson.Lesson{
		booked("x", day(time.April, 1), 4000, 500),
		booked("y", day(time.April, 1), 4000, 500),
		cancelled(booked("z", day(time.March, 30), 4000, 500), at(time.March, 29, 9), lesson.CauseTeacher),
		cancelled(booked("w", day(time.March, 30), 4000, 500), at(time.March, 29, 9), lesson.CauseStudent),
	}
	now := at(time.April, 2, 0)

	first := calc(t, lessons, nil, now)
	reversed := make([]lesson.Lesson, len(lessons))
	for i, l := range lessons {
		reversed[len(lessons)-1-i] = l
	}
	for i := 0; i < 5; i++ {
		if got := calc(t, lessons, nil, now); !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d differs", i)
		}
	}
	if got := calc(t, reversed, nil, now); !reflect.DeepEqual(got.Adjustments, first.Adjustments) {
		t.Errorf("adjustment order depends on input order: %+v vs %+v", got.Adjustments, first.Adjustments)
	}
	if first.Adjustments.Details[0].LessonID != "w" {
		t.Errorf("tie not broken by lesson id: %+v", first.Adjustments.Details)
	}
}

func TestCalculate_IgnoresOtherMonths(t *testing.T) {
	lessons := []lesson.Lesson{
		booked("feb", day(time.February, 10), 4000, 500),
		booked("may", day(time.May, 10), 4000, 500),
	}
	info := calc(t, lessons, nil, at(time.April, 1, 0))
	if info.LessonCount != 0 || info.GrandTotal != 0 || len(info.Adjustments.Details) != 0 {
		t.Errorf("unexpected totals: %+v", info)
	}
}

func TestCalculate_InvalidInput(t *testing.T) {
	_, err := billing.Calculate(billing.Input{TargetMonth: period.Month{Year: 2024, Month: 13}, Now: at(time.April, 1, 0)}, cfg)
	if !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("bad month err = %v", err)
	}
	_, err = billing.Calculate(billing.Input{TargetMonth: april}, cfg)
	if !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("zero now err = %v", err)
	}
}

func TestFormatYen(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "¥0"},
		{900, "¥900"},
		{4000, "¥4,000"},
		{1234567, "¥1,234,567"},
		{-3800, "-¥3,800"},
		{1000005, "¥1,000,005"},
	}
	for _, tt := range tests {
		if got := billing.FormatYen(tt.in); got != tt.want {
			t.Errorf("FormatYen(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
