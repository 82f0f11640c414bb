package payment_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

func TestStatusOf(t *testing.T) {
	now := time.Date(2024, 4, 26, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    *payment.MonthlyPayment
		want payment.Status
	}{
		{"absent", nil, payment.StatusUnpaid},
		{"no timestamps", &payment.MonthlyPayment{}, payment.StatusUnpaid},
		{"reported", &payment.MonthlyPayment{ReportedAt: &now}, payment.StatusReported},
		{"confirmed", &payment.MonthlyPayment{ReportedAt: &now, ConfirmedAt: &now}, payment.StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payment.StatusOf(tt.p); got != tt.want {
				t.Errorf("StatusOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLifecycle(t *testing.T) {
	reportAt := time.Date(2024, 4, 24, 20, 0, 0, 0, time.UTC)
	confirmAt := reportAt.Add(36 * time.Hour)
	p := payment.MonthlyPayment{ID: "p-1", StudentID: "s-1", Month: period.Month{Year: 2024, Month: time.April}}

	if _, err := payment.Confirm(p, confirmAt); !errors.Is(err, payment.ErrNotReported) {
		t.Fatalf("Confirm(unpaid) err = %v", err)
	}

	p, err := payment.Report(p, 4900, reportAt)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if p.Status() != payment.StatusReported || p.TotalAmount != 4900 || !p.ReportedAt.Equal(reportAt) {
		t.Errorf("after report: %+v", p)
	}
	if _, err := payment.Report(p, 5000, reportAt); !errors.Is(err, payment.ErrAlreadyReported) {
		t.Errorf("second Report err = %v", err)
	}

	p, err = payment.Confirm(p, confirmAt)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if p.Status() != payment.StatusConfirmed || p.TotalAmount != 4900 {
		t.Errorf("after confirm: %+v", p)
	}

	if _, err := payment.Confirm(p, confirmAt); !errors.Is(err, payment.ErrAlreadyConfirmed) {
		t.Errorf("Confirm(confirmed) err = %v", err)
	}
	if _, err := payment.Report(p, 1, confirmAt); !errors.Is(err, payment.ErrAlreadyConfirmed) {
		t.Errorf("Report(confirmed) err = %v", err)
	}
}
