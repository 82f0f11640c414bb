package period_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

func mustMonth(t *testing.T, s string) period.Month {
	t.Helper()
	m, err := period.ParseMonth(s)
	if err != nil {
		t.Fatalf("ParseMonth(%q): %v", s, err)
	}
	return m
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    period.Month
		wantErr bool
	}{
		{"2024-04", period.Month{Year: 2024, Month: time.April}, false},
		{"2023-12", period.Month{Year: 2023, Month: time.December}, false},
		{" 2024-01 ", period.Month{Year: 2024, Month: time.January}, false},
		{"2024-13", period.Month{}, true},
		{"2024-00", period.Month{}, true},
		{"2024-4", period.Month{}, true},
		{"24-04", period.Month{}, true},
		{"april", period.Month{}, true},
		{"", period.Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := period.ParseMonth(tt.in)
			if tt.wantErr {
				if !errors.Is(err, period.ErrInvalidPeriod) {
					t.Fatalf("err = %v, want ErrInvalidPeriod", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.String() != tt.want.String() {
				t.Errorf("String() = %s", got.String())
			}
		})
	}
}

func TestMonth_JSON(t *testing.T) {
	in := struct {
		Month period.Month `json:"month"`
	}{Month: mustMonth(t, "2025-04")}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"month":"2025-04"}` {
		t.Errorf("Marshal = %s", b)
	}

	var out struct {
		Month period.Month `json:"month"`
	}
	if err := json.Unmarshal([]byte(`{"month":"2024-12"}`), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Month != (period.Month{Year: 2024, Month: time.December}) {
		t.Errorf("Unmarshal = %+v", out.Month)
	}

	if err := json.Unmarshal([]byte(`{"month":"2024-13"}`), &out); !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("Unmarshal invalid month error = %v, want ErrInvalidPeriod", err)
	}
}

func TestMonth_PrevNext(t *testing.T) {
	jan := period.Month{Year: 2024, Month: time.January}
	if got := jan.Prev(); got != (period.Month{Year: 2023, Month: time.December}) {
		t.Errorf("Prev() = %v", got)
	}
	dec := period.Month{Year: 2023, Month: time.December}
	if got := dec.Next(); got != jan {
		t.Errorf("Next() = %v", got)
	}
	if !dec.Before(jan) || jan.Before(dec) {
		t.Error("Before ordering wrong across year boundary")
	}
}

func TestBillingPeriod_VariableLengths(t *testing.T) {
	cfg := period.DefaultConfig()
	tests := []struct {
		month   string
		lastDay int
	}{
		{"2024-02", 29},
		{"2023-02", 28},
		{"2024-04", 30},
		{"2024-12", 31},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			b, err := cfg.BillingPeriod(mustMonth(t, tt.month))
			if err != nil {
				t.Fatal(err)
			}
			if b.Start.Day() != 1 {
				t.Errorf("Start day = %d, want 1", b.Start.Day())
			}
			if b.End.Day() != tt.lastDay {
				t.Errorf("End day = %d, want %d", b.End.Day(), tt.lastDay)
			}
			if b.End.Month() != b.Start.Month() {
				t.Errorf("End month %v differs from start month %v", b.End.Month(), b.Start.Month())
			}
		})
	}
}

func TestConfirmationDate_YearRollover(t *testing.T) {
	cfg := period.DefaultConfig()

	got, err := cfg.ConfirmationDate(mustMonth(t, "2024-01"))
	if err != nil {
		t.Fatal(err)
	}
	if want := date(2023, time.December, 20); !got.Equal(want) {
		t.Errorf("ConfirmationDate(2024-01) = %v, want %v", got, want)
	}

	cfg.ConfirmationDay = 15
	got, _ = cfg.ConfirmationDate(mustMonth(t, "2024-03"))
	if want := date(2024, time.February, 15); !got.Equal(want) {
		t.Errorf("ConfirmationDate with day 15 = %v, want %v", got, want)
	}
}

func TestPaymentDueDate(t *testing.T) {
	cfg := period.DefaultConfig()
	got, err := cfg.PaymentDueDate(mustMonth(t, "2024-04"))
	if err != nil {
		t.Fatal(err)
	}
	if want := date(2024, time.April, 25); !got.Equal(want) {
		t.Errorf("PaymentDueDate = %v, want %v", got, want)
	}
}

func TestIsConfirmed(t *testing.T) {
	cfg := period.DefaultConfig()
	april := mustMonth(t, "2024-04")
	confirmAt := date(2024, time.March, 20)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"day before", confirmAt.Add(-time.Microsecond), false},
		{"exactly at", confirmAt, true},
		{"later", confirmAt.AddDate(0, 0, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.IsConfirmed(april, tt.now)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("IsConfirmed = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := cfg.IsConfirmed(april, time.Time{}); !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("zero now: err = %v, want ErrInvalidPeriod", err)
	}
	if _, err := cfg.IsConfirmed(period.Month{Year: 2024, Month: 14}, confirmAt); !errors.Is(err, period.ErrInvalidPeriod) {
		t.Errorf("bad month: err = %v, want ErrInvalidPeriod", err)
	}
}

func TestCreditExpiry(t *testing.T) {
	cfg := period.DefaultConfig()
	tests := []struct {
		origin time.Time
		want   time.Time
	}{
		{date(2024, time.March, 15), date(2024, time.April, 15)},
		{date(2023, time.December, 10), date(2024, time.January, 10)},
		{date(2024, time.January, 31), date(2024, time.February, 29)},
		{date(2023, time.January, 31), date(2023, time.February, 28)},
		{date(2024, time.March, 31), date(2024, time.April, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.origin.Format("2006-01-02"), func(t *testing.T) {
			if got := cfg.CreditExpiry(tt.origin); !got.Equal(tt.want) {
				t.Errorf("CreditExpiry = %v, want %v", got, tt.want)
			}
		})
	}

	cfg.CreditValidityMonths = 2
	if got := cfg.CreditExpiry(date(2024, time.March, 15)); !got.Equal(date(2024, time.May, 15)) {
		t.Errorf("two-month validity = %v", got)
	}
}

func TestCreditExpiry_ConfiguredLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cfg := period.DefaultConfig()
	cfg.Location = tokyo

	// Lesson dates are civil dates and usually come back from storage in UTC.
	got := cfg.CreditExpiry(date(2024, time.March, 15))
	want := time.Date(2024, time.April, 15, 0, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Errorf("CreditExpiry = %v, want %v", got, want)
	}

	confirmAt, err := cfg.ConfirmationDate(period.Month{Year: 2024, Month: time.May})
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != confirmAt.Location() {
		t.Errorf("expiry zone %v differs from confirmation zone %v", got.Location(), confirmAt.Location())
	}

	// A late-evening origin still expires at local midnight.
	evening := time.Date(2024, time.March, 15, 21, 30, 0, 0, tokyo)
	if got := cfg.CreditExpiry(evening); !got.Equal(want) {
		t.Errorf("CreditExpiry(evening) = %v, want %v", got, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := period.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []period.Config{
		{ConfirmationDay: 0, PaymentDueDay: 25, CreditValidityMonths: 1},
		{ConfirmationDay: 31, PaymentDueDay: 25, CreditValidityMonths: 1},
		{ConfirmationDay: 20, PaymentDueDay: 29, CreditValidityMonths: 1},
		{ConfirmationDay: 20, PaymentDueDay: 25, CreditValidityMonths: 0},
	}
	for i, c := range bad {
		if err := c.Validate(); !errors.Is(err, period.ErrInvalidPeriod) {
			t.Errorf("case %d: err = %v, want ErrInvalidPeriod", i, err)
		}
	}
}
