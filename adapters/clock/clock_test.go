package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	c := clock.Real{}

	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestReal_InLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	c := clock.InLocation(tokyo)

	got := c.Now()
	if got.Location() != tokyo {
		t.Errorf("Location() = %v, want JST", got.Location())
	}
	if d := time.Since(got); d < 0 || d > time.Second {
		t.Errorf("Now() is %v away from wall clock", d)
	}
}

func TestFake_Set(t *testing.T) {
	c := clock.NewFake(time.Date(2024, 3, 19, 23, 59, 0, 0, time.UTC))

	confirmation := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	c.Set(confirmation)

	if got := c.Now(); !got.Equal(confirmation) {
		t.Errorf("Now() = %v, want %v", got, confirmation)
	}
}

func TestFake_Advance(t *testing.T) {
	initial := time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC)
	c := clock.NewFake(initial)

	c.Advance(time.Hour)
	c.Advance(-30 * time.Minute)

	if got, want := c.Now(), initial.Add(30*time.Minute); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestFake_AdvanceDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		days  int
		want  time.Time
	}{
		{"into next month", time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC), 1, time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)},
		{"leap day", time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)},
		{"backwards across year", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), -12, time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewFake(tt.start)
			c.AdvanceDays(tt.days)
			if got := c.Now(); !got.Equal(tt.want) {
				t.Errorf("Now() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFake_ConcurrentAccess(t *testing.T) {
	c := clock.NewFake(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Now()
				c.Advance(time.Second)
			}
		}()
	}
	wg.Wait()
}
