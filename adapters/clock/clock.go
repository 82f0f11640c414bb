// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// Real returns the wall-clock time in the billing time zone.
type Real struct {
	Location *time.Location // nil means the process local zone
}

// InLocation returns a real clock reporting times in loc.
func InLocation(loc *time.Location) Real {
	return Real{Location: loc}
}

// Now returns the current time.
func (r Real) Now() time.Time {
	now := time.Now()
	if r.Location != nil {
		return now.In(r.Location)
	}
	return now
}

// Fake is a controllable clock for tests and as-of queries.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set jumps to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// AdvanceDays moves the fake time by whole calendar days, keeping the wall
// clock time across DST changes.
func (f *Fake) AdvanceDays(days int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.AddDate(0, 0, days)
}

// Ensure interface compliance.
var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
