// Package app provides application services that orchestrate domain logic.
package app

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// ErrInvalidInput is returned when a request is rejected before touching storage.
var ErrInvalidInput = errors.New("invalid input")

// Consume failure labels reported to ports.LedgerMetrics.
const (
	ConsumeFailInsufficient = "insufficient_balance"
	ConsumeFailConflict     = "conflict"
	ConsumeFailLock         = "lock"
	ConsumeFailStore        = "store"
)

// periodConfig holds the hot-reloadable billing constants.
type periodConfig struct {
	v atomic.Pointer[period.Config]
}

func newPeriodConfig(cfg period.Config) *periodConfig {
	p := &periodConfig{}
	p.set(cfg)
	return p
}

func (p *periodConfig) set(cfg period.Config) {
	p.v.Store(&cfg)
}

func (p *periodConfig) get() period.Config {
	return *p.v.Load()
}

// nowOr returns at, or the clock's time when at is zero.
func nowOr(clock ports.Clock, at time.Time) time.Time {
	if at.IsZero() {
		return clock.Now()
	}
	return at
}

type nopMetrics struct{}

func (nopMetrics) InvoiceComputed(bool)             {}
func (nopMetrics) AdjustmentWarning(string)         {}
func (nopMetrics) CreditsGranted(int)               {}
func (nopMetrics) CreditsConsumed(int)              {}
func (nopMetrics) ConsumeFailed(string)             {}
func (nopMetrics) PaymentTransition(payment.Status) {}

func metricsOrNop(m ports.LedgerMetrics) ports.LedgerMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
