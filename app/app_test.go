package app_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/adapters/clock"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/idgen"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/memory"
	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
)

// recordingMetrics implements ports.LedgerMetrics for testing.
type recordingMetrics struct {
	mu             sync.Mutex
	invoices       int
	warnings       []string
	granted        int
	consumed       int
	consumeFailed  []string
	paymentChanges []payment.Status
}

func (m *recordingMetrics) InvoiceComputed(bool) {
	m.mu.Lock()
	m.invoices++
	m.mu.Unlock()
}

func (m *recordingMetrics) AdjustmentWarning(reason string) {
	m.mu.Lock()
	m.warnings = append(m.warnings, reason)
	m.mu.Unlock()
}

func (m *recordingMetrics) CreditsGranted(minutes int) {
	m.mu.Lock()
	m.granted += minutes
	m.mu.Unlock()
}

func (m *recordingMetrics) CreditsConsumed(minutes int) {
	m.mu.Lock()
	m.consumed += minutes
	m.mu.Unlock()
}

func (m *recordingMetrics) ConsumeFailed(reason string) {
	m.mu.Lock()
	m.consumeFailed = append(m.consumeFailed, reason)
	m.mu.Unlock()
}

func (m *recordingMetrics) PaymentTransition(to payment.Status) {
	m.mu.Lock()
	m.paymentChanges = append(m.paymentChanges, to)
	m.mu.Unlock()
}

type harness struct {
	clock    *clock.Fake
	lessons  *memory.LessonStore
	charges  *memory.ChargeStore
	credits  *memory.CreditStore
	payments *memory.PaymentStore
	metrics  *recordingMetrics

	billing  *app.BillingService
	ledger   *app.LedgerService
	lesson   *app.LessonService
	payment  *app.PaymentService
	chargeSv *app.ChargeService
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()

	h := &harness{
		clock:    clock.NewFake(now),
		lessons:  memory.NewLessonStore(),
		charges:  memory.NewChargeStore(),
		credits:  memory.NewCreditStore(memory.CreditStoreConfig{NumShards: 4}),
		payments: memory.NewPaymentStore(),
		metrics:  &recordingMetrics{},
	}
	cfg := period.DefaultConfig()
	logger := zerolog.Nop()
	locker := memory.NewLocker(4)

	h.billing = app.NewBillingService(app.BillingDeps{
		Lessons:  h.lessons,
		Charges:  h.charges,
		Payments: h.payments,
		Clock:    h.clock,
		Metrics:  h.metrics,
		Logger:   logger,
	}, cfg)
	h.ledger = app.NewLedgerService(app.LedgerDeps{
		Credits: h.credits,
		Locker:  locker,
		Clock:   h.clock,
		IDGen:   idgen.NewSequential("crd_"),
		Metrics: h.metrics,
		Logger:  logger,
	}, cfg)
	h.lesson = app.NewLessonService(app.LessonDeps{
		Lessons: h.lessons,
		Ledger:  h.ledger,
		Clock:   h.clock,
		IDGen:   idgen.NewSequential("lsn_"),
		Logger:  logger,
	})
	h.payment = app.NewPaymentService(app.PaymentDeps{
		Payments: h.payments,
		Billing:  h.billing,
		Locker:   locker,
		Clock:    h.clock,
		IDGen:    idgen.NewSequential("pay_"),
		Metrics:  h.metrics,
		Logger:   logger,
	})
	h.chargeSv = app.NewChargeService(h.charges, h.clock, idgen.NewSequential("chg_"), logger)
	return h
}

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	march = period.Month{Year: 2024, Month: time.March}
	april = period.Month{Year: 2024, Month: time.April}
)
