package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ryoda0314/tutoring-app-sub000/domain/payment"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

type paymentKey struct {
	studentID string
	month     period.Month
}

// PaymentStore is an in-memory implementation of ports.PaymentStore.
type PaymentStore struct {
	mu       sync.RWMutex
	payments map[paymentKey]payment.MonthlyPayment
}

// NewPaymentStore creates a new in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[paymentKey]payment.MonthlyPayment)}
}

// Get returns the record for a student and month.
func (s *PaymentStore) Get(ctx context.Context, studentID string, month period.Month) (payment.MonthlyPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[paymentKey{studentID, month}]
	if !ok {
		return payment.MonthlyPayment{}, ErrNotFound
	}
	return p, nil
}

// Save upserts by (student, month). The first record's ID wins.
func (s *PaymentStore) Save(ctx context.Context, p payment.MonthlyPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := paymentKey{p.StudentID, p.Month}
	if old, ok := s.payments[k]; ok {
		p.ID = old.ID
		p.CreatedAt = old.CreatedAt
	}
	s.payments[k] = p
	return nil
}

// ListByStudent returns a student's records, newest month first.
func (s *PaymentStore) ListByStudent(ctx context.Context, studentID string) ([]payment.MonthlyPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []payment.MonthlyPayment
	for k, p := range s.payments {
		if k.studentID == studentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].Month.Before(out[i].Month)
	})
	return out, nil
}

// Ensure interface compliance.
var _ ports.PaymentStore = (*PaymentStore)(nil)
