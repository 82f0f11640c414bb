package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ryoda0314/tutoring-app-sub000/domain/billing"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// ChargeStore is an in-memory implementation of ports.ChargeStore.
type ChargeStore struct {
	mu      sync.RWMutex
	charges map[string]billing.OtherCharge
}

// NewChargeStore creates a new in-memory charge store.
func NewChargeStore() *ChargeStore {
	return &ChargeStore{charges: make(map[string]billing.OtherCharge)}
}

// Create stores a new charge.
func (s *ChargeStore) Create(ctx context.Context, c billing.OtherCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.charges[c.ID]; exists {
		return ErrDuplicate
	}
	s.charges[c.ID] = c
	return nil
}

// Get retrieves a charge by ID.
func (s *ChargeStore) Get(ctx context.Context, id string) (billing.OtherCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.charges[id]
	if !ok {
		return billing.OtherCharge{}, ErrNotFound
	}
	return c, nil
}

// Delete removes a charge.
func (s *ChargeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charges[id]; !ok {
		return ErrNotFound
	}
	delete(s.charges, id)
	return nil
}

// ListByStudentMonth returns one invoice's charges ordered by creation time then ID.
func (s *ChargeStore) ListByStudentMonth(ctx context.Context, studentID string, month period.Month) ([]billing.OtherCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.OtherCharge
	for _, c := range s.charges {
		if c.StudentID == studentID && c.Month == month {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ensure interface compliance.
var _ ports.ChargeStore = (*ChargeStore)(nil)
