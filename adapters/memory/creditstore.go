package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/domain/makeup"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// creditShard holds the credits of the students hashed to it.
type creditShard struct {
	mu        sync.Mutex
	byStudent map[string][]makeup.Credit
}

// CreditStore is a sharded in-memory implementation of ports.CreditStore.
// A consume holds only its student's shard, so students on other shards
// never wait on it.
type CreditStore struct {
	shards    []*creditShard
	numShards int

	ownerMu sync.RWMutex
	owner   map[string]string // credit ID -> student ID
}

// CreditStoreConfig configures the credit store.
type CreditStoreConfig struct {
	NumShards int // Number of shards (default: 32)
}

// NewCreditStore creates a new sharded in-memory credit store.
func NewCreditStore(cfg CreditStoreConfig) *CreditStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}

	s := &CreditStore{
		shards:    make([]*creditShard, cfg.NumShards),
		numShards: cfg.NumShards,
		owner:     make(map[string]string),
	}
	for i := range s.shards {
		s.shards[i] = &creditShard{byStudent: make(map[string][]makeup.Credit)}
	}
	return s
}

// getShard returns the shard for a student using consistent hashing.
func (s *CreditStore) getShard(studentID string) *creditShard {
	h := fnv.New32a()
	h.Write([]byte(studentID))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Create stores a new credit.
func (s *CreditStore) Create(ctx context.Context, c makeup.Credit) error {
	s.ownerMu.Lock()
	if _, exists := s.owner[c.ID]; exists {
		s.ownerMu.Unlock()
		return ErrDuplicate
	}
	s.owner[c.ID] = c.StudentID
	s.ownerMu.Unlock()

	shard := s.getShard(c.StudentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.byStudent[c.StudentID] = append(shard.byStudent[c.StudentID], c)
	return nil
}

// ListByStudent returns a copy of every credit of the student, soonest expiry first.
func (s *CreditStore) ListByStudent(ctx context.Context, studentID string) ([]makeup.Credit, error) {
	shard := s.getShard(studentID)
	shard.mu.Lock()
	out := make([]makeup.Credit, len(shard.byStudent[studentID]))
	copy(out, shard.byStudent[studentID])
	shard.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Consume plans and applies a FIFO debit under the shard lock.
func (s *CreditStore) Consume(ctx context.Context, studentID string, minutes int, now time.Time) ([]makeup.Debit, error) {
	shard := s.getShard(studentID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updated, debits, err := makeup.Consume(shard.byStudent[studentID], minutes, now)
	if err != nil {
		return nil, err
	}
	shard.byStudent[studentID] = updated
	return debits, nil
}

// Release returns debited minutes to their credits.
// Minutes never exceed what the credit was granted with.
func (s *CreditStore) Release(ctx context.Context, debits []makeup.Debit) error {
	for _, d := range debits {
		s.ownerMu.RLock()
		studentID, ok := s.owner[d.CreditID]
		s.ownerMu.RUnlock()
		if !ok {
			return fmt.Errorf("release credit %s: %w", d.CreditID, ErrNotFound)
		}

		shard := s.getShard(studentID)
		shard.mu.Lock()
		credits := shard.byStudent[studentID]
		for i := range credits {
			if credits[i].ID != d.CreditID {
				continue
			}
			credits[i].TotalMinutes += d.Minutes
			if credits[i].TotalMinutes > credits[i].GrantedMinutes {
				credits[i].TotalMinutes = credits[i].GrantedMinutes
			}
		}
		shard.mu.Unlock()
	}
	return nil
}

// Ensure interface compliance.
var _ ports.CreditStore = (*CreditStore)(nil)
