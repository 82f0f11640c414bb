// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// ID prefixes per record kind, so an id tells what it points at.
const (
	PrefixLesson  = "lsn_"
	PrefixCredit  = "crd_"
	PrefixCharge  = "chg_"
	PrefixPayment = "pay_"
)

// UUID generates prefixed UUIDs.
type UUID struct {
	Prefix string
}

// ForKind returns a generator for one record kind.
func ForKind(prefix string) UUID {
	return UUID{Prefix: prefix}
}

// New generates a new UUID v4.
func (g UUID) New() string {
	return g.Prefix + uuid.New().String()
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + strconv.FormatUint(n, 10)
}

// Reset resets the counter.
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
