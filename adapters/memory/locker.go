package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// keyLock is a context-aware mutex for one key. refs counts holders and
// waiters so idle keys can be dropped.
type keyLock struct {
	sem  chan struct{}
	refs int
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// Locker is an in-process implementation of ports.Locker.
// Each key gets its own lock; shards only guard the key table.
type Locker struct {
	shards    []*lockShard
	numShards int
}

// NewLocker creates a Locker with numShards key tables (default: 32).
func NewLocker(numShards int) *Locker {
	if numShards <= 0 {
		numShards = 32
	}
	l := &Locker{shards: make([]*lockShard, numShards), numShards: numShards}
	for i := range l.shards {
		l.shards[i] = &lockShard{locks: make(map[string]*keyLock)}
	}
	return l
}

func (l *Locker) getShard(key string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(l.numShards)]
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	shard := l.getShard(key)

	shard.mu.Lock()
	kl, ok := shard.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		shard.locks[key] = kl
	}
	kl.refs++
	shard.mu.Unlock()

	release := func() {
		shard.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(shard.locks, key)
		}
		shard.mu.Unlock()
	}

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			release()
		})
	}, nil
}

// Held returns the number of keys currently locked or waited on.
func (l *Locker) Held() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}

// Ensure interface compliance.
var _ ports.Locker = (*Locker)(nil)
