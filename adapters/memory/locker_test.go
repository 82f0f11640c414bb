package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryoda0314/tutoring-app-sub000/adapters/memory"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	locker := memory.NewLocker(0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "s-1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("%d holders at once, want 1", maxSeen)
	}
	if held := locker.Held(); held != 0 {
		t.Errorf("Held() = %d after all unlocks, want 0", held)
	}
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := memory.NewLocker(1) // single shard: keys share a table
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "s-2")
	if err != nil {
		t.Fatalf("lock on another key blocked: %v", err)
	}
	unlockB()
}

func TestLocker_ContextCancel(t *testing.T) {
	locker := memory.NewLocker(0)

	unlock, _ := locker.Lock(context.Background(), "s-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "s-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}

	unlock()
	unlock() // second call is a no-op

	if held := locker.Held(); held != 0 {
		t.Errorf("Held() = %d, want 0", held)
	}
}
