package alerting

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually-advanced clock for deterministic TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGuard_TryAcquireRelease(t *testing.T) {
	g := NewGuard(GuardConfig{Clock: newFakeClock()})

	if !g.TryAcquire("M-001") {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire("M-001") {
		t.Fatal("second acquire for the same machine should fail")
	}
	if !g.TryAcquire("M-002") {
		t.Fatal("acquire for a different machine should succeed")
	}

	g.Release("M-001")
	if !g.TryAcquire("M-001") {
		t.Fatal("acquire after release should succeed")
	}
}

func TestGuard_ExpiredEntryReclaimed(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(GuardConfig{TTL: 60 * time.Second, Clock: clock})

	if !g.TryAcquire("M-001") {
		t.Fatal("first acquire should succeed")
	}

	clock.Advance(59 * time.Second)
	if g.TryAcquire("M-001") {
		t.Fatal("acquire before TTL expiry should fail")
	}

	clock.Advance(2 * time.Second)
	if !g.TryAcquire("M-001") {
		t.Fatal("acquire after TTL expiry should reclaim the leaked entry")
	}
}

func TestGuard_SweepRemovesExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	g := NewGuard(GuardConfig{TTL: 60 * time.Second, Clock: clock})

	g.TryAcquire("M-001")
	g.TryAcquire("M-002")
	clock.Advance(30 * time.Second)
	g.TryAcquire("M-003")

	clock.Advance(31 * time.Second)
	g.sweep()

	if got := g.Len(); got != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", got)
	}
	if g.TryAcquire("M-003") {
		t.Fatal("unexpired entry should survive the sweep")
	}
}

func TestGuard_ConcurrentAcquireSingleWinner(t *testing.T) {
	g := NewGuard(GuardConfig{Clock: newFakeClock()})

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("M-001") {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestGuard_StartStopIdempotent(t *testing.T) {
	g := NewGuard(GuardConfig{TTL: 10 * time.Millisecond, Clock: newFakeClock()})

	g.Start()
	g.Start()
	g.Stop()
	g.Stop()
}
