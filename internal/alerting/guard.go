package alerting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/maxdesanta/ac02-be-cron-job/internal/types"
)

// DefaultGuardTTL is how long a guard entry stays valid before it is
// considered leaked and reclaimed.
const DefaultGuardTTL = 60 * time.Second

// Guard is a short-lived, per-machine mutual-exclusion flag preventing two
// concurrent alert-generation attempts for the same machine within one
// process. It is best-effort concurrency control: it does not prevent
// duplicate processing across multiple running instances of the service
// (the alert table's partial unique index covers that case).
//
// Acquired entries must be released on every exit path; a periodic sweep
// removes entries older than the TTL as a safety net against leaks.
// Guards are injectable instances, not package state, so tests can run
// isolated guards side by side.
type Guard struct {
	mu      sync.Mutex
	entries map[string]time.Time

	ttl    time.Duration
	clock  types.Clock
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// GuardConfig holds the configuration for creating a Guard.
type GuardConfig struct {
	TTL    time.Duration // Defaults to DefaultGuardTTL.
	Clock  types.Clock   // Defaults to the real clock.
	Logger *slog.Logger
}

// NewGuard creates a Guard. Call Start to run the background sweeper and
// Stop to halt it.
func NewGuard(cfg GuardConfig) *Guard {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
	}
}

// TryAcquire records the current instant for the machine and returns true,
// unless an unexpired entry already exists. Expired entries are reclaimed
// lazily here as well as by the sweeper.
func (g *Guard) TryAcquire(machineID string) bool {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if started, ok := g.entries[machineID]; ok {
		if now.Sub(started) < g.ttl {
			return false
		}
		// Expired entry: the holder leaked it, reclaim.
		g.logger.Warn("reclaiming expired processing guard",
			"machine_id", machineID,
			"held_for", now.Sub(started),
		)
	}

	g.entries[machineID] = now
	return true
}

// Release removes the entry for the machine unconditionally.
func (g *Guard) Release(machineID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, machineID)
}

// Len returns the number of live entries. Intended for tests and metrics.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Start launches the background sweeper, which removes entries older than
// the TTL at TTL intervals. Calling Start twice without Stop is a no-op.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		return
	}
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.sweepLoop(g.stop, g.done)
}

// Stop halts the background sweeper and waits for it to exit.
func (g *Guard) Stop() {
	g.mu.Lock()
	stop, done := g.stop, g.done
	g.stop, g.done = nil, nil
	g.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (g *Guard) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep removes every entry older than the TTL.
func (g *Guard) sweep() {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for machineID, started := range g.entries {
		if now.Sub(started) >= g.ttl {
			delete(g.entries, machineID)
			g.logger.Warn("swept leaked processing guard",
				"machine_id", machineID,
				"held_for", now.Sub(started),
			)
		}
	}
}
