package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is the in-process deduplicator. Expired entries are evicted
// lazily on lookup and by a periodic sweep.
type MemoryGuard struct {
	entries     map[Key]time.Time
	mu          sync.Mutex
	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	now         func() time.Time
}

// NewMemoryGuard creates a memory guard that sweeps expired entries every
// sweepInterval.
func NewMemoryGuard(sweepInterval time.Duration) *MemoryGuard {
	g := &MemoryGuard{
		entries:   make(map[Key]time.Time),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}

	g.sweepTicker = time.NewTicker(sweepInterval)
	go g.sweepLoop()

	return g
}

// TryAcquire implements Guard. The check-and-insert is atomic under the
// guard's mutex, which also makes it the mutual-exclusion gate between
// overlapping evaluation cycles.
func (g *MemoryGuard) TryAcquire(_ context.Context, key Key, cooldown time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, exists := g.entries[key]; exists {
		if now.Before(expiry) {
			return false, nil
		}
		delete(g.entries, key)
	}

	g.entries[key] = now.Add(cooldown)
	return true, nil
}

// Len returns the number of live entries, counting expired ones not yet
// swept.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryGuard) sweepLoop() {
	for {
		select {
		case <-g.sweepTicker.C:
			g.sweep()
		case <-g.stopSweep:
			g.sweepTicker.Stop()
			return
		}
	}
}

func (g *MemoryGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, expiry := range g.entries {
		if !now.Before(expiry) {
			delete(g.entries, key)
		}
	}
}

// Stop stops the sweep goroutine.
func (g *MemoryGuard) Stop() {
	close(g.stopSweep)
}
