package handlers

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const floodSweepInterval = 10 * time.Minute

// FloodGuard tracks the last message time per user and rejects messages that
// arrive too close together. A rejected message still refreshes the
// last-seen mark, so a burst keeps being suppressed until the sender pauses
// for a full interval.
type FloodGuard struct {
	mu       sync.Mutex
	interval time.Duration
	lastSeen map[int64]time.Time
}

func NewFloodGuard(interval time.Duration) *FloodGuard {
	return &FloodGuard{
		interval: interval,
		lastSeen: make(map[int64]time.Time),
	}
}

// Admit reports whether the user's message may enter the pipeline.
func (g *FloodGuard) Admit(userID int64, now time.Time) bool {
	if g.interval <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastSeen[userID]
	g.lastSeen[userID] = now
	if !seen {
		return true
	}
	return now.Sub(last) >= g.interval
}

// Sweep evicts users idle longer than retention and returns the eviction
// count.
func (g *FloodGuard) Sweep(retention time.Duration, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for userID, last := range g.lastSeen {
		if now.Sub(last) > retention {
			delete(g.lastSeen, userID)
			evicted++
		}
	}
	return evicted
}

func (g *FloodGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastSeen)
}

// FloodJanitor periodically sweeps the guard so the last-seen map does not
// grow with every user the bot has ever observed.
type FloodJanitor struct {
	guard      *FloodGuard
	retention  time.Duration
	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

func NewFloodJanitor(guard *FloodGuard, retention time.Duration) *FloodJanitor {
	if retention <= 0 {
		retention = time.Hour
	}
	return &FloodJanitor{
		guard:     guard,
		retention: retention,
	}
}

func (j *FloodJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}
	j.runtimeCtx, j.cancel = context.WithCancel(ctx)
	j.started = true

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(floodSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-j.runtimeCtx.Done():
				return
			case <-ticker.C:
				if evicted := j.guard.Sweep(j.retention, time.Now()); evicted > 0 {
					log.WithField("object", "FloodJanitor").Tracef("evicted %d idle flood entries", evicted)
				}
			}
		}
	}()
	return nil
}

func (j *FloodJanitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return nil
	}
	j.started = false
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
