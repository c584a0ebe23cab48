/*
scheduler.go - Idle session sweeper

PURPOSE:
  Sessions live in memory. The sweeper removes sessions that have not been
  touched for SessionTTL so abandoned negotiations do not pile up, and drops
  stale rate limiter buckets on the same schedule.

DESIGN:
  - robfig/cron schedule (standard expression or descriptor, e.g. "@every 10m")
  - Sessions with an analysis in flight are never swept
  - Each run updates the active/swept session metrics

USAGE:
  sweeper, err := NewSessionSweeper(handler, "@every 10m", 2*time.Hour)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - session/memory.go: Sweep
*/
package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionSweeper evicts idle sessions on a cron schedule.
type SessionSweeper struct {
	Handler  *Handler
	Schedule string
	IdleFor  time.Duration

	cron *cron.Cron
	mu   sync.Mutex
}

// NewSessionSweeper validates the schedule and creates a sweeper.
func NewSessionSweeper(h *Handler, schedule string, idleFor time.Duration) (*SessionSweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &SessionSweeper{Handler: h, Schedule: schedule, IdleFor: idleFor}, nil
}

// Start begins the scheduler.
func (ss *SessionSweeper) Start() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(ss.Schedule, func() { ss.RunNow() }); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	c.Start()
	ss.cron = c

	ss.Handler.Logger.Info("session sweeper started", "schedule", ss.Schedule, "idle_for", ss.IdleFor)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (ss *SessionSweeper) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cron == nil {
		return
	}
	<-ss.cron.Stop().Done()
	ss.cron = nil
	ss.Handler.Logger.Info("session sweeper stopped")
}

// RunNow performs one sweep and returns the number of sessions removed.
func (ss *SessionSweeper) RunNow() int {
	h := ss.Handler
	removed := h.Sessions.Sweep(ss.IdleFor)
	if h.Limiter != nil {
		h.Limiter.Cleanup(ss.IdleFor)
	}

	h.Metrics.SessionsSwept.Add(float64(removed))
	h.Metrics.ActiveSessions.Set(float64(h.Sessions.Len()))
	if removed > 0 {
		h.Logger.Info("idle sessions swept", "removed", removed, "remaining", h.Sessions.Len())
	}
	return removed
}

// NextRun returns when the next sweep is scheduled, or the zero time if the
// sweeper is not running.
func (ss *SessionSweeper) NextRun() time.Time {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.cron == nil {
		return time.Time{}
	}
	entries := ss.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
