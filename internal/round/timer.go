package round

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is the single countdown that drives a round. Remaining time is
// always derived from the start instant against the injected clock, never
// accumulated tick by tick, so a late tick only delays the display, not the
// authoritative expiry.
type Timer struct {
	clock    clockwork.Clock
	duration time.Duration
	cadence  time.Duration

	mu        sync.Mutex
	startedAt time.Time
	running   bool
	stopCh    chan struct{}
}

func NewTimer(clock clockwork.Clock, duration, cadence time.Duration) *Timer {
	return &Timer{clock: clock, duration: duration, cadence: cadence}
}

// Start records the round start instant and begins ticking. onTick receives
// the remaining time at the display cadence; onExpire fires exactly once when
// elapsed >= duration. Starting an already-running timer restarts it.
func (t *Timer) Start(onTick func(remaining time.Duration), onExpire func()) time.Time {
	t.mu.Lock()
	if t.running {
		close(t.stopCh)
	}
	t.startedAt = t.clock.Now()
	t.running = true
	t.stopCh = make(chan struct{})
	startedAt := t.startedAt
	stopCh := t.stopCh
	t.mu.Unlock()

	go t.run(startedAt, stopCh, onTick, onExpire)
	return startedAt
}

func (t *Timer) run(startedAt time.Time, stopCh chan struct{}, onTick func(time.Duration), onExpire func()) {
	ticker := t.clock.NewTicker(t.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.Chan():
			elapsed := t.clock.Now().Sub(startedAt)
			if elapsed >= t.duration {
				// A countdown superseded by a restart must not fire.
				if t.stopIf(stopCh) && onExpire != nil {
					onExpire()
				}
				return
			}
			if onTick != nil {
				onTick(t.duration - elapsed)
			}
		}
	}
}

// Stop halts ticking. Idempotent; safe after expiry and from abort paths.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
}

// stopIf stops the countdown only while stopCh identifies the current run.
func (t *Timer) stopIf(stopCh chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.stopCh != stopCh {
		return false
	}
	t.running = false
	close(t.stopCh)
	return true
}

// Running reports whether the countdown is live.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// StartedAt returns the recorded round start instant and whether the timer
// was ever started.
func (t *Timer) StartedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt, !t.startedAt.IsZero()
}

// Remaining derives the time left as of now. Zero after expiry or before
// the first start.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	startedAt := t.startedAt
	t.mu.Unlock()
	if startedAt.IsZero() {
		return 0
	}
	left := t.duration - t.clock.Now().Sub(startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Duration returns the configured countdown length.
func (t *Timer) Duration() time.Duration {
	return t.duration
}
