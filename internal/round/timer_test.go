package round

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTimerRemainingDerivedFromClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 20*time.Second, 100*time.Millisecond)

	if timer.Remaining() != 0 {
		t.Fatalf("expected zero remaining before start, got %v", timer.Remaining())
	}

	startedAt := timer.Start(nil, nil)
	if !startedAt.Equal(clock.Now()) {
		t.Fatalf("start instant not recorded from clock")
	}

	clock.Advance(5 * time.Second)
	if timer.Remaining() != 15*time.Second {
		t.Fatalf("expected 15s remaining, got %v", timer.Remaining())
	}

	clock.Advance(30 * time.Second)
	if timer.Remaining() != 0 {
		t.Fatalf("expected zero remaining after expiry, got %v", timer.Remaining())
	}
	timer.Stop()
}

func TestTimerExpiresOnceAtDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, time.Second, 100*time.Millisecond)

	expired := make(chan struct{})
	timer.Start(nil, func() { close(expired) })

	clock.BlockUntil(1)
	clock.Advance(999 * time.Millisecond)
	select {
	case <-expired:
		t.Fatalf("expired before the configured duration")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(200 * time.Millisecond)
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not expire")
	}
	if timer.Running() {
		t.Fatalf("timer still running after expiry")
	}
}

func TestTimerStopIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, time.Second, 100*time.Millisecond)

	expired := make(chan struct{})
	timer.Start(nil, func() { close(expired) })
	clock.BlockUntil(1)

	timer.Stop()
	timer.Stop() // safe to call again

	clock.Advance(5 * time.Second)
	select {
	case <-expired:
		t.Fatalf("stopped timer must not expire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerRestartReplacesCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := NewTimer(clock, 10*time.Second, 100*time.Millisecond)

	timer.Start(nil, nil)
	clock.Advance(4 * time.Second)

	restartAt := timer.Start(nil, nil)
	if !restartAt.Equal(clock.Now()) {
		t.Fatalf("restart did not re-record the start instant")
	}
	if timer.Remaining() != 10*time.Second {
		t.Fatalf("expected full duration after restart, got %v", timer.Remaining())
	}
	timer.Stop()
}
