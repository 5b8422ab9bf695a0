package round

import (
	"sync"

	"fff-console/internal/domain"
)

// Ledger is the append-only store of answer submissions for the live round.
// Writers are the transport read loops (one per inbound connection); the
// reader is the host-driven flow. Appends never block on host-side work
// beyond the short critical section.
type Ledger struct {
	mu         sync.Mutex
	generation int64
	open       bool
	seen       map[string]struct{}
	entries    []domain.AnswerSubmission
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Record appends a submission. The first submission per participant wins;
// repeats fail with ErrDuplicateSubmission. The ledger accepts entries only
// while the round is open, between Open and Close, so nothing can land before
// the countdown starts or after it expires; anything outside that window, or
// tagged to a cleared generation, fails with ErrStaleRound.
func (l *Ledger) Record(sub domain.AnswerSubmission) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open || sub.Round != l.generation {
		return domain.ErrStaleRound
	}
	if _, ok := l.seen[sub.ParticipantID]; ok {
		return domain.ErrDuplicateSubmission
	}
	l.seen[sub.ParticipantID] = struct{}{}
	l.entries = append(l.entries, sub)
	return nil
}

// Count returns the number of submissions recorded for the live round.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Generation returns the live round generation.
func (l *Ledger) Generation() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Snapshot copies the current entries in append order.
func (l *Ledger) Snapshot() []domain.AnswerSubmission {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AnswerSubmission, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops all entries and advances to the given generation, leaving the
// ledger closed until Open. Any late submission still tagged with the old
// generation is rejected by Record.
func (l *Ledger) Clear(generation int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation = generation
	l.open = false
	l.seen = make(map[string]struct{})
	l.entries = l.entries[:0]
}

// Open starts accepting submissions for the live generation. Called when the
// countdown starts, never before.
func (l *Ledger) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
}

// Close stops accepting submissions without dropping what was recorded.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
}
