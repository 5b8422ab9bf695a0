package round

import (
	"sort"
	"sync"
	"time"

	"fff-console/internal/domain"
)

// Registry tracks the currently connected remote participants. Only the
// transport layer's connect/disconnect events mutate it; reads never block
// writers for long. Participants are marked inactive on disconnect, never
// deleted, so a mid-round drop keeps ownership of an already-recorded
// submission.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*domain.Participant
	now          func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock allows deterministic join timestamps in tests.
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		participants: make(map[string]*domain.Participant),
		now:          now,
	}
}

// Join registers a participant or reactivates a reconnecting one.
func (r *Registry) Join(id, displayName string) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[id]; ok {
		p.DisplayName = displayName
		p.Active = true
		return *p
	}
	p := &domain.Participant{
		ID:          id,
		DisplayName: displayName,
		Active:      true,
		JoinedAt:    r.now(),
	}
	r.participants[id] = p
	return *p
}

// Leave marks a participant inactive. Unknown IDs are ignored.
func (r *Registry) Leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[id]; ok {
		p.Active = false
	}
}

// ActiveCount returns how many participants are currently connected.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.participants {
		if p.Active {
			n++
		}
	}
	return n
}

// Get returns a copy of the participant with the given ID.
func (r *Registry) Get(id string) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Snapshot copies all participants, ordered by join time then ID.
func (r *Registry) Snapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
