package authflowrepo

import (
	"errors"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.Mutex
	states map[string]FlowState
	now    func() time.Time
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]FlowState),
		now:    time.Now,
	}
}

func (r *InMemoryRepo) Put(state string, flow FlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state] = flow
	return nil
}

func (r *InMemoryRepo) Take(state string) (FlowState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, ok := r.states[state]
	if !ok {
		return FlowState{}, ErrStateNotFound
	}
	delete(r.states, state)
	if flow.Expired(r.now()) {
		return FlowState{}, ErrStateNotFound
	}
	return flow, nil
}

func (r *InMemoryRepo) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for state, flow := range r.states {
		if flow.Expired(now) {
			delete(r.states, state)
			n++
		}
	}
	return n
}

// Len returns the number of pending flows.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
