package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps audit events in process memory for tests and
// single-node deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.BeneficiaryID] = append(s.events[event.BeneficiaryID], event)
	return nil
}

func (s *InMemoryStore) ListByBeneficiary(_ context.Context, beneficiaryID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[beneficiaryID]...), nil
}
