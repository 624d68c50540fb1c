package events

import (
	"context"
	"sync"
)

// Memory records events in process; test double for RedisNotifier.
type Memory struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Event  string
	UserID string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, event, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Recorded{Event: event, UserID: userID})
}

func (m *Memory) All() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recorded, len(m.events))
	copy(out, m.events)
	return out
}
