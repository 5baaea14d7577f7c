package pending

import (
	"context"
	"sync"
	"time"

	"github.com/copperline/barback/internal/domain"
)

// Memory is the in-process registry backend. Entries older than TTL are
// dropped on read, so a long-idle registry still answers correctly after
// the fact even though nothing sweeps it.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*domain.PendingAction
	now     func() time.Time
}

// NewMemory creates an empty in-process registry.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*domain.PendingAction),
		now:     time.Now,
	}
}

func (m *Memory) Put(_ context.Context, a *domain.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.entries[cp.MessageID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, messageID string) (*domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.entries[messageID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(a.CreatedAt) > TTL {
		delete(m.entries, messageID)
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) Delete(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, messageID)
	return nil
}

func (m *Memory) Size(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.entries {
		if m.now().Sub(a.CreatedAt) <= TTL {
			n++
		}
	}
	return n, nil
}
