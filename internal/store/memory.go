// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"rooftrust-engine/internal/models"
)

// Memory is an in-process Store used by tests and single-node development
// setups. It round-trips through JSON so persisted-layout bugs surface the
// same way they would against Postgres.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Save(_ context.Context, state *models.ProjectState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[state.ProjectID] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, projectID string) (*models.ProjectState, error) {
	m.mu.RLock()
	raw, ok := m.data[projectID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var state models.ProjectState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *Memory) ListIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
