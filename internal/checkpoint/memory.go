package checkpoint

import (
	"sync"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
)

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	props map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{props: make(map[string]string)}
}

func (s *MemoryStore) Get(label string) (entity.CheckpointState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.props[PropertyKey(label)]
	if !ok {
		return entity.CheckpointState{}, nil
	}
	return decodeState(raw), nil
}

func (s *MemoryStore) Save(label string, state entity.CheckpointState) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[PropertyKey(label)] = raw
	return nil
}

func (s *MemoryStore) Clear(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, PropertyKey(label))
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SetRaw stores an arbitrary value for a label, bypassing encoding. Tests
// use it to simulate corrupt state.
func (s *MemoryStore) SetRaw(label, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[PropertyKey(label)] = raw
}
