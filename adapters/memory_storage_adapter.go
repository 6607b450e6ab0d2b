package adapters

import "sync"

// MemoryStorageAdapter keeps values in process memory.
// Values survive client re-creation within a process but not a restart.
type MemoryStorageAdapter struct {
	mu     sync.RWMutex
	values map[string][]byte
	closed bool
}

var _ StorageAdapter = (*MemoryStorageAdapter)(nil)

// NewMemoryStorageAdapter creates an empty in-memory store.
func NewMemoryStorageAdapter() *MemoryStorageAdapter {
	return &MemoryStorageAdapter{values: make(map[string][]byte)}
}

func (m *MemoryStorageAdapter) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	return nil
}

func (m *MemoryStorageAdapter) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryStorageAdapter) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	delete(m.values, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *MemoryStorageAdapter) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// Close marks the store closed. Closing twice is safe.
func (m *MemoryStorageAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
