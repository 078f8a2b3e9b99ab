package storage

import "sync"

// MemStore is an in-memory Store. It backs tests and serves as the
// degraded fallback when the file store cannot be created.
type MemStore struct {
	mutex  sync.RWMutex
	values map[string][]byte
	closed bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string][]byte)}
}

// Get implements the Store interface
func (ms *MemStore) Get(key string) ([]byte, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}
	value, ok := ms.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements the Store interface
func (ms *MemStore) Set(key string, value []byte) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	ms.values[key] = stored
	return nil
}

// Delete implements the Store interface
func (ms *MemStore) Delete(key string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}
	delete(ms.values, key)
	return nil
}

// Close implements the Store interface
func (ms *MemStore) Close() error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.closed = true
	return nil
}
