package storage

// Store is a minimal key-value abstraction over whatever persistent
// storage the device offers. The discovery core keeps three records in
// it: the node identity, the cached node list and the manual overrides.
// All access is best-effort; callers log failures and carry on.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key; deleting an absent key is not an error.
	Delete(key string) error

	// Close releases any underlying resources.
	Close() error
}
