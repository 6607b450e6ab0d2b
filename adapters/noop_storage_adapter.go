package adapters

// NoOpStorageAdapter is a storage adapter that performs no operations.
// Used when local persistence is disabled.
type NoOpStorageAdapter struct{}

var _ StorageAdapter = (*NoOpStorageAdapter)(nil)

// NewNoOpStorageAdapter creates a new NoOpStorageAdapter instance.
func NewNoOpStorageAdapter() *NoOpStorageAdapter {
	return &NoOpStorageAdapter{}
}

// Set does nothing and always returns nil.
func (n *NoOpStorageAdapter) Set(key string, value []byte) error {
	return nil
}

// Get always reports the key as absent.
func (n *NoOpStorageAdapter) Get(key string) ([]byte, error) {
	return nil, ErrKeyNotFound
}

// Delete does nothing and always returns nil.
func (n *NoOpStorageAdapter) Delete(key string) error {
	return nil
}

// Close does nothing and always returns nil.
func (n *NoOpStorageAdapter) Close() error {
	return nil
}
