package adapters

// StorageAdapter is a string-keyed durable store for opaque blobs.
// Implement this interface to use custom storage backends (database, Redis, S3, etc.).
//
// Callers use disjoint keys, so implementations only need to be safe for
// concurrent use, not to coordinate between keys.
type StorageAdapter interface {
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Get returns the value stored under key.
	//
	// Returns ErrKeyNotFound if the key is absent.
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases resources held by the adapter.
	Close() error
}
