package adapters

import (
	"errors"
	"testing"
)

func TestNoOpStorageAdapter(t *testing.T) {
	adapter := NewNoOpStorageAdapter()

	if err := adapter.Set("key", []byte("value")); err != nil {
		t.Errorf("Set should always return nil, got: %v", err)
	}

	if _, err := adapter.Get("key"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get should report absent keys, got: %v", err)
	}

	if err := adapter.Delete("key"); err != nil {
		t.Errorf("Delete should always return nil, got: %v", err)
	}

	if err := adapter.Close(); err != nil {
		t.Errorf("Close should always return nil, got: %v", err)
	}
}
