package ports

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by RecordStore.Load when the key does not exist.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore defines durable key-value storage for serialized records.
// Values are opaque bytes so the same store can back the workflow snapshot
// and the artifacts of the development backend.
type RecordStore interface {
	// Save writes the value under key, overwriting any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the value stored under key.
	// Returns ErrRecordNotFound if the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys.
	List(ctx context.Context) ([]string, error)
}
