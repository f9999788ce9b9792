// Package kv provides the key-value backends that hold the audit collections.
// Values are JSON documents stored under string keys.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// KV is the interface for a persistent key-value store.
type KV interface {
	// Get loads the raw JSON stored under key. Missing keys return ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
