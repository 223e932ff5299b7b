// Package storage defines the durable key-value port the cart and catalog
// persist through, plus the adapters the binary can choose between.
package storage

import (
	"context"
	"errors"
)

// Store persists opaque blobs under namespaced keys. Implementations must
// return ErrNotFound for absent keys so callers can fail open to an empty
// state instead of treating a fresh session as an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("storage: key not found")
