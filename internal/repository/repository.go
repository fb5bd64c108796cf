package repository

import "context"

// KeyValueStore is the storage the cart is persisted in. It mirrors the
// browser's local storage contract: string keys, string values, whole-value
// reads and writes.
type KeyValueStore interface {
	// Get returns the value stored under key. A missing key yields an error
	// matching apperrors.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
