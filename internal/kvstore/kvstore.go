// Package kvstore is the persistent key-value collaborator behind the cold
// cache tier. Values are opaque serialized bytes; no schema beyond the key.
// Stores are interface-driven so the cache manager can run against memory in
// tests and Redis or PostgreSQL in deployments without rewiring.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound keeps absent-key handling consistent across implementations.
var ErrNotFound = errors.New("key not found")

// Store is the opaque asynchronous get/set/delete contract.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with a TTL after which the key expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ListKeys returns all live keys with the given prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
