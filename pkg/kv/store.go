// Package kv provides the durable string key-value store that backs the
// catalog cache. Backends are eventually consistent, offer no cross-key
// transactions and no compare-and-swap; the only conditional write is the
// short-lived lease used to narrow concurrent side effects.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrStoreUnavailable indicates the backend could not complete the operation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is a string to string mapping with no expiry semantics of its own.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put overwrites the value for key.
	Put(ctx context.Context, key, value string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Leaser is implemented by backends that can hold short-lived exclusive leases.
type Leaser interface {
	// AcquireLease sets key to owner if it is not already held.
	// Returns false when another owner holds an unexpired lease.
	AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// ReleaseLease drops the lease if owner still holds it.
	ReleaseLease(ctx context.Context, key, owner string) error
}

// LeaseStore combines Store and Leaser.
type LeaseStore interface {
	Store
	Leaser
}
