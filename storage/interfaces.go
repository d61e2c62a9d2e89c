package storage

import "context"

// Backend is a raw key value store. Implementations may fail; callers outside
// this package go through a Store instead.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Store is a key value store that never fails. Unavailable or failing
// backends read as empty and swallow writes.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string)
	Remove(ctx context.Context, key string)
	// RemoveWithPrefix deletes every key starting with prefix and reports how many went.
	RemoveWithPrefix(ctx context.Context, prefix string) int
	Keys(ctx context.Context, prefix string) []string
}

// Manager holds the two stores the application persists through.
type Manager interface {
	// Durable survives restarts of the process.
	Durable() Store
	// Tab lives only as long as the current session of the process.
	Tab() Store
	Close() error
}
