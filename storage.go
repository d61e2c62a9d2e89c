package barberdesk

import (
	"context"
	"fmt"
	"slices"

	"github.com/pitabwire/barberdesk/data"
	"github.com/pitabwire/barberdesk/storage"
	"github.com/pitabwire/barberdesk/storage/postgres"
	"github.com/pitabwire/barberdesk/storage/redis"
	"github.com/pitabwire/barberdesk/storage/valkey"
)

// OpenStorage connects the backend the DSN scheme names. An empty DSN or
// mem:// gives a process local store.
func OpenStorage(ctx context.Context, dsn data.DSN, opts ...storage.Option) (storage.Backend, error) {
	opts = append(slices.Clone(opts), storage.WithDSN(dsn))

	var (
		backend storage.Backend
		err     error
	)
	switch {
	case dsn == "", dsn.IsMem():
		return storage.NewInMemory(opts...), nil
	case dsn.IsFile():
		backend, err = asBackend(storage.NewFile(dsn.Path()))
	case dsn.IsRedis():
		backend, err = asBackend(redis.New(opts...))
	case dsn.IsValkey():
		backend, err = asBackend(valkey.New(opts...))
	case dsn.IsPostgres():
		backend, err = asBackend(postgres.New(ctx, opts...))
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", dsn.Scheme())
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", dsn.Scheme(), err)
	}
	return backend, nil
}

// asBackend keeps a failed constructor from yielding a non-nil interface
// around a nil pointer.
func asBackend[B storage.Backend](b B, err error) (storage.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
