package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/barberdesk/storage"
)

// Backend is a Redis-backed storage backend.
type Backend struct {
	client *redis.Client
	maxAge time.Duration

	// ns keeps the durable and tab stores apart when they share a database.
	ns storage.Namespace
}

const (
	connectionTimeout = 5 * time.Second
	scanBatch         = 100
)

// New connects to the redis:// or rediss:// DSN in the options.
func New(opts ...storage.Option) (*Backend, error) {
	o := storage.NewOptions(opts...)

	redisOpts, err := redis.ParseURL(o.DSN.String())
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Backend{
		client: client,
		maxAge: o.MaxAge,
		ns:     storage.NewNamespace(o.Name),
	}, nil
}

func (rb *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := rb.client.Get(ctx, rb.ns.Key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (rb *Backend) Set(ctx context.Context, key string, value string) error {
	return rb.client.Set(ctx, rb.ns.Key(key), value, rb.maxAge).Err()
}

func (rb *Backend) Delete(ctx context.Context, key string) error {
	return rb.client.Del(ctx, rb.ns.Key(key)).Err()
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (rb *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)

	match := rb.ns.Match(prefix)
	for {
		batch, next, err := rb.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return storage.Dedupe(rb.ns.Strip(keys)), nil
		}
		cursor = next
	}
}

func (rb *Backend) Close() error {
	return rb.client.Close()
}
