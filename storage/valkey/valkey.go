package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/barberdesk/data"
	"github.com/pitabwire/barberdesk/storage"
)

// Backend is a Valkey-backed storage backend using the official Valkey client.
type Backend struct {
	client valkey.Client
	maxAge time.Duration

	// ns keeps the durable and tab stores apart when they share a database.
	ns storage.Namespace
}

const (
	connectionTimeout = 5 * time.Second
	scanBatch         = 100
)

// New connects to the valkey:// (or redis://) DSN in the options.
func New(opts ...storage.Option) (*Backend, error) {
	o := storage.NewOptions(opts...)

	dsn := o.DSN
	if dsn.IsValkey() {
		dsn = dsn.WithScheme(data.RedisScheme)
	}

	valkeyOpts, err := valkey.ParseURL(dsn.String())
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if pingErr := client.Do(ctx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, pingErr
	}

	return &Backend{
		client: client,
		maxAge: o.MaxAge,
		ns:     storage.NewNamespace(o.Name),
	}, nil
}

func (vb *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	resp := vb.client.Do(ctx, vb.client.B().Get().Key(vb.ns.Key(key)).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}

	val, err := resp.ToString()
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (vb *Backend) Set(ctx context.Context, key string, value string) error {
	if vb.maxAge > 0 {
		// Valkey Ex() expects seconds, not duration
		seconds := int64(vb.maxAge.Seconds())
		if seconds == 0 {
			seconds = 1
		}
		return vb.client.Do(ctx, vb.client.B().Set().Key(vb.ns.Key(key)).Value(value).ExSeconds(seconds).Build()).Error()
	}

	return vb.client.Do(ctx, vb.client.B().Set().Key(vb.ns.Key(key)).Value(value).Build()).Error()
}

func (vb *Backend) Delete(ctx context.Context, key string) error {
	return vb.client.Do(ctx, vb.client.B().Del().Key(vb.ns.Key(key)).Build()).Error()
}

func (vb *Backend) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)

	match := vb.ns.Match(prefix)
	for {
		cmd := vb.client.B().Scan().Cursor(cursor).Match(match).Count(scanBatch).Build()
		entry, err := vb.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, err
		}
		keys = append(keys, entry.Elements...)
		if entry.Cursor == 0 {
			return storage.Dedupe(vb.ns.Strip(keys)), nil
		}
		cursor = entry.Cursor
	}
}

func (vb *Backend) Close() error {
	vb.client.Close()
	return nil
}
