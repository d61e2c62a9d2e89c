package storage

import (
	"time"

	"github.com/pitabwire/barberdesk/data"
)

// Option configures a storage backend.
type Option func(*Options)

// Options holds backend connection configuration.
type Options struct {
	DSN       data.DSN
	Name      string
	MaxAge    time.Duration
	KeyPrefix string
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithDSN(dsn data.DSN) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxAge sets how long written entries live. Zero keeps them forever.
// Backends without expiry support ignore it.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}

// WithKeyPrefix namespaces every key, useful when several deployments share one server.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}
