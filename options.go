package barberdesk

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/client"
	"github.com/pitabwire/barberdesk/config"
	"github.com/pitabwire/barberdesk/storage"
)

// Option customises a Desk before its components are built.
type Option func(ctx context.Context, d *Desk)

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg *config.ConfigurationDefault) Option {
	return func(_ context.Context, d *Desk) {
		if cfg != nil {
			d.cfg = cfg
		}
	}
}

// WithLogger appends logger options applied after the configured ones.
func WithLogger(opts ...util.Option) Option {
	return func(_ context.Context, d *Desk) {
		d.logOpts = append(d.logOpts, opts...)
	}
}

// WithDurableBackend uses backend for the durable store instead of opening
// the configured DSN. The desk takes ownership and closes it.
func WithDurableBackend(backend storage.Backend) Option {
	return func(_ context.Context, d *Desk) {
		d.durableBackend = backend
	}
}

// WithTabBackend uses backend for the tab store.
func WithTabBackend(backend storage.Backend) Option {
	return func(_ context.Context, d *Desk) {
		d.tabBackend = backend
	}
}

// WithHTTPOptions appends options to the HTTP client talking to the backend.
func WithHTTPOptions(opts ...client.HTTPOption) Option {
	return func(_ context.Context, d *Desk) {
		d.httpOpts = append(d.httpOpts, opts...)
	}
}

// WithLogoutHook runs hook after every sign out, forced or not.
func WithLogoutHook(hook func(ctx context.Context)) Option {
	return func(_ context.Context, d *Desk) {
		d.logoutHook = hook
	}
}
