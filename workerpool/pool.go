package workerpool

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/config"
)

// ErrPoolClosed is returned when work is submitted after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// Options defines configurable options for the worker pool.
type Options struct {
	PoolCount      int
	Capacity       int
	ExpiryDuration time.Duration
	Nonblocking    bool
	PanicHandler   func(any)
	Logger         *util.LogEntry
}

// Option defines a function that configures worker pool options.
type Option func(*Options)

// WithPoolCount sets the number of pools, more than one builds an ants.MultiPool.
func WithPoolCount(count int) Option {
	return func(opts *Options) {
		opts.PoolCount = count
	}
}

// WithCapacity sets the number of workers per pool.
func WithCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.Capacity = capacity
	}
}

// WithExpiryDuration sets how long idle workers are kept.
func WithExpiryDuration(duration time.Duration) Option {
	return func(opts *Options) {
		opts.ExpiryDuration = duration
	}
}

// WithNonblocking makes Submit fail instead of waiting when every worker is busy.
func WithNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

// WithPanicHandler sets a handler for panicking tasks.
func WithPanicHandler(handler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

// WithLogger sets the logger ants reports through.
func WithLogger(logger *util.LogEntry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func defaultOptions(ctx context.Context, cfg config.ConfigurationWorkerPool) *Options {
	log := util.Log(ctx)
	o := &Options{
		PoolCount:      1,
		Capacity:       16,
		ExpiryDuration: time.Second,
		Logger:         log,
		PanicHandler: func(r any) {
			log.WithField("panic", r).Error("background task panicked")
		},
	}

	if cfg != nil {
		if cfg.GetCount() > 0 {
			o.PoolCount = cfg.GetCount()
		}
		if cfg.GetCapacity() > 0 {
			o.Capacity = cfg.GetCapacity()
		}
		o.ExpiryDuration = cfg.GetExpiryDuration()
	}
	return o
}

// New creates a pool sized from cfg, which may be nil, and the supplied options.
func New(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (Pool, error) {
	o := defaultOptions(ctx, cfg)
	for _, opt := range opts {
		opt(o)
	}

	antsOpts := []ants.Option{
		ants.WithNonblocking(o.Nonblocking),
		ants.WithLogger(o.Logger),
	}
	if o.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(o.ExpiryDuration))
	}
	if o.PanicHandler != nil {
		antsOpts = append(antsOpts, ants.WithPanicHandler(o.PanicHandler))
	}

	if o.PoolCount <= 1 {
		p, err := ants.NewPool(o.Capacity, antsOpts...)
		if err != nil {
			return nil, err
		}
		return &singlePool{pool: p}, nil
	}

	mp, err := ants.NewMultiPool(o.PoolCount, o.Capacity, ants.LeastTasks, antsOpts...)
	if err != nil {
		return nil, err
	}
	return &multiPool{pool: mp}, nil
}

type singlePool struct {
	pool *ants.Pool
}

func (w *singlePool) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if w.pool.IsClosed() {
		return ErrPoolClosed
	}
	return w.pool.Submit(task)
}

func (w *singlePool) Shutdown() {
	w.pool.Release()
}

type multiPool struct {
	pool *ants.MultiPool
}

func (w *multiPool) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if w.pool.IsClosed() {
		return ErrPoolClosed
	}
	return w.pool.Submit(task)
}

func (w *multiPool) Shutdown() {
	_ = w.pool.ReleaseTimeout(time.Second)
}
