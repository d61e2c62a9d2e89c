package client

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pitabwire/barberdesk/config"
)

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultHTTPIdleTimeout = 90 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 200 * time.Millisecond
	maxRetryDelay          = 5 * time.Second
)

// RetryPolicy controls how transient 502/503/504 responses and transport errors are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// ExponentialBackoff doubles base on every attempt, capped at five seconds.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		delay := base << (attempt - 1)
		if delay <= 0 || delay > maxRetryDelay {
			return maxRetryDelay
		}
		return delay
	}
}

// HTTPOption configures HTTP client behaviour.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout     time.Duration
	idleTimeout time.Duration
	transport   http.RoundTripper
	retryPolicy *RetryPolicy

	traceRequests bool
	traceBody     bool
}

func (c *httpConfig) process(opts ...HTTPOption) {
	for _, opt := range opts {
		opt(c)
	}
	c.normalizeRetry()
}

func (c *httpConfig) normalizeRetry() {
	if c.retryPolicy == nil {
		c.retryPolicy = &RetryPolicy{
			MaxAttempts: defaultRetryAttempts,
			Backoff:     ExponentialBackoff(defaultRetryBaseDelay),
		}
	}
	if c.retryPolicy.MaxAttempts < 1 {
		c.retryPolicy.MaxAttempts = 1
	}
	if c.retryPolicy.Backoff == nil {
		c.retryPolicy.Backoff = ExponentialBackoff(defaultRetryBaseDelay)
	}
}

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = timeout
	}
}

// WithHTTPTransport sets the HTTP transport, replacing the otelhttp default.
func WithHTTPTransport(transport http.RoundTripper) HTTPOption {
	return func(c *httpConfig) {
		c.transport = transport
	}
}

// WithHTTPRetryPolicy sets the retry policy.
func WithHTTPRetryPolicy(policy *RetryPolicy) HTTPOption {
	return func(c *httpConfig) {
		c.retryPolicy = policy
	}
}

// WithHTTPTraceRequests logs every request and response, including bodies when logBody is set.
func WithHTTPTraceRequests(logBody bool) HTTPOption {
	return func(c *httpConfig) {
		c.traceRequests = true
		c.traceBody = logBody
	}
}

// FromConfig maps configuration onto client options.
func FromConfig(cfg any) []HTTPOption {
	var opts []HTTPOption

	if apiCfg, ok := cfg.(config.ConfigurationAPI); ok {
		opts = append(opts,
			WithHTTPTimeout(apiCfg.GetHTTPClientTimeout()),
			WithHTTPRetryPolicy(&RetryPolicy{
				MaxAttempts: apiCfg.GetHTTPClientRetryAttempts(),
				Backoff:     ExponentialBackoff(defaultRetryBaseDelay),
			}),
		)
	}

	if traceCfg, ok := cfg.(config.ConfigurationTraceRequests); ok && traceCfg.TraceReq() {
		opts = append(opts, WithHTTPTraceRequests(traceCfg.TraceReqLogBody()))
	}

	return opts
}

// NewHTTPClient creates a new HTTP client with the provided options.
// Without a transport option it uses otelhttp.NewTransport(http.DefaultTransport).
func NewHTTPClient(opts ...HTTPOption) *http.Client {
	cfg := &httpConfig{
		timeout:     defaultHTTPTimeout,
		idleTimeout: defaultHTTPIdleTimeout,
	}
	cfg.process(opts...)

	transport := cfg.transport
	if transport == nil {
		base := http.DefaultTransport
		if t, ok := base.(*http.Transport); ok {
			clone := t.Clone()
			clone.IdleConnTimeout = cfg.idleTimeout
			base = clone
		}
		transport = otelhttp.NewTransport(base)
	}

	if cfg.traceRequests {
		transport = NewLoggingTransport(transport, WithTransportLogBody(cfg.traceBody))
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.timeout,
	}
}
