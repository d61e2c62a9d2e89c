package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

const (
	defaultMaxBodySize = 1024
	redacted           = "[REDACTED]"
)

var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// LoggingTransportOption configures the logging HTTP transport.
type LoggingTransportOption func(*loggingTransport)

type loggingTransport struct {
	transport   http.RoundTripper
	logBody     bool
	maxBodySize int64
}

// NewLoggingTransport wraps transport so every exchange is logged. Credentials in
// headers are always redacted.
func NewLoggingTransport(transport http.RoundTripper, opts ...LoggingTransportOption) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}

	t := &loggingTransport{
		transport:   transport,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithTransportLogBody enables or disables body logging.
func WithTransportLogBody(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logBody = enabled
	}
}

// WithTransportMaxBodySize sets the maximum body size to log.
func WithTransportMaxBodySize(size int64) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.maxBodySize = size
	}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	logger := util.Log(ctx).WithFields(map[string]any{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": redactHeaders(req.Header),
	})
	if t.logBody && req.Body != nil {
		var body string
		body, req.Body = t.peek(req.Body)
		logger = logger.WithField("body", body)
	}
	logger.Debug("HTTP request sent")

	resp, err := t.transport.RoundTrip(req)
	t.logResponse(ctx, resp, err, time.Since(start))
	return resp, err
}

func (t *loggingTransport) logResponse(ctx context.Context, resp *http.Response, err error, duration time.Duration) {
	logger := util.Log(ctx).WithField("duration", duration.String())

	if err != nil {
		logger.WithError(err).Warn("HTTP request failed")
		return
	}

	logger = logger.WithFields(map[string]any{
		"status":  resp.StatusCode,
		"headers": redactHeaders(resp.Header),
	})
	if t.logBody && resp.Body != nil {
		var body string
		body, resp.Body = t.peek(resp.Body)
		logger = logger.WithField("body", body)
	}
	logger.Debug("HTTP response received")
}

// peek reads up to maxBodySize bytes and returns a body that still yields the full stream.
func (t *loggingTransport) peek(body io.ReadCloser) (string, io.ReadCloser) {
	head, err := io.ReadAll(io.LimitReader(body, t.maxBodySize))
	restored := struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), body), body}
	if err != nil {
		return "", restored
	}
	return string(head), restored
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		if sensitiveHeaders[http.CanonicalHeaderKey(name)] {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
