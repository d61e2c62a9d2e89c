package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxResponseBodyLen        = 10 << 20
	defaultCircuitBreakerMaxRequests = 3
	defaultCircuitBreakerInterval    = 30 * time.Second
	defaultCircuitBreakerTimeout     = 15 * time.Second
	defaultCircuitBreakerThreshold   = 10
	defaultCircuitBreakerFailureRate = 0.5
)

var (
	ErrResponseTooLarge = errors.New("response body exceeds the configured limit")

	// ErrCircuitOpen is returned without contacting the backend while its breaker is open.
	ErrCircuitOpen = gobreaker.ErrOpenState
)

// serverError lets the breaker count a 5xx as a failure while the caller still gets the response.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.statusCode)
}

// Manager sends JSON requests to the backend.
type Manager interface {
	Client() *http.Client
	Invoke(ctx context.Context,
		method string, endpointURL string, payload any,
		headers http.Header, opts ...HTTPOption) (*InvokeResponse, error)
}

type InvokeResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser

	maxBodyLen int64
}

// IsSuccess reports a 2xx status.
func (s *InvokeResponse) IsSuccess() bool {
	return s.StatusCode >= http.StatusOK && s.StatusCode < http.StatusMultipleChoices
}

func (s *InvokeResponse) Close() error {
	if s.Body != nil {
		return s.Body.Close()
	}
	return nil
}

func (s *InvokeResponse) ToContent(ctx context.Context) ([]byte, error) {
	defer util.CloseAndLogOnError(ctx, s)

	reader := io.Reader(s.Body)
	if s.maxBodyLen > 0 {
		reader = io.LimitReader(s.Body, s.maxBodyLen+1)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if s.maxBodyLen > 0 && int64(len(content)) > s.maxBodyLen {
		return content[:s.maxBodyLen], ErrResponseTooLarge
	}
	return content, nil
}

// Decode streams a JSON response into v and closes the body.
func (s *InvokeResponse) Decode(ctx context.Context, v any) error {
	defer util.CloseAndLogOnError(ctx, s)
	return json.NewDecoder(s.Body).Decode(v)
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

type invoker struct {
	breakers    sync.Map // map[string]*gobreaker.CircuitBreaker[*http.Response]
	client      *http.Client
	maxBodyLen  int64
	retryPolicy *RetryPolicy
}

// NewManager creates an invoker with the provided options.
func NewManager(opts ...HTTPOption) Manager {
	cfg := &httpConfig{}
	cfg.process(opts...)

	return &invoker{
		client:      NewHTTPClient(opts...),
		maxBodyLen:  defaultMaxResponseBodyLen,
		retryPolicy: cfg.retryPolicy,
	}
}

func (s *invoker) Client() *http.Client {
	return s.client
}

func (s *invoker) breakerFor(key string) *gobreaker.CircuitBreaker[*http.Response] {
	if cb, ok := s.breakers.Load(key); ok {
		//nolint:errcheck // only *gobreaker.CircuitBreaker[*http.Response] is stored
		return cb.(*gobreaker.CircuitBreaker[*http.Response])
	}

	//nolint:bodyclose // the caller owns the response body
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "http:" + key,
		MaxRequests: defaultCircuitBreakerMaxRequests,
		Interval:    defaultCircuitBreakerInterval,
		Timeout:     defaultCircuitBreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < defaultCircuitBreakerThreshold {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= defaultCircuitBreakerFailureRate
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			util.Log(context.Background()).
				WithField("breaker", name).
				WithField("from", from.String()).
				WithField("to", to.String()).
				Warn("circuit breaker state changed")
		},
	})

	actual, _ := s.breakers.LoadOrStore(key, cb)
	//nolint:errcheck // only *gobreaker.CircuitBreaker[*http.Response] is stored
	return actual.(*gobreaker.CircuitBreaker[*http.Response])
}

func breakerKey(req *http.Request) string {
	return req.Method + " " + req.URL.Host
}

func isRetryableStatus(code int) bool {
	return code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (s *invoker) execute(ctx context.Context, req *http.Request, retry *RetryPolicy) (*http.Response, error) {
	cb := s.breakerFor(breakerKey(req))

	resp, err := cb.Execute(func() (*http.Response, error) {
		var lastErr error

		for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
			if attempt > 1 && req.GetBody != nil {
				body, bErr := req.GetBody()
				if bErr != nil {
					return nil, bErr
				}
				req.Body = body
			}

			resp, doErr := s.client.Do(req)
			switch {
			case doErr != nil:
				if resp != nil && resp.Body != nil {
					_ = resp.Body.Close()
				}
				lastErr = doErr
			case isRetryableStatus(resp.StatusCode) && attempt < retry.MaxAttempts:
				_ = resp.Body.Close()
				lastErr = &serverError{statusCode: resp.StatusCode}
			case resp.StatusCode >= http.StatusInternalServerError:
				return resp, &serverError{statusCode: resp.StatusCode}
			default:
				return resp, nil
			}

			if attempt == retry.MaxAttempts || ctx.Err() != nil {
				break
			}

			t := time.NewTimer(retry.Backoff(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		return nil, lastErr
	})

	var sErr *serverError
	if resp != nil && errors.As(err, &sErr) {
		return resp, nil
	}
	return resp, err
}

// Invoke sends payload as JSON and returns the raw response. Non-2xx responses are
// not errors here, callers inspect StatusCode. The caller must close the response.
func (s *invoker) Invoke(ctx context.Context,
	method string, endpointURL string, payload any,
	headers http.Header, opts ...HTTPOption) (*InvokeResponse, error) {
	callCfg := &httpConfig{retryPolicy: s.retryPolicy}
	callCfg.process(opts...)

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	var cancel context.CancelFunc
	if callCfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, callCfg.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpointURL, body)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	req.Header = headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	//nolint:bodyclose // InvokeResponse owns the body
	resp, err := s.execute(ctx, req, callCfg.retryPolicy)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	respBody := resp.Body
	if cancel != nil {
		respBody = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	}

	return &InvokeResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		maxBodyLen: s.maxBodyLen,
	}, nil
}
