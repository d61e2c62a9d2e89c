package workerpool

import (
	"context"
)

// Pool runs background tasks such as cache prefetches and source-string lookups.
type Pool interface {
	Submit(ctx context.Context, task func()) error
	Shutdown()
}

// JobResult holds either a value of type T or an error.
type JobResult[T any] interface {
	IsError() bool
	Error() error
	Item() T
}

// Job is a unit of work that produces results of type T and may be retried.
type Job[T any] interface {
	ID() string
	Runs() int
	Retries() int

	// Wait blocks until the job produced its final result.
	Wait(ctx context.Context) (JobResult[T], bool)
	// Done is closed once the final result is available.
	Done() <-chan struct{}
}
