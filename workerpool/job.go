package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

const (
	jobRetryBackoffBaseDelay    = 50 * time.Millisecond
	jobRetryBackoffMaxDelay     = 5 * time.Second
	jobRetryBackoffMaxRunNumber = 8
)

type jobResult[T any] struct {
	item T
	err  error
}

func (j *jobResult[T]) IsError() bool {
	return j.err != nil
}

func (j *jobResult[T]) Error() error {
	return j.err
}

func (j *jobResult[T]) Item() T {
	return j.item
}

func Result[T any](item T) JobResult[T] {
	return &jobResult[T]{item: item}
}

func ErrorResult[T any](err error) JobResult[T] {
	return &jobResult[T]{err: err}
}

type job[T any] struct {
	id      string
	runs    atomic.Int64
	retries int
	process func(ctx context.Context) (T, error)

	once   sync.Once
	done   chan struct{}
	result JobResult[T]
}

// NewJob creates a job that runs process once.
func NewJob[T any](process func(ctx context.Context) (T, error)) Job[T] {
	return NewJobWithRetry(process, 0)
}

// NewJobWithRetry creates a job that reruns process up to retries more times,
// backing off exponentially between runs.
func NewJobWithRetry[T any](process func(ctx context.Context) (T, error), retries int) Job[T] {
	return &job[T]{
		id:      xid.New().String(),
		retries: retries,
		process: process,
		done:    make(chan struct{}),
	}
}

func (j *job[T]) ID() string {
	return j.id
}

func (j *job[T]) Runs() int {
	return int(j.runs.Load())
}

func (j *job[T]) Retries() int {
	return j.retries
}

func (j *job[T]) Done() <-chan struct{} {
	return j.done
}

func (j *job[T]) Wait(ctx context.Context) (JobResult[T], bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-j.done:
		return j.result, true
	}
}

func (j *job[T]) canRetry() bool {
	return j.Runs() <= j.retries
}

func (j *job[T]) finish(res JobResult[T]) {
	j.once.Do(func() {
		j.result = res
		close(j.done)
	})
}

func jobRetryBackoffDelay(run int) time.Duration {
	if run < 1 {
		run = 1
	}

	if run > jobRetryBackoffMaxRunNumber {
		run = jobRetryBackoffMaxRunNumber
	}

	delay := jobRetryBackoffBaseDelay * time.Duration(1<<(run-1))
	if delay > jobRetryBackoffMaxDelay {
		return jobRetryBackoffMaxDelay
	}

	return delay
}

// SubmitJob queues job on pool. The outcome is read through job.Wait.
func SubmitJob[T any](ctx context.Context, pool Pool, j Job[T]) error {
	if pool == nil {
		return errors.New("worker pool is not configured")
	}

	impl, ok := j.(*job[T])
	if !ok {
		return fmt.Errorf("unsupported job implementation %T", j)
	}

	err := pool.Submit(ctx, executionTask(ctx, pool, impl))
	if err != nil {
		impl.finish(ErrorResult[T](err))
	}
	return err
}

func executionTask[T any](ctx context.Context, pool Pool, j *job[T]) func() {
	return func() {
		log := util.Log(ctx).
			WithField("job", j.ID()).
			WithField("run", j.Runs())

		if j.process == nil {
			j.finish(ErrorResult[T](errors.New("job has no process function")))
			return
		}

		j.runs.Add(1)
		item, err := j.process(ctx)
		if err == nil {
			j.finish(Result(item))
			return
		}

		if errors.Is(err, context.Canceled) || !j.canRetry() {
			log.WithError(err).Debug("job failed")
			j.finish(ErrorResult[T](err))
			return
		}

		log.WithError(err).Debug("job failed, retrying")
		go func() {
			timer := time.NewTimer(jobRetryBackoffDelay(j.Runs()))
			defer timer.Stop()

			select {
			case <-ctx.Done():
				j.finish(ErrorResult[T](ctx.Err()))
				return
			case <-timer.C:
			}

			if resubmitErr := pool.Submit(ctx, executionTask(ctx, pool, j)); resubmitErr != nil {
				log.WithError(resubmitErr).Warn("failed to resubmit job")
				j.finish(ErrorResult[T](fmt.Errorf("resubmitting job: %w", err)))
			}
		}()
	}
}
