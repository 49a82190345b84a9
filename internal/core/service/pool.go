package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 8

// Pool bounds the number of blocking network calls running at once.
type Pool struct {
	sem     *semaphore.Weighted
	workers int64
}

func NewPool(workers int64) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Pool{sem: semaphore.NewWeighted(workers), workers: workers}
}

func (p *Pool) Workers() int64 {
	return p.workers
}

type result[T any] struct {
	value T
	err   error
}

// Offload runs fn on a pool worker and waits for its result. The wait is bounded by
// timeout (if positive): when it expires the caller gets an error right away, while the
// worker slot stays taken until fn returns.
func Offload[T any](ctx context.Context, p *Pool, timeout time.Duration,
	fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("waiting for a free worker: %w", err)
	}

	done := make(chan result[T], 1)

	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered panic in offloaded call")
				done <- result[T]{err: fmt.Errorf("offloaded call panicked: %v", r)}
			}
		}()

		value, err := fn(ctx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, fmt.Errorf("offloaded call did not finish: %w", ctx.Err())
	}
}
