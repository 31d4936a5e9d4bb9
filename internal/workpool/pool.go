// Package workpool runs jobs on a fixed number of goroutines.
package workpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prompthunter/pkg/logger"
	"prompthunter/pkg/ratelimit"
)

// Job is a unit of work tagged with its submission index
type Job[T any] struct {
	Index   int
	Payload T
}

// Result pairs a job with its outcome
type Result[T, R any] struct {
	Job      Job[T]
	Value    R
	Err      error
	Duration time.Duration
}

// Handler processes one payload
type Handler[T, R any] func(ctx context.Context, payload T) (R, error)

// WorkerPool fans jobs out to workers and collects results on a channel
type WorkerPool[T, R any] struct {
	numWorkers  int
	jobQueue    chan Job[T]
	resultQueue chan Result[T, R]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     Handler[T, R]
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// New creates a pool. A nil limiter means no pacing.
func New[T, R any](ctx context.Context, numWorkers int, handler Handler[T, R], limiter ratelimit.Limiter, log logger.Logger) *WorkerPool[T, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[T, R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job[T], numWorkers*2),
		resultQueue: make(chan Result[T, R], numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handler:     handler,
		limiter:     limiter,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool[T, R]) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results
func (wp *WorkerPool[T, R]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a job, failing once the pool's context is done
func (wp *WorkerPool[T, R]) Submit(job Job[T]) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the channel results are delivered on
func (wp *WorkerPool[T, R]) Results() <-chan Result[T, R] {
	return wp.resultQueue
}

func (wp *WorkerPool[T, R]) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := Result[T, R]{Job: job}
		start := time.Now()

		if err := wp.limiter.Wait(wp.ctx); err != nil {
			result.Err = err
		} else {
			result.Value, result.Err = wp.handler(wp.ctx, job.Payload)
		}
		result.Duration = time.Since(start)

		if result.Err != nil {
			wp.logger.DebugWithFields("job failed", map[string]interface{}{
				"worker_id": id,
				"index":     job.Index,
				"error":     result.Err.Error(),
			})
		}

		// results are always delivered so Run can account for every job
		wp.resultQueue <- result
	}
}

// Run processes payloads on numWorkers goroutines and returns results in input order
func Run[T, R any](ctx context.Context, numWorkers int, payloads []T, handler Handler[T, R], limiter ratelimit.Limiter, log logger.Logger) []Result[T, R] {
	pool := New(ctx, numWorkers, handler, limiter, log)
	pool.Start()

	go func() {
		for i, p := range payloads {
			if err := pool.Submit(Job[T]{Index: i, Payload: p}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	results := make([]Result[T, R], len(payloads))
	seen := make([]bool, len(payloads))
	for r := range pool.Results() {
		results[r.Job.Index] = r
		seen[r.Job.Index] = true
	}

	for i := range results {
		if !seen[i] {
			results[i] = Result[T, R]{Job: Job[T]{Index: i, Payload: payloads[i]}, Err: ctx.Err()}
		}
	}
	return results
}
