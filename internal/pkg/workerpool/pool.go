// Package workerpool runs CPU-heavy jobs on a bounded set of goroutines so
// that request handlers only wait on a result channel.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// ErrStopped is returned when a job is submitted after Stop.
var ErrStopped = errors.New("worker pool stopped")

// Config contains pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   runtime.NumCPU(),
		QueueSize: 64,
	}
}

// Pool executes submitted jobs on a fixed number of worker goroutines.
type Pool struct {
	config Config
	logger *slog.Logger

	mu      sync.RWMutex
	jobs    chan func()
	stopped bool
	wg      sync.WaitGroup
}

// New creates a pool. Call Start before submitting jobs.
func New(config Config, logger *slog.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	return &Pool{
		config: config,
		logger: logger,
		jobs:   make(chan func(), config.QueueSize),
	}
}

// Start launches worker goroutines.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool",
		"workers", p.config.Workers,
		"queue_size", p.config.QueueSize,
	)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop rejects new jobs, lets workers finish what is already queued and
// waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// QueueDepth returns the number of jobs waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

func (p *Pool) enqueue(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type result[T any] struct {
	value T
	err   error
}

// Submit runs fn on the pool and waits for its result. If ctx ends first,
// Submit returns ctx.Err(); a job already handed to a worker still runs to
// completion and its result is discarded.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	done := make(chan result[T], 1)

	job := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}

	if err := p.enqueue(ctx, job); err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
