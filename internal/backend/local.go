package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4
	// DefaultQueueSize is the queue capacity used when none is configured.
	DefaultQueueSize = 256

	localBackendName = "local"
)

// Compile-time interface satisfaction check.
var _ Backend = (*LocalBackend)(nil)

type job struct {
	task   Task
	future *Future
}

// LocalBackend runs tasks on a fixed pool of goroutines fed by a FIFO queue.
type LocalBackend struct {
	workers   int
	queueSize int
	logger    *slog.Logger

	// mu guards closed and the queue channel against send-after-close.
	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewLocalBackend starts a backend with the given number of workers and queue
// capacity. Non-positive values fall back to the defaults.
func NewLocalBackend(workers, queueSize int, logger *slog.Logger) *LocalBackend {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &LocalBackend{
		workers:   workers,
		queueSize: queueSize,
		logger:    logger,
		queue:     make(chan job, queueSize),
	}
	for range workers {
		b.wg.Go(b.work)
	}
	return b
}

// Submit queues task for execution. It blocks while the queue is full, until
// ctx is done.
func (b *LocalBackend) Submit(ctx context.Context, task Task) (*Future, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("%w: %w", ErrDispatch, ErrClosed)
	}

	j := job{task: task, future: NewFuture()}
	select {
	case b.queue <- j:
		queuedTasks.Inc()
		return j.future, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDispatch, ctx.Err())
	}
}

// Capabilities reports the pool size and queue capacity.
func (b *LocalBackend) Capabilities() Capabilities {
	return Capabilities{
		Name:      localBackendName,
		Workers:   b.workers,
		QueueSize: b.queueSize,
	}
}

// Close stops accepting new tasks and waits for queued and running tasks to
// finish. It is safe to call more than once.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *LocalBackend) work() {
	for j := range b.queue {
		queuedTasks.Dec()
		b.run(j)
	}
}

// run executes a single job, converting a panic into an error result so one
// broken task cannot take down the pool.
func (b *LocalBackend) run(j job) {
	start := time.Now()
	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				b.logger.Error("task panicked", "panic", r)
			}
		}()
		value, err = j.task(context.Background())
	}()

	status := statusSucceeded
	if err != nil {
		status = statusFailed
	}
	tasksTotal.WithLabelValues(status).Inc()
	taskDuration.Observe(time.Since(start).Seconds())

	j.future.Resolve(value, err)
}
