package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Submit when the buffer has no room.
var ErrQueueFull = errors.New("work queue buffer full")

// ErrQueueClosed is returned by Submit after shutdown began.
var ErrQueueClosed = errors.New("work queue shutting down")

// Job is a unit of detached background work.
type Job func(ctx context.Context)

// QueueOptions configures the WorkQueue.
type QueueOptions struct {
	// Workers is the number of goroutines running jobs. Default: 4.
	Workers int
	// BufferSize is the number of jobs that can wait. Default: 256.
	BufferSize int
	// DrainTimeout bounds each job run during shutdown drain. Default: 30s.
	DrainTimeout time.Duration
}

// DefaultQueueOptions returns sensible defaults.
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{
		Workers:      4,
		BufferSize:   256,
		DrainTimeout: 30 * time.Second,
	}
}

type work struct {
	ctx  context.Context
	name string
	job  Job
}

// WorkQueue runs fire-and-forget jobs on a fixed worker pool. Callers never block:
// a full buffer drops the job. On shutdown, workers drain what is buffered.
//
// Every Submit that returns nil has its job run: Submit and shutdown share mu,
// and workers only exit once ch is closed and empty.
type WorkQueue struct {
	logger *zap.Logger
	opts   QueueOptions

	mu     sync.RWMutex
	closed bool
	ch     chan work

	wg sync.WaitGroup
}

// NewWorkQueue creates a WorkQueue. Call Start to launch the workers.
func NewWorkQueue(logger *zap.Logger, opts QueueOptions) *WorkQueue {
	def := DefaultQueueOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	return &WorkQueue{
		logger: logger.Named("queue"),
		opts:   opts,
		ch:     make(chan work, opts.BufferSize),
	}
}

// Start launches the workers. Non-blocking. Cancelling ctx begins shutdown.
func (q *WorkQueue) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		q.shutdown()
	}()
	for range q.opts.Workers {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("Work queue started",
		zap.Int("workers", q.opts.Workers),
		zap.Int("buffer_size", q.opts.BufferSize),
	)
}

// Close stops accepting jobs and waits for the workers to drain the buffer.
func (q *WorkQueue) Close() {
	q.shutdown()
	q.wg.Wait()
}

// shutdown rejects further submits and closes the buffer. Idempotent.
func (q *WorkQueue) shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of buffered jobs.
func (q *WorkQueue) Len() int {
	return len(q.ch)
}

// Submit enqueues job without blocking. The job runs with a context detached
// from ctx's cancellation, so the caller returning does not abort it.
func (q *WorkQueue) Submit(ctx context.Context, name string, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- work{ctx: context.WithoutCancel(ctx), name: name, job: job}:
		return nil
	default:
		queueDroppedTotal.Inc()
		q.logger.Warn("Work queue buffer full, dropping job", zap.String("job", name))
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, name)
	}
}

// worker runs jobs until ctx is cancelled, then drains the buffer with bounded
// job contexts until it is closed.
func (q *WorkQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for w := range q.ch {
				drainCtx, cancel := context.WithTimeout(w.ctx, q.opts.DrainTimeout)
				q.run(drainCtx, w)
				cancel()
			}
			return
		case w, ok := <-q.ch:
			if !ok {
				return
			}
			q.run(w.ctx, w)
		}
	}
}

func (q *WorkQueue) run(ctx context.Context, w work) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Recovered panic in background job",
				zap.String("job", w.name),
				zap.Any("panic", r),
			)
		}
	}()
	w.job(ctx)
}
