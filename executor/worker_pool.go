package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codemate/console"

	logrus "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull  = errors.New("job queue full")
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// PoolConfig sizes a WorkerPool and configures the executor each worker owns.
type PoolConfig struct {
	MaxWorkers int
	JobCount   int
	Options    Options
	Sink       console.Sink
	Logger     *logrus.Logger
}

// WorkerPool manages a pool of workers, each with its own Executor
type WorkerPool struct {
	jobs        chan Job
	logger      *logrus.Logger
	maxWorkers  int
	maxJobCount int
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// NewWorkerPool warms one executor per worker and starts the workers
func NewWorkerPool(cfg PoolConfig) (*WorkerPool, error) {
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.JobCount < 0 {
		return nil, fmt.Errorf("job count must not be negative, got %d", cfg.JobCount)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	executors := make([]*Executor, cfg.MaxWorkers)
	for i := range executors {
		executors[i] = New(console.New(cfg.Sink), cfg.Options)
		if err := warmup(context.Background(), executors[i]); err != nil {
			return nil, fmt.Errorf("worker %d: %w", i+1, err)
		}
	}

	pool := &WorkerPool{
		jobs:        make(chan Job, cfg.JobCount),
		logger:      logger,
		maxWorkers:  cfg.MaxWorkers,
		maxJobCount: cfg.JobCount,
	}

	for i, exec := range executors {
		pool.wg.Add(1)
		go pool.worker(i+1, exec)
	}

	return pool, nil
}

// worker processes jobs from the queue
func (p *WorkerPool) worker(id int, exec *Executor) {
	defer p.wg.Done()
	p.logger.Debugf("Worker %d started", id)

	for job := range p.jobs {
		p.executeJob(id, exec, job)
	}
	p.logger.Debugf("Worker %d shutting down due to closed channel", id)
}

// executeJob runs a single task, skipping it if its caller already gave up
func (p *WorkerPool) executeJob(workerID int, exec *Executor, job Job) {
	if err := job.Ctx.Err(); err != nil {
		p.logger.WithFields(logrus.Fields{
			"worker": workerID,
			"error":  err,
		}).Warn("Skipping task whose context is already done")
		job.Done <- err
		return
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("task panicked: %v", rec)
			}
		}()
		job.Task(job.Ctx, exec)
		return nil
	}()
	duration := time.Since(start)

	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"worker":   workerID,
			"duration": duration,
			"error":    err,
		}).Error("Task failed")
	} else {
		p.logger.WithFields(logrus.Fields{
			"worker":   workerID,
			"duration": duration,
		}).Debug("Task completed")
	}
	job.Done <- err
}

// Do submits a task and waits for it to finish. It fails fast when the queue
// is full.
func (p *WorkerPool) Do(ctx context.Context, task Task) error {
	done := make(chan error, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.jobs <- Job{Ctx: ctx, Task: task, Done: done}:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return fmt.Errorf("%w, max capacity: %d", ErrQueueFull, p.maxJobCount)
	}

	return <-done
}

// Size is the number of workers.
func (p *WorkerPool) Size() int {
	return p.maxWorkers
}

// Pending is the number of queued jobs not yet picked up.
func (p *WorkerPool) Pending() int {
	return len(p.jobs)
}

// Shutdown finishes queued jobs and stops the workers
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("Shutting down worker pool...")
	p.wg.Wait()
	p.logger.Info("Worker pool shutdown complete")
}
