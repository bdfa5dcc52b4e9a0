package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type WorkerPool struct {
	repo        *Repository
	handlers    map[string]Handler
	logger      *slog.Logger
	workerCount int
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// PollInterval is how long an idle worker waits before looking for work
	// again. Set it before Start.
	PollInterval time.Duration
	// Backoff schedules the retry of a failed attempt. Set it before Start.
	Backoff func(attempt int) time.Duration
}

var _ Enqueuer = (*WorkerPool)(nil)

func NewWorkerPool(repo *Repository, handlers map[string]Handler, logger *slog.Logger, workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		repo:         repo,
		handlers:     handlers,
		logger:       logger,
		workerCount:  workerCount,
		stop:         make(chan struct{}),
		PollInterval: 500 * time.Millisecond,
		Backoff:      BackoffDuration,
	}
}

// Start requeues jobs left running by a previous process, then launches the
// worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	if n, err := p.repo.RequeueRunning(ctx); err != nil {
		p.logger.Error("requeue running jobs", "err", err)
	} else if n > 0 {
		p.logger.Info("requeued interrupted jobs", "count", n)
	}
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals workers to stop and waits for them. A handler that is running
// finishes first.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// sleep waits for d and reports false when the pool is stopping.
func (p *WorkerPool) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			p.logger.Info("worker stopping", "id", id)
			return
		case <-ctx.Done():
			p.logger.Info("context canceled, worker exiting", "id", id)
			return
		default:
		}

		job, err := p.repo.FetchNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("fetch job", "err", err)
			}
			if !p.sleep(ctx, time.Second) {
				return
			}
			continue
		}
		if job == nil {
			if !p.sleep(ctx, p.PollInterval) {
				return
			}
			continue
		}
		p.run(ctx, job)
	}
}

func (p *WorkerPool) run(ctx context.Context, job *Job) {
	// state writes must land even when ctx is cancelled mid-handler
	store := context.WithoutCancel(ctx)
	h, ok := p.handlers[job.Type]
	if !ok {
		job.Status = StatusFailed
		job.LastError = "no handler"
		p.logger.Warn("no handler for job", "id", job.ID, "type", job.Type)
		if err := p.repo.MoveToDeadLetter(store, job); err != nil {
			p.logger.Error("move to dead letter", "err", err)
		}
		return
	}

	err := h(ctx, job)
	if err == nil {
		job.Status = StatusDone
		job.NextTryAt = nil
		if upErr := p.repo.UpdateJob(store, job); upErr != nil {
			p.logger.Error("update finished job", "id", job.ID, "err", upErr)
		}
		return
	}

	if ctx.Err() != nil {
		// interrupted by shutdown; the attempt is not charged
		job.Status = StatusQueued
		job.NextTryAt = nil
		job.LastError = err.Error()
		p.logger.Info("job interrupted, requeued", "id", job.ID, "type", job.Type)
		if upErr := p.repo.UpdateJob(store, job); upErr != nil {
			p.logger.Error("requeue interrupted job", "id", job.ID, "err", upErr)
		}
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		job.Status = StatusFailed
		p.logger.Warn("job failed", "id", job.ID, "type", job.Type, "err", fmt.Errorf("%w: %w", ErrMaxAttempts, err))
		if mvErr := p.repo.MoveToDeadLetter(store, job); mvErr != nil {
			p.logger.Error("move to dead letter", "err", mvErr)
		}
		return
	}

	t := time.Now().Add(p.Backoff(job.Attempts))
	job.NextTryAt = &t
	job.Status = StatusRetry
	p.logger.Info("job scheduled for retry", "id", job.ID, "type", job.Type, "attempts", job.Attempts, "next_try_at", t)
	if upErr := p.repo.UpdateJob(store, job); upErr != nil {
		p.logger.Error("update job for retry", "err", upErr)
	}
}

// Enqueue convenience helper that creates a job and persists it
func (p *WorkerPool) Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	j := &Job{Type: typ, Payload: b, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}
	return p.repo.Enqueue(ctx, j)
}
