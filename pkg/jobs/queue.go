package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotStarted is returned when jobs are pushed before Start or after Stop.
var ErrNotStarted = errors.New("queue not started")

// ErrQueueFull is returned when the buffer has no room for another job.
var ErrQueueFull = errors.New("queue full")

// State is the lifecycle position of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Status is the externally visible state of a job.
type Status struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     State     `json:"state"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error,omitempty"`
	Result    any       `json:"result,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Handler processes a job and may return a result kept on its status.
type Handler func(context.Context, Job) (any, error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// HistorySize bounds how many finished statuses are remembered.
	HistorySize int
	Logger      *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	statuses map[string]*Status
	finished []string
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:     name,
		handler:  handler,
		cfg:      cfg,
		logger:   cfg.Logger,
		jobs:     make(chan Job, cfg.BufferSize),
		statuses: make(map[string]*Status),
	}
}

// Start begins worker consumption. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.started = false
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue without blocking and records it as
// queued. A rejected job leaves no status behind.
func (q *Queue) Enqueue(job Job) error {
	return q.push(job, false)
}

// push records the job as queued and hands it to the workers. When wait is
// false a full buffer rejects the job instead of blocking.
func (q *Queue) push(job Job, wait bool) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	// Recorded before the send so a fast worker's state is not overwritten.
	q.setState(job, StateQueued, nil, nil)

	if !wait {
		select {
		case q.jobs <- job:
			return nil
		default:
			q.forget(job.ID)
			return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
		}
	}
	select {
	case <-ctx.Done():
		q.forget(job.ID)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) forget(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.statuses, id)
}

// Status returns a snapshot of the job state.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *status, true
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.setState(job, StateRunning, nil, nil)
			result, err := q.handler(q.ctx, job)
			if err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.setState(job, StateSucceeded, result, nil)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.setState(job, StateFailed, nil, err)
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.push(j, true); err != nil {
				q.setState(j, StateFailed, nil, err)
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}

func (q *Queue) setState(job Job, state State, result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	status, ok := q.statuses[job.ID]
	if !ok {
		status = &Status{ID: job.ID, Type: job.Type}
		q.statuses[job.ID] = status
	}
	status.State = state
	status.Attempt = job.Attempt
	status.Result = result
	status.Error = ""
	if err != nil {
		status.Error = err.Error()
	}
	status.UpdatedAt = time.Now().UTC()

	if state == StateSucceeded || state == StateFailed {
		q.finished = append(q.finished, job.ID)
		for len(q.finished) > q.cfg.HistorySize {
			delete(q.statuses, q.finished[0])
			q.finished = q.finished[1:]
		}
	}
}
