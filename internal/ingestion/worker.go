package ingestion

import (
	"context"
	"sync"
	"time"

	"coinsage/internal/logging"
	"coinsage/internal/services"
)

// State is the lifecycle state of one ingestion cycle.
type State string

const (
	StatePending        State = "PENDING"
	StateRunning        State = "RUNNING"
	StateSuccess        State = "SUCCESS"
	StateRetryScheduled State = "RETRY_SCHEDULED"
	StateDead           State = "DEAD"
)

// Task is one queued ingestion cycle attempt. StartedAt is fixed when
// the cycle is first enqueued so retries produce the same document IDs.
type Task struct {
	CycleID   string    `json:"cycle_id"`
	StartedAt time.Time `json:"started_at"`
	Attempt   int       `json:"attempt"`
}

// Queue dispatches cycle tasks to workers.
type Queue interface {
	Push(ctx context.Context, task Task) error
	PushDelayed(ctx context.Context, task Task, delay time.Duration)
	Pop(ctx context.Context, timeout time.Duration) (Task, bool, error)
}

// Lock serializes cycles so only one runs per deployment.
type Lock interface {
	TryAcquire(ctx context.Context, cycleID string) bool
	Release(ctx context.Context)
}

// CycleRunner runs one cycle attempt.
type CycleRunner interface {
	RunCycle(ctx context.Context, cycleID string, startedAt time.Time) error
}

// Alerter receives dead-cycle notifications.
type Alerter interface {
	Notify(ctx context.Context, alert Alert) error
}

// maxAttempts is the whole-cycle retry budget: a cycle is retried
// after retryBackoff until it has failed this many times, then goes
// DEAD and alerts.
const maxAttempts = 3

// Worker consumes cycle tasks from the queue and drives each through
// the PENDING → RUNNING → {SUCCESS | RETRY_SCHEDULED → RUNNING | DEAD}
// state machine. Delivery is at-least-once: a retried cycle re-fetches
// and re-writes, and document-ID determinism makes the re-writes no-ops.
type Worker struct {
	queue   Queue
	lock    Lock
	runner  CycleRunner
	alerts  Alerter
	metrics *services.Metrics

	workers      int
	retryBackoff time.Duration

	// OnTransition, when set, observes every state change. Used by
	// tests; production leaves it nil.
	OnTransition func(task Task, state State)

	wg sync.WaitGroup
}

// NewWorker creates a queue worker. lock may be nil when cycle
// serialization is handled elsewhere.
func NewWorker(queue Queue, lock Lock, runner CycleRunner, alerts Alerter, metrics *services.Metrics, workers int, retryBackoff time.Duration) *Worker {
	if workers <= 0 {
		workers = 1
	}
	if retryBackoff <= 0 {
		retryBackoff = time.Minute
	}
	return &Worker{
		queue:        queue,
		lock:         lock,
		runner:       runner,
		alerts:       alerts,
		metrics:      metrics,
		workers:      workers,
		retryBackoff: retryBackoff,
	}
}

// Enqueue submits a brand-new cycle.
func (w *Worker) Enqueue(ctx context.Context, task Task) error {
	w.transition(task, StatePending)
	return w.queue.Push(ctx, task)
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// Stop waits for them.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}
}

// Stop blocks until all workers have exited.
func (w *Worker) Stop() {
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		task, ok, err := w.queue.Pop(ctx, 5*time.Second)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logging.WithCorrelation("ingest-worker").Warn("queue pop failed", "error", err)
			continue
		}
		if !ok {
			continue
		}
		w.Handle(ctx, task)
	}
}

// Handle runs one task through the cycle state machine.
func (w *Worker) Handle(ctx context.Context, task Task) {
	if w.lock != nil {
		if !w.lock.TryAcquire(ctx, task.CycleID) {
			// Another cycle is active; try again after the backoff.
			w.queue.PushDelayed(ctx, task, w.retryBackoff)
			return
		}
		defer w.lock.Release(ctx)
	}

	logger := logging.WithCycle(logging.WithCorrelation(task.CycleID), task.CycleID, task.Attempt)

	w.transition(task, StateRunning)
	err := w.runner.RunCycle(ctx, task.CycleID, task.StartedAt)
	if err == nil {
		w.transition(task, StateSuccess)
		return
	}

	logger.Error("ingestion cycle attempt failed", "error", err)

	if task.Attempt+1 < maxAttempts {
		retry := task
		retry.Attempt++
		w.transition(retry, StateRetryScheduled)
		w.queue.PushDelayed(ctx, retry, w.retryBackoff)
		return
	}

	w.transition(task, StateDead)
	w.metrics.DeadCycles.Inc()
	if w.alerts != nil {
		alert := Alert{
			CycleID:   task.CycleID,
			Attempts:  task.Attempt + 1,
			LastError: err.Error(),
			DeadAt:    time.Now().UTC(),
		}
		if notifyErr := w.alerts.Notify(ctx, alert); notifyErr != nil {
			logger.Error("dead-cycle alert failed", "error", notifyErr)
		}
	}
}

func (w *Worker) transition(task Task, state State) {
	logging.WithCycle(logging.WithCorrelation(task.CycleID), task.CycleID, task.Attempt).
		Info("cycle state change", "state", string(state))
	if w.OnTransition != nil {
		w.OnTransition(task, state)
	}
}
