package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"coinsage/internal/services"
)

// memQueue delivers delayed pushes immediately so the state machine can
// be driven synchronously.
type memQueue struct {
	tasks []Task
}

func (q *memQueue) Push(_ context.Context, task Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *memQueue) PushDelayed(_ context.Context, task Task, _ time.Duration) {
	q.tasks = append(q.tasks, task)
}

func (q *memQueue) Pop(context.Context, time.Duration) (Task, bool, error) {
	if len(q.tasks) == 0 {
		return Task{}, false, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true, nil
}

type stubRunner struct {
	err   error
	calls int
}

func (r *stubRunner) RunCycle(context.Context, string, time.Time) error {
	r.calls++
	return r.err
}

type recordingAlerter struct {
	alerts []Alert
}

func (a *recordingAlerter) Notify(_ context.Context, alert Alert) error {
	a.alerts = append(a.alerts, alert)
	return nil
}

type stubLock struct {
	available bool
	acquired  int
	released  int
}

func (l *stubLock) TryAcquire(context.Context, string) bool {
	if l.available {
		l.acquired++
	}
	return l.available
}

func (l *stubLock) Release(context.Context) { l.released++ }

func drain(t *testing.T, w *Worker, q *memQueue) {
	t.Helper()
	for i := 0; i < 100; i++ {
		task, ok, err := q.Pop(context.Background(), 0)
		if err != nil {
			t.Fatalf("pop failed: %v", err)
		}
		if !ok {
			return
		}
		w.Handle(context.Background(), task)
	}
	t.Fatal("queue never drained, state machine is looping")
}

func TestWorker_SuccessPath(t *testing.T) {
	queue := &memQueue{}
	runner := &stubRunner{}
	alerter := &recordingAlerter{}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, nil, runner, alerter, metrics, 1, time.Millisecond)

	var states []State
	w.OnTransition = func(_ Task, state State) { states = append(states, state) }

	if err := w.Enqueue(context.Background(), Task{CycleID: "c1", StartedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	drain(t, w, queue)

	want := []State{StatePending, StateRunning, StateSuccess}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
	if len(alerter.alerts) != 0 {
		t.Errorf("no alert expected on success, got %d", len(alerter.alerts))
	}
}

func TestWorker_FailingCycleRetriesTwiceThenDies(t *testing.T) {
	queue := &memQueue{}
	runner := &stubRunner{err: errors.New("upstream down")}
	alerter := &recordingAlerter{}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, nil, runner, alerter, metrics, 1, time.Millisecond)

	var states []State
	w.OnTransition = func(_ Task, state State) { states = append(states, state) }

	if err := w.Enqueue(context.Background(), Task{CycleID: "c1", StartedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	drain(t, w, queue)

	want := []State{
		StatePending,
		StateRunning, StateRetryScheduled,
		StateRunning, StateRetryScheduled,
		StateRunning, StateDead,
	}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}

	if runner.calls != 3 {
		t.Errorf("expected 3 cycle attempts, got %d", runner.calls)
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerter.alerts))
	}
	alert := alerter.alerts[0]
	if alert.CycleID != "c1" || alert.Attempts != 3 || alert.LastError != "upstream down" {
		t.Errorf("unexpected alert %+v", alert)
	}
	if got := testutil.ToFloat64(metrics.DeadCycles); got != 1 {
		t.Errorf("expected one dead cycle counted, got %v", got)
	}
}

func TestWorker_RecoversOnLaterAttempt(t *testing.T) {
	queue := &memQueue{}
	runner := &stubRunner{err: errors.New("flaky")}
	alerter := &recordingAlerter{}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, nil, runner, alerter, metrics, 1, time.Millisecond)

	var states []State
	w.OnTransition = func(_ Task, state State) {
		states = append(states, state)
		// Heal the upstream after the first failure.
		if state == StateRetryScheduled {
			runner.err = nil
		}
	}

	if err := w.Enqueue(context.Background(), Task{CycleID: "c1", StartedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	drain(t, w, queue)

	last := states[len(states)-1]
	if last != StateSuccess {
		t.Errorf("expected recovery to SUCCESS, got final state %s", last)
	}
	if len(alerter.alerts) != 0 {
		t.Errorf("no alert expected when the cycle recovers, got %d", len(alerter.alerts))
	}
}

func TestWorker_RetryKeepsCycleIdentity(t *testing.T) {
	queue := &memQueue{}
	runner := &stubRunner{err: errors.New("down")}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, nil, runner, nil, metrics, 1, time.Millisecond)

	startedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	w.Handle(context.Background(), Task{CycleID: "c1", StartedAt: startedAt})

	if len(queue.tasks) != 1 {
		t.Fatalf("expected one retry enqueued, got %d", len(queue.tasks))
	}
	retry := queue.tasks[0]
	if retry.CycleID != "c1" || !retry.StartedAt.Equal(startedAt) {
		t.Errorf("retry must keep the cycle ID and start time, got %+v", retry)
	}
	if retry.Attempt != 1 {
		t.Errorf("expected attempt 1 on first retry, got %d", retry.Attempt)
	}
}

func TestWorker_HeldLockDefersTheTask(t *testing.T) {
	queue := &memQueue{}
	runner := &stubRunner{}
	lock := &stubLock{available: false}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, lock, runner, nil, metrics, 1, time.Millisecond)

	w.Handle(context.Background(), Task{CycleID: "c1", StartedAt: time.Now().UTC()})

	if runner.calls != 0 {
		t.Errorf("cycle must not run while the lock is held, ran %d times", runner.calls)
	}
	if len(queue.tasks) != 1 {
		t.Errorf("deferred task must be re-enqueued, got %d", len(queue.tasks))
	}
}

func TestWorker_ReleasesLockAfterRun(t *testing.T) {
	queue := &memQueue{}
	lock := &stubLock{available: true}
	metrics := services.NewMetrics(prometheus.NewRegistry())
	w := NewWorker(queue, lock, &stubRunner{}, nil, metrics, 1, time.Millisecond)

	w.Handle(context.Background(), Task{CycleID: "c1", StartedAt: time.Now().UTC()})

	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("expected one acquire and one release, got %d/%d", lock.acquired, lock.released)
	}
}
