package workflow

import (
	"context"
	"sync"
	"time"
)

// Task is a delayed check scheduled by a Scheduler
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
	ran bool
}

// Name returns the task name
func (t *Task) Name() string { return t.name }

// Cancel stops the task if it has not started yet. A running task completes.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task has run or was cancelled
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task result, or the cancellation error if it never ran
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Ran reports whether the task function was executed
func (t *Task) Ran() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ran
}

// Wait blocks until the task finishes or ctx ends
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scheduler runs delayed one-shot tasks bound to a lifetime.
// Stop cancels every pending task.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger Logger

	mu    sync.Mutex
	tasks map[*Task]struct{}
	wg    sync.WaitGroup
}

// NewScheduler creates a scheduler whose tasks are cancelled when parent ends or Stop is called
func NewScheduler(parent context.Context, logger Logger) *Scheduler {
	if logger == nil {
		logger = nopLogger{}
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		tasks:  make(map[*Task]struct{}),
	}
}

// Schedule runs fn after delay unless the task or the scheduler is cancelled first.
// Once fn starts it is not interrupted by cancellation.
func (s *Scheduler) Schedule(name string, delay time.Duration, fn func(ctx context.Context) error) *Task {
	taskCtx, cancel := context.WithCancel(s.ctx)
	task := &Task{name: name, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[task] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(taskCtx, task, delay, fn)

	return task
}

func (s *Scheduler) run(ctx context.Context, task *Task, delay time.Duration, fn func(ctx context.Context) error) {
	defer s.wg.Done()
	defer close(task.done)
	defer func() {
		s.mu.Lock()
		delete(s.tasks, task)
		s.mu.Unlock()
		task.cancel()
	}()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		task.mu.Lock()
		task.err = ctx.Err()
		task.mu.Unlock()
		s.logger.Info("Scheduled task cancelled", "task", task.name)
		return
	case <-timer.C:
	}

	err := fn(context.WithoutCancel(ctx))

	task.mu.Lock()
	task.err = err
	task.ran = true
	task.mu.Unlock()

	if err != nil {
		s.logger.Warn("Scheduled task failed", "task", task.name, "error", err)
	}
}

// Pending returns the number of tasks not yet finished
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels pending tasks and waits for running ones
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
