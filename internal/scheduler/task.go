package scheduler

import "context"

// DefaultMaxRetries is the retry ceiling applied to tasks that do not
// specify their own.
const DefaultMaxRetries = 3

// ExecuteFunc is the body of a task. It is invoked at most once per attempt
// and must honor ctx cancellation for graceful shutdown.
type ExecuteFunc func(ctx context.Context) error

// CancelFunc removes a submitted task from the backlog. It reports whether
// the task was actually removed: it returns false once the task has started
// executing or has already finished.
type CancelFunc func() bool

// Option customizes a submitted task.
type Option func(*task)

// WithPriority sets the task's priority. Higher priorities are admitted
// first; the default is 0.
func WithPriority(priority int) Option {
	return func(t *task) {
		t.priority = priority
	}
}

// WithMaxRetries overrides the scheduler's default retry ceiling for this
// task.
func WithMaxRetries(maxRetries int) Option {
	return func(t *task) {
		if maxRetries >= 0 {
			t.maxRetries = maxRetries
		}
	}
}

// WithOnSuccess attaches a callback invoked once after the task completes
// successfully.
func WithOnSuccess(fn func()) Option {
	return func(t *task) {
		t.onSuccess = fn
	}
}

// WithOnError attaches a callback invoked with the failure of each attempt,
// including the terminal one.
func WithOnError(fn func(error)) Option {
	return func(t *task) {
		t.onError = fn
	}
}

// task is a unit of background work tracked by the scheduler.
// Tasks are created at submission, mutated only by the scheduler (retry
// count), and dropped on terminal success, terminal failure, or cancellation
// while pending.
type task struct {
	id         string
	execute    ExecuteFunc
	onSuccess  func()
	onError    func(error)
	retries    int
	maxRetries int
	priority   int
}
