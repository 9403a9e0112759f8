package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
)

// Config holds configuration for the scheduler.
type Config struct {
	// MaxConcurrent determines how many tasks may execute at once.
	// If zero or negative, defaults to 2.
	MaxConcurrent int

	// MaxRetries is the default retry ceiling for submitted tasks.
	// If negative, defaults to DefaultMaxRetries.
	MaxRetries int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 2,
		MaxRetries:    DefaultMaxRetries,
	}
}

// Scheduler executes fire-and-forget background tasks with a fixed
// concurrency cap. Pending tasks wait in a backlog ordered by priority
// (higher first) with stable FIFO ordering among equal priorities. A failed
// task is re-enqueued at the tail of its priority band until its retry
// ceiling is reached, so other pending work gets a chance before the retry
// runs.
//
// The scheduler is process-wide state: construct one at startup, inject it
// where needed, and Stop it on shutdown.
type Scheduler struct {
	mu      sync.Mutex
	backlog []*task
	active  int
	stopped bool

	maxConcurrent     int
	defaultMaxRetries int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a Scheduler with the given configuration.
// If logger is nil, a default logger will be used.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		backlog:           make([]*task, 0),
		maxConcurrent:     maxConcurrent,
		defaultMaxRetries: maxRetries,
		ctx:               ctx,
		cancel:            cancel,
		logger:            logger.With(slog.String("component", "scheduler")),
	}
}

// Submit enqueues a task for background execution and returns a CancelFunc
// that removes it from the backlog while it is still pending. Submission
// never blocks on task execution: admission happens on the scheduler's own
// goroutine.
func (s *Scheduler) Submit(id string, execute ExecuteFunc, opts ...Option) CancelFunc {
	t := &task{
		id:         id,
		execute:    execute,
		maxRetries: s.defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(t)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("task submitted after shutdown, dropping", slog.String("task_id", id))
		return func() bool { return false }
	}
	s.enqueueLocked(t)
	s.mu.Unlock()

	s.logger.Debug("task submitted",
		slog.String("task_id", t.id),
		slog.Int("priority", t.priority),
		slog.Int("max_retries", t.maxRetries))

	go s.dispatch()

	return func() bool {
		return s.remove(t.id)
	}
}

// Active returns the number of currently executing tasks.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending returns the number of tasks waiting in the backlog.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

// Stop prevents further admissions and waits for executing tasks to finish.
// If ctx expires first, the tasks' contexts are cancelled and Stop returns
// ctx.Err(). Pending backlog entries are discarded.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	dropped := len(s.backlog)
	s.backlog = nil
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Info("discarding pending tasks on shutdown", slog.Int("count", dropped))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// enqueueLocked inserts the task into the backlog, keeping it sorted by
// priority descending with stable FIFO order among equals. Caller must hold
// s.mu.
func (s *Scheduler) enqueueLocked(t *task) {
	// A new arrival goes after every pending task of equal or higher
	// priority, which also puts retries at the tail of their band.
	idx := sort.Search(len(s.backlog), func(i int) bool {
		return s.backlog[i].priority < t.priority
	})
	s.backlog = append(s.backlog, nil)
	copy(s.backlog[idx+1:], s.backlog[idx:])
	s.backlog[idx] = t
}

// remove deletes the pending task with the given ID from the backlog,
// reporting whether it was found. A task that has started executing is not
// affected.
func (s *Scheduler) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.backlog {
		if t.id == id {
			s.backlog = append(s.backlog[:i], s.backlog[i+1:]...)
			s.logger.Debug("task cancelled while pending", slog.String("task_id", id))
			return true
		}
	}
	return false
}

// dispatch admits backlog tasks until every concurrency slot is filled or
// the backlog is empty. It is re-invoked after every state change (task
// submitted, task finished).
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	for !s.stopped && s.active < s.maxConcurrent && len(s.backlog) > 0 {
		t := s.backlog[0]
		s.backlog = s.backlog[1:]
		s.active++
		s.wg.Add(1)
		go s.run(t)
	}
	s.mu.Unlock()
}

// run executes one task attempt and handles its terminal outcome.
func (s *Scheduler) run(t *task) {
	defer s.wg.Done()

	err := s.executeAttempt(t)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("task execution failed",
			slog.String("task_id", t.id),
			slog.Int("attempt", t.retries+1),
			slog.String("error", err.Error()))

		if t.onError != nil {
			t.onError(err)
		}

		if t.retries < t.maxRetries {
			// Re-enqueue a copy at the tail of its priority band rather
			// than head-of-line, so other pending tasks run first.
			retry := *t
			retry.retries++

			s.mu.Lock()
			if !s.stopped {
				s.enqueueLocked(&retry)
			}
			s.mu.Unlock()
		} else {
			s.logger.Warn("task dropped after exhausting retries",
				slog.String("task_id", t.id),
				slog.Int("retries", t.retries))
		}
	} else {
		s.logger.Debug("task completed", slog.String("task_id", t.id))
		if t.onSuccess != nil {
			t.onSuccess()
		}
	}

	// A slot was freed either way; admit the next backlog entry.
	s.dispatch()
}

// executeAttempt runs the task body, converting a panic into an error so a
// misbehaving task never takes down the scheduler or its siblings.
func (s *Scheduler) executeAttempt(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked",
				slog.String("task_id", t.id),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("task %s panicked: %v", t.id, r)
		}
	}()

	return t.execute(s.ctx)
}
