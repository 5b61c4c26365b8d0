package workqueue

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPending means the item is already waiting to run.
	ErrPending = errors.New("work already pending")
	// ErrCanceled means CancelSync has been called on the item.
	ErrCanceled = errors.New("work canceled")
	// ErrDestroyed means the queue no longer accepts work.
	ErrDestroyed = errors.New("work queue destroyed")
)

// Queue owns a single worker goroutine.
type Queue struct {
	name   string
	logger *zap.Logger

	items     chan *DelayedWork
	quit      chan struct{}
	done      chan struct{}
	destroyed atomic.Bool
	once      sync.Once
}

// New starts a queue and its worker.
func New(name string, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		name:   name,
		logger: logger.With(zap.String("queue", name)),
		items:  make(chan *DelayedWork, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.worker()
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Destroyed reports whether Destroy has been called.
func (q *Queue) Destroyed() bool { return q.destroyed.Load() }

// Destroy stops the worker after any running item returns. Items still
// waiting are dropped.
func (q *Queue) Destroy() {
	q.once.Do(func() {
		q.destroyed.Store(true)
		close(q.quit)
	})
	<-q.done
}

func (q *Queue) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case w := <-q.items:
			w.run()
		}
	}
}

// NewDelayedWork binds fn to the queue. Nothing runs until Schedule.
func (q *Queue) NewDelayedWork(fn func()) *DelayedWork {
	return &DelayedWork{q: q, fn: fn}
}

// DelayedWork is a reusable work item.
type DelayedWork struct {
	q  *Queue
	fn func()

	// runMu is held while fn executes; CancelSync acquires it to wait.
	runMu sync.Mutex

	mu        sync.Mutex
	timer     *time.Timer
	pending   bool
	canceling bool
}

// Schedule queues the item to run once after delay.
func (w *DelayedWork) Schedule(delay time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.q.Destroyed():
		return ErrDestroyed
	case w.canceling:
		return ErrCanceled
	case w.pending:
		return ErrPending
	}

	w.pending = true
	w.timer = time.AfterFunc(delay, w.enqueue)
	return nil
}

// Pending reports whether the item is waiting to run.
func (w *DelayedWork) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *DelayedWork) enqueue() {
	select {
	case w.q.items <- w:
	case <-w.q.quit:
		w.mu.Lock()
		w.pending = false
		w.mu.Unlock()
	}
}

func (w *DelayedWork) run() {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.mu.Lock()
	w.pending = false
	canceled := w.canceling
	w.mu.Unlock()
	if canceled {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.q.logger.Error("Work item panicked", zap.Any("panic", r))
		}
	}()
	w.fn()
}

// CancelSync cancels a pending run and waits for a running one to finish.
// After it returns the item never runs again and Schedule fails with
// ErrCanceled, including from inside the item itself. It must not be
// called from the item's own callback. Returns whether a run was pending.
func (w *DelayedWork) CancelSync() bool {
	w.mu.Lock()
	w.canceling = true
	wasPending := w.pending
	if w.timer != nil && w.timer.Stop() {
		w.pending = false
	}
	w.mu.Unlock()

	w.runMu.Lock()
	w.runMu.Unlock()
	return wasPending
}
