// Package task implements the long-running-operation engine spec.md §4.13
// describes: a Ready->Pending->Running->Finished state machine with
// cooperative cancellation and progress reporting, and a Pool that
// schedules Tasks onto a bounded set of worker goroutines with per-board
// FIFO serialization.
package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ardnew/tyhs/pkg"
)

var log = pkg.NewContext(pkg.ComponentTask)

// Status is a Task's position in its state machine.
type Status int32

// Task statuses, per spec.md §4.13.
const (
	StatusReady Status = iota
	StatusPending
	StatusRunning
	StatusFinished
)

// String returns the status's name.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Progress is one progress report a Func emits via the ProgressFunc it's
// handed.
type Progress struct {
	Action string
	Value  int
	Max    int
}

// ProgressFunc is passed into a Func; calling it after Cancel has been
// requested still delivers the report to observers but Cancelled() starts
// returning true so the Func can wind down.
type ProgressFunc func(Progress)

// Func is the operation a Task runs: reboot, reset, program, or a serial
// send. cancelled reports whether the Task's cancellation flag has been
// set; the Func must poll it at natural checkpoints (spec.md §5).
type Func func(ctx context.Context, progress ProgressFunc, cancelled func() bool) (any, error)

// Handle is the transferred-ownership view of a Finished Task's result,
// per spec.md §4.13's "shared handle with a cleanup callback". Release
// must be called exactly once when the caller is done with Value; a Task
// whose Handle is never retrieved simply drops its result.
type Handle struct {
	Value   any
	release func()
}

// Release runs the handle's cleanup callback, if any. Safe to call more
// than once.
func (h *Handle) Release() {
	if h.release != nil {
		h.release()
		h.release = nil
	}
}

// Task is one unit of work submitted to a Pool. Board is the FIFO
// serialization key spec.md §4.13 names (typically a board.Board's Tag).
type Task struct {
	Board string
	fn    Func

	status    atomic.Int32
	cancelled atomic.Bool

	mu       sync.Mutex
	err      error
	result   any
	observer ProgressFunc
	done     chan struct{}
}

// New creates a Task bound to board, running fn when a Pool schedules it.
func New(board string, fn Func) *Task {
	return &Task{
		Board: board,
		fn:    fn,
		done:  make(chan struct{}),
	}
}

// Status returns the Task's current state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Observe registers a callback invoked for every Progress report the Func
// emits. Only one observer is supported; a later call replaces the
// earlier one.
func (t *Task) Observe(fn ProgressFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = fn
}

// Cancel sets the cooperative cancellation flag. It does not itself stop a
// running Func; the Func must be checking Cancelled via its cancelled
// callback.
func (t *Task) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Done returns a channel closed when the Task reaches StatusFinished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the Task finishes, or ctx is done, and returns the
// Task's terminal error (nil on success).
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns a Handle to the Task's result. ok is false until the
// Task reaches StatusFinished.
func (t *Task) Result() (*Handle, bool) {
	if t.Status() != StatusFinished {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Handle{Value: t.result, release: func() { t.result = nil }}, true
}

// Err returns the Task's terminal error. Only meaningful once Status is
// StatusFinished.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Run executes the Task on the caller's own goroutine, without a Pool,
// per spec.md §3/§5's no-pool path ("if none, it runs on the caller's
// thread synchronously when started"). It blocks until the Task reaches
// StatusFinished and returns the same terminal error Wait/Err would, or
// ctx.Err() if ctx is already done before the Task starts.
func (t *Task) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.markPending()
	t.run(ctx)
	return t.Err()
}

// markPending transitions Ready->Pending on submission to a Pool.
func (t *Task) markPending() { t.status.Store(int32(StatusPending)) }

// run executes fn, transitioning Pending->Running->Finished and recording
// the result/error, per spec.md §4.13's state machine.
func (t *Task) run(ctx context.Context) {
	t.status.Store(int32(StatusRunning))

	progress := func(p Progress) {
		t.mu.Lock()
		obs := t.observer
		t.mu.Unlock()
		if obs != nil {
			obs(p)
		}
	}

	result, err := t.fn(ctx, progress, t.Cancelled)
	if err == nil && t.Cancelled() {
		err = log.Errorf(pkg.Io, "task on board %s cancelled", t.Board)
	}

	t.mu.Lock()
	t.result = result
	t.err = err
	t.mu.Unlock()

	t.status.Store(int32(StatusFinished))
	close(t.done)
}
