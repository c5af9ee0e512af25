// Package tyboard is the consumer-facing façade over board, bootloader,
// and task: one Board method call returns a submitted *task.Task rather
// than requiring the caller to wire a Driver and a Pool together by hand,
// following the thin-façade-over-a-richer-internal-type shape the
// teacher's Host type uses for its own public surface.
package tyboard

import (
	"context"

	"github.com/ardnew/tyhs/board"
	"github.com/ardnew/tyhs/bootloader"
	"github.com/ardnew/tyhs/firmware"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/port"
	"github.com/ardnew/tyhs/task"
)

// Board wraps one board.Board with the BoardSet and Pool needed to run
// operations against it as Tasks.
type Board struct {
	set  *board.BoardSet
	pool *task.Pool
	b    *board.Board
}

// Wrap returns a façade for b, scheduling its operations on pool and using
// set to wait across RUN<->BOOTLOADER transitions.
func Wrap(set *board.BoardSet, pool *task.Pool, b *board.Board) *Board {
	return &Board{set: set, pool: pool, b: b}
}

// Tag returns the underlying Board's identifier.
func (w *Board) Tag() string { return w.b.Tag() }

// Underlying returns the wrapped board.Board, for callers that need direct
// access to capabilities or status.
func (w *Board) Underlying() *board.Board { return w.b }

// Upload submits a firmware-programming Task, per spec.md §4.13.
func (w *Board) Upload(ctx context.Context, firmwares []*firmware.Firmware, flags bootloader.Flag, opts ...bootloader.Option) *task.Task {
	t := task.New(w.b.Tag(), func(ctx context.Context, progress task.ProgressFunc, cancelled func() bool) (any, error) {
		allOpts := append([]bootloader.Option{
			bootloader.WithProgressCallback(func(p bootloader.Progress) {
				progress(task.Progress{Action: p.Action, Value: p.Value, Max: p.Max})
			}),
		}, opts...)
		drv := bootloader.New(w.set, w.b, allOpts...)
		fw, err := drv.Program(ctx, firmwares, flags)
		return fw, err
	})
	w.pool.Submit(ctx, t)
	return t
}

// Reboot submits a Task that reboots the board into bootloader mode.
func (w *Board) Reboot(ctx context.Context, opts ...bootloader.Option) *task.Task {
	t := task.New(w.b.Tag(), func(ctx context.Context, progress task.ProgressFunc, cancelled func() bool) (any, error) {
		drv := bootloader.New(w.set, w.b, opts...)
		return drv.Reboot(ctx)
	})
	w.pool.Submit(ctx, t)
	return t
}

// Reset submits a Task that issues the bootloader's reset-to-run command.
func (w *Board) Reset(ctx context.Context, opts ...bootloader.Option) *task.Task {
	t := task.New(w.b.Tag(), func(ctx context.Context, progress task.ProgressFunc, cancelled func() bool) (any, error) {
		drv := bootloader.New(w.set, w.b, opts...)
		return nil, drv.Reset(ctx)
	})
	w.pool.Submit(ctx, t)
	return t
}

const sendChunkSize = 4096

// Send submits a Task that writes data through an opened Serial port,
// reporting progress by bytes sent.
func (w *Board) Send(ctx context.Context, data []byte, cfg port.SerialConfig) *task.Task {
	t := task.New(w.b.Tag(), func(ctx context.Context, progress task.ProgressFunc, cancelled func() bool) (any, error) {
		p, err := board.OpenInterface(w.b, board.CapSerial, cfg)
		if err != nil {
			return nil, err
		}
		defer p.Close()

		sent := 0
		for sent < len(data) {
			if cancelled() {
				return nil, pkg.Errorf(pkg.Io, "send cancelled on board %s", w.b.Tag())
			}
			end := sent + sendChunkSize
			if end > len(data) {
				end = len(data)
			}
			n, err := p.Write(data[sent:end], 5000)
			sent += n
			if err != nil {
				return nil, err
			}
			progress(task.Progress{Action: "send", Value: sent, Max: len(data)})
		}
		return nil, nil
	})
	w.pool.Submit(ctx, t)
	return t
}

// Open opens the board's interface offering cap, synchronously (not a
// Task: spec.md §5 lists port open outside the set of blocking-by-design
// operations gated through the Pool).
func (w *Board) Open(cap board.Capability, cfg port.SerialConfig) (*port.Port, error) {
	return board.OpenInterface(w.b, cap, cfg)
}

// Close closes a Port previously returned by Open.
func (w *Board) Close(p *port.Port) error {
	return p.Close()
}
