// Package bootloader drives the reboot/program/reset sequence described in
// spec.md §4.13 against a Board's open Port, independent of any particular
// MCU family beyond what board.Model already records (block size, code
// size, RUN/BOOTLOADER VID:PID pairs).
package bootloader

import (
	"context"
	"time"

	"github.com/ardnew/tyhs/board"
	"github.com/ardnew/tyhs/firmware"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/port"
)

var log = pkg.NewContext(pkg.ComponentBootloader)

// DefaultRebootTimeout bounds how long Driver.Reboot waits for the board to
// reappear offering CapUpload, per spec.md §4.13 step 2.
const DefaultRebootTimeout = 15 * time.Second

// DefaultRetries is how many times a transient I/O failure during Program
// is retried before the block is considered failed, per spec.md §4.14.
const DefaultRetries = 3

// Progress reports bytes streamed so far against the total, matching the
// (action, value, max) shape a Task surfaces to its observers.
type Progress struct {
	Action string
	Value  int
	Max    int
}

// ProgressFunc receives Progress reports as Driver.Program streams blocks.
type ProgressFunc func(Progress)

// Option configures a Driver, following the functional-options style the
// reference cyacd-style bootloader package uses for WithTimeout/WithRetries.
type Option func(*Driver)

// WithTimeout overrides DefaultRebootTimeout.
func WithTimeout(d time.Duration) Option {
	return func(drv *Driver) { drv.rebootTimeout = d }
}

// WithRetries overrides DefaultRetries.
func WithRetries(n int) Option {
	return func(drv *Driver) { drv.retries = n }
}

// WithProgressCallback registers a callback invoked as Program streams
// data; it may be called from the goroutine driving Program.
func WithProgressCallback(fn ProgressFunc) Option {
	return func(drv *Driver) { drv.progress = fn }
}

// Flag toggles optional Driver.Program behavior.
type Flag uint8

// Upload flags, per spec.md §4.13.
const (
	// NoResetAfter skips the bootloader's reset-to-run command after a
	// successful program.
	NoResetAfter Flag = 1 << iota
)

// Driver programs one Board, selecting whichever of its interfaces the
// requested operation needs and reconnecting across the RUN<->BOOTLOADER
// transition via board.BoardSet.WaitFor.
type Driver struct {
	boards *board.BoardSet
	b      *board.Board

	rebootTimeout time.Duration
	retries       int
	progress      ProgressFunc
}

// New creates a Driver for b, tracked within boards (used to wait for the
// board to reappear in bootloader personality after a reboot command).
func New(boards *board.BoardSet, b *board.Board, opts ...Option) *Driver {
	drv := &Driver{
		boards:        boards,
		b:             b,
		rebootTimeout: DefaultRebootTimeout,
		retries:       DefaultRetries,
	}
	for _, opt := range opts {
		opt(drv)
	}
	return drv
}

func (d *Driver) report(action string, value, max int) {
	if d.progress != nil {
		d.progress(Progress{Action: action, Value: value, Max: max})
	}
}

// ensureUpload returns a Port open on an interface offering CapUpload,
// rebooting the board into its bootloader personality first if needed, per
// spec.md §4.13 steps 1-2.
func (d *Driver) ensureUpload(ctx context.Context) (*port.Port, error) {
	if d.b.Capabilities().Has(board.CapUpload) {
		return board.OpenInterface(d.b, board.CapUpload, port.DefaultSerialConfig())
	}
	if !d.b.Capabilities().Has(board.CapReboot) {
		return nil, log.Errorf(pkg.NotFound, "board %s offers neither UPLOAD nor REBOOT", d.b.Tag())
	}
	if err := d.sendReboot(ctx); err != nil {
		return nil, err
	}
	target := d.boards.WaitFor(board.CapUpload, d.rebootTimeout)
	if target == nil {
		return nil, log.Errorf(pkg.Io, "board %s did not reappear in bootloader mode within %s", d.b.Tag(), d.rebootTimeout)
	}
	d.b = target
	return board.OpenInterface(d.b, board.CapUpload, port.DefaultSerialConfig())
}

// rebootCommand is the RUN-interface feature report that requests a
// transition to bootloader mode: report ID 0 (unnumbered), command byte
// 0xA9. Halfkay-family bootloaders recognize this single command byte.
var rebootCommand = []byte{0x00, 0xA9}

// resetCommand is the BOOTLOADER-interface feature report that requests a
// transition back to the application, per spec.md §4.13 step 6.
var resetCommand = []byte{0x00, 0xB0}

func (d *Driver) sendReboot(ctx context.Context) error {
	p, err := board.OpenInterface(d.b, board.CapReboot, port.DefaultSerialConfig())
	if err != nil {
		return err
	}
	defer p.Close()
	if _, err := p.SendFeatureReport(rebootCommand); err != nil {
		return log.Wrap(pkg.Io, err, "reboot-to-bootloader command")
	}
	return nil
}

// Reboot issues the reboot-to-bootloader command and waits for the board
// to reappear offering CapUpload, without programming anything.
func (d *Driver) Reboot(ctx context.Context) (*board.Board, error) {
	if d.b.Capabilities().Has(board.CapUpload) {
		return d.b, nil
	}
	if err := d.sendReboot(ctx); err != nil {
		return nil, err
	}
	target := d.boards.WaitFor(board.CapUpload, d.rebootTimeout)
	if target == nil {
		return nil, log.Errorf(pkg.Io, "board %s did not reappear in bootloader mode within %s", d.b.Tag(), d.rebootTimeout)
	}
	d.b = target
	return target, nil
}

// Reset issues the bootloader's reset-to-run command against whichever
// interface currently offers CapReset.
func (d *Driver) Reset(ctx context.Context) error {
	p, err := board.OpenInterface(d.b, board.CapReset, port.DefaultSerialConfig())
	if err != nil {
		return err
	}
	defer p.Close()
	if _, err := p.SendFeatureReport(resetCommand); err != nil {
		return log.Wrap(pkg.Io, err, "reset-to-run command")
	}
	return nil
}

// selectFirmware returns the first of firmwares whose signature matches
// d.b's model, per spec.md §4.13 step 3. A model with an empty Signature
// accepts only a sole candidate firmware.
func selectFirmware(firmwares []*firmware.Firmware, m board.Model) (*firmware.Firmware, error) {
	if len(m.Signature) > 0 {
		for _, f := range firmwares {
			if f.MatchesSignature(m.SignatureOffset, m.Signature) {
				return f, nil
			}
		}
	}
	if len(firmwares) == 1 && len(m.Signature) == 0 {
		return firmwares[0], nil
	}
	return nil, log.Errorf(pkg.NotFound, "no firmware matches board model %s", m.Name)
}

// Program drives the full upload sequence: reboot-to-bootloader if needed,
// firmware selection, size/gap validation, block streaming, and (unless
// NoResetAfter) a reset back to the application.
func (d *Driver) Program(ctx context.Context, firmwares []*firmware.Firmware, flags Flag) (*firmware.Firmware, error) {
	p, err := d.ensureUpload(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	m := d.b.Model()
	fw, err := selectFirmware(firmwares, m)
	if err != nil {
		return nil, err
	}
	if err := fw.Validate(m.CodeSize); err != nil {
		return nil, err
	}

	if err := d.streamBlocks(ctx, p, fw, m); err != nil {
		return nil, err
	}

	if flags&NoResetAfter == 0 {
		if err := d.Reset(ctx); err != nil {
			return fw, err
		}
	}
	return fw, nil
}
