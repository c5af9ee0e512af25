// Package port opens one interface of a device.Device for I/O: a serial
// line over a tty, or a HID device over hidraw/IOHIDDevice/HID API report
// reads and writes. Per-OS files (port_linux.go, port_windows.go,
// port_darwin.go) supply the actual read/write/configure implementation;
// this file holds the shared Port type, Mode, and SerialConfig.
package port

import (
	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

// Mode is the open direction requested for a Port.
type Mode uint8

// Port open modes.
const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeReadWrite = ModeRead | ModeWrite
)

// Parity selects the serial parity bit scheme.
type Parity uint8

// Parity settings.
const (
	ParityOff Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

// RTS selects RTS/hardware-flow-control pin behavior.
type RTS uint8

// RTS settings.
const (
	RTSOff RTS = iota
	RTSOn
	RTSFlow
)

// DTR selects whether DTR is asserted on open.
type DTR uint8

// DTR settings.
const (
	DTROff DTR = iota
	DTROn
)

// XonXoff selects software flow control direction.
type XonXoff uint8

// XonXoff settings.
const (
	XonXoffOff XonXoff = iota
	XonXoffIn
	XonXoffOut
	XonXoffInOut
)

// SerialConfig is the full set of line parameters a serial Port accepts,
// per spec.md §6. The zero value is not a valid configuration; callers
// should start from DefaultSerialConfig.
type SerialConfig struct {
	Baud     int
	DataBits int // 5..8
	StopBits int // 1 or 2
	Parity   Parity
	RTS      RTS
	DTR      DTR
	XonXoff  XonXoff
}

// DefaultSerialConfig is 115200 8N1, DTR asserted, no flow control — the
// configuration most Teensy CDC-ACM interfaces expect.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Baud:     115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   ParityOff,
		RTS:      RTSOff,
		DTR:      DTROn,
		XonXoff:  XonXoffOff,
	}
}

// validBauds is the enumerated set spec.md §6 allows; an arbitrary baud
// rate is rejected rather than silently rounded to the nearest supported
// value.
var validBauds = map[int]bool{
	50: true, 75: true, 110: true, 134: true, 150: true, 200: true,
	300: true, 600: true, 1200: true, 1800: true, 2400: true, 4800: true,
	9600: true, 19200: true, 38400: true, 57600: true, 115200: true,
	230400: true, 460800: true, 500000: true, 576000: true, 921600: true,
	1000000: true, 1152000: true, 1500000: true, 2000000: true,
}

// Validate reports whether c's fields are all within the ranges spec.md
// §6 enumerates.
func (c SerialConfig) Validate() error {
	if !validBauds[c.Baud] {
		return pkg.Errorf(pkg.Parse, "unsupported baud rate %d", c.Baud)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return pkg.Errorf(pkg.Parse, "invalid data bits %d, want 5..8", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return pkg.Errorf(pkg.Parse, "invalid stop bits %d, want 1 or 2", c.StopBits)
	}
	return nil
}

// Port is one opened interface of a device.Device: a serial line or a HID
// report stream. It keeps its Device alive via NewRef/Release for as long
// as the Port itself is open.
type Port struct {
	device *device.Device
	mode   Mode
	impl   portImpl
}

// portImpl is the per-OS half of a Port: the actual fd/handle, read/write,
// and close logic. port_<os>.go supplies it.
type portImpl interface {
	readTimeout(buf []byte, timeoutMs int) (int, error)
	writeTimeout(buf []byte, timeoutMs int) (int, error)
	getFeatureReport(buf []byte) (int, error)
	sendFeatureReport(buf []byte) (int, error)
	pollHandle() int
	close() error
}

// Open opens d for I/O in mode. For a serial Device, cfg configures the
// line (ignored for HID devices).
func Open(d *device.Device, mode Mode, cfg SerialConfig) (*Port, error) {
	if d.Type == device.TypeSerial {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	impl, err := openImpl(d, mode, cfg)
	if err != nil {
		return nil, err
	}
	d.NewRef()
	return &Port{device: d, mode: mode, impl: impl}, nil
}

// Device returns the Device this Port was opened against.
func (p *Port) Device() *device.Device { return p.device }

// Close releases the underlying OS handle and the Port's Device reference.
func (p *Port) Close() error {
	err := p.impl.close()
	p.device.Release()
	return err
}

// PollHandle returns the descriptor or wait-object a caller can feed to
// platform.Poll to learn when a read would not block.
func (p *Port) PollHandle() int { return p.impl.pollHandle() }

// Read reads from a serial Port (streaming) or a HID Port (one report per
// call, per spec.md §4.8/§4.9's stream-vs-message split). timeoutMs == 0
// polls without blocking; -1 blocks indefinitely. Returns 0 on timeout.
func (p *Port) Read(buf []byte, timeoutMs int) (int, error) {
	return p.impl.readTimeout(buf, timeoutMs)
}

// Write writes to the Port, retrying internally until all bytes are sent
// or timeoutMs elapses; the return value is the number of bytes actually
// written, which may be less than len(buf) on timeout.
func (p *Port) Write(buf []byte, timeoutMs int) (int, error) {
	return p.impl.writeTimeout(buf, timeoutMs)
}

// GetFeatureReport issues a HID GET_FEATURE request; the first byte of buf
// must already hold the report ID. Returns an error for non-HID ports.
func (p *Port) GetFeatureReport(buf []byte) (int, error) {
	if p.device.Type != device.TypeHID {
		return 0, pkg.Errorf(pkg.System, "GetFeatureReport: not a HID port")
	}
	return p.impl.getFeatureReport(buf)
}

// SendFeatureReport issues a HID SET_FEATURE request. buf[0] is the report
// ID (0 for unnumbered reports, but it must still be present).
func (p *Port) SendFeatureReport(buf []byte) (int, error) {
	if p.device.Type != device.TypeHID {
		return 0, pkg.Errorf(pkg.System, "SendFeatureReport: not a HID port")
	}
	if len(buf) < 2 {
		return 0, nil
	}
	return p.impl.sendFeatureReport(buf)
}
