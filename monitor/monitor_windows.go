//go:build windows

package monitor

import (
	"sync"

	"golang.org/x/sys/windows"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

// Device classes enumerated via SetupDiGetClassDevs, per spec.md §4.6.
// {4D36E978-E325-11CE-BFC1-08002BE10318} Ports, {4D1E55B2-F16F-11CF-88CB-001111000030} HIDClass.
var (
	guidPortsClass = windows.GUID{Data1: 0x4d36e978, Data2: 0xe325, Data3: 0x11ce, Data4: [8]byte{0xbf, 0xc1, 0x08, 0x00, 0x2b, 0xe1, 0x03, 0x18}}
	guidHIDClass   = windows.GUID{Data1: 0x4d1e55b2, Data2: 0xf16f, Data3: 0x11cf, Data4: [8]byte{0x88, 0xcb, 0x00, 0x11, 0x11, 0x00, 0x00, 0x30}}
)

// windowsBackend owns the manual-reset event that pollHandle returns and a
// lock-protected event queue that drain empties, resetting the event. No
// WM_DEVICECHANGE window or watcher thread is started, so nothing fills the
// queue or signals the event: drain returns no events, and devices are
// found only through enumerate, a one-shot SetupDiGetClassDevs walk.
type windowsBackend struct {
	event windows.Handle

	mu     sync.Mutex
	queue  []rawEvent
	active bool
}

func newBackend() backend {
	return &windowsBackend{}
}

func (b *windowsBackend) start() error {
	h, err := windows.CreateEvent(nil, 1 /* manual reset */, 0, nil)
	if err != nil {
		return pkg.Errorf(pkg.System, "CreateEvent: %v", err)
	}
	b.event = h
	b.active = true
	return nil
}

func (b *windowsBackend) stop() error {
	if !b.active {
		return nil
	}
	b.active = false
	return windows.CloseHandle(b.event)
}

func (b *windowsBackend) pollHandle() int {
	return int(b.event)
}

func (b *windowsBackend) drain() []rawEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	windows.ResetEvent(b.event)
	return out
}

func (b *windowsBackend) enumerate() ([]*device.Device, error) {
	devs, err := enumerateSetupDi()
	if err != nil {
		return nil, pkg.Errorf(pkg.System, "SetupDiGetClassDevs: %v", err)
	}
	return devs, nil
}

