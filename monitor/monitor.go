// Package monitor discovers USB HID and serial interfaces and tracks their
// connect/disconnect lifecycle. Each OS gets its own backend files
// (hotplug_linux.go and sysfs_linux.go; monitor_windows.go and
// setupapi_windows.go; iokit_darwin.go); this file holds the shared Monitor
// type, device table, and event dispatch that every backend drives.
package monitor

import (
	"sync"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/match"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/platform"
)

var log = pkg.NewContext(pkg.ComponentMonitor)

// Callback is invoked once per event during Refresh, List, or Enumerate. A
// non-nil return aborts the walk and is propagated to the caller.
type Callback func(*device.Device) error

// backend is the per-OS half of a Monitor: everything that actually talks
// to the kernel or a device manager. The per-OS files supply the
// implementation; Monitor wraps it with the device table and event
// semantics common to every platform.
type backend interface {
	start() error
	stop() error
	pollHandle() platform.Handle
	// drain reads pending OS events without blocking and reports each as
	// an add (device != nil) or a remove (key set, device nil).
	drain() []rawEvent
	// enumerate performs a one-shot OS walk and reports every currently
	// attached interface, matched or not; Monitor applies the match set.
	enumerate() ([]*device.Device, error)
}

type rawEvent struct {
	add    bool
	key    string
	device *device.Device
}

// Monitor tracks USB interfaces matching a fixed set of match.Spec values,
// exposing a cached device table plus Refresh/List/Enumerate per spec.md
// §4.4.
type Monitor struct {
	specs []match.Spec
	be    backend

	mu      sync.RWMutex
	devices map[string]*device.Device
	running bool
}

// New constructs a Monitor that will track devices matching any of specs.
// An empty specs slice matches every device.
func New(specs []match.Spec) *Monitor {
	return &Monitor{
		specs:   specs,
		be:      newBackend(),
		devices: make(map[string]*device.Device),
	}
}

// Start begins background event collection. It is a no-op if already
// running.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if err := m.be.start(); err != nil {
		return err
	}
	m.running = true
	return nil
}

// Stop halts background event collection. It is a no-op if not running.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	err := m.be.stop()
	m.running = false
	return err
}

// PollHandle returns the OS handle a caller can feed to platform.Poll
// alongside its own sources to learn when Refresh has work to do.
func (m *Monitor) PollHandle() platform.Handle {
	return m.be.pollHandle()
}

func (m *Monitor) matches(d *device.Device) (match.Spec, bool) {
	if len(m.specs) == 0 {
		return match.Spec{}, true
	}
	for _, s := range m.specs {
		if s.Matches(d) {
			return s, true
		}
	}
	return match.Spec{}, false
}

// Refresh drains pending OS events non-blockingly, updating the device
// table and invoking cb once per add/remove. It returns the first non-nil
// error cb returns, aborting early.
func (m *Monitor) Refresh(cb Callback) error {
	events := m.be.drain()

	for _, ev := range events {
		if ev.add {
			spec, ok := m.matches(ev.device)
			if !ok {
				pkg.LogDebug(pkg.ComponentMonitor, "device does not match any spec, dropping",
					"key", ev.device.Key, "vid", ev.device.VID, "pid", ev.device.PID)
				continue
			}
			ev.device.MatchUserData = spec.UserData

			m.mu.Lock()
			m.devices[ev.device.Key] = ev.device
			m.mu.Unlock()

			if err := cb(ev.device); err != nil {
				return err
			}
			continue
		}

		m.mu.Lock()
		d, ok := m.devices[ev.key]
		if ok {
			delete(m.devices, ev.key)
		}
		m.mu.Unlock()
		if !ok {
			continue
		}
		removed := device.Disconnected(d)
		if err := cb(removed); err != nil {
			return err
		}
	}

	return nil
}

// List walks the cached device table without touching the OS. Order is
// unspecified.
func (m *Monitor) List(cb Callback) error {
	m.mu.RLock()
	snapshot := make([]*device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		snapshot = append(snapshot, d)
	}
	m.mu.RUnlock()

	for _, d := range snapshot {
		if err := cb(d); err != nil {
			return err
		}
	}
	return nil
}

// Enumerate performs a one-shot OS walk, independent of any running
// Monitor's cache, and reports every currently attached device matching
// specs.
func Enumerate(specs []match.Spec, cb Callback) error {
	be := newBackend()
	all, err := be.enumerate()
	if err != nil {
		return log.Wrap(pkg.Io, err, "enumerate")
	}

	m := &Monitor{specs: specs}
	for _, d := range all {
		spec, ok := m.matches(d)
		if !ok {
			continue
		}
		d.MatchUserData = spec.UserData
		if err := cb(d); err != nil {
			return err
		}
	}
	return nil
}
