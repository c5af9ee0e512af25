package board

import (
	"sync"
	"time"

	"github.com/ardnew/tyhs/device"
)

// Status tracks a Board's lifecycle across reconnects.
type Status uint8

// Board statuses.
const (
	StatusOnline Status = iota
	StatusMissing
	StatusDropped
)

// iface pairs one of a Board's Devices with the capabilities it
// contributes.
type iface struct {
	dev  *device.Device
	caps Capability
}

// Board groups one or more USB interfaces belonging to the same physical
// device into a single logical entity, per spec.md §4.11. All fields are
// guarded by mu; callers only ever see Board through its accessor methods.
type Board struct {
	mu sync.RWMutex

	tag          string
	model        Model
	personality  Personality
	status       Status
	interfaces   []iface
	capabilities Capability
	missingSince time.Time
}

// newBoard creates an empty Board for the grouping key (location,
// serial-or-location); the caller inserts the first interface immediately
// after.
func newBoard(tag string) *Board {
	return &Board{tag: tag, model: Unknown, status: StatusOnline}
}

// Tag returns the board's user-facing identifier.
func (b *Board) Tag() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tag
}

// Model returns the board's currently matched Model, or Unknown.
func (b *Board) Model() Model {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// Status returns the board's current lifecycle status.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Capabilities returns the union of every live interface's capability
// bits.
func (b *Board) Capabilities() Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capabilities
}

// MissingSince returns the instant the board's last interface disappeared.
// Only meaningful when Status() == StatusMissing.
func (b *Board) MissingSince() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.missingSince
}

// VendorID returns the VID of the board's first live interface, and false
// if the board currently has none. Useful for a caller wanting a
// human-readable vendor name for a board whose Model is Unknown.
func (b *Board) VendorID() (uint16, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.interfaces) == 0 {
		return 0, false
	}
	return b.interfaces[0].dev.VID, true
}

// openInterface picks the first live interface offering capability want.
func (b *Board) openInterface(want Capability) *device.Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, f := range b.interfaces {
		if f.caps.Has(want) {
			return f.dev
		}
	}
	return nil
}

// addDevice inserts d, deriving its capability bits from the matched
// Model/Personality, and recomputes the board's capability union. Returns
// the capability bits assigned to d.
func (b *Board) addDevice(d *device.Device) Capability {
	b.mu.Lock()
	defer b.mu.Unlock()

	var caps Capability
	if m, pers, ok := ModelByPersonality(d.VID, d.PID); ok {
		b.model = m
		b.personality = pers
		switch pers {
		case PersonalityBootloader:
			caps |= CapUpload | CapReset
		case PersonalityRun:
			caps |= CapRun | CapReboot
		}
	}
	if d.Type == device.TypeSerial {
		caps |= CapSerial
	}
	if d.SerialNumber != "" {
		caps |= CapUnique
	}

	b.interfaces = append(b.interfaces, iface{dev: d, caps: caps})
	b.recomputeCapabilitiesLocked()
	b.status = StatusOnline
	b.missingSince = time.Time{}
	return caps
}

// removeDevice drops the interface matching key, returning true if the
// board has no interfaces left (the caller should transition it to
// Missing).
func (b *Board) removeDevice(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, f := range b.interfaces {
		if f.dev.Key == key {
			b.interfaces = append(b.interfaces[:i], b.interfaces[i+1:]...)
			break
		}
	}
	b.recomputeCapabilitiesLocked()
	return len(b.interfaces) == 0
}

func (b *Board) recomputeCapabilitiesLocked() {
	var caps Capability
	for _, f := range b.interfaces {
		caps |= f.caps
	}
	b.capabilities = caps
}

func (b *Board) markMissing(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusMissing {
		b.status = StatusMissing
		b.missingSince = now
	}
}

func (b *Board) interfaceCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.interfaces)
}
