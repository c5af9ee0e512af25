package board

import (
	"sync"
	"time"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/match"
	"github.com/ardnew/tyhs/monitor"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/port"
)

var log = pkg.NewContext(pkg.ComponentBoard)

// DefaultGracePeriod is how long a Board stays Missing before Sweep
// drops it, absent an explicit grace passed to NewBoardSet. Fixed at 5s,
// inside spec.md §9's [1s, 10s] range.
const DefaultGracePeriod = 5 * time.Second

// BoardSet subscribes to a Monitor and groups its devices into Boards by
// (location, serial_number_or_location), per spec.md §4.11. It owns the
// grace-period sweep that drops boards missing too long.
type BoardSet struct {
	mon   *monitor.Monitor
	grace time.Duration

	mu     sync.RWMutex
	boards map[string]*Board

	waitersMu sync.Mutex
	waiters   []waiter
}

type waiter struct {
	cap Capability
	ch  chan *Board
}

// NewBoardSet creates a BoardSet that groups devices matching specs. grace
// <= 0 uses DefaultGracePeriod.
func NewBoardSet(specs []match.Spec, grace time.Duration) *BoardSet {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &BoardSet{
		mon:    monitor.New(specs),
		grace:  grace,
		boards: make(map[string]*Board),
	}
}

// Start begins monitoring.
func (s *BoardSet) Start() error { return s.mon.Start() }

// Stop halts monitoring.
func (s *BoardSet) Stop() error { return s.mon.Stop() }

// PollHandle exposes the underlying Monitor's poll handle.
func (s *BoardSet) PollHandle() int { return s.mon.PollHandle() }

// groupKey computes the (location, serial|location) grouping key spec.md
// §4.11 names.
func groupKey(d *device.Device) string {
	if d.SerialNumber != "" {
		return d.Location + "|" + d.SerialNumber
	}
	return d.Location
}

// Refresh drains the underlying Monitor and updates the board table,
// notifying cb once per board that changed state (added, capability
// change, or status transition).
func (s *BoardSet) Refresh(cb func(*Board)) error {
	return s.mon.Refresh(func(d *device.Device) error {
		key := groupKey(d)

		if d.Status == device.StatusDisconnected {
			s.mu.Lock()
			b, ok := s.boards[key]
			s.mu.Unlock()
			if !ok {
				return nil
			}
			empty := b.removeDevice(d.Key)
			if empty {
				b.markMissing(time.Now())
			}
			if cb != nil {
				cb(b)
			}
			return nil
		}

		s.mu.Lock()
		b, ok := s.boards[key]
		if !ok {
			b = newBoard(tagFor(d))
			s.boards[key] = b
		}
		s.mu.Unlock()

		b.addDevice(d)
		s.notifyWaiters(b)
		if cb != nil {
			cb(b)
		}
		return nil
	})
}

func tagFor(d *device.Device) string {
	if d.SerialNumber != "" {
		return d.SerialNumber + "@" + d.Location
	}
	return d.Location
}

// List returns a snapshot of every tracked Board.
func (s *BoardSet) List() []*Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Board, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b)
	}
	return out
}

// Sweep drops every Board whose Missing duration exceeds the configured
// grace period.
func (s *BoardSet) Sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.boards {
		if b.Status() != StatusMissing {
			continue
		}
		if now.Sub(b.MissingSince()) > s.grace {
			b.mu.Lock()
			b.status = StatusDropped
			b.mu.Unlock()
			delete(s.boards, key)
			pkg.LogInfo(pkg.ComponentBoard, "board dropped after grace period", "tag", b.Tag())
		}
	}
}

// OpenInterface opens the first interface of b offering cap, with cfg
// applied if it's a serial interface.
func OpenInterface(b *Board, cap Capability, cfg port.SerialConfig) (*port.Port, error) {
	d := b.openInterface(cap)
	if d == nil {
		return nil, log.Errorf(pkg.NotFound, "board %s has no interface with capability %d", b.Tag(), cap)
	}
	mode := port.ModeReadWrite
	return port.Open(d, mode, cfg)
}

// WaitFor blocks until some Board gains capability cap or timeout elapses,
// returning the Board or nil on timeout. Used across reboot->bootloader
// transitions (spec.md §4.11).
func (s *BoardSet) WaitFor(cap Capability, timeout time.Duration) *Board {
	s.mu.RLock()
	for _, b := range s.boards {
		if b.Capabilities().Has(cap) {
			s.mu.RUnlock()
			return b
		}
	}
	s.mu.RUnlock()

	ch := make(chan *Board, 1)
	w := waiter{cap: cap, ch: ch}
	s.waitersMu.Lock()
	s.waiters = append(s.waiters, w)
	s.waitersMu.Unlock()

	select {
	case b := <-ch:
		return b
	case <-time.After(timeout):
		s.removeWaiter(ch)
		return nil
	}
}

func (s *BoardSet) notifyWaiters(b *Board) {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()
	remaining := s.waiters[:0]
	for _, w := range s.waiters {
		if b.Capabilities().Has(w.cap) {
			w.ch <- b
			continue
		}
		remaining = append(remaining, w)
	}
	s.waiters = remaining
}

func (s *BoardSet) removeWaiter(ch chan *Board) {
	s.waitersMu.Lock()
	defer s.waitersMu.Unlock()
	for i, w := range s.waiters {
		if w.ch == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
