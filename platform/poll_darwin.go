//go:build darwin

package platform

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/pkg"
)

// Handle is a macOS file descriptor (a kqueue fd wrapping the monitor's
// Mach port set, or a pipe fd for a HID Port's report queue).
type Handle = int

// poll multiplexes sources over a throwaway kqueue, registering each handle
// for the events it asked for. This mirrors the role spec.md's macOS
// monitor gives a kqueue with an EVFILT_MACHPORT filter: here the caller
// has already reduced any Mach port set down to a plain fd, so a generic
// EVFILT_READ/EVFILT_WRITE registration suffices.
func poll(sources []Source, timeoutMs int) (int, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return 0, pkg.Errorf(pkg.System, "kqueue: %v", err)
	}
	defer unix.Close(kq)

	changes := make([]unix.Kevent_t, 0, len(sources)*2)
	for i, s := range sources {
		if s.Events&EventReadable != 0 {
			changes = append(changes, kevent(s.Handle, unix.EVFILT_READ, i))
		}
		if s.Events&EventWritable != 0 {
			changes = append(changes, kevent(s.Handle, unix.EVFILT_WRITE, i))
		}
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(kq, changes, nil, nil); err != nil {
			return 0, pkg.Errorf(pkg.System, "kevent(register): %v", err)
		}
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}

	events := make([]unix.Kevent_t, len(sources)*2)
	for {
		n, err := unix.Kevent(kq, nil, events, ts)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, pkg.Errorf(pkg.System, "kevent(wait): %v", err)
		}

		ready := 0
		for i := 0; i < n; i++ {
			idx := int(uintptr(unsafe.Pointer(events[i].Udata)))
			if idx < 0 || idx >= len(sources) {
				continue
			}
			if sources[idx].Ready == 0 {
				ready++
			}
			switch events[i].Filter {
			case unix.EVFILT_READ:
				sources[idx].Ready |= EventReadable
			case unix.EVFILT_WRITE:
				sources[idx].Ready |= EventWritable
			}
		}
		return ready, nil
	}
}

func kevent(fd int, filter int16, idx int) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
		Udata:  (*byte)(unsafe.Pointer(uintptr(idx))),
	}
}
