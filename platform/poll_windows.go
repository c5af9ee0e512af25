//go:build windows

package platform

import (
	"golang.org/x/sys/windows"

	"github.com/ardnew/tyhs/pkg"
)

// Handle is a Windows wait-object handle (a manual-reset event for the
// monitor's notification queue, an OVERLAPPED event for a pending Port
// read).
type Handle = windows.Handle

// poll waits on sources as wait objects via WaitForMultipleObjects. Windows
// has no per-handle readable/writable distinction at this layer: a
// signaled event just means "check me", so every Source is reported
// EventReadable on wake, matching how the monitor and Port treat their
// manual-reset/overlapped events.
func poll(sources []Source, timeoutMs int) (int, error) {
	if len(sources) == 0 {
		if timeoutMs < 0 {
			return 0, pkg.Errorf(pkg.System, "poll: no sources and infinite timeout")
		}
		windows.Sleep(uint32(timeoutMs))
		return 0, nil
	}

	handles := make([]windows.Handle, len(sources))
	for i := range sources {
		handles[i] = sources[i].Handle
	}

	wait := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		wait = uint32(timeoutMs)
	}

	for {
		idx, timedOut, err := waitForMultipleObjects(handles, wait)
		if err != nil {
			return 0, pkg.Errorf(pkg.System, "WaitForMultipleObjects: %v", err)
		}
		if timedOut {
			return 0, nil
		}
		if idx < 0 || idx >= len(sources) {
			continue
		}
		sources[idx].Ready = EventReadable
		return 1, nil
	}
}

// waitForMultipleObjects wraps windows.WaitForMultipleObjects, translating
// its WAIT_OBJECT_0-relative return into a slice index. WAIT_TIMEOUT comes
// back as a successful event code, not an error, so it is reported through
// the timedOut return rather than err.
func waitForMultipleObjects(handles []windows.Handle, timeoutMs uint32) (idx int, timedOut bool, err error) {
	event, err := windows.WaitForMultipleObjects(handles, false, timeoutMs)
	if err != nil {
		return -1, false, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return -1, true, nil
	}
	if event >= uint32(windows.WAIT_OBJECT_0) && int(event-uint32(windows.WAIT_OBJECT_0)) < len(handles) {
		return int(event - uint32(windows.WAIT_OBJECT_0)), false, nil
	}
	return -1, false, pkg.Errorf(pkg.System, "WaitForMultipleObjects: unexpected return %#x", event)
}
