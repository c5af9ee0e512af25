//go:build windows

package port

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

// windowsPort implements portImpl over an overlapped CreateFile handle,
// per spec.md §4.9: always-pending async read, stream semantics for
// serial, one-report-per-completion for HID.
type windowsPort struct {
	handle windows.Handle
	typ    device.Type
	event  windows.Handle

	overlapped windows.Overlapped
	readBuf    []byte
	readPending bool
}

const serialReadBufSize = 16 * 1024

func openImpl(d *device.Device, mode Mode, cfg SerialConfig) (portImpl, error) {
	access := uint32(0)
	if mode&ModeRead != 0 {
		access |= windows.GENERIC_READ
	}
	if mode&ModeWrite != 0 {
		access |= windows.GENERIC_WRITE
	}

	pathPtr, err := windows.UTF16PtrFromString(d.Path)
	if err != nil {
		return nil, pkg.Errorf(pkg.Parse, "invalid path %q: %v", d.Path, err)
	}

	h, err := windows.CreateFile(pathPtr, access, 0, nil, windows.OPEN_EXISTING, windows.FILE_FLAG_OVERLAPPED, 0)
	if err != nil {
		return nil, pkg.Errorf(pkg.Io, "CreateFile(%s): %v", d.Path, err)
	}

	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(h)
		return nil, pkg.Errorf(pkg.System, "CreateEvent: %v", err)
	}

	p := &windowsPort{handle: h, typ: d.Type, event: ev}
	p.overlapped.HEvent = ev

	bufSize := serialReadBufSize
	if d.Type == device.TypeHID {
		bufSize = d.InputReportLen
		if bufSize == 0 {
			bufSize = 64
		}
	}
	p.readBuf = make([]byte, bufSize)

	if d.Type == device.TypeSerial {
		if err := p.configureSerial(cfg); err != nil {
			windows.CloseHandle(h)
			windows.CloseHandle(ev)
			return nil, err
		}
	}

	return p, nil
}

func (p *windowsPort) configureSerial(cfg SerialConfig) error {
	var dcb windows.DCB
	dcb.DCBlength = uint32(unsafe.Sizeof(dcb))
	if err := windows.GetCommState(p.handle, &dcb); err != nil {
		return pkg.Errorf(pkg.System, "GetCommState: %v", err)
	}

	dcb.BaudRate = uint32(cfg.Baud)
	dcb.ByteSize = byte(cfg.DataBits)
	if cfg.StopBits == 2 {
		dcb.StopBits = 2
	} else {
		dcb.StopBits = 0
	}
	switch cfg.Parity {
	case ParityEven:
		dcb.Parity = 2
	case ParityOdd:
		dcb.Parity = 1
	default:
		dcb.Parity = 0
	}

	if err := windows.SetCommState(p.handle, &dcb); err != nil {
		return pkg.Errorf(pkg.System, "SetCommState: %v", err)
	}

	timeouts := windows.CommTimeouts{
		ReadIntervalTimeout:         0xFFFFFFFF,
		ReadTotalTimeoutMultiplier:  0xFFFFFFFF,
		ReadTotalTimeoutConstant:    0xFFFFFFFE,
		WriteTotalTimeoutConstant:   5000,
	}
	if err := windows.SetCommTimeouts(p.handle, &timeouts); err != nil {
		return pkg.Errorf(pkg.System, "SetCommTimeouts: %v", err)
	}

	windows.PurgeComm(p.handle, windows.PURGE_RXCLEAR)
	return nil
}

func (p *windowsPort) pollHandle() int { return int(p.event) }

func (p *windowsPort) close() error {
	windows.CancelIoEx(p.handle, &p.overlapped)
	windows.CloseHandle(p.event)
	return windows.CloseHandle(p.handle)
}

// startAsyncRead issues ReadFile with the Port's overlapped structure, per
// spec.md §4.9's always-pending-read design.
func (p *windowsPort) startAsyncRead() error {
	windows.ResetEvent(p.event)
	var done uint32
	err := windows.ReadFile(p.handle, p.readBuf, &done, &p.overlapped)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return err
	}
	p.readPending = true
	return nil
}

func (p *windowsPort) finalizeAsyncRead(timeoutMs int) (int, error) {
	wait := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		wait = uint32(timeoutMs)
	}
	event, err := windows.WaitForSingleObject(p.event, wait)
	if err != nil {
		return 0, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return 0, nil
	}
	var done uint32
	if err := windows.GetOverlappedResult(p.handle, &p.overlapped, &done, false); err != nil {
		return 0, err
	}
	p.readPending = false
	return int(done), nil
}

func (p *windowsPort) readTimeout(buf []byte, timeoutMs int) (int, error) {
	if !p.readPending {
		if err := p.startAsyncRead(); err != nil {
			return 0, pkg.Errorf(pkg.Io, "ReadFile: %v", err)
		}
	}
	n, err := p.finalizeAsyncRead(timeoutMs)
	if err != nil {
		return 0, pkg.Errorf(pkg.Io, "GetOverlappedResult: %v", err)
	}
	if n == 0 {
		return 0, nil
	}
	copy(buf, p.readBuf[:n])
	// Re-arm at once so a read stays pending between calls; if this fails,
	// the next readTimeout issues it again and reports the error.
	p.startAsyncRead()
	return n, nil
}

func (p *windowsPort) writeTimeout(buf []byte, timeoutMs int) (int, error) {
	var ov windows.Overlapped
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return 0, pkg.Errorf(pkg.System, "CreateEvent: %v", err)
	}
	defer windows.CloseHandle(ev)
	ov.HEvent = ev

	var done uint32
	err = windows.WriteFile(p.handle, buf, &done, &ov)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return 0, pkg.Errorf(pkg.Io, "WriteFile: %v", err)
	}
	if err == windows.ERROR_IO_PENDING {
		wait := uint32(windows.INFINITE)
		if timeoutMs >= 0 {
			wait = uint32(timeoutMs)
		}
		if _, err := windows.WaitForSingleObject(ev, wait); err != nil {
			return 0, pkg.Errorf(pkg.Io, "WaitForSingleObject: %v", err)
		}
		if err := windows.GetOverlappedResult(p.handle, &ov, &done, false); err != nil {
			return int(done), pkg.Errorf(pkg.Io, "GetOverlappedResult: %v", err)
		}
	}
	return int(done), nil
}

func (p *windowsPort) getFeatureReport(buf []byte) (int, error) {
	return 0, pkg.Errorf(pkg.System, "GetFeatureReport: requires HidD_GetFeature, not wired on this build")
}

func (p *windowsPort) sendFeatureReport(buf []byte) (int, error) {
	return 0, pkg.Errorf(pkg.System, "SendFeatureReport: requires HidD_SetFeature, not wired on this build")
}
