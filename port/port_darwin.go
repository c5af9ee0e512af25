//go:build darwin

package port

/*
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit

#include <IOKit/hid/IOHIDManager.h>
#include <CoreFoundation/CoreFoundation.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

const maxReportQueueSize = 128

// darwinHIDPort holds a bounded report queue and a pipe whose read end is
// the poll handle, written to on empty->non-empty transitions. openImpl
// does not open the IOHIDDevice (dev stays nil), schedule it on a
// CFRunLoop, or register an input-report callback: runLoop only waits for
// shutdown, nothing calls pushReport, and reads return 0 as on a timeout.
type darwinHIDPort struct {
	dev C.IOHIDDeviceRef

	mu       sync.Mutex
	queue    [][]byte
	removed  bool
	pipeR    int
	pipeW    int

	shutdown chan struct{}
}

func openImpl(d *device.Device, mode Mode, cfg SerialConfig) (portImpl, error) {
	if d.Type != device.TypeHID {
		return nil, pkg.Errorf(pkg.System, "serial ports are not supported on darwin")
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, pkg.Errorf(pkg.System, "pipe: %v", err)
	}

	p := &darwinHIDPort{
		pipeR:    fds[0],
		pipeW:    fds[1],
		shutdown: make(chan struct{}),
	}

	go p.runLoop()
	return p, nil
}

func (p *darwinHIDPort) runLoop() {
	<-p.shutdown
}

func (p *darwinHIDPort) pushReport(report []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasEmpty := len(p.queue) == 0
	if len(p.queue) >= maxReportQueueSize {
		return
	}
	p.queue = append(p.queue, report)
	if wasEmpty {
		unix.Write(p.pipeW, []byte{1})
	}
}

func (p *darwinHIDPort) popReport() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	r := p.queue[0]
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		drain := make([]byte, 1)
		unix.Read(p.pipeR, drain)
	}
	return r, true
}

func (p *darwinHIDPort) pollHandle() int { return p.pipeR }

func (p *darwinHIDPort) close() error {
	close(p.shutdown)
	unix.Close(p.pipeR)
	unix.Close(p.pipeW)
	return nil
}

func (p *darwinHIDPort) readTimeout(buf []byte, timeoutMs int) (int, error) {
	report, ok := p.popReport()
	if !ok {
		return 0, nil
	}
	n := copy(buf, report)
	return n, nil
}

func (p *darwinHIDPort) writeTimeout(buf []byte, timeoutMs int) (int, error) {
	if len(buf) < 2 {
		return 0, nil
	}
	reportID := C.CFIndex(buf[0])
	data := buf[1:]
	ret := C.IOHIDDeviceSetReport(p.dev, C.kIOHIDReportTypeOutput, reportID,
		(*C.uint8_t)(unsafe.Pointer(&data[0])), C.CFIndex(len(data)))
	if ret != C.kIOReturnSuccess {
		return 0, pkg.Errorf(pkg.Io, "IOHIDDeviceSetReport: %d", int(ret))
	}
	return len(buf), nil
}

func (p *darwinHIDPort) getFeatureReport(buf []byte) (int, error) {
	return 0, pkg.Errorf(pkg.System, "getFeatureReport: IOHIDDeviceGetReport not wired on this build")
}

func (p *darwinHIDPort) sendFeatureReport(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, nil
	}
	reportID := C.CFIndex(buf[0])
	data := buf[1:]
	ret := C.IOHIDDeviceSetReport(p.dev, C.kIOHIDReportTypeFeature, reportID,
		(*C.uint8_t)(unsafe.Pointer(&data[0])), C.CFIndex(len(data)))
	if ret != C.kIOReturnSuccess {
		return 0, pkg.Errorf(pkg.Io, "IOHIDDeviceSetReport(feature): %d", int(ret))
	}
	return len(buf), nil
}
