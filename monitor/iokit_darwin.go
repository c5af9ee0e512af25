//go:build darwin

package monitor

/*
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit

#include <IOKit/IOKitLib.h>
#include <IOKit/hid/IOHIDManager.h>
#include <CoreFoundation/CoreFoundation.h>
*/
import "C"

import (
	"strconv"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

// darwinBackend owns an IONotificationPort and the kqueue descriptor that
// pollHandle returns. No IOKit first-match/terminated notifications are
// registered and the notification port is not attached to the kqueue, so
// the kqueue never becomes readable, nothing is pushed onto queue, and
// drain returns no events; devices are found only through enumerate.
type darwinBackend struct {
	notifyPort C.IONotificationPortRef
	kq         int

	mu    sync.Mutex
	queue []rawEvent

	done chan struct{}
}

func newBackend() backend {
	return &darwinBackend{kq: -1}
}

func (b *darwinBackend) start() error {
	port := C.IONotificationPortCreate(C.kIOMasterPortDefault)
	if port == nil {
		return pkg.Errorf(pkg.System, "IONotificationPortCreate failed")
	}
	b.notifyPort = port
	b.done = make(chan struct{})

	kq, err := darwinMachPortKqueue(port)
	if err != nil {
		C.IONotificationPortDestroy(port)
		return pkg.Errorf(pkg.System, "kqueue on notification port: %v", err)
	}
	b.kq = kq

	go b.runLoop()
	return nil
}

func (b *darwinBackend) stop() error {
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
	if b.notifyPort != nil {
		C.IONotificationPortDestroy(b.notifyPort)
		b.notifyPort = nil
	}
	return nil
}

func (b *darwinBackend) pollHandle() int {
	return b.kq
}

func (b *darwinBackend) drain() []rawEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

func (b *darwinBackend) enumerate() ([]*device.Device, error) {
	return iokitEnumerate()
}

func (b *darwinBackend) runLoop() {
	runLoop := C.CFRunLoopGetCurrent()
	C.IONotificationPortSetDispatchQueue(b.notifyPort, nil)
	_ = runLoop
	<-b.done
}

// iokitEnumerate performs a one-shot IOServiceGetMatchingServices walk over
// IOHIDDevice and IOSerialBSDClient, reading sessionID as the key,
// locationID as the location, and idVendor/idProduct. Path is left empty:
// the calloutDevice of serial services is not read.
func iokitEnumerate() ([]*device.Device, error) {
	var out []*device.Device

	hidMatch := C.IOServiceMatching(C.CString("IOHIDDevice"))
	out = append(out, walkMatchingServices(hidMatch, device.TypeHID)...)

	serialMatch := C.IOServiceMatching(C.CString("IOSerialBSDClient"))
	out = append(out, walkMatchingServices(serialMatch, device.TypeSerial)...)

	return out, nil
}

func walkMatchingServices(matching C.CFMutableDictionaryRef, typ device.Type) []*device.Device {
	var iter C.io_iterator_t
	kr := C.IOServiceGetMatchingServices(C.kIOMasterPortDefault, matching, &iter)
	if kr != C.kIOReturnSuccess {
		return nil
	}
	defer C.IOObjectRelease(iter)

	var out []*device.Device
	for {
		svc := C.IOIteratorNext(iter)
		if svc == 0 {
			break
		}
		if d, ok := deviceFromIOService(svc, typ); ok {
			out = append(out, d)
		}
		C.IOObjectRelease(svc)
	}
	return out
}

func deviceFromIOService(svc C.io_service_t, typ device.Type) (*device.Device, bool) {
	var sessionID C.uint64_t
	if !cfNumberProperty(svc, "sessionID", &sessionID) {
		return nil, false
	}

	var locationID C.uint32_t
	cfNumberProperty(svc, "locationID", &locationID)

	vid, _ := cfNumberUint16Property(svc, "idVendor")
	pid, _ := cfNumberUint16Property(svc, "idProduct")

	d := &device.Device{
		Type:     typ,
		Status:   device.StatusOnline,
		Key:      strconv.FormatUint(uint64(sessionID), 10),
		Location: locationFromID(uint32(locationID)),
		VID:      vid,
		PID:      pid,
	}
	return d, true
}

// locationFromID decodes a 32-bit IOKit locationID: the top byte is the
// controller index, each nibble below it (depth up to 6) a port number.
func locationFromID(locationID uint32) string {
	loc := "usb-" + strconv.Itoa(int(locationID>>24))
	for shift := 20; shift >= 0; shift -= 4 {
		port := (locationID >> uint(shift)) & 0xF
		if port == 0 {
			break
		}
		loc += "-" + strconv.Itoa(int(port))
	}
	return loc
}

func cfNumberProperty(svc C.io_service_t, key string, out *C.uint64_t) bool {
	ckey := C.CString(key)
	defer C.free(unsafe.Pointer(ckey))
	cfkey := C.CFStringCreateWithCString(C.kCFAllocatorDefault, ckey, C.kCFStringEncodingUTF8)
	defer C.CFRelease(C.CFTypeRef(cfkey))

	prop := C.IORegistryEntryCreateCFProperty(svc, cfkey, C.kCFAllocatorDefault, 0)
	if prop == 0 {
		return false
	}
	defer C.CFRelease(prop)

	return C.CFNumberGetValue(C.CFNumberRef(prop), C.kCFNumberSInt64Type, unsafe.Pointer(out)) != 0
}

func cfNumberUint16Property(svc C.io_service_t, key string) (uint16, bool) {
	var v C.uint64_t
	if !cfNumberProperty(svc, key, &v) {
		return 0, false
	}
	return uint16(v), true
}

func darwinMachPortKqueue(port C.IONotificationPortRef) (int, error) {
	// The notification port's Mach port is not inserted into a port set and no
	// EVFILT_MACHPORT filter is registered: the returned kqueue is empty
	// and never fires. Enumerate does not use it; Refresh gets no events.
	return darwinEmptyKqueue()
}

func darwinEmptyKqueue() (int, error) {
	return unix.Kqueue()
}
