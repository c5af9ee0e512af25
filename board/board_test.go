package board

import (
	"testing"
	"time"

	"github.com/ardnew/tyhs/device"
)

func TestAddDeviceDerivesRunCapabilities(t *testing.T) {
	b := newBoard("test")
	caps := b.addDevice(&device.Device{Key: "k1", VID: 0x16C0, PID: 0x0483})

	if !caps.Has(CapRun | CapReboot) {
		t.Errorf("run personality caps = %v, want CapRun|CapReboot", caps)
	}
	if b.Model().Name == "" {
		t.Error("addDevice should set the matched model")
	}
	if b.Status() != StatusOnline {
		t.Errorf("status = %v, want StatusOnline", b.Status())
	}
}

func TestAddDeviceDerivesBootloaderCapabilities(t *testing.T) {
	b := newBoard("test")
	caps := b.addDevice(&device.Device{Key: "k1", VID: 0x16C0, PID: 0x0478})

	if !caps.Has(CapUpload | CapReset) {
		t.Errorf("bootloader personality caps = %v, want CapUpload|CapReset", caps)
	}
}

func TestAddDeviceSerialAndUniqueBits(t *testing.T) {
	b := newBoard("test")
	caps := b.addDevice(&device.Device{Key: "k1", Type: device.TypeSerial, SerialNumber: "ABC123"})

	if !caps.Has(CapSerial | CapUnique) {
		t.Errorf("caps = %v, want CapSerial|CapUnique", caps)
	}
}

func TestRemoveDeviceTransitionsEmpty(t *testing.T) {
	b := newBoard("test")
	b.addDevice(&device.Device{Key: "k1", VID: 0x16C0, PID: 0x0483})

	empty := b.removeDevice("k1")
	if !empty {
		t.Error("removing the only interface should report empty")
	}
	if b.Capabilities() != 0 {
		t.Errorf("capabilities after removing all interfaces = %v, want 0", b.Capabilities())
	}
}

func TestRemoveDeviceKeepsRemainingInterfaces(t *testing.T) {
	b := newBoard("test")
	b.addDevice(&device.Device{Key: "k1", VID: 0x16C0, PID: 0x0483})
	b.addDevice(&device.Device{Key: "k2", Type: device.TypeSerial})

	empty := b.removeDevice("k1")
	if empty {
		t.Error("board should not be empty while k2 remains")
	}
	if !b.Capabilities().Has(CapSerial) {
		t.Error("remaining interface's capability should still be present")
	}
}

func TestMarkMissingSetsTimestamp(t *testing.T) {
	b := newBoard("test")
	now := time.Now()
	b.markMissing(now)

	if b.Status() != StatusMissing {
		t.Errorf("status = %v, want StatusMissing", b.Status())
	}
	if !b.MissingSince().Equal(now) {
		t.Error("MissingSince should record the instant passed to markMissing")
	}
}

func TestOpenInterfacePicksMatchingCapability(t *testing.T) {
	b := newBoard("test")
	d := &device.Device{Key: "k1", VID: 0x16C0, PID: 0x0478}
	b.addDevice(d)

	got := b.openInterface(CapUpload)
	if got != d {
		t.Error("openInterface should return the device offering the capability")
	}
	if b.openInterface(CapSerial) != nil {
		t.Error("openInterface should return nil when no interface has the capability")
	}
}

func TestVendorIDReturnsFirstInterfaceVID(t *testing.T) {
	b := newBoard("test")
	if _, ok := b.VendorID(); ok {
		t.Error("VendorID should report false on a board with no interfaces")
	}
	b.addDevice(&device.Device{Key: "k1", VID: 0xCAFE})
	vid, ok := b.VendorID()
	if !ok || vid != 0xCAFE {
		t.Errorf("VendorID() = (%#x, %v), want (0xcafe, true)", vid, ok)
	}
}

func TestGroupKeyPrefersSerialNumber(t *testing.T) {
	withSerial := &device.Device{Location: "usb-1-2", SerialNumber: "XYZ"}
	withoutSerial := &device.Device{Location: "usb-1-2"}

	if groupKey(withSerial) == groupKey(withoutSerial) {
		t.Error("a device with a serial number should group separately from one without")
	}
	if groupKey(withoutSerial) != "usb-1-2" {
		t.Errorf("groupKey without serial = %q, want location", groupKey(withoutSerial))
	}
}

func TestTagForPrefersSerialNumber(t *testing.T) {
	d := &device.Device{Location: "usb-1-2", SerialNumber: "XYZ"}
	if tagFor(d) != "XYZ@usb-1-2" {
		t.Errorf("tagFor = %q, want \"XYZ@usb-1-2\"", tagFor(d))
	}
}
