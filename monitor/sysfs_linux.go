//go:build linux

package monitor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/tyhs/device"
)

const (
	sysfsHidrawPath = "/sys/class/hidraw"
	sysfsTTYPath    = "/sys/class/tty"
)

// scanLinuxDevices walks /sys/class/hidraw and /sys/class/tty, resolving
// each node to its owning usb_device/usb_interface ancestors, per spec.md
// §4.5.
func scanLinuxDevices() []*device.Device {
	var out []*device.Device
	out = append(out, scanClass(sysfsHidrawPath, device.TypeHID)...)
	out = append(out, scanClass(sysfsTTYPath, device.TypeSerial)...)
	return out
}

func scanClass(classPath string, typ device.Type) []*device.Device {
	entries, err := os.ReadDir(classPath)
	if err != nil {
		return nil
	}

	var out []*device.Device
	for _, entry := range entries {
		nodePath := filepath.Join(classPath, entry.Name(), "device")
		if typ == device.TypeSerial && !strings.HasPrefix(entry.Name(), "tty") {
			continue
		}
		d, ok := deviceFromNode(nodePath, entry.Name(), typ)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// deviceFromNode walks upward from a class device's "device" symlink to
// find the usb_interface and usb_device ancestors, then fills in a Device.
func deviceFromNode(nodePath, nodeName string, typ device.Type) (*device.Device, bool) {
	real, err := filepath.EvalSymlinks(nodePath)
	if err != nil {
		return nil, false
	}

	ifacePath := findAncestor(real, "bInterfaceNumber")
	if ifacePath == "" {
		return nil, false
	}
	devPath := findAncestor(filepath.Dir(ifacePath), "idVendor")
	if devPath == "" {
		return nil, false
	}

	ifaceNum, _ := readSysfsHex(filepath.Join(ifacePath, "bInterfaceNumber"))
	vid, _ := readSysfsHex(filepath.Join(devPath, "idVendor"))
	pid, _ := readSysfsHex(filepath.Join(devPath, "idProduct"))
	bcd, _ := readSysfsHex(filepath.Join(devPath, "bcdDevice"))
	busnum, _ := readSysfsString(filepath.Join(devPath, "busnum"))
	devpath, _ := readSysfsString(filepath.Join(devPath, "devpath"))
	manufacturer, _ := readSysfsString(filepath.Join(devPath, "manufacturer"))
	product, _ := readSysfsString(filepath.Join(devPath, "product"))
	serial, _ := readSysfsString(filepath.Join(devPath, "serial"))

	d := &device.Device{
		Type:         typ,
		Status:       device.StatusOnline,
		Key:          filepath.Base(devPath),
		Location:     "usb-" + busnum + "-" + strings.ReplaceAll(devpath, ".", "-"),
		Path:         devNodePath(typ, nodeName),
		VID:          uint16(vid),
		PID:          uint16(pid),
		BCDDevice:    uint16(bcd),
		IfaceNum:     uint8(ifaceNum),
		Manufacturer: manufacturer,
		Product:      product,
		SerialNumber: serial,
	}

	if typ == device.TypeHID {
		if desc, ok := readHIDDescriptor(nodeName); ok {
			device.ParseHIDDescriptor(d, desc)
		}
	}

	return d, true
}

// findAncestor walks dir and its parents (at most 8 levels, stopping at the
// filesystem root) for the first directory containing attr, returning its
// path or "".
func findAncestor(dir, attr string) string {
	for i := 0; i < 8 && dir != "/" && dir != "."; i++ {
		if _, err := os.Stat(filepath.Join(dir, attr)); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

func devNodePath(typ device.Type, nodeName string) string {
	return "/dev/" + nodeName
}

// readHIDDescriptor reads the sysfs report_descriptor binary attribute.
// There is no fallback: no HIDIOCGRDESC ioctl is issued anywhere, so a
// node without that attribute keeps its HID fields at zero.
func readHIDDescriptor(hidrawName string) ([]byte, bool) {
	hidDir := filepath.Join("/sys/class/hidraw", hidrawName, "device")
	descPath := filepath.Join(hidDir, "report_descriptor")
	data, err := os.ReadFile(descPath)
	if err != nil {
		return nil, false
	}
	return data, true
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsHex(path string) (uint64, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}
