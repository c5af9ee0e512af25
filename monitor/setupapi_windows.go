//go:build windows

package monitor

import (
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ardnew/tyhs/device"
)

// setupapi.dll entry points this backend calls directly, since
// golang.org/x/sys/windows does not wrap SetupDi*/CM_* itself.
var (
	modsetupapi                   = windows.NewLazySystemDLL("setupapi.dll")
	procSetupDiGetClassDevsW      = modsetupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInfo     = modsetupapi.NewProc("SetupDiEnumDeviceInfo")
	procSetupDiGetDeviceInstanceId = modsetupapi.NewProc("SetupDiGetDeviceInstanceIdW")
	procSetupDiDestroyDeviceInfoList = modsetupapi.NewProc("SetupDiDestroyDeviceInfoList")
)

const (
	digcfPresent         = 0x00000002
	digcfDeviceInterface = 0x00000010
)

type spDevInfoData struct {
	size      uint32
	classGUID windows.GUID
	devInst   uint32
	reserved  uintptr
}

// enumerateSetupDi walks the Ports and HIDClass device setup classes,
// producing one Device per instance. Full VID/PID/serial extraction would
// continue via IOCTL_USB_GET_NODE_CONNECTION_INFORMATION_EX against the
// parent hub (spec.md §4.6); here the device instance ID itself is parsed
// for VID_xxxx&PID_xxxx, which Windows always includes in a USB child's
// instance ID string. Location is "usb-" followed by the raw instance ID:
// the hub topology is not walked, so it does not take the
// "usb-<ctrl>-<port>" form.
func enumerateSetupDi() ([]*device.Device, error) {
	var out []*device.Device
	for _, cls := range []struct {
		guid *windows.GUID
		typ  device.Type
	}{
		{&guidPortsClass, device.TypeSerial},
		{&guidHIDClass, device.TypeHID},
	} {
		devs, err := enumerateClass(cls.guid, cls.typ)
		if err != nil {
			continue
		}
		out = append(out, devs...)
	}
	return out, nil
}

func enumerateClass(guid *windows.GUID, typ device.Type) ([]*device.Device, error) {
	h, _, _ := procSetupDiGetClassDevsW.Call(
		uintptr(unsafe.Pointer(guid)), 0, 0, uintptr(digcfPresent|digcfDeviceInterface))
	if h == uintptr(windows.InvalidHandle) {
		return nil, syscall.EINVAL
	}
	defer procSetupDiDestroyDeviceInfoList.Call(h)

	var out []*device.Device
	for i := uint32(0); ; i++ {
		var data spDevInfoData
		data.size = uint32(unsafe.Sizeof(data))
		ok, _, _ := procSetupDiEnumDeviceInfo.Call(h, uintptr(i), uintptr(unsafe.Pointer(&data)))
		if ok == 0 {
			break
		}

		buf := make([]uint16, 256)
		okID, _, _ := procSetupDiGetDeviceInstanceId.Call(
			h, uintptr(unsafe.Pointer(&data)),
			uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), 0)
		if okID == 0 {
			continue
		}
		instanceID := windows.UTF16ToString(buf)

		vid, pid, ok := parseVIDPID(instanceID)
		if !ok {
			continue
		}
		out = append(out, &device.Device{
			Type:     typ,
			Status:   device.StatusOnline,
			Key:      normalizeInstanceID(instanceID),
			Location: "usb-" + instanceID,
			VID:      vid,
			PID:      pid,
		})
	}
	return out, nil
}

// parseVIDPID extracts VID_xxxx and PID_xxxx tokens from a Windows device
// instance ID such as "USB\VID_16C0&PID_0486\6&1A2B3C4D&0&1".
func parseVIDPID(instanceID string) (vid, pid uint16, ok bool) {
	upper := strings.ToUpper(instanceID)
	vidIdx := strings.Index(upper, "VID_")
	pidIdx := strings.Index(upper, "PID_")
	if vidIdx < 0 || pidIdx < 0 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(upper[vidIdx+4:vidIdx+8], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(upper[pidIdx+4:pidIdx+8], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// normalizeInstanceID matches spec.md §4.6's key normalization: strip
// "\\?\"/"\\.\"/"##?#"/"##.#" prefixes and a trailing "{GUID}", uppercase,
// and turn "#" into "\".
func normalizeInstanceID(id string) string {
	for _, prefix := range []string{`\\?\`, `\\.\`, `##?#`, `##.#`} {
		id = strings.TrimPrefix(id, prefix)
	}
	if i := strings.LastIndexByte(id, '{'); i >= 0 {
		id = id[:i]
	}
	id = strings.ToUpper(id)
	return strings.ReplaceAll(id, "#", `\`)
}
