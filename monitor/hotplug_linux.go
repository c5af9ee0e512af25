//go:build linux

package monitor

import (
	"bytes"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
)

const ueventBufferSize = 4096

// ueventAction is the udev-compatible action word carried by a kobject
// uevent message.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
)

type uevent struct {
	action    ueventAction
	devpath   string
	subsystem string
	devtype   string
}

// netlinkSocket wraps the raw NETLINK_KOBJECT_UEVENT socket this monitor
// subscribes to for hidraw/tty hotplug, subscribed to the kernel broadcast
// group (group 1).
type netlinkSocket struct {
	fd int
}

func newNetlinkSocket() (*netlinkSocket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, pkg.Errorf(pkg.System, "socket(AF_NETLINK): %v", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, pkg.Errorf(pkg.System, "bind(netlink): %v", err)
	}
	return &netlinkSocket{fd: fd}, nil
}

func (n *netlinkSocket) close() error {
	return unix.Close(n.fd)
}

// recv reads one pending uevent, returning (event, true, nil) or
// (zero, false, nil) when nothing is pending (EAGAIN).
func (n *netlinkSocket) recv() (uevent, bool, error) {
	buf := make([]byte, ueventBufferSize)
	sz, err := unix.Read(n.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return uevent{}, false, nil
		}
		return uevent{}, false, pkg.Errorf(pkg.System, "read(netlink): %v", err)
	}
	if sz <= 0 {
		return uevent{}, false, nil
	}
	return parseUEvent(buf[:sz]), true, nil
}

func parseUEvent(data []byte) uevent {
	var evt uevent
	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)
		idx := strings.IndexByte(s, '=')
		if idx < 0 {
			switch {
			case strings.HasPrefix(s, "add@"):
				evt.action, evt.devpath = ueventAdd, s[4:]
			case strings.HasPrefix(s, "remove@"):
				evt.action, evt.devpath = ueventRemove, s[7:]
			}
			continue
		}
		key, value := s[:idx], s[idx+1:]
		switch key {
		case "ACTION":
			switch value {
			case "add":
				evt.action = ueventAdd
			case "remove":
				evt.action = ueventRemove
			}
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		case "DEVTYPE":
			evt.devtype = value
		}
	}
	return evt
}

// linuxBackend implements monitor.backend over a netlink uevent socket
// filtered to the hidraw and tty subsystems, resolving each event to a
// Device via the sysfs ancestor walk in sysfs_linux.go.
type linuxBackend struct {
	sock *netlinkSocket
}

func newBackend() backend {
	return &linuxBackend{}
}

func (b *linuxBackend) start() error {
	sock, err := newNetlinkSocket()
	if err != nil {
		return err
	}
	b.sock = sock
	return nil
}

func (b *linuxBackend) stop() error {
	if b.sock == nil {
		return nil
	}
	err := b.sock.close()
	b.sock = nil
	return err
}

func (b *linuxBackend) pollHandle() int {
	if b.sock == nil {
		return -1
	}
	return b.sock.fd
}

func (b *linuxBackend) drain() []rawEvent {
	if b.sock == nil {
		return nil
	}
	var out []rawEvent
	for {
		evt, ok, err := b.sock.recv()
		if err != nil {
			pkg.LogWarn(pkg.ComponentMonitor, "netlink read error", "error", err)
			return out
		}
		if !ok {
			return out
		}
		if evt.subsystem != "hidraw" && evt.subsystem != "tty" {
			continue
		}
		switch evt.action {
		case ueventAdd:
			name := filepath.Base(evt.devpath)
			typ := device.TypeHID
			if evt.subsystem == "tty" {
				typ = device.TypeSerial
			}
			d, ok := deviceFromClassName(name, typ)
			if !ok {
				continue
			}
			out = append(out, rawEvent{add: true, device: d})
		case ueventRemove:
			out = append(out, rawEvent{add: false, key: keyFromDevpath(evt.devpath)})
		}
	}
}

func (b *linuxBackend) enumerate() ([]*device.Device, error) {
	return scanLinuxDevices(), nil
}

// deviceFromClassName resolves a hidraw/tty class node (e.g. "hidraw3",
// "ttyACM0") straight to its Device record.
func deviceFromClassName(name string, typ device.Type) (*device.Device, bool) {
	classPath := "/sys/class/hidraw"
	if typ == device.TypeSerial {
		classPath = "/sys/class/tty"
	}
	return deviceFromNode(filepath.Join(classPath, name, "device"), name, typ)
}

// keyFromDevpath derives the device table key a Remove event's DEVPATH
// maps back to: the usb_device directory name, i.e. the component just
// before the first usb_interface component ("1-2" in ".../1-2/1-2:1.0/..."),
// matching the Key sysfs_linux.go assigns.
func keyFromDevpath(devpath string) string {
	parts := strings.Split(devpath, "/")
	for i := 1; i < len(parts); i++ {
		if dev, _, ok := strings.Cut(parts[i], ":"); ok && dev == parts[i-1] {
			return dev
		}
	}
	return ""
}
