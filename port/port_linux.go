//go:build linux

package port

import (
	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/device"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/platform"
)

var portLog = pkg.NewContext(pkg.ComponentPort)

const maxOpenRetries = 4

// linuxPort implements portImpl over a POSIX fd, per spec.md §4.8: raw
// termios for serial, hidraw ioctls for HID, with numbered_reports
// steering the read path.
type linuxPort struct {
	fd              int
	typ             device.Type
	numberedReports bool
}

func openImpl(d *device.Device, mode Mode, cfg SerialConfig) (portImpl, error) {
	flags := unix.O_CLOEXEC | unix.O_NOCTTY | unix.O_NONBLOCK
	switch mode {
	case ModeRead:
		flags |= unix.O_RDONLY
	case ModeWrite:
		flags |= unix.O_WRONLY
	default:
		flags |= unix.O_RDWR
	}

	var fd int
	var err error
	for i := 0; i < maxOpenRetries; i++ {
		fd, err = unix.Open(d.Path, flags, 0)
		if err == nil {
			break
		}
		if err == unix.EBUSY {
			portLog.Errorf(pkg.Io, "open(%s): busy, retrying", d.Path)
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return nil, pkg.Errorf(pkg.Io, "open(%s): %v", d.Path, err)
	}
	if err != nil {
		return nil, pkg.Errorf(pkg.Io, "open(%s): %v", d.Path, err)
	}

	p := &linuxPort{fd: fd, typ: d.Type, numberedReports: d.NumberedReports}

	if d.Type == device.TypeSerial {
		if err := p.configureSerial(cfg); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}

	return p, nil
}

// configureSerial applies cfg via termios: cfmakeraw-equivalent flags,
// VMIN=0/VTIME=0 for non-blocking reads gated by poll, CLOCAL|CREAD|HUPCL,
// and DTR asserted through TIOCMBIS.
func (p *linuxPort) configureSerial(cfg SerialConfig) error {
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return pkg.Errorf(pkg.System, "tcgetattr: %v", err)
	}

	makeRaw(t)
	t.Cflag |= unix.CLOCAL | unix.CREAD | unix.HUPCL
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	t.Cflag &^= unix.CSIZE
	switch cfg.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	default:
		t.Cflag |= unix.CS8
	}

	if cfg.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	} else {
		t.Cflag &^= unix.CSTOPB
	}

	switch cfg.Parity {
	case ParityEven:
		t.Cflag |= unix.PARENB
		t.Cflag &^= unix.PARODD
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	default:
		t.Cflag &^= unix.PARENB
	}

	if cfg.XonXoff != XonXoffOff {
		t.Iflag |= unix.IXON | unix.IXOFF
	}

	if baud, ok := termiosBaud(cfg.Baud); ok {
		t.Ispeed = baud
		t.Ospeed = baud
		t.Cflag &^= unix.CBAUD
		t.Cflag |= baud & unix.CBAUD
	}

	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, t); err != nil {
		return pkg.Errorf(pkg.System, "tcsetattr: %v", err)
	}

	if cfg.DTR == DTROn {
		bits := uint32(unix.TIOCM_DTR)
		unix.IoctlSetPointerInt(p.fd, unix.TIOCMBIS, int(bits))
	}

	unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)

	return nil
}

// makeRaw is the cfmakeraw equivalent: disable all input/output
// processing, canonical mode, signal generation, and echo.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

func termiosBaud(baud int) (uint32, bool) {
	table := map[int]uint32{
		50: unix.B50, 75: unix.B75, 110: unix.B110, 134: unix.B134,
		150: unix.B150, 200: unix.B200, 300: unix.B300, 600: unix.B600,
		1200: unix.B1200, 1800: unix.B1800, 2400: unix.B2400, 4800: unix.B4800,
		9600: unix.B9600, 19200: unix.B19200, 38400: unix.B38400,
		57600: unix.B57600, 115200: unix.B115200, 230400: unix.B230400,
		460800: unix.B460800, 500000: unix.B500000, 576000: unix.B576000,
		921600: unix.B921600, 1000000: unix.B1000000, 1152000: unix.B1152000,
		1500000: unix.B1500000, 2000000: unix.B2000000,
	}
	b, ok := table[baud]
	return b, ok
}

func (p *linuxPort) pollHandle() int { return p.fd }

func (p *linuxPort) close() error {
	return unix.Close(p.fd)
}

func (p *linuxPort) readTimeout(buf []byte, timeoutMs int) (int, error) {
	if timeoutMs != 0 {
		start := platform.Millis()
		sources := []platform.Source{{Handle: p.fd, Events: platform.EventReadable}}
		for {
			remaining := platform.AdjustTimeout(timeoutMs, start)
			n, err := platform.Poll(sources, remaining)
			if err != nil {
				return 0, pkg.Errorf(pkg.Io, "poll: %v", err)
			}
			if n == 0 {
				return 0, nil
			}
			break
		}
	}

	if p.typ == device.TypeHID {
		return p.hidRead(buf)
	}

	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, pkg.Errorf(pkg.Io, "read: %v", err)
	}
	return n, nil
}

// hidRead handles the unnumbered-report synthetic-ID prepend spec.md
// §4.8 calls out: the kernel hidraw read already omits the report ID
// byte entirely when the device declares no report IDs, so we read into
// a shifted buffer and prepend a 0.
func (p *linuxPort) hidRead(buf []byte) (int, error) {
	if p.numberedReports || len(buf) == 0 {
		n, err := unix.Read(p.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return 0, nil
			}
			return 0, pkg.Errorf(pkg.Io, "read: %v", err)
		}
		return n, nil
	}

	tmp := make([]byte, len(buf)-1)
	n, err := unix.Read(p.fd, tmp)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, pkg.Errorf(pkg.Io, "read: %v", err)
	}
	buf[0] = 0
	copy(buf[1:], tmp[:n])
	return n + 1, nil
}

func (p *linuxPort) writeTimeout(buf []byte, timeoutMs int) (int, error) {
	if p.typ == device.TypeHID {
		return p.hidWrite(buf)
	}

	start := platform.Millis()
	total := 0
	for total < len(buf) {
		n, err := unix.Write(p.fd, buf[total:])
		if err != nil {
			if err == unix.EAGAIN {
				sources := []platform.Source{{Handle: p.fd, Events: platform.EventWritable}}
				remaining := platform.AdjustTimeout(timeoutMs, start)
				if remaining == 0 && timeoutMs != -1 {
					return total, nil
				}
				if _, perr := platform.Poll(sources, remaining); perr != nil {
					return total, pkg.Errorf(pkg.Io, "poll: %v", perr)
				}
				continue
			}
			return total, pkg.Errorf(pkg.Io, "write: %v", err)
		}
		total += n
	}
	return total, nil
}

func (p *linuxPort) hidWrite(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, nil
	}
	data := buf
	if !p.numberedReports {
		data = buf[1:]
	}
	n, err := unix.Write(p.fd, data)
	if err != nil {
		return 0, pkg.Errorf(pkg.Io, "write: %v", err)
	}
	return n, nil
}

func (p *linuxPort) getFeatureReport(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, pkg.Errorf(pkg.Parse, "getFeatureReport: empty buffer")
	}
	reportID := buf[0]
	payload := make([]byte, len(buf)-1)
	payload[0] = reportID

	req := hidiocGFeature(len(payload))
	n, err := ioctlBytes(p.fd, req, payload)
	if err != nil {
		return 0, pkg.Errorf(pkg.System, "HIDIOCGFEATURE: %v", err)
	}
	buf[0] = reportID
	copy(buf[1:], payload)
	return n + 1, nil
}

func (p *linuxPort) sendFeatureReport(buf []byte) (int, error) {
	req := hidiocSFeature(len(buf))
	n, err := ioctlBytes(p.fd, req, buf)
	if err != nil {
		return 0, pkg.Errorf(pkg.System, "HIDIOCSFEATURE: %v", err)
	}
	return n, nil
}
