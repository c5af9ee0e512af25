//go:build linux

package port

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux ioctl _IOC encoding (include/uapi/asm-generic/ioctl.h), needed
// because HIDIOCGFEATURE/HIDIOCSFEATURE are variable-length ioctls whose
// request number encodes the buffer size and golang.org/x/sys/unix does
// not pre-compute them.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead  = 2
	iocWrite = 1
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

// hidiocGFeature builds HIDIOCGFEATURE(len): _IOC(IOC_READ|IOC_WRITE, 'H', 0x07, len).
func hidiocGFeature(size int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x07, uintptr(size))
}

// hidiocSFeature builds HIDIOCSFEATURE(len): _IOC(IOC_READ|IOC_WRITE, 'H', 0x06, len).
func hidiocSFeature(size int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x06, uintptr(size))
}

// ioctlBytes issues an ioctl with buf as the argument pointer, returning
// the number of bytes the kernel reports back (buf is updated in place).
func ioctlBytes(fd int, req uintptr, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(r), nil
}
