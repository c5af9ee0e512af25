//go:build linux

package platform

import (
	"golang.org/x/sys/unix"

	"github.com/ardnew/tyhs/pkg"
)

// Handle is a Linux file descriptor.
type Handle = int

// poll multiplexes sources over a throwaway epoll instance, grounded on the
// teacher's epoll/eventfd poller shape but built on golang.org/x/sys/unix's
// wrapped syscalls instead of hand-rolled SYS_EPOLL_* numbers.
func poll(sources []Source, timeoutMs int) (int, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return 0, pkg.Errorf(pkg.System, "epoll_create1: %v", err)
	}
	defer unix.Close(epfd)

	for i := range sources {
		ev := unix.EpollEvent{Events: epollEventsFor(sources[i].Events), Fd: int32(i)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, sources[i].Handle, &ev); err != nil {
			return 0, pkg.Errorf(pkg.System, "epoll_ctl(add, fd=%d): %v", sources[i].Handle, err)
		}
	}

	// epoll_wait rejects a zero-length event buffer, so keep at least one
	// slot even when sources is empty.
	raw := make([]unix.EpollEvent, max(len(sources), 1))
	for {
		n, err := unix.EpollWait(epfd, raw, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, pkg.Errorf(pkg.System, "epoll_wait: %v", err)
		}

		ready := 0
		for i := 0; i < n; i++ {
			idx := int(raw[i].Fd)
			sources[idx].Ready = eventsFromEpoll(raw[i].Events)
			if sources[idx].Ready != 0 {
				ready++
			}
		}
		return ready, nil
	}
}

func epollEventsFor(e Event) uint32 {
	var out uint32
	if e&EventReadable != 0 {
		out |= unix.EPOLLIN
	}
	if e&EventWritable != 0 {
		out |= unix.EPOLLOUT
	}
	out |= unix.EPOLLERR | unix.EPOLLHUP
	return out
}

func eventsFromEpoll(raw uint32) Event {
	var out Event
	if raw&unix.EPOLLIN != 0 {
		out |= EventReadable
	}
	if raw&unix.EPOLLOUT != 0 {
		out |= EventWritable
	}
	if raw&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		out |= EventError
	}
	return out
}
