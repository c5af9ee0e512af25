package platform

import "github.com/ardnew/tyhs/pkg"

// MaxPollSources bounds the number of handles a single Poll call accepts,
// matching the source library's POLL_MAX_SOURCES guarantee of at least 64.
const MaxPollSources = 64

// Source pairs a pollable handle with a caller-chosen tag and the events the
// caller is interested in. On return from Poll, Ready reports which events
// were actually observed. Handle is a platform.Handle: an int fd on POSIX,
// a windows.Handle on Windows.
type Source struct {
	Handle Handle
	Tag    any
	Events Event
	Ready  Event
}

// Event is a bitmask of readiness conditions a Source can wait for or
// report back.
type Event uint8

// Event bits. Not every backend can distinguish all three; POSIX poll(2)
// reports them natively, macOS kqueue and Windows wait objects collapse to
// readable/writable pairs per handle type.
const (
	EventReadable Event = 1 << iota
	EventWritable
	EventError
)

// ErrTooManySources is returned by Poll when len(sources) exceeds
// MaxPollSources.
var ErrTooManySources = pkg.Errorf(pkg.System, "poll: too many sources (max %d)", MaxPollSources)

// Poll blocks until at least one source in sources is ready, timeoutMs
// elapses, or an error occurs. timeoutMs of 0 polls without blocking; -1
// blocks indefinitely. On return, each Source's Ready field reflects what
// was observed; sources is also the return value's backing array, so
// callers inspect it in place. An EINTR-equivalent interruption is retried
// internally and never surfaces to the caller.
//
// Implementations live in poll_linux.go, poll_windows.go, and
// poll_darwin.go.
func Poll(sources []Source, timeoutMs int) (int, error) {
	if len(sources) > MaxPollSources {
		return 0, ErrTooManySources
	}
	return poll(sources, timeoutMs)
}
