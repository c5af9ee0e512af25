package pkg

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies the category of a failure raised anywhere in the stack.
// Kinds are the vocabulary every public function uses to report failure;
// higher layers propagate the kind of the lowest-level failure unchanged.
type Kind int

// Error kinds, per the failure taxonomy shared by every package in this
// module.
const (
	_        Kind = iota // zero value is not a valid kind
	Memory               // allocation failure; carries a generic message
	NotFound             // no matching device/interface/firmware
	Access               // permission denied opening a device node
	Io                   // I/O failure, including unplug-during-transfer
	Parse                // malformed descriptor or firmware file
	System               // anything else from the OS, message is the OS string
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case Memory:
		return "memory"
	case NotFound:
		return "not_found"
	case Access:
		return "access"
	case Io:
		return "io"
	case Parse:
		return "parse"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by fallible operations in this
// module. It carries a Kind plus a formatted message, and wraps an
// underlying cause when one exists so errors.Is/As still work against it
// and against the cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, pkg.NotFound.Sentinel()) without an exact match.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Sentinel returns a bare *Error of this kind with no message, suitable as
// a target in errors.Is(err, pkg.NotFound.Sentinel()).
func (k Kind) Sentinel() error { return &Error{Kind: k} }

// Level mirrors the log levels a masked-kind error may have been downgraded
// from when dispatched to the sink.
type Level int

// Log levels used when dispatching a formatted error to the sink.
const (
	LevelDebug Level = iota
	LevelWarning
	LevelError
)

// errorState is one context's last-message buffer and mask stack.
type errorState struct {
	mu     sync.Mutex
	last   string
	masked []Kind
}

// Context is the explicit replacement for the source library's thread-local
// error channel: Go has no portable thread-local storage, so each logical
// worker (a Monitor, a Pool, a Task) carries its own Context instead of
// relying on goroutine identity.
type Context struct {
	component Component
	state     errorState
}

// NewContext creates an error-reporting context for one logical worker,
// tagging anything it dispatches to the log sink with component.
func NewContext(component Component) *Context { return &Context{component: component} }

// Errorf formats a message for kind, records it as the context's last
// message, and dispatches it to the active log sink at LevelError unless
// kind is currently masked on this context. It always returns an *Error of
// the given kind wrapping msg, so callers can `return nil, ctx.Errorf(...)`.
func (c *Context) Errorf(kind Kind, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	c.state.mu.Lock()
	c.state.last = msg
	masked := c.isMaskedLocked(kind)
	c.state.mu.Unlock()

	if !masked {
		dispatch(c.component, LevelError, kind, msg)
	}
	return &Error{Kind: kind, Message: msg}
}

// Wrap is Errorf's counterpart for wrapping an existing error instead of
// formatting a fresh message.
func (c *Context) Wrap(kind Kind, cause error, context string) error {
	c.state.mu.Lock()
	c.state.last = context
	masked := c.isMaskedLocked(kind)
	c.state.mu.Unlock()

	if !masked {
		dispatch(c.component, LevelError, kind, fmt.Sprintf("%s: %v", context, cause))
	}
	return &Error{Kind: kind, Message: context, Cause: cause}
}

// Last returns the most recently formatted message on this context.
func (c *Context) Last() string {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.last
}

// Mask pushes kind onto this context's mask stack; errors of that kind
// raised via Errorf/Wrap still update Last() but are not dispatched to the
// log sink until the matching Unmask. Probes that expect NotFound to be a
// routine outcome (e.g. "does this device still exist") should mask it.
func (c *Context) Mask(kind Kind) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.masked = append(c.state.masked, kind)
}

// Unmask pops the most recently pushed mask. It is a no-op on an empty
// stack.
func (c *Context) Unmask() {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if n := len(c.state.masked); n > 0 {
		c.state.masked = c.state.masked[:n-1]
	}
}

func (c *Context) isMaskedLocked(kind Kind) bool {
	for _, k := range c.state.masked {
		if k == kind {
			return true
		}
	}
	return false
}

// defaultContext backs the package-level Errorf/LastMessage convenience
// wrappers for callers (mainly the CLI) that don't need their own Context.
var defaultContext = NewContext(ComponentDevice)

// Errorf is the package-level convenience form of (*Context).Errorf, using
// a shared default context. Prefer a dedicated Context inside concurrent
// components (Monitor, Pool workers) so masking in one doesn't leak into
// another.
func Errorf(kind Kind, format string, args ...any) error {
	return defaultContext.Errorf(kind, format, args...)
}

// LastMessage returns the default context's most recent error message.
func LastMessage() string { return defaultContext.Last() }
