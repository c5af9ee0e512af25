package pkg

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Memory, "memory"},
		{NotFound, "not_found"},
		{Access, "access"},
		{Io, "io"},
		{Parse, "parse"},
		{System, "system"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "no cause",
			err:  &Error{Kind: NotFound, Message: "board gone"},
			want: "not_found: board gone",
		},
		{
			name: "with cause",
			err:  &Error{Kind: Io, Message: "read", Cause: errors.New("short read")},
			want: "io: read: short read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &Error{Kind: Parse, Message: "bad record", Cause: cause}
	if got := errors.Unwrap(err); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}

	plain := &Error{Kind: Parse, Message: "bad record"}
	if got := errors.Unwrap(plain); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
}

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("opening device: %w", &Error{Kind: Access, Message: "denied"})

	if !errors.Is(wrapped, Access.Sentinel()) {
		t.Error("expected errors.Is to match on Access sentinel")
	}
	if errors.Is(wrapped, NotFound.Sentinel()) {
		t.Error("did not expect errors.Is to match NotFound sentinel")
	}
	if errors.Is(wrapped, errors.New("unrelated")) {
		t.Error("did not expect errors.Is to match an unrelated error")
	}
}

func TestKindSentinel(t *testing.T) {
	s := NotFound.Sentinel()
	var e *Error
	if !errors.As(s, &e) {
		t.Fatal("Sentinel() did not produce an *Error")
	}
	if e.Kind != NotFound {
		t.Errorf("Sentinel Kind = %v, want %v", e.Kind, NotFound)
	}
	if e.Message != "" {
		t.Errorf("Sentinel Message = %q, want empty", e.Message)
	}
}

func TestContextErrorf(t *testing.T) {
	ctx := NewContext(ComponentPort)

	err := ctx.Errorf(Io, "read failed on %s", "/dev/ttyACM0")
	if err == nil {
		t.Fatal("Errorf returned nil")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("Errorf did not return an *Error")
	}
	if e.Kind != Io {
		t.Errorf("Kind = %v, want %v", e.Kind, Io)
	}
	want := "read failed on /dev/ttyACM0"
	if e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	if got := ctx.Last(); got != want {
		t.Errorf("Last() = %q, want %q", got, want)
	}
}

func TestContextWrap(t *testing.T) {
	ctx := NewContext(ComponentFirmware)
	cause := errors.New("unexpected EOF")

	err := ctx.Wrap(Parse, cause, "reading hex record")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("Wrap did not return an *Error")
	}
	if e.Kind != Parse {
		t.Errorf("Kind = %v, want %v", e.Kind, Parse)
	}
	if e.Cause != cause {
		t.Errorf("Cause = %v, want %v", e.Cause, cause)
	}
	if got := ctx.Last(); got != "reading hex record" {
		t.Errorf("Last() = %q, want %q", got, "reading hex record")
	}
}

func TestContextMaskUnmask(t *testing.T) {
	ctx := NewContext(ComponentMonitor)

	if ctx.isMaskedLocked(NotFound) {
		t.Fatal("NotFound should not be masked initially")
	}

	ctx.Mask(NotFound)
	if !ctx.isMaskedLocked(NotFound) {
		t.Error("NotFound should be masked after Mask")
	}
	if ctx.isMaskedLocked(Access) {
		t.Error("Access should not be masked by masking NotFound")
	}

	// Errorf should still record Last() while masked, just suppress dispatch.
	ctx.Errorf(NotFound, "probe miss")
	if got := ctx.Last(); got != "probe miss" {
		t.Errorf("Last() = %q, want %q", got, "probe miss")
	}

	ctx.Unmask()
	if ctx.isMaskedLocked(NotFound) {
		t.Error("NotFound should not be masked after Unmask")
	}
}

func TestContextUnmaskEmptyStack(t *testing.T) {
	ctx := NewContext(ComponentBoard)
	// Should not panic on an empty mask stack.
	ctx.Unmask()
	ctx.Unmask()
}

func TestContextMaskNested(t *testing.T) {
	ctx := NewContext(ComponentTask)

	ctx.Mask(Io)
	ctx.Mask(Io)
	if !ctx.isMaskedLocked(Io) {
		t.Fatal("Io should be masked")
	}
	ctx.Unmask()
	if !ctx.isMaskedLocked(Io) {
		t.Error("Io should still be masked after a single Unmask of a nested push")
	}
	ctx.Unmask()
	if ctx.isMaskedLocked(Io) {
		t.Error("Io should be unmasked after popping both pushes")
	}
}

func TestPackageLevelErrorf(t *testing.T) {
	err := Errorf(System, "errno %d", 5)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("Errorf did not return an *Error")
	}
	if e.Kind != System {
		t.Errorf("Kind = %v, want %v", e.Kind, System)
	}
	if got := LastMessage(); got != "errno 5" {
		t.Errorf("LastMessage() = %q, want %q", got, "errno 5")
	}
}
