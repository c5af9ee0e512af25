package match

import (
	"testing"

	"github.com/ardnew/tyhs/device"
)

func TestSpecMatchesWildcard(t *testing.T) {
	s := Spec{}
	d := &device.Device{VID: 0x16c0, PID: 0x0486, Type: device.TypeHID}
	if !s.Matches(d) {
		t.Error("zero-valued Spec should match any device")
	}
}

func TestSpecMatchesVIDPID(t *testing.T) {
	s := Spec{VID: 0x16c0, PID: 0x0486}
	match := &device.Device{VID: 0x16c0, PID: 0x0486}
	mismatch := &device.Device{VID: 0x16c0, PID: 0x0487}

	if !s.Matches(match) {
		t.Error("expected match on equal VID:PID")
	}
	if s.Matches(mismatch) {
		t.Error("expected no match on differing PID")
	}
}

func TestSpecMatchesType(t *testing.T) {
	s := Spec{HasType: true, Type: device.TypeSerial}
	hid := &device.Device{Type: device.TypeHID}
	serial := &device.Device{Type: device.TypeSerial}

	if s.Matches(hid) {
		t.Error("serial-only spec should not match a HID device")
	}
	if !s.Matches(serial) {
		t.Error("serial-only spec should match a serial device")
	}
}

func TestSpecMatchesPath(t *testing.T) {
	s := Spec{Path: "/dev/ttyACM0"}
	match := &device.Device{Path: "/dev/ttyACM0"}
	mismatch := &device.Device{Path: "/dev/ttyACM1"}

	if !s.Matches(match) {
		t.Error("expected match on equal path")
	}
	if s.Matches(mismatch) {
		t.Error("expected no match on differing path")
	}
}

func TestParseVIDPIDOnly(t *testing.T) {
	s, err := Parse("16c0:0486")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if s.VID != 0x16c0 || s.PID != 0x0486 {
		t.Errorf("got VID=%#x PID=%#x, want VID=0x16c0 PID=0x0486", s.VID, s.PID)
	}
	if s.HasType {
		t.Error("HasType should be false without a /TYPE suffix")
	}
}

func TestParseWithType(t *testing.T) {
	s, err := Parse("16c0:0486/hid")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !s.HasType || s.Type != device.TypeHID {
		t.Errorf("got HasType=%v Type=%v, want HasType=true Type=hid", s.HasType, s.Type)
	}
}

func TestParseWildcards(t *testing.T) {
	s, err := Parse("0:0")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if s.VID != 0 || s.PID != 0 {
		t.Errorf("got VID=%#x PID=%#x, want both 0", s.VID, s.PID)
	}
}

func TestParseLeadingWhitespace(t *testing.T) {
	s, err := Parse("  16c0:0486")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if s.VID != 0x16c0 || s.PID != 0x0486 {
		t.Errorf("leading whitespace should be tolerated, got VID=%#x PID=%#x", s.VID, s.PID)
	}
}

func TestParseInvalidType(t *testing.T) {
	if _, err := Parse("16c0:0486/bogus"); err == nil {
		t.Error("expected error for invalid type token")
	}
}

func TestParseInvalidHex(t *testing.T) {
	if _, err := Parse("zzzz:0486"); err == nil {
		t.Error("expected error for non-hex VID")
	}
}

func TestStringRoundTrip(t *testing.T) {
	tests := []string{"16c0:0486", "16c0:0486/hid", "0000:0000/serial"}
	for _, str := range tests {
		s, err := Parse(str)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", str, err)
		}
		again, err := Parse(s.String())
		if err != nil {
			t.Fatalf("Parse(String()) returned error: %v", err)
		}
		if again != s {
			t.Errorf("round trip mismatch: %q -> %+v -> %q -> %+v", str, s, s.String(), again)
		}
	}
}
