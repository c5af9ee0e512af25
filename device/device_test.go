package device

import "testing"

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeHID, "hid"},
		{TypeSerial, "serial"},
		{Type(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		s    string
		want Type
		ok   bool
	}{
		{"hid", TypeHID, true},
		{"serial", TypeSerial, true},
		{"HID", 0, false},
		{"", 0, false},
		{"bogus", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseType(tt.s)
		if ok != tt.ok {
			t.Errorf("ParseType(%q) ok = %v, want %v", tt.s, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestDeviceRefCounting(t *testing.T) {
	d := &Device{Key: "k1"}
	if d.RefCount() != 0 {
		t.Fatalf("RefCount() = %d, want 0", d.RefCount())
	}

	d.NewRef()
	d.NewRef()
	if d.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2", d.RefCount())
	}

	d.Release()
	if d.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", d.RefCount())
	}
}

func TestDisconnectedDoesNotMutateOriginal(t *testing.T) {
	d := &Device{Key: "k1", Status: StatusOnline}
	removed := Disconnected(d)

	if d.Status != StatusOnline {
		t.Errorf("original device status = %v, want StatusOnline (must not be mutated)", d.Status)
	}
	if removed.Status != StatusDisconnected {
		t.Errorf("disconnected copy status = %v, want StatusDisconnected", removed.Status)
	}
	if removed == d {
		t.Error("Disconnected should return a distinct copy, not the same pointer")
	}
	if removed.Key != d.Key {
		t.Errorf("disconnected copy key = %q, want %q", removed.Key, d.Key)
	}
}
