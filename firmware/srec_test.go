package firmware

import "testing"

func TestLoadSRECSingleDataRecord(t *testing.T) {
	data := []byte("S1130000" + "0102030405060708090A0B0C0D0E0F10" + "64\n" +
		"S9030000FC\n")
	f, err := LoadSREC("fw.srec", data)
	if err != nil {
		t.Fatalf("LoadSREC: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(f.Segments))
	}
	if f.Segments[0].Address != 0 {
		t.Errorf("address = %#x, want 0", f.Segments[0].Address)
	}
	if f.TotalSize != 16 {
		t.Errorf("total size = %d, want 16", f.TotalSize)
	}
}

func TestLoadSRECBadChecksum(t *testing.T) {
	data := []byte("S1130000" + "0102030405060708090A0B0C0D0E0F10" + "00\n" +
		"S9030000FC\n")
	if _, err := LoadSREC("fw.srec", data); err == nil {
		t.Error("expected a checksum mismatch error")
	}
}

func TestLoadSRECMissingTerminator(t *testing.T) {
	data := []byte("S1130000" + "0102030405060708090A0B0C0D0E0F10" + "64\n")
	if _, err := LoadSREC("fw.srec", data); err == nil {
		t.Error("expected an error for a file with no terminator record")
	}
}

func TestLoadSRECHeaderIgnored(t *testing.T) {
	// S0 header "HDR" at address 0000, followed by one data record and a terminator.
	data := []byte("S0060000484452" + "1B\n" +
		"S1130000" + "0102030405060708090A0B0C0D0E0F10" + "64\n" +
		"S9030000FC\n")
	f, err := LoadSREC("fw.srec", data)
	if err != nil {
		t.Fatalf("LoadSREC: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (header must not produce a segment)", len(f.Segments))
	}
}
