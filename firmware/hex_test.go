package firmware

import "testing"

func TestLoadIntelHexSingleRecord(t *testing.T) {
	// ":10 0000 00 000102030405060708090A0B0C0D0E0F 78 EOF"
	data := []byte(":10000000000102030405060708090A0B0C0D0E0F78\n:00000001FF\n")
	f, err := LoadIntelHex("fw.hex", data)
	if err != nil {
		t.Fatalf("LoadIntelHex: %v", err)
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
	if f.Name != "fw" {
		t.Errorf("name = %q, want fw", f.Name)
	}
}

func TestLoadIntelHexExtendedLinearAddress(t *testing.T) {
	data := []byte(
		":020000040002F8\n" + // extended linear: upper = 0x0002
			":10000000000102030405060708090A0B0C0D0E0F78\n" +
			":00000001FF\n")
	f, err := LoadIntelHex("fw.hex", data)
	if err != nil {
		t.Fatalf("LoadIntelHex: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(f.Segments))
	}
	want := uint32(0x00020000)
	if f.Segments[0].Address != want {
		t.Errorf("address = %#x, want %#x", f.Segments[0].Address, want)
	}
}

func TestLoadIntelHexBadChecksum(t *testing.T) {
	data := []byte(":10000000000102030405060708090A0B0C0D0E0F00\n:00000001FF\n")
	if _, err := LoadIntelHex("fw.hex", data); err == nil {
		t.Error("expected a checksum mismatch error")
	}
}

func TestLoadIntelHexMissingEOF(t *testing.T) {
	data := []byte(":10000000000102030405060708090A0B0C0D0E0F78\n")
	if _, err := LoadIntelHex("fw.hex", data); err == nil {
		t.Error("expected an error for a file with no EOF record")
	}
}

func TestLoadIntelHexMalformedStart(t *testing.T) {
	data := []byte("100000000102030405060708090A0B0C0D0E0F74\n")
	if _, err := LoadIntelHex("fw.hex", data); err == nil {
		t.Error("expected an error for a record not starting with ':'")
	}
}
