package firmware

import "testing"

func TestNormalizeSortsAndCoalesces(t *testing.T) {
	f, err := normalize("", "fw.bin", []Segment{
		{Address: 0x100, Bytes: []byte{1, 2, 3, 4}},
		{Address: 0x000, Bytes: []byte{0xAA, 0xBB}},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(f.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(f.Segments))
	}
	if f.Segments[0].Address != 0 || f.Segments[1].Address != 0x100 {
		t.Error("segments should be sorted by address")
	}
	if f.MinAddress != 0 {
		t.Errorf("MinAddress = %#x, want 0", f.MinAddress)
	}
	if f.MaxAddress != 0x103 {
		t.Errorf("MaxAddress = %#x, want 0x103", f.MaxAddress)
	}
	if f.TotalSize != 6 {
		t.Errorf("TotalSize = %d, want 6", f.TotalSize)
	}
}

func TestNormalizeCoalescesAdjacent(t *testing.T) {
	f, err := normalize("", "fw.bin", []Segment{
		{Address: 0, Bytes: []byte{1, 2}},
		{Address: 2, Bytes: []byte{3, 4}},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (adjacent runs should coalesce)", len(f.Segments))
	}
	if len(f.Segments[0].Bytes) != 4 {
		t.Errorf("coalesced length = %d, want 4", len(f.Segments[0].Bytes))
	}
}

func TestNormalizeOverlapLaterWins(t *testing.T) {
	f, err := normalize("", "fw.bin", []Segment{
		{Address: 0, Bytes: []byte{1, 2, 3, 4}},
		{Address: 2, Bytes: []byte{0xFF, 0xFF}},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(f.Segments))
	}
	want := []byte{1, 2, 0xFF, 0xFF}
	got := f.Segments[0].Bytes
	if len(got) != len(want) {
		t.Fatalf("bytes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestNormalizeRejectsEmptySegment(t *testing.T) {
	if _, err := normalize("", "fw.bin", []Segment{{Address: 0, Bytes: nil}}); err == nil {
		t.Error("expected an error for a zero-length segment")
	}
}

func TestNameDefaultsToBasenameMinusExtension(t *testing.T) {
	f, err := normalize("", "/path/to/blink.hex", []Segment{{Address: 0, Bytes: []byte{1}}})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if f.Name != "blink" {
		t.Errorf("name = %q, want blink", f.Name)
	}
}

func TestLoadDispatchesByExtension(t *testing.T) {
	f, err := Load("fw.bin", []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.TotalSize != 4 {
		t.Errorf("total size = %d, want 4", f.TotalSize)
	}
}

func TestLoadFallsBackToSignatureSniffing(t *testing.T) {
	data := []byte(":10000000000102030405060708090A0B0C0D0E0F78\n:00000001FF\n")
	f, err := Load("firmware.unknown", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.TotalSize != 16 {
		t.Errorf("total size = %d, want 16", f.TotalSize)
	}
}

func TestValidateRejectsOversizedTotal(t *testing.T) {
	f, err := LoadBinary("fw.bin", make([]byte, 100))
	if err != nil {
		t.Fatalf("LoadBinary: %v", err)
	}
	if err := f.Validate(50); err == nil {
		t.Error("expected Validate to reject a firmware larger than the target's code size")
	}
	if err := f.Validate(200); err != nil {
		t.Errorf("Validate should accept a firmware within code size: %v", err)
	}
}

func TestMatchesSignatureAtOffset(t *testing.T) {
	f, err := normalize("", "fw.bin", []Segment{
		{Address: 0x400, Bytes: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00}},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !f.MatchesSignature(0x400, []byte{0xDE, 0xAD}) {
		t.Error("expected signature match at segment start")
	}
	if f.MatchesSignature(0x400, []byte{0x11, 0x22}) {
		t.Error("expected no match for differing magic bytes")
	}
	if f.MatchesSignature(0x200, []byte{0xDE, 0xAD}) {
		t.Error("expected no match for an offset outside any segment")
	}
}
