// Package firmware loads and normalizes the file formats used to program a
// board's flash: Intel HEX, Motorola SREC, ELF, and raw binary. Every
// loader produces the same Firmware shape, per spec.md §4.12.
package firmware

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardnew/tyhs/pkg"
)

var log = pkg.NewContext(pkg.ComponentFirmware)

// Segment is a contiguous run of bytes destined for a single flash address.
type Segment struct {
	Address uint32
	Bytes   []byte
}

// end returns the address one past the segment's last byte.
func (s Segment) end() uint32 { return s.Address + uint32(len(s.Bytes)) }

// Firmware is an immutable, normalized set of memory segments loaded from a
// file. Segments are sorted by address, non-overlapping, and coalesced
// where adjacent.
type Firmware struct {
	Name       string
	Filename   string
	Segments   []Segment
	MinAddress uint32
	MaxAddress uint32
	TotalSize  int
}

// nameFromFilename derives the default Firmware name: the basename minus
// its extension.
func nameFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalize sorts segs by address, merges adjacent/overlapping runs (later
// bytes win on overlap, matching a re-flash of the same region), and
// computes the Firmware's derived fields.
func normalize(name, filename string, segs []Segment) (*Firmware, error) {
	segs = append([]Segment(nil), segs...)
	for _, s := range segs {
		if len(s.Bytes) == 0 {
			return nil, log.Errorf(pkg.Parse, "%s: zero-length segment at 0x%08x", filename, s.Address)
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Address < segs[j].Address })

	coalesced := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(coalesced); n > 0 {
			prev := &coalesced[n-1]
			if s.Address <= prev.end() {
				start := int(s.Address - prev.Address)
				n := copy(prev.Bytes[start:], s.Bytes)
				prev.Bytes = append(prev.Bytes, s.Bytes[n:]...)
				continue
			}
		}
		// Own a copy of the bytes, since later segments overwrite them.
		s.Bytes = append([]byte(nil), s.Bytes...)
		coalesced = append(coalesced, s)
	}

	if name == "" {
		name = nameFromFilename(filename)
	}

	f := &Firmware{
		Name:     name,
		Filename: filename,
		Segments: coalesced,
	}
	if len(coalesced) > 0 {
		f.MinAddress = coalesced[0].Address
		f.MaxAddress = coalesced[len(coalesced)-1].end() - 1
	}
	for _, s := range coalesced {
		f.TotalSize += len(s.Bytes)
	}
	return f, nil
}

// Load dispatches to a format loader by file extension, falling back to
// magic-byte sniffing when the extension is unrecognized or absent, per
// spec.md §4.12.
func Load(filename string, data []byte) (*Firmware, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hex", ".ihx":
		return LoadIntelHex(filename, data)
	case ".srec", ".s19", ".s28", ".s37":
		return LoadSREC(filename, data)
	case ".elf":
		return LoadELF(filename, data)
	case ".bin":
		return LoadBinary(filename, data)
	}
	return loadBySignature(filename, data)
}

// Validate checks f against a target's code size, per spec.md §4.13 step 4:
// the total image must fit, and no single segment may exceed codeSize on
// its own (a segment larger than the whole target can never be valid
// regardless of gaps).
func (f *Firmware) Validate(codeSize int) error {
	if f.TotalSize > codeSize {
		return log.Errorf(pkg.Parse, "%s: total size %d exceeds target code size %d", f.Filename, f.TotalSize, codeSize)
	}
	for _, s := range f.Segments {
		if len(s.Bytes) > codeSize {
			return log.Errorf(pkg.Parse, "%s: segment at 0x%08x (%d bytes) exceeds target code size %d",
				f.Filename, s.Address, len(s.Bytes), codeSize)
		}
		if int(s.end()) > codeSize {
			return log.Errorf(pkg.Parse, "%s: segment at 0x%08x extends past target code size %d", f.Filename, s.Address, codeSize)
		}
	}
	return nil
}

// MatchesSignature reports whether f's data at offset contains magic,
// per spec.md §4.13 step 3's "signature (magic bytes at known offsets)"
// selection rule.
func (f *Firmware) MatchesSignature(offset uint32, magic []byte) bool {
	for _, s := range f.Segments {
		if offset < s.Address || offset+uint32(len(magic)) > s.end() {
			continue
		}
		start := offset - s.Address
		return string(s.Bytes[start:start+uint32(len(magic))]) == string(magic)
	}
	return false
}

func loadBySignature(filename string, data []byte) (*Firmware, error) {
	switch {
	case len(data) >= 4 && string(data[:4]) == "\x7fELF":
		return LoadELF(filename, data)
	case len(data) > 0 && data[0] == ':':
		return LoadIntelHex(filename, data)
	case len(data) > 0 && data[0] == 'S':
		return LoadSREC(filename, data)
	default:
		return LoadBinary(filename, data)
	}
}
