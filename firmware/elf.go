package firmware

import (
	"bytes"
	"debug/elf"

	"github.com/ardnew/tyhs/pkg"
)

// LoadELF reads PT_LOAD program headers out of an ELF image. No library in
// the retrieved example pack wraps ELF parsing; the standard library's
// debug/elf is the canonical, actively-maintained reader for this format
// and is used directly rather than hand-rolling a section-header walker.
func LoadELF(filename string, data []byte) (*Firmware, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, log.Wrap(pkg.Parse, err, filename)
	}
	defer f.Close()

	var segs []Segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		addr := prog.Paddr
		if addr == 0 {
			addr = prog.Vaddr
		}
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil {
			return nil, log.Wrap(pkg.Parse, err, filename)
		}
		segs = append(segs, Segment{Address: uint32(addr), Bytes: buf})
	}
	if len(segs) == 0 {
		return nil, log.Errorf(pkg.Parse, "%s: no loadable PT_LOAD segments", filename)
	}

	return normalize("", filename, segs)
}
