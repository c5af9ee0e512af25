package firmware

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
)

// buildMinimalELF64 assembles a tiny valid little-endian ELF64 executable
// with a single PT_LOAD segment, for exercising LoadELF without a real
// toolchain-produced binary.
func buildMinimalELF64(t *testing.T, paddr, vaddr uint64, payload []byte) []byte {
	t.Helper()

	const ehsize = 64
	const phsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize

	var buf bytes.Buffer

	// e_ident
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2 /* ELFCLASS64 */, 1 /* ELFDATA2LSB */, 1, 0})
	buf.Write(make([]byte, 8)) // padding

	le := binary.LittleEndian
	writeU16 := func(v uint16) { var b [2]byte; le.PutUint16(b[:], v); buf.Write(b[:]) }
	writeU32 := func(v uint32) { var b [4]byte; le.PutUint32(b[:], v); buf.Write(b[:]) }
	writeU64 := func(v uint64) { var b [8]byte; le.PutUint64(b[:], v); buf.Write(b[:]) }

	writeU16(uint16(elf.ET_EXEC)) // e_type
	writeU16(uint16(elf.EM_ARM))  // e_machine
	writeU32(1)                   // e_version
	writeU64(vaddr)               // e_entry
	writeU64(phoff)               // e_phoff
	writeU64(0)                   // e_shoff
	writeU32(0)                   // e_flags
	writeU16(ehsize)              // e_ehsize
	writeU16(phsize)              // e_phentsize
	writeU16(1)                   // e_phnum
	writeU16(0)                   // e_shentsize
	writeU16(0)                   // e_shnum
	writeU16(0)                   // e_shstrndx

	// program header (Elf64_Phdr)
	writeU32(uint32(elf.PT_LOAD))  // p_type
	writeU32(uint32(elf.PF_R | elf.PF_X)) // p_flags
	writeU64(dataOff)              // p_offset
	writeU64(vaddr)                // p_vaddr
	writeU64(paddr)                // p_paddr
	writeU64(uint64(len(payload))) // p_filesz
	writeU64(uint64(len(payload))) // p_memsz
	writeU64(4)                    // p_align

	buf.Write(payload)

	return buf.Bytes()
}

func TestLoadELFUsesPaddrWhenNonzero(t *testing.T) {
	data := buildMinimalELF64(t, 0x60000000, 0x08000000, []byte{1, 2, 3, 4})
	f, err := LoadELF("fw.elf", data)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(f.Segments))
	}
	if f.Segments[0].Address != 0x60000000 {
		t.Errorf("address = %#x, want paddr 0x60000000", f.Segments[0].Address)
	}
}

func TestLoadELFFallsBackToVaddrWhenPaddrZero(t *testing.T) {
	data := buildMinimalELF64(t, 0, 0x08000000, []byte{1, 2, 3, 4})
	f, err := LoadELF("fw.elf", data)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}
	if f.Segments[0].Address != 0x08000000 {
		t.Errorf("address = %#x, want vaddr 0x08000000", f.Segments[0].Address)
	}
}

func TestLoadELFRejectsNonELF(t *testing.T) {
	if _, err := LoadELF("fw.elf", []byte{1, 2, 3, 4}); err == nil {
		t.Error("expected an error parsing non-ELF data")
	}
}
