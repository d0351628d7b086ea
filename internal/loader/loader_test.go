package loader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"mipsuser/internal/memory"
)

// buildMinimalELF32 assembles a minimal big-endian ELF32 executable
// with a single PT_LOAD segment, by hand, so the loader can be tested
// without shelling out to a real MIPS toolchain.
func buildMinimalELF32(t *testing.T, entry, vaddr uint32, segment []byte) []byte {
	t.Helper()
	const ehsize = 52
	const phentsize = 32
	phoff := uint32(ehsize)
	segOff := phoff + phentsize

	buf := make([]byte, int(segOff)+len(segment))
	be := binary.BigEndian

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 1 // ELFCLASS32
	buf[5] = 2 // ELFDATA2MSB
	buf[6] = 1 // EV_CURRENT
	// e_ident[7:16] left zero (OSABI/ABIVERSION/padding)

	be.PutUint16(buf[16:18], 2)  // e_type = ET_EXEC
	be.PutUint16(buf[18:20], 8)  // e_machine = EM_MIPS
	be.PutUint32(buf[20:24], 1)  // e_version
	be.PutUint32(buf[24:28], entry)
	be.PutUint32(buf[28:32], phoff)
	be.PutUint32(buf[32:36], 0) // e_shoff
	be.PutUint32(buf[36:40], 0) // e_flags
	be.PutUint16(buf[40:42], ehsize)
	be.PutUint16(buf[42:44], phentsize)
	be.PutUint16(buf[44:46], 1) // e_phnum
	be.PutUint16(buf[46:48], 0) // e_shentsize
	be.PutUint16(buf[48:50], 0) // e_shnum
	be.PutUint16(buf[50:52], 0) // e_shstrndx

	ph := buf[phoff : phoff+phentsize]
	be.PutUint32(ph[0:4], 1) // PT_LOAD
	be.PutUint32(ph[4:8], segOff)
	be.PutUint32(ph[8:12], vaddr)
	be.PutUint32(ph[12:16], vaddr)
	be.PutUint32(ph[16:20], uint32(len(segment)))
	be.PutUint32(ph[20:24], uint32(len(segment)))
	be.PutUint32(ph[24:28], 7) // flags RWX
	be.PutUint32(ph[28:32], 4)

	copy(buf[segOff:], segment)
	return buf
}

func TestLoadELFCopiesLoadSegment(t *testing.T) {
	segment := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	raw := buildMinimalELF32(t, 0x400000, 0x400000, segment)

	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing test ELF: %v", err)
	}

	mem, entry, err := LoadELF(path)
	if err != nil {
		t.Fatalf("LoadELF: %v", err)
	}
	if entry != 0x400000 {
		t.Errorf("entry got: %#x expected: %#x", entry, 0x400000)
	}
	if got := mem.ReadWord(0x400000); got != 0xDEADBEEF {
		t.Errorf("segment bytes got: %#x expected: %#x", got, uint32(0xDEADBEEF))
	}
}

func TestInitializeProcessStackPlacesArgv0(t *testing.T) {
	mem, _, err := loadFixtureForStackTest(t)
	if err != nil {
		t.Fatalf("fixture setup: %v", err)
	}
	InitializeProcessStack(mem, DefaultStackPointer, "/bin/true", []string{"-x"})

	argc := mem.ReadWord(DefaultStackPointer)
	if argc != 2 {
		t.Errorf("argc got: %d expected: 2", argc)
	}
}

func loadFixtureForStackTest(t *testing.T) (*memory.Memory, uint32, error) {
	t.Helper()
	segment := []byte{0, 0, 0, 0}
	raw := buildMinimalELF32(t, 0x400000, 0x400000, segment)
	path := filepath.Join(t.TempDir(), "image.elf")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing test ELF: %v", err)
	}
	return LoadELF(path)
}
