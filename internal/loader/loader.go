// Package loader builds a guest address space from an ELF file —
// either a real executable or a Linux core dump, which is itself a
// valid ELF object (ET_CORE) — and lays out the initial process stack
// for a freshly started binary.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"mipsuser/internal/memory"
)

// DefaultStackPointer is where a freshly loaded binary's stack is
// built when the caller has not been given a coredump-specific one.
const DefaultStackPointer = 0x7ffffe50

// LoadELF parses path and copies every PT_LOAD segment's file-backed
// bytes to its virtual address, returning the resulting address space
// and the file's recorded entry point. A core dump's entry point is
// meaningless (cores have none) and must be supplied by the caller
// from elsewhere.
func LoadELF(path string) (*memory.Memory, uint32, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("loader: opening %s: %w", path, err)
	}
	defer f.Close()

	endian := memory.BigEndian
	if f.Data == elf.ELFDATA2LSB {
		endian = memory.LittleEndian
	}
	mem := memory.New(endian)

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return nil, 0, fmt.Errorf("loader: reading segment at %#x: %w", prog.Vaddr, err)
		}
		mem.WriteBlockAndUpdateProgramBreak(uint32(prog.Vaddr), data)
	}
	return mem, uint32(f.Entry), nil
}

// DefaultAuxv supplies the two auxiliary-vector entries every guest
// process needs at startup: page size and clock ticks per second.
func DefaultAuxv() map[uint32]uint32 {
	return map[uint32]uint32{
		memory.AtPageSZ: 4096,
		memory.AtClkTck: 100,
	}
}

// InitializeProcessStack lays out the initial stack for a freshly
// loaded binary: argv[0] is the path used to load it, followed by
// args, with the host's own environment forwarded into the guest.
func InitializeProcessStack(mem *memory.Memory, sp uint32, path string, args []string) {
	argv := append([]string{path}, args...)
	mem.InitializeStackAt(sp, argv, os.Environ(), DefaultAuxv())
}
