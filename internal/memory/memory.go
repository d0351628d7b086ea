package memory

/*
 * S370  - Low level memory
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package memory implements the guest's flat 32-bit byte-addressed
// address space: a two-level page table of 64 KiB pages allocated on
// first touch, so a 4 GiB space costs nothing until exercised.

import "encoding/binary"

const (
	pageBits = 16
	pageSize = 1 << pageBits
	pageMask = pageSize - 1

	// ProgramBreakCeiling bounds the program break raised by
	// WriteBlockAndUpdateProgramBreak during loading, so segments at or
	// above it (the stack region) do not move the break. SetProgramBreak
	// does not check it.
	ProgramBreakCeiling = 0x7000_0000
)

// Endian selects the byte order used to compose and decompose
// halfwords and words. The reference workload is big-endian.
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

// Memory is the guest's linear address space.
type Memory struct {
	endian       Endian
	pages        map[uint32][]byte
	programBreak uint32
}

// New creates an empty address space using the given byte order.
func New(endian Endian) *Memory {
	return &Memory{
		endian: endian,
		pages:  make(map[uint32][]byte),
	}
}

func (m *Memory) page(addr uint32, create bool) []byte {
	key := addr >> pageBits
	p, ok := m.pages[key]
	if !ok {
		if !create {
			return nil
		}
		p = make([]byte, pageSize)
		m.pages[key] = p
	}
	return p
}

// ReadByte returns the byte at addr, zero if never written.
func (m *Memory) ReadByte(addr uint32) uint32 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return uint32(p[addr&pageMask])
}

// WriteByte stores the low 8 bits of value at addr.
func (m *Memory) WriteByte(addr uint32, value uint32) {
	p := m.page(addr, true)
	p[addr&pageMask] = byte(value)
}

// ReadHalfword composes two bytes at addr using the configured
// endianness; big-endian places the most significant byte first.
func (m *Memory) ReadHalfword(addr uint32) uint32 {
	b0, b1 := m.ReadByte(addr), m.ReadByte(addr+1)
	if m.endian == BigEndian {
		return b0<<8 | b1
	}
	return b1<<8 | b0
}

// WriteHalfword is the inverse of ReadHalfword.
func (m *Memory) WriteHalfword(addr uint32, value uint32) {
	if m.endian == BigEndian {
		m.WriteByte(addr, value>>8)
		m.WriteByte(addr+1, value)
		return
	}
	m.WriteByte(addr, value)
	m.WriteByte(addr+1, value>>8)
}

// ReadWord composes four bytes at addr using the configured endianness.
func (m *Memory) ReadWord(addr uint32) uint32 {
	b0, b1 := m.ReadByte(addr), m.ReadByte(addr+1)
	b2, b3 := m.ReadByte(addr+2), m.ReadByte(addr+3)
	if m.endian == BigEndian {
		return b0<<24 | b1<<16 | b2<<8 | b3
	}
	return b3<<24 | b2<<16 | b1<<8 | b0
}

// WriteWord is the inverse of ReadWord.
func (m *Memory) WriteWord(addr uint32, value uint32) {
	if m.endian == BigEndian {
		m.WriteByte(addr, value>>24)
		m.WriteByte(addr+1, value>>16)
		m.WriteByte(addr+2, value>>8)
		m.WriteByte(addr+3, value)
		return
	}
	m.WriteByte(addr, value)
	m.WriteByte(addr+1, value>>8)
	m.WriteByte(addr+2, value>>16)
	m.WriteByte(addr+3, value>>24)
}

// FetchInstruction reads the instruction word at addr; instruction
// words are stored in the configured endianness, same as ReadWord.
func (m *Memory) FetchInstruction(addr uint32) uint32 {
	return m.ReadWord(addr)
}

// alignedWordAt reads the word at the four-byte boundary containing eff.
func (m *Memory) alignedWordAt(eff uint32) (base uint32, word uint32) {
	base = eff &^ 3
	return base, m.ReadWord(base)
}

// WriteWordUnalignedSWL implements SWL: stores the high 4-k bytes of v
// into the aligned word containing eff, at byte offsets k..3.
func (m *Memory) WriteWordUnalignedSWL(eff uint32, v uint32) {
	k := eff & 3
	base, word := m.alignedWordAt(eff)
	for i := k; i < 4; i++ {
		shift := 24 - 8*(i-k)
		word = setByteAtOffset(word, i, byte(v>>shift), m.endian)
	}
	m.WriteWord(base, word)
}

// WriteWordUnalignedSWR implements SWR: stores the low k+1 bytes of v
// into the aligned word containing eff, ending at byte offset k.
func (m *Memory) WriteWordUnalignedSWR(eff uint32, v uint32) {
	k := eff & 3
	base, word := m.alignedWordAt(eff)
	for i := uint32(0); i <= k; i++ {
		shift := 8 * (k - i)
		word = setByteAtOffset(word, i, byte(v>>shift), m.endian)
	}
	m.WriteWord(base, word)
}

// setByteAtOffset replaces the byte at address offset i (0 = lowest
// address) within word, honouring endian for bit placement.
func setByteAtOffset(word uint32, i uint32, b byte, endian Endian) uint32 {
	shift := bitShiftForOffset(i, endian)
	mask := uint32(0xFF) << shift
	return (word &^ mask) | uint32(b)<<shift
}

func getByteAtOffset(word uint32, i uint32, endian Endian) byte {
	return byte(word >> bitShiftForOffset(i, endian))
}

func bitShiftForOffset(i uint32, endian Endian) uint32 {
	if endian == BigEndian {
		return 24 - 8*i
	}
	return 8 * i
}

// ReadWordUnalignedLWL computes the mask and partial word for LWL: the
// caller ORs the result into its destination register after clearing
// the bits covered by mask.
func (m *Memory) ReadWordUnalignedLWL(eff uint32) (partial uint32, mask uint32) {
	k := eff & 3
	_, word := m.alignedWordAt(eff)
	for i := k; i < 4; i++ {
		b := getByteAtOffset(word, i, m.endian)
		shift := 24 - 8*(i-k)
		partial |= uint32(b) << shift
		mask |= 0xFF << shift
	}
	return partial, mask
}

// ReadWordUnalignedLWR is the LWR counterpart of ReadWordUnalignedLWL.
func (m *Memory) ReadWordUnalignedLWR(eff uint32) (partial uint32, mask uint32) {
	k := eff & 3
	_, word := m.alignedWordAt(eff)
	for i := uint32(0); i <= k; i++ {
		b := getByteAtOffset(word, i, m.endian)
		shift := 8 * (k - i)
		partial |= uint32(b) << shift
		mask |= 0xFF << shift
	}
	return partial, mask
}

// WriteBlock bulk-copies data into memory starting at addr.
func (m *Memory) WriteBlock(addr uint32, data []byte) {
	for i, b := range data {
		m.WriteByte(addr+uint32(i), uint32(b))
	}
}

// WriteBlockAndUpdateProgramBreak bulk-copies data and raises
// program_break to addr+len(data) when that falls below the ceiling
// reserved for the stack.
func (m *Memory) WriteBlockAndUpdateProgramBreak(addr uint32, data []byte) {
	m.WriteBlock(addr, data)
	end := addr + uint32(len(data))
	if end < ProgramBreakCeiling && end > m.programBreak {
		m.programBreak = end
	}
}

// ProgramBreak returns the current break address.
func (m *Memory) ProgramBreak() uint32 { return m.programBreak }

// SetProgramBreak moves the break to addr if addr is higher than the
// current break, per the monotonic-non-decreasing invariant.
func (m *Memory) SetProgramBreak(addr uint32) {
	if addr > m.programBreak {
		m.programBreak = addr
	}
}

// TranslateAddress returns a host byte slice backing the page at addr,
// sliced so index 0 corresponds to addr, for passing to host
// syscalls. A guest address of 0 yields nil, so that null-pointer
// semantics survive marshalling.
func (m *Memory) TranslateAddress(addr uint32) []byte {
	if addr == 0 {
		return nil
	}
	p := m.page(addr, true)
	return p[addr&pageMask:]
}

// Auxiliary vector keys required by InitializeStackAt.
const (
	AtNull   = 0
	AtPageSZ = 6
	AtClkTck = 17
)

// InitializeStackAt lays out the SysV MIPS initial stack at sp: argc,
// argv pointers (NULL-terminated), envp pointers (NULL-terminated),
// then the auxiliary vector as (key, value) pairs terminated by
// AT_NULL. String payloads are placed at a data cursor above the
// pointer table. sp must be 8-byte aligned. auxv must carry at least
// AtPageSZ and AtClkTck.
func (m *Memory) InitializeStackAt(sp uint32, argv, envp []string, auxv map[uint32]uint32) {
	if sp%8 != 0 {
		panic("memory: InitializeStackAt requires an 8-byte aligned sp")
	}

	ptrWords := uint32(len(argv)) + 1 + uint32(len(envp)) + 1 + uint32(len(auxv))*2 + 2
	pointerAddr := sp + 4
	dataAddr := pointerAddr + ptrWords*4

	m.WriteWord(sp, uint32(len(argv)))

	for _, arg := range argv {
		m.WriteWord(pointerAddr, dataAddr)
		pointerAddr += 4
		dataAddr = m.writeCString(dataAddr, arg)
	}
	m.WriteWord(pointerAddr, 0)
	pointerAddr += 4

	for _, kv := range envp {
		m.WriteWord(pointerAddr, dataAddr)
		pointerAddr += 4
		dataAddr = m.writeCString(dataAddr, kv)
	}
	m.WriteWord(pointerAddr, 0)
	pointerAddr += 4

	for key, val := range auxv {
		m.WriteWord(pointerAddr, key)
		pointerAddr += 4
		m.WriteWord(pointerAddr, val)
		pointerAddr += 4
	}
	m.WriteWord(pointerAddr, AtNull)
	m.WriteWord(pointerAddr+4, 0)
}

func (m *Memory) writeCString(addr uint32, s string) uint32 {
	for i := 0; i < len(s); i++ {
		m.WriteByte(addr, uint32(s[i]))
		addr++
	}
	m.WriteByte(addr, 0)
	return addr + 1
}

// ReadBytes copies n bytes starting at addr into a fresh slice; used
// by syscall marshalling for host-facing reads.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(m.ReadByte(addr + uint32(i)))
	}
	return out
}

// Endian reports the configured byte order.
func (m *Memory) Endian() Endian { return m.endian }

// ByteOrder returns the binary.ByteOrder equivalent to Endian, for
// callers that need to hand the guest endianness to encoding/binary.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
