// Package bitutils implements the pure instruction-field decoding
// helpers shared by the CPU decoder: opcode field extraction, sign
// extension and signed-offset arithmetic.
package bitutils

// Opcode returns bits [31:26] of a fetched instruction word.
func Opcode(inst uint32) uint32 {
	return (inst & 0xFC000000) >> 26
}

// Rs returns bits [25:21].
func Rs(inst uint32) uint32 {
	return (inst & 0x03E00000) >> 21
}

// Rt returns bits [20:16].
func Rt(inst uint32) uint32 {
	return (inst & 0x001F0000) >> 16
}

// Rd returns bits [15:11].
func Rd(inst uint32) uint32 {
	return (inst & 0x0000F800) >> 11
}

// Shamt returns bits [10:6], the shift amount / SPECIAL3 selector field.
func Shamt(inst uint32) uint32 {
	return (inst & 0x000007C0) >> 6
}

// Funct returns bits [5:0].
func Funct(inst uint32) uint32 {
	return inst & 0x0000003F
}

// Imm returns the 16-bit immediate field, bits [15:0].
func Imm(inst uint32) uint16 {
	return uint16(inst & 0x0000FFFF)
}

// Target returns the 26-bit jump target field, bits [25:0].
func Target(inst uint32) uint32 {
	return inst & 0x03FFFFFF
}

// SignExtend reinterprets the low length bits of word as a signed value
// and extends it to 32 bits. length must be in [1,32].
func SignExtend(word uint32, length uint8) int32 {
	shift := 32 - length
	return int32(word<<shift) >> shift
}

// AddSignedOffset adds a sign-extended 16-bit offset to a base, wrapping
// on overflow as MIPS address arithmetic does.
func AddSignedOffset(base uint32, offset uint16) uint32 {
	return base + uint32(int32(int16(offset)))
}

// AddToUpperBits implements the AUI/LUI immediate placement: the 16-bit
// immediate is shifted into the upper half and added to word.
func AddToUpperBits(word uint32, immediate uint16) uint32 {
	return uint32(int32(word) + int32(uint32(immediate)<<16))
}

// BranchTarget computes the PC-relative branch target for a 16-bit
// instruction offset field: pc+4 plus the offset sign-extended from 18
// bits (the offset field shifted left two, per MIPS branch encoding).
func BranchTarget(pc uint32, offset uint16) uint32 {
	delta := SignExtend(uint32(offset)<<2, 18)
	return uint32(int32(pc) + 4 + delta)
}

// JumpTarget computes the absolute target of a J/JAL instruction: the
// top 4 bits of pc+4 combined with the 26-bit target field shifted left
// two.
func JumpTarget(pc, instTarget uint32) uint32 {
	return ((pc + 4) & 0xF0000000) | (instTarget << 2)
}
