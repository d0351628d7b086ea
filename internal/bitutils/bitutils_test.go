package bitutils

import "testing"

// Check field extraction against a hand-assembled ADDU r3,r1,r2 instruction.
func TestFieldExtraction(t *testing.T) {
	// SPECIAL opcode=0, rs=1, rt=2, rd=3, shamt=0, funct=ADDU(0x21)
	inst := uint32(0)<<26 | uint32(1)<<21 | uint32(2)<<16 | uint32(3)<<11 | uint32(0)<<6 | uint32(0x21)

	if r := Opcode(inst); r != 0 {
		t.Errorf("Opcode got: %d expected: %d", r, 0)
	}
	if r := Rs(inst); r != 1 {
		t.Errorf("Rs got: %d expected: %d", r, 1)
	}
	if r := Rt(inst); r != 2 {
		t.Errorf("Rt got: %d expected: %d", r, 2)
	}
	if r := Rd(inst); r != 3 {
		t.Errorf("Rd got: %d expected: %d", r, 3)
	}
	if r := Funct(inst); r != 0x21 {
		t.Errorf("Funct got: %#x expected: %#x", r, 0x21)
	}
}

// Invariant 2 from TESTABLE PROPERTIES: upper 32-length bits of
// sign_extend(w, length) equal bit length-1 of w.
func TestSignExtend(t *testing.T) {
	if r := SignExtend(0xFF, 8); r != -1 {
		t.Errorf("SignExtend got: %d expected: %d", r, -1)
	}
	if r := SignExtend(0x00FFFFFF, 24); r != -1 {
		t.Errorf("SignExtend got: %d expected: %d", r, -1)
	}
	if r := SignExtend(0x7F, 8); r != 0x7F {
		t.Errorf("SignExtend got: %d expected: %d", r, 0x7F)
	}
	for _, length := range []uint8{8, 16, 24} {
		for _, w := range []uint32{0, 1, 0xFFFFFFFF, 0x12345678, 0x80808080} {
			got := SignExtend(w, length)
			bit := (w >> (length - 1)) & 1
			upperMask := uint32(0xFFFFFFFF) << length
			wantUpper := uint32(0)
			if bit != 0 {
				wantUpper = upperMask
			}
			if uint32(got)&upperMask != wantUpper {
				t.Errorf("SignExtend(%#x,%d) upper bits got: %#x expected: %#x", w, length, uint32(got)&upperMask, wantUpper)
			}
		}
	}
}

func TestAddSignedOffset(t *testing.T) {
	if r := AddSignedOffset(0, 10); r != 10 {
		t.Errorf("AddSignedOffset got: %d expected: %d", r, 10)
	}
	if r := AddSignedOffset(65535, 10); r != 65545 {
		t.Errorf("AddSignedOffset got: %d expected: %d", r, 65545)
	}
	if r := AddSignedOffset(0xFFFFFF00, 0xFF); r != 0xFFFFFFFF {
		t.Errorf("AddSignedOffset got: %#x expected: %#x", r, uint32(0xFFFFFFFF))
	}
}

func TestAddToUpperBits(t *testing.T) {
	if r := AddToUpperBits(0, 0x7FFF); r != 0x7FFF0000 {
		t.Errorf("AddToUpperBits got: %#x expected: %#x", r, uint32(0x7FFF0000))
	}
	if r := AddToUpperBits(0x00010001, 0x0001); r != 0x00020001 {
		t.Errorf("AddToUpperBits got: %#x expected: %#x", r, uint32(0x00020001))
	}
}

func TestBranchTarget(t *testing.T) {
	// beq at pc=0x1000 with offset 0 branches to pc+4.
	if r := BranchTarget(0x1000, 0); r != 0x1004 {
		t.Errorf("BranchTarget got: %#x expected: %#x", r, uint32(0x1004))
	}
	// offset -1 (all ones) moves back four bytes from the fall-through.
	if r := BranchTarget(0x1000, 0xFFFF); r != 0x1000 {
		t.Errorf("BranchTarget got: %#x expected: %#x", r, uint32(0x1000))
	}
}

func TestJumpTarget(t *testing.T) {
	if r := JumpTarget(0x80000000, 0x00100000); r != 0x80400000 {
		t.Errorf("JumpTarget got: %#x expected: %#x", r, uint32(0x80400000))
	}
}
