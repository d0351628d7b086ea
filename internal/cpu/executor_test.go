package cpu

import (
	"testing"

	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
)

func encodeR(opcode, rs, rt, rd, shamt, funct uint32) uint32 {
	return opcode<<26 | rs<<21 | rt<<16 | rd<<11 | shamt<<6 | funct
}

func encodeI(opcode, rs, rt, imm uint32) uint32 {
	return opcode<<26 | rs<<21 | rt<<16 | (imm & 0xFFFF)
}

func encodeJ(opcode, target uint32) uint32 {
	return opcode<<26 | (target & 0x03FFFFFF)
}

func newFixture() (*Executor, *registers.File, *memory.Memory) {
	return New(nil), registers.New(0), memory.New(memory.BigEndian)
}

func TestAdduAndSubu(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 10)
	reg.Write(2, 3)

	inst := encodeR(opSPECIAL, 1, 2, 3, 0, fnADDU)
	e.Step(inst, reg, mem)
	if r := reg.Read(3); r != 13 {
		t.Errorf("addu got: %d expected: %d", r, 13)
	}

	inst = encodeR(opSPECIAL, 1, 2, 4, 0, fnSUBU)
	e.Step(inst, reg, mem)
	if r := reg.Read(4); r != 7 {
		t.Errorf("subu got: %d expected: %d", r, 7)
	}
}

func TestAddTrapsOnOverflow(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 0x7FFFFFFF)
	reg.Write(2, 1)
	inst := encodeR(opSPECIAL, 1, 2, 3, 0, fnADD)

	defer func() {
		if recover() == nil {
			t.Errorf("expected add to panic on signed overflow")
		}
	}()
	e.Step(inst, reg, mem)
}

func TestNopIsNoEffect(t *testing.T) {
	e, reg, mem := newFixture()
	ev := e.Step(0, reg, mem)
	if ev.Kind != Nothing {
		t.Errorf("nop event kind got: %v expected: Nothing", ev.Kind)
	}
}

func TestBeqTakenEmitsDelayedFlowChange(t *testing.T) {
	e, reg, mem := newFixture()
	reg.SetPC(0x1000)
	reg.Write(1, 5)
	reg.Write(2, 5)
	inst := encodeI(opBEQ, 1, 2, 4) // offset 4 words -> +16 bytes

	ev := e.Step(inst, reg, mem)
	if ev.Kind != FlowChangeDelayed {
		t.Fatalf("beq event kind got: %v expected: FlowChangeDelayed", ev.Kind)
	}
	if ev.Target != 0x1000+4+16 {
		t.Errorf("beq target got: %#x expected: %#x", ev.Target, uint32(0x1000+4+16))
	}
}

func TestJalWritesReturnAddress(t *testing.T) {
	e, reg, mem := newFixture()
	reg.SetPC(0x400000)
	inst := encodeJ(opJAL, 0x100)

	ev := e.Step(inst, reg, mem)
	if ev.Kind != FlowChangeDelayed {
		t.Fatalf("jal event kind got: %v expected: FlowChangeDelayed", ev.Kind)
	}
	if r := reg.Read(registers.RA); r != 0x400008 {
		t.Errorf("jal $ra got: %#x expected: %#x", r, uint32(0x400008))
	}
}

func TestLoadStoreWordRoundTrip(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 0x2000) // base
	reg.Write(2, 0x12345678)

	sw := encodeI(opSW, 1, 2, 0)
	e.Step(sw, reg, mem)

	lw := encodeI(opLW, 1, 3, 0)
	e.Step(lw, reg, mem)
	if r := reg.Read(3); r != 0x12345678 {
		t.Errorf("lw got: %#x expected: %#x", r, uint32(0x12345678))
	}
}

func TestLbSignExtends(t *testing.T) {
	e, reg, mem := newFixture()
	mem.WriteByte(0x3000, 0xFF)
	reg.Write(1, 0x3000)
	lb := encodeI(opLB, 1, 2, 0)
	e.Step(lb, reg, mem)
	if r := int32(reg.Read(2)); r != -1 {
		t.Errorf("lb got: %d expected: -1", r)
	}
}

func TestLlEmitsAtomicEvent(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 0x5000)
	ll := encodeI(opLL, 1, 2, 0)
	ev := e.Step(ll, reg, mem)
	if ev.Kind != AtomicLoadModifyWriteBegan {
		t.Errorf("ll event kind got: %v expected: AtomicLoadModifyWriteBegan", ev.Kind)
	}
}

func TestScAlwaysSucceeds(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 0x6000)
	reg.Write(2, 42)
	sc := encodeI(opSC, 1, 2, 0)
	e.Step(sc, reg, mem)
	if r := reg.Read(2); r != 1 {
		t.Errorf("sc success flag got: %d expected: 1", r)
	}
	if r := mem.ReadWord(0x6000); r != 42 {
		t.Errorf("sc stored value got: %d expected: 42", r)
	}
}

func TestTeqTrapsOnEqual(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 9)
	reg.Write(2, 9)
	inst := encodeR(opSPECIAL, 1, 2, 0, 0, fnTEQ)

	defer func() {
		if recover() == nil {
			t.Errorf("expected teq to panic when rs==rt")
		}
	}()
	e.Step(inst, reg, mem)
}

func TestExtBitField(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 0xFFFFFFFF)
	// pos=4 (shamt), size=rd+1=8 -> extract bits [11:4]
	inst := encodeR(opSPECIAL3, 1, 2, 7, 4, fn3EXT)
	e.Step(inst, reg, mem)
	if r := reg.Read(2); r != 0xFF {
		t.Errorf("ext got: %#x expected: %#x", r, 0xFF)
	}
}

func TestRdhwrUserLocal(t *testing.T) {
	e, reg, mem := newFixture()
	inst := encodeR(opSPECIAL3, 0, 2, 29, 0, fn3RDHWR)
	e.Step(inst, reg, mem)
	if r := reg.Read(2); r != userLocalConstant {
		t.Errorf("rdhwr got: %d expected: %d", r, userLocalConstant)
	}
}

func TestMultLegacyWritesHiLo(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 6)
	reg.Write(2, 7)
	inst := encodeR(opSPECIAL, 1, 2, 0, 0, fnMULT)
	e.Step(inst, reg, mem)
	if r := reg.LO(); r != 42 {
		t.Errorf("mult LO got: %d expected: 42", r)
	}
	if r := reg.HI(); r != 0 {
		t.Errorf("mult HI got: %d expected: 0", r)
	}
}

func TestMulRelease6WritesRd(t *testing.T) {
	e, reg, mem := newFixture()
	reg.Write(1, 6)
	reg.Write(2, 7)
	inst := encodeR(opSPECIAL2, 1, 2, 3, 0, fn2MUL)
	e.Step(inst, reg, mem)
	if r := reg.Read(3); r != 42 {
		t.Errorf("mul got: %d expected: 42", r)
	}
}
