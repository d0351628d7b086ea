package syscall

import (
	"testing"

	"mipsuser/internal/cpu"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
)

func newFixture() (*Layer, *registers.File, *memory.Memory) {
	return New(Config{}), registers.New(0x7ffff000), memory.New(memory.BigEndian)
}

func setArgs(reg *registers.File, nr, a0, a1, a2, a3 uint32) {
	reg.Write(registers.V0, nr)
	reg.Write(registers.A0, a0)
	reg.Write(registers.A1, a1)
	reg.Write(registers.A2, a2)
	reg.Write(registers.A3, a3)
}

func TestBrkQueryThenIdempotentRaise(t *testing.T) {
	l, reg, mem := newFixture()

	setArgs(reg, 4045, 0, 0, 0, 0)
	l.Syscall(reg, mem)
	if reg.Read(registers.V0) != mem.ProgramBreak() {
		t.Fatalf("brk(0) got: %#x expected current break %#x", reg.Read(registers.V0), mem.ProgramBreak())
	}

	setArgs(reg, 4045, 0x10001000, 0, 0, 0)
	l.Syscall(reg, mem)
	first := reg.Read(registers.V0)

	setArgs(reg, 4045, 0x10001000, 0, 0, 0)
	l.Syscall(reg, mem)
	second := reg.Read(registers.V0)

	if first != second || first != 0x10001000 {
		t.Errorf("brk not idempotent: first=%#x second=%#x", first, second)
	}
}

func TestGetuidUnderFakeRootReturnsZero(t *testing.T) {
	l := New(Config{FakeRoot: true})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)

	setArgs(reg, 4024, 0, 0, 0, 0) // getuid
	l.Syscall(reg, mem)
	if reg.Read(registers.V0) != 0 {
		t.Errorf("getuid under fake-root got: %d expected: 0", reg.Read(registers.V0))
	}
	if reg.Read(registers.A3) != 0 {
		t.Errorf("getuid error flag got: %d expected: 0", reg.Read(registers.A3))
	}
}

func TestExitGroupReturnsExitEvent(t *testing.T) {
	l, reg, mem := newFixture()
	setArgs(reg, 4246, 0, 0, 0, 0) // exit_group
	ev := l.Syscall(reg, mem)
	if ev.Kind != cpu.Exit {
		t.Errorf("exit_group event kind got: %v expected: Exit", ev.Kind)
	}
}

func TestUnknownNumberPanics(t *testing.T) {
	l, reg, mem := newFixture()
	setArgs(reg, 9999, 0, 0, 0, 0)
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on unmapped syscall number")
		}
	}()
	l.Syscall(reg, mem)
}
