package watchdog

import (
	"testing"

	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
)

func TestNullPCIsFatal(t *testing.T) {
	w := New(nil, Config{})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on pc==0")
		}
	}()
	w.RunChecks(reg, mem)
}

func TestRunOfNopsIsFatal(t *testing.T) {
	w := New(nil, Config{})
	reg := registers.New(0)
	reg.SetPC(0x1000)
	mem := memory.New(memory.BigEndian)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic after more than 3 consecutive NOP fetches")
		}
	}()
	for i := 0; i < 5; i++ {
		w.RunChecks(reg, mem)
		reg.SetPC(reg.PC() + 4)
	}
}

func TestTraceAlignmentAdvances(t *testing.T) {
	trace := []InstructionRecord{
		{Address: 0x400000},
		{Address: 0x400004},
	}
	w := New(trace, Config{})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x400000, 0x00000001)
	mem.WriteWord(0x400004, 0x00000001)

	reg.SetPC(0x400000)
	w.RunChecks(reg, mem)
	reg.SetPC(0x400004)
	w.RunChecks(reg, mem)

	if w.instructionNumber != 2 {
		t.Errorf("instructionNumber got: %d expected: 2", w.instructionNumber)
	}
}

func TestDivergenceFromTraceIsFatalUnlessGapOpen(t *testing.T) {
	trace := []InstructionRecord{{Address: 0x400000}}
	w := New(trace, Config{})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x500000, 0x00000001)
	reg.SetPC(0x500000)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on trace divergence")
		}
	}()
	w.RunChecks(reg, mem)
}

func TestAtomicBlockSuppressesDivergencePanic(t *testing.T) {
	trace := []InstructionRecord{{Address: 0x400000}}
	w := New(trace, Config{})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x500000, 0x00000001)
	reg.SetPC(0x500000)

	w.AtomicReadModifyWriteBegan()
	w.RunChecks(reg, mem) // must not panic
}

func TestOnReadFlagsMismatchWithoutPanickingByDefault(t *testing.T) {
	trace := []InstructionRecord{
		{Address: 0x400000, Registers: map[uint32]uint32{3: 0x42}},
	}
	w := New(trace, Config{})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x400000, 0x00000001)
	reg.SetPC(0x400000)

	w.RunChecks(reg, mem)
	w.OnRead(3, 0x43) // diverges from trace but PanicOnDifferentRegisterRead is off
}

func TestOnReadPanicsWhenConfigured(t *testing.T) {
	trace := []InstructionRecord{
		{Address: 0x400000, Registers: map[uint32]uint32{3: 0x42}},
	}
	w := New(trace, Config{PanicOnDifferentRegisterRead: true})
	reg := registers.New(0)
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x400000, 0x00000001)
	reg.SetPC(0x400000)
	w.RunChecks(reg, mem)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on configured register-read divergence")
		}
	}()
	w.OnRead(3, 0x43)
}
