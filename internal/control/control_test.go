package control

import (
	"testing"

	"mipsuser/internal/cpu"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
	"mipsuser/internal/watchdog"
)

type exitHandler struct{}

func (exitHandler) Syscall(reg *registers.File, mem *memory.Memory) cpu.Event {
	return cpu.ExitEvent
}

func TestRunExecutesSequentiallyUntilExit(t *testing.T) {
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x1000, 0x24010005) // addiu r1, r0, 5
	mem.WriteWord(0x1004, 0x24020007) // addiu r2, r0, 7
	mem.WriteWord(0x1008, 0x0000000C) // syscall

	reg := registers.New(0x7ffff000)
	exec := cpu.New(exitHandler{})
	wd := watchdog.New(nil, watchdog.Config{})
	reg.SetObserver(wd)

	loop := New(reg, mem, exec, wd)
	loop.Run(0x1000)

	if r := reg.Read(1); r != 5 {
		t.Errorf("r1 got: %d expected: 5", r)
	}
	if r := reg.Read(2); r != 7 {
		t.Errorf("r2 got: %d expected: 7", r)
	}
}

func TestRunFunctionReturnsAtSentinel(t *testing.T) {
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x2000, 0x24040009) // addiu r4, r0, 9
	mem.WriteWord(0x2004, 0x03E00008) // jr $ra
	mem.WriteWord(0x2008, 0x24050001) // addiu r5, r0, 1 (delay slot)

	reg := registers.New(0x7ffff000)
	exec := cpu.New(exitHandler{})
	wd := watchdog.New(nil, watchdog.Config{})
	reg.SetObserver(wd)

	loop := New(reg, mem, exec, wd)
	result := loop.RunFunction(0x2000, nil)

	if r := result.Read(4); r != 9 {
		t.Errorf("r4 got: %d expected: 9", r)
	}
	if r := result.Read(5); r != 1 {
		t.Errorf("r5 got: %d expected: 1", r)
	}
}

func TestFlowChangeWithNonEmptyQueueIsFatal(t *testing.T) {
	// jr as the very first dispatched instruction collides with the
	// two-entry seed queue (entry, entry+4), which the state machine
	// treats as a logic bug rather than silently reordering.
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x3000, 0x03E00008) // jr $ra
	mem.WriteWord(0x3004, 0x00000001) // arbitrary non-zero delay slot

	reg := registers.New(0x7ffff000)
	reg.Write(registers.RA, 0x4)
	exec := cpu.New(exitHandler{})
	wd := watchdog.New(nil, watchdog.Config{})
	reg.SetObserver(wd)

	loop := New(reg, mem, exec, wd)

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on flow change with a non-empty pending queue")
		}
	}()
	loop.Run(0x3000)
}
