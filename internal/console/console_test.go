package console

import (
	"testing"

	"mipsuser/internal/control"
	"mipsuser/internal/cpu"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
	"mipsuser/internal/watchdog"
)

type exitOnSyscall struct{}

func (exitOnSyscall) Syscall(reg *registers.File, mem *memory.Memory) cpu.Event {
	return cpu.ExitEvent
}

func newFixture() *Console {
	mem := memory.New(memory.BigEndian)
	mem.WriteWord(0x1000, 0x24010005) // addiu r1, r0, 5
	mem.WriteWord(0x1004, 0x24020007) // addiu r2, r0, 7
	mem.WriteWord(0x1008, 0x0000000C) // syscall

	reg := registers.New(0x7ffff000)
	exec := cpu.New(exitOnSyscall{})
	wd := watchdog.New(nil, watchdog.Config{})
	reg.SetObserver(wd)

	loop := control.New(reg, mem, exec, wd)
	loop.Seed(0x1000)
	return New(loop)
}

func TestStepAdvancesOneInstructionAtATime(t *testing.T) {
	c := newFixture()
	quit, err := c.ProcessCommand("step")
	if err != nil || quit {
		t.Fatalf("step returned quit=%v err=%v", quit, err)
	}
	if r := c.Loop.Reg.Read(1); r != 5 {
		t.Errorf("r1 got: %d expected: 5", r)
	}
	if c.Loop.Reg.Read(2) != 0 {
		t.Errorf("r2 should not be written yet")
	}
}

func TestContinueRunsToExit(t *testing.T) {
	c := newFixture()
	quit, err := c.ProcessCommand("continue")
	if err != nil || quit {
		t.Fatalf("continue returned quit=%v err=%v", quit, err)
	}
	if !c.exited {
		t.Errorf("expected program to have exited")
	}
	if r := c.Loop.Reg.Read(2); r != 7 {
		t.Errorf("r2 got: %d expected: 7", r)
	}
}

func TestContinueStopsAtBreakpoint(t *testing.T) {
	c := newFixture()
	if _, err := c.ProcessCommand("break 0x1008"); err != nil {
		t.Fatalf("break: %v", err)
	}
	quit, err := c.ProcessCommand("continue")
	if err != nil || quit {
		t.Fatalf("continue returned quit=%v err=%v", quit, err)
	}
	if c.exited {
		t.Errorf("should have stopped at the breakpoint, not exited")
	}
	if r := c.Loop.Reg.Read(2); r != 7 {
		t.Errorf("r2 got: %d expected: 7", r)
	}
}

func TestAbbreviatedCommandsMatch(t *testing.T) {
	c := newFixture()
	if _, err := c.ProcessCommand("s"); err != nil {
		t.Fatalf("abbreviated step: %v", err)
	}
	if r := c.Loop.Reg.Read(1); r != 5 {
		t.Errorf("r1 got: %d expected: 5", r)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	c := newFixture()
	if _, err := c.ProcessCommand("bogus"); err == nil {
		t.Errorf("expected an error for an unknown command")
	}
}

func TestQuitCommandStopsTheConsole(t *testing.T) {
	c := newFixture()
	quit, err := c.ProcessCommand("quit")
	if err != nil || !quit {
		t.Fatalf("quit returned quit=%v err=%v", quit, err)
	}
}
