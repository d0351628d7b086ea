// Package control implements the single-threaded instruction-dispatch
// loop: pop a pending program counter, run the watchdog, fetch and
// execute one instruction, and schedule whatever comes next according
// to the CPUEvent the instruction produced.
package control

import (
	"fmt"
	"log/slog"

	"mipsuser/internal/cpu"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
	"mipsuser/internal/watchdog"
)

// Loop owns the registers, memory, executor and watchdog for one
// emulation context and drives them to completion.
type Loop struct {
	Reg      *registers.File
	Mem      *memory.Memory
	Exec     *cpu.Executor
	Watchdog *watchdog.Watchdog

	// pending is the delay-slot FIFO; index 0 is the front.
	pending []uint32
}

// New builds a Loop over an already-wired register file, memory,
// executor and watchdog.
func New(reg *registers.File, mem *memory.Memory, exec *cpu.Executor, wd *watchdog.Watchdog) *Loop {
	return &Loop{Reg: reg, Mem: mem, Exec: exec, Watchdog: wd, pending: make([]uint32, 0, 3)}
}

func (l *Loop) push(pc uint32) { l.pending = append(l.pending, pc) }

func (l *Loop) pop() (uint32, bool) {
	if len(l.pending) == 0 {
		return 0, false
	}
	pc := l.pending[0]
	l.pending = l.pending[1:]
	return pc, true
}

func (l *Loop) peekFront() (uint32, bool) {
	if len(l.pending) == 0 {
		return 0, false
	}
	return l.pending[0], true
}

func (l *Loop) empty() bool { return len(l.pending) == 0 }

// Seed resets the pending-PC FIFO to the given entry point and its
// successor, covering the first instruction's delay slot.
func (l *Loop) Seed(entryPoint uint32) {
	l.pending = l.pending[:0]
	l.push(entryPoint)
	l.push(entryPoint + 4)
}

// Step pops one pending PC, runs the watchdog, fetches and executes
// one instruction, and schedules whatever follows. It is the single
// primitive both Run and the interactive console step on top of.
func (l *Loop) Step() (pc uint32, ev cpu.Event) {
	p, ok := l.pop()
	if !ok {
		fatal("pending PC queue ran dry; this should not happen under normal execution")
	}
	l.Reg.SetPC(p)
	l.Watchdog.RunChecks(l.Reg, l.Mem)
	inst := l.Mem.FetchInstruction(p)
	ev = l.Exec.Step(inst, l.Reg, l.Mem)
	l.schedule(p, ev)
	return p, ev
}

// Pending returns a copy of the program counters currently queued,
// front first, for console diagnostics.
func (l *Loop) Pending() []uint32 {
	out := make([]uint32, len(l.pending))
	copy(out, l.pending)
	return out
}

func (l *Loop) schedule(pc uint32, ev cpu.Event) {
	switch ev.Kind {
	case cpu.Nothing:
		if l.empty() {
			l.push(pc + 4)
		}

	case cpu.AtomicLoadModifyWriteBegan:
		l.Watchdog.AtomicReadModifyWriteBegan()
		if l.empty() {
			l.push(pc + 4)
		}

	case cpu.FlowChangeImmediate:
		if !l.empty() {
			fatal("FlowChangeImmediate at pc=%#x with a non-empty pending queue", pc)
		}
		l.push(ev.Target)

	case cpu.FlowChangeDelayed:
		if !l.empty() {
			fatal("FlowChangeDelayed at pc=%#x with a non-empty pending queue", pc)
		}
		l.push(pc + 4)
		l.push(ev.Target)

	case cpu.Fork:
		if ev.Pid == 0 {
			slog.Info("control: continuing as forked child", "pc", pc)
		} else {
			slog.Info("control: fork produced a child process", "child_pid", ev.Pid, "pc", pc)
		}
		l.Watchdog.AtomicReadModifyWriteBegan()
		if l.empty() {
			l.push(pc + 4)
		}
	}
}

// Run executes starting at entryPoint, seeding the FIFO with the entry
// point and its successor, and returns once the guest issues
// exit/exit_group.
func (l *Loop) Run(entryPoint uint32) {
	l.Seed(entryPoint)
	for {
		_, ev := l.Step()
		if ev.Kind == cpu.Exit {
			return
		}
	}
}

// RunFunction invokes a guest function directly from host code: a
// fresh register file is set up per the O32 calling convention (the
// first four arguments in a0-a3, the remainder spilled below the
// current stack pointer), r31 is seeded with the sentinel return
// address 0x4, and execution proceeds over the same memory until PC
// reaches that sentinel. The nested call does not share the parent's
// watchdog trace-alignment state, since it runs outside the recorded
// program order.
func (l *Loop) RunFunction(addr uint32, args []uint32) *registers.File {
	const sentinel = 0x4

	var spilled []uint32
	if len(args) > 4 {
		spilled = args[4:]
	}

	sp := l.Reg.Read(registers.SP)
	sp -= uint32(len(spilled)) * 4
	sp &^= 7

	nested := registers.New(sp)
	for i := 0; i < len(args) && i < 4; i++ {
		nested.Write(registers.A0+uint32(i), args[i])
	}
	for i, v := range spilled {
		l.Mem.WriteWord(sp+uint32(i)*4, v)
	}
	nested.Write(registers.RA, sentinel)

	inner := &Loop{Reg: nested, Mem: l.Mem, Exec: l.Exec, Watchdog: watchdog.New(nil, watchdog.Config{}), pending: make([]uint32, 0, 3)}
	inner.push(addr)
	inner.push(addr + 4)

	for {
		if front, ok := inner.peekFront(); ok && front == sentinel {
			return nested
		}
		_, ev := inner.Step()
		if ev.Kind == cpu.Exit {
			fatal("guest exited from inside a nested function call at pc=%#x", nested.PC())
		}
	}
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Error("control: fatal", "reason", msg)
	panic(msg)
}
