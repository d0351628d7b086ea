// Package watchdog guards a running emulation against the ways an
// incomplete instruction implementation silently produces wrong
// answers: jumps to address zero, runs of undecoded NOPs, and
// divergence from a previously captured execution trace.
package watchdog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
)

// InstructionRecord is one line of a reference trace: the PC the real
// execution fetched from, and whichever register values were recorded
// alongside it.
type InstructionRecord struct {
	Address   uint32           `json:"address"`
	Registers map[uint32]uint32 `json:"registers"`
}

// ReadTrace loads a gzip-compressed, newline-delimited JSON trace.
// Lines that fail to parse are skipped rather than treated as fatal,
// since a hand-edited or truncated trace file is a recoverable
// nuisance, not a program bug.
func ReadTrace(path string) ([]InstructionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("watchdog: opening trace file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("watchdog: trace file is not gzip-compressed: %w", err)
	}
	defer gz.Close()

	var records []InstructionRecord
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec InstructionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("watchdog: reading trace file: %w", err)
	}
	return records, nil
}

// volatileRegisters are routinely scratched by glibc startup code and
// excluded from full-value trace comparison.
var volatileRegisters = map[uint32]bool{
	1: true, 8: true, 9: true, 10: true, 11: true, 12: true, 13: true,
	14: true, 15: true, 24: true, 25: true, 26: true, 27: true,
}

// Config selects the Watchdog's optional, more expensive checks.
type Config struct {
	CheckAllRegisterValues       bool
	PanicOnDifferentRegisterRead bool
}

// Watchdog implements registers.AccessObserver and is driven once per
// instruction by the control loop, before fetch and decode.
type Watchdog struct {
	config Config

	trace              []InstructionRecord
	instructionNumber  int
	nopCount           int
	traceGap           bool
}

// New builds a Watchdog. trace may be nil to run with no reference
// trace loaded, in which case only the null-PC and NOP-run checks fire.
func New(trace []InstructionRecord, cfg Config) *Watchdog {
	return &Watchdog{config: cfg, trace: trace}
}

// RunChecks runs every per-instruction guard before the instruction at
// reg.PC() is fetched and decoded.
func (w *Watchdog) RunChecks(reg *registers.File, mem *memory.Memory) {
	if reg.PC() == 0 {
		fatal("jumped to address 0")
	}

	if mem.FetchInstruction(reg.PC()) == 0 {
		w.nopCount++
	} else {
		w.nopCount = 0
	}
	if w.nopCount > 3 {
		fatal("too many NOPs in sequence at pc=%#x", reg.PC())
	}

	if w.trace == nil {
		return
	}
	if w.instructionNumber >= len(w.trace) {
		fatal("trace exhausted at instruction %d, pc=%#x", w.instructionNumber, reg.PC())
	}
	record := w.trace[w.instructionNumber]

	if reg.PC() == record.Address {
		if w.traceGap {
			slog.Warn("watchdog: trace gap closed", "pc", reg.PC())
			w.traceGap = false
		}
		w.instructionNumber++
	} else if !w.traceGap {
		fatal("execution diverged from trace: expected pc=%#x, got pc=%#x", record.Address, reg.PC())
	}

	if w.config.CheckAllRegisterValues && !w.traceGap {
		w.checkFullRegisters(reg, record)
	}
}

func (w *Watchdog) checkFullRegisters(reg *registers.File, record InstructionRecord) {
	for id, want := range record.Registers {
		if volatileRegisters[id] {
			continue
		}
		got := reg.Read(id)
		if got == want {
			continue
		}
		if w.instructionNumber > 3 {
			slog.Error("watchdog: register mismatch against trace",
				"register", registers.Name(id), "got", got, "want", want)
			continue
		}
		// Bootstrap alignment: early in the run the guest and trace
		// haven't necessarily converged on the same startup values yet,
		// so the trace wins instead of being reported as a divergence.
		slog.Warn("watchdog: overwriting register from trace during bootstrap",
			"register", registers.Name(id), "got", got, "want", want)
		reg.Write(id, want)
	}
}

// AtomicReadModifyWriteBegan opens a trace gap: an LL/SC sequence (or a
// fork) may legitimately execute instructions the trace does not
// record in lock-step, so alignment checking is suspended until PC
// matches a trace record again.
func (w *Watchdog) AtomicReadModifyWriteBegan() {
	slog.Warn("watchdog: trace gap opened for atomic read-modify-write block")
	w.traceGap = true
}

// OnRead implements registers.AccessObserver. The value just produced
// by a read must match the record associated with the instruction that
// is currently executing.
func (w *Watchdog) OnRead(reg uint32, val uint32) {
	if w.traceGap || w.trace == nil || w.instructionNumber == 0 {
		return
	}
	record := w.trace[w.instructionNumber-1]
	want, ok := record.Registers[reg]
	if !ok || want == val {
		return
	}
	slog.Error("watchdog: register read value diverged from trace",
		"register", registers.Name(reg), "got", val, "want", want)
	if w.config.PanicOnDifferentRegisterRead {
		fatal("register %s read %#x, trace expected %#x", registers.Name(reg), val, want)
	}
}

// OnWrite implements registers.AccessObserver. The value about to be
// stored must match the record for the instruction about to be
// matched next, mirroring OnRead's contract for the write side.
func (w *Watchdog) OnWrite(reg uint32, val uint32) {
	if w.traceGap || w.trace == nil || w.instructionNumber >= len(w.trace) {
		return
	}
	record := w.trace[w.instructionNumber]
	want, ok := record.Registers[reg]
	if !ok || want == val {
		return
	}
	slog.Error("watchdog: register write value diverges from trace",
		"register", registers.Name(reg), "got", val, "want", want)
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Error("watchdog: fatal", "reason", msg)
	panic(msg)
}
