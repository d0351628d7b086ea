/*
   MIPS32 O32 instruction decode and execution

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package cpu decodes and executes MIPS32 O32 instructions against a
// register file and a flat guest memory, following the MIPS32
// release-6 dispatch layout for the supported instruction subset.
package cpu

import (
	"fmt"
	"log/slog"

	"mipsuser/internal/bitutils"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
)

// SyscallHandler services the syscall instruction. Implementations
// live in the syscall package; this interface exists so cpu does not
// need to import it.
type SyscallHandler interface {
	Syscall(reg *registers.File, mem *memory.Memory) Event
}

// Executor decodes and evaluates one instruction at a time against a
// register file and memory it does not own.
type Executor struct {
	opcodeTable  [64]func(*Executor, uint32) Event
	specialTable [64]func(*Executor, uint32) Event
	special2Tab  [64]func(*Executor, uint32) Event
	regimmTable  map[uint32]func(*Executor, uint32) Event

	Sys SyscallHandler

	// reg/mem are bound for the duration of one Step call.
	reg *registers.File
	mem *memory.Memory
}

// New builds an Executor with its dispatch tables initialised.
func New(sys SyscallHandler) *Executor {
	e := &Executor{Sys: sys}
	e.createTables()
	return e
}

// fatalf reports an unrecoverable guest-program condition. The
// reference emulator models no trap handlers, so these conditions
// abort the run rather than synthesising an exception.
func fatalf(format string, args ...any) Event {
	msg := fmt.Sprintf(format, args...)
	slog.Error("cpu: fatal", "reason", msg)
	panic(msg)
}

func (e *Executor) createTables() {
	e.opcodeTable = [64]func(*Executor, uint32) Event{}
	e.opcodeTable[opSPECIAL] = (*Executor).execSpecial
	e.opcodeTable[opREGIMM] = (*Executor).execRegimm
	e.opcodeTable[opJ] = (*Executor).execJ
	e.opcodeTable[opJAL] = (*Executor).execJAL
	e.opcodeTable[opBEQ] = (*Executor).execBEQ
	e.opcodeTable[opBNE] = (*Executor).execBNE
	e.opcodeTable[opBLEZ] = (*Executor).execBLEZ
	e.opcodeTable[opBGTZ] = (*Executor).execBGTZ
	e.opcodeTable[opADDIU] = (*Executor).execADDIU
	e.opcodeTable[opSLTI] = (*Executor).execSLTI
	e.opcodeTable[opSLTIU] = (*Executor).execSLTIU
	e.opcodeTable[opANDI] = (*Executor).execANDI
	e.opcodeTable[opORI] = (*Executor).execORI
	e.opcodeTable[opXORI] = (*Executor).execXORI
	e.opcodeTable[opAUI] = (*Executor).execAUI
	e.opcodeTable[opCOP1] = (*Executor).execCOP1
	e.opcodeTable[opPCREL] = (*Executor).execPCREL
	e.opcodeTable[opSPECIAL2] = (*Executor).execSpecial2
	e.opcodeTable[opSPECIAL3] = (*Executor).execSpecial3
	e.opcodeTable[opLB] = (*Executor).execLB
	e.opcodeTable[opLH] = (*Executor).execLH
	e.opcodeTable[opLWL] = (*Executor).execLWL
	e.opcodeTable[opLW] = (*Executor).execLW
	e.opcodeTable[opLBU] = (*Executor).execLBU
	e.opcodeTable[opLHU] = (*Executor).execLHU
	e.opcodeTable[opLWR] = (*Executor).execLWR
	e.opcodeTable[opSB] = (*Executor).execSB
	e.opcodeTable[opSH] = (*Executor).execSH
	e.opcodeTable[opSWL] = (*Executor).execSWL
	e.opcodeTable[opSW] = (*Executor).execSW
	e.opcodeTable[opSWR] = (*Executor).execSWR
	e.opcodeTable[opLL] = (*Executor).execLL
	e.opcodeTable[opLWC1] = (*Executor).execLWC1
	e.opcodeTable[opSC] = (*Executor).execSC
	e.opcodeTable[opSWC1] = (*Executor).execSWC1

	e.specialTable = [64]func(*Executor, uint32) Event{}
	e.specialTable[fnSLL] = (*Executor).execSLL
	e.specialTable[fnSRLROTR] = (*Executor).execSRLorROTR
	e.specialTable[fnSRA] = (*Executor).execSRA
	e.specialTable[fnSLLV] = (*Executor).execSLLV
	e.specialTable[fnSRLV] = (*Executor).execSRLV
	e.specialTable[fnSRAV] = (*Executor).execSRAV
	e.specialTable[fnJR] = (*Executor).execJR
	e.specialTable[fnJALR] = (*Executor).execJALR
	e.specialTable[fnMOVZ] = (*Executor).execMOVZ
	e.specialTable[fnMOVN] = (*Executor).execMOVN
	e.specialTable[fnSYSCALL] = (*Executor).execSYSCALL
	e.specialTable[fnBREAK] = (*Executor).execBREAK
	e.specialTable[fnSYNC] = (*Executor).execSYNC
	e.specialTable[fnMFHI] = (*Executor).execMFHI
	e.specialTable[fnMFLO] = (*Executor).execMFLO
	e.specialTable[fnMULT] = (*Executor).execMULT
	e.specialTable[fnMULTU] = (*Executor).execMULTU
	e.specialTable[fnDIV] = (*Executor).execDIV
	e.specialTable[fnDIVU] = (*Executor).execDIVU
	e.specialTable[fnADD] = (*Executor).execADD
	e.specialTable[fnADDU] = (*Executor).execADDU
	e.specialTable[fnSUB] = (*Executor).execSUB
	e.specialTable[fnSUBU] = (*Executor).execSUBU
	e.specialTable[fnAND] = (*Executor).execAND
	e.specialTable[fnOR] = (*Executor).execOR
	e.specialTable[fnXOR] = (*Executor).execXOR
	e.specialTable[fnNOR] = (*Executor).execNOR
	e.specialTable[fnSLT] = (*Executor).execSLT
	e.specialTable[fnSLTU] = (*Executor).execSLTU
	e.specialTable[fnTEQ] = (*Executor).execTEQ

	e.special2Tab = [64]func(*Executor, uint32) Event{}
	e.special2Tab[fn2MUL] = (*Executor).execMUL

	e.regimmTable = map[uint32]func(*Executor, uint32) Event{
		riBLTZ: (*Executor).execBLTZ,
		riBGEZ: (*Executor).execBGEZ,
		riBAL:  (*Executor).execBAL,
	}
}

// Step decodes and evaluates the instruction word fetched from reg.PC().
func (e *Executor) Step(inst uint32, reg *registers.File, mem *memory.Memory) Event {
	e.reg = reg
	e.mem = mem
	opcode := bitutils.Opcode(inst)
	fn := e.opcodeTable[opcode]
	if fn == nil {
		return fatalf("unimplemented opcode %#02x at pc=%#x", opcode, reg.PC())
	}
	return fn(e, inst)
}
