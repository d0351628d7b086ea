package cpu

import (
	"log/slog"

	"mipsuser/internal/bitutils"
)

func (e *Executor) execSpecial2(inst uint32) Event {
	funct := bitutils.Funct(inst)
	fn := e.special2Tab[funct]
	if fn == nil {
		return fatalf("unimplemented SPECIAL2 funct %#02x at pc=%#x", funct, e.reg.PC())
	}
	return fn(e, inst)
}

// execMUL implements the 32-bit signed multiply that keeps only the
// low 32 bits of the product in rd.
func (e *Executor) execMUL(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	product := int64(int32(e.reg.Read(rs))) * int64(int32(e.reg.Read(rt)))
	e.reg.Write(rd, uint32(product))
	return NothingEvent
}

func (e *Executor) execSpecial3(inst uint32) Event {
	funct := bitutils.Funct(inst)
	switch funct {
	case fn3ALIGN:
		return e.execALIGN(inst)
	case fn3RDHWR:
		return e.execRDHWR(inst)
	case fn3EXT:
		return e.execEXT(inst)
	default:
		return fatalf("unimplemented SPECIAL3 funct %#02x at pc=%#x", funct, e.reg.PC())
	}
}

// execEXT implements the bit-field extract: pos=shamt, size=rd+1.
func (e *Executor) execEXT(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	pos := bitutils.Shamt(inst)
	size := bitutils.Rd(inst) + 1
	v := e.reg.Read(rs)
	mask := uint32(1)<<size - 1
	e.reg.Write(rt, (v>>pos)&mask)
	return NothingEvent
}

// execALIGN implements (rt<<8bp) | (rs>>(32-8bp)), bp selected by the
// shift-amount bits of the encoding.
func (e *Executor) execALIGN(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	bp := bitutils.Shamt(inst) >> 3 & 0x3
	if bp == 0 {
		e.reg.Write(rd, e.reg.Read(rt))
		return NothingEvent
	}
	shift := 8 * bp
	v := e.reg.Read(rt)<<shift | e.reg.Read(rs)>>(32-shift)
	e.reg.Write(rd, v)
	return NothingEvent
}

// userLocalConstant is the fake UserLocal value handed back to a
// guest that reads it through rdhwr $29.
const userLocalConstant = 0

// execRDHWR implements rd=29 (UserLocal): the emulator has no thread
// control block to point at, so it hands back a stable constant and
// logs a warning every time it executes.
func (e *Executor) execRDHWR(inst uint32) Event {
	rd, rt := bitutils.Rd(inst), bitutils.Rt(inst)
	if rd != 29 {
		return fatalf("unsupported rdhwr register %d at pc=%#x", rd, e.reg.PC())
	}
	slog.Warn("cpu: rdhwr $29 returning fake UserLocal constant", "pc", e.reg.PC())
	e.reg.Write(rt, userLocalConstant)
	return NothingEvent
}

func (e *Executor) execCOP1(uint32) Event {
	return fatalf("unimplemented COP1 instruction at pc=%#x", e.reg.PC())
}

// execPCREL implements ALUIPC (the only PCREL form required): the
// PCREL encoding carries its destination register in the rs field.
// rs <- 0xFFFF0000 & (pc + (imm<<16)).
func (e *Executor) execPCREL(inst uint32) Event {
	dest := bitutils.Rs(inst)
	imm := bitutils.SignExtend(uint32(bitutils.Imm(inst))<<16, 32)
	v := (e.reg.PC() + uint32(imm)) & 0xFFFF0000
	e.reg.Write(dest, v)
	return NothingEvent
}
