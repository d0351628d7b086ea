package cpu

import "mipsuser/internal/bitutils"

func effectiveAddr(e *Executor, inst uint32) uint32 {
	rs := bitutils.Rs(inst)
	return bitutils.AddSignedOffset(e.reg.Read(rs), bitutils.Imm(inst))
}

func (e *Executor) execLB(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	v := uint32(bitutils.SignExtend(e.mem.ReadByte(addr), 8))
	e.reg.Write(rt, v)
	return NothingEvent
}

func (e *Executor) execLBU(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.reg.Write(rt, e.mem.ReadByte(addr))
	return NothingEvent
}

func (e *Executor) execLH(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	v := uint32(bitutils.SignExtend(e.mem.ReadHalfword(addr), 16))
	e.reg.Write(rt, v)
	return NothingEvent
}

func (e *Executor) execLHU(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.reg.Write(rt, e.mem.ReadHalfword(addr))
	return NothingEvent
}

func (e *Executor) execLW(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.reg.Write(rt, e.mem.ReadWord(addr))
	return NothingEvent
}

func (e *Executor) execLWL(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	partial, mask := e.mem.ReadWordUnalignedLWL(addr)
	e.reg.Write(rt, (e.reg.Read(rt)&^mask)|partial)
	return NothingEvent
}

func (e *Executor) execLWR(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	partial, mask := e.mem.ReadWordUnalignedLWR(addr)
	e.reg.Write(rt, (e.reg.Read(rt)&^mask)|partial)
	return NothingEvent
}

func (e *Executor) execLL(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.reg.Write(rt, e.mem.ReadWord(addr))
	return Event{Kind: AtomicLoadModifyWriteBegan}
}

func (e *Executor) execSB(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteByte(addr, e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execSH(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteHalfword(addr, e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execSW(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteWord(addr, e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execSWL(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteWordUnalignedSWL(addr, e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execSWR(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteWordUnalignedSWR(addr, e.reg.Read(rt))
	return NothingEvent
}

// execSC implements store-conditional. The emulator tracks no
// cross-thread reservation, so every store-conditional succeeds.
func (e *Executor) execSC(inst uint32) Event {
	rt := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteWord(addr, e.reg.Read(rt))
	e.reg.Write(rt, 1)
	return NothingEvent
}

func (e *Executor) execLWC1(inst uint32) Event {
	ft := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.reg.WriteFPR(ft, e.mem.ReadWord(addr))
	return NothingEvent
}

func (e *Executor) execSWC1(inst uint32) Event {
	ft := bitutils.Rt(inst)
	addr := effectiveAddr(e, inst)
	e.mem.WriteWord(addr, e.reg.ReadFPR(ft))
	return NothingEvent
}
