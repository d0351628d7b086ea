package cpu

import "mipsuser/internal/bitutils"

func (e *Executor) execADDIU(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rt, bitutils.AddSignedOffset(e.reg.Read(rs), bitutils.Imm(inst)))
	return NothingEvent
}

func (e *Executor) execSLTI(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	imm := bitutils.SignExtend(uint32(bitutils.Imm(inst)), 16)
	var v uint32
	if int32(e.reg.Read(rs)) < imm {
		v = 1
	}
	e.reg.Write(rt, v)
	return NothingEvent
}

func (e *Executor) execSLTIU(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	imm := uint32(bitutils.SignExtend(uint32(bitutils.Imm(inst)), 16))
	var v uint32
	if e.reg.Read(rs) < imm {
		v = 1
	}
	e.reg.Write(rt, v)
	return NothingEvent
}

func (e *Executor) execANDI(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rt, e.reg.Read(rs)&uint32(bitutils.Imm(inst)))
	return NothingEvent
}

func (e *Executor) execORI(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rt, e.reg.Read(rs)|uint32(bitutils.Imm(inst)))
	return NothingEvent
}

func (e *Executor) execXORI(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rt, e.reg.Read(rs)^uint32(bitutils.Imm(inst)))
	return NothingEvent
}

// execAUI implements AUI (and LUI, its rs=0 special case in release 6).
func (e *Executor) execAUI(inst uint32) Event {
	rt, rs := bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rt, bitutils.AddToUpperBits(e.reg.Read(rs), bitutils.Imm(inst)))
	return NothingEvent
}
