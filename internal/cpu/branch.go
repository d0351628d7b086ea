package cpu

import (
	"mipsuser/internal/bitutils"
	"mipsuser/internal/registers"
)

func (e *Executor) execRegimm(inst uint32) Event {
	rt := bitutils.Rt(inst)
	fn := e.regimmTable[rt]
	if fn == nil {
		return fatalf("unimplemented REGIMM rt %#02x at pc=%#x", rt, e.reg.PC())
	}
	return fn(e, inst)
}

func (e *Executor) execJ(inst uint32) Event {
	target := bitutils.JumpTarget(e.reg.PC(), bitutils.Target(inst))
	return FlowChangeDelayedEvent(target)
}

func (e *Executor) execJAL(inst uint32) Event {
	target := bitutils.JumpTarget(e.reg.PC(), bitutils.Target(inst))
	e.reg.Write(registers.RA, e.reg.PC()+8)
	return FlowChangeDelayedEvent(target)
}

func (e *Executor) execBEQ(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	if e.reg.Read(rs) == e.reg.Read(rt) {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBNE(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	if e.reg.Read(rs) != e.reg.Read(rt) {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBLEZ(inst uint32) Event {
	rs := bitutils.Rs(inst)
	if int32(e.reg.Read(rs)) <= 0 {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBGTZ(inst uint32) Event {
	rs := bitutils.Rs(inst)
	if int32(e.reg.Read(rs)) > 0 {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBLTZ(inst uint32) Event {
	rs := bitutils.Rs(inst)
	if int32(e.reg.Read(rs)) < 0 {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBGEZ(inst uint32) Event {
	rs := bitutils.Rs(inst)
	if int32(e.reg.Read(rs)) >= 0 {
		return FlowChangeDelayedEvent(bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst)))
	}
	return NothingEvent
}

func (e *Executor) execBAL(inst uint32) Event {
	target := bitutils.BranchTarget(e.reg.PC(), bitutils.Imm(inst))
	e.reg.Write(registers.RA, e.reg.PC()+8)
	return FlowChangeDelayedEvent(target)
}
