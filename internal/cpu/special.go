package cpu

import "mipsuser/internal/bitutils"

func (e *Executor) execSpecial(inst uint32) Event {
	funct := bitutils.Funct(inst)
	fn := e.specialTable[funct]
	if fn == nil {
		return fatalf("unimplemented SPECIAL funct %#02x at pc=%#x", funct, e.reg.PC())
	}
	return fn(e, inst)
}

func (e *Executor) execSLL(inst uint32) Event {
	rd, rt := bitutils.Rd(inst), bitutils.Rt(inst)
	shamt := bitutils.Shamt(inst)
	e.reg.Write(rd, e.reg.Read(rt)<<shamt)
	return NothingEvent
}

// execSRLorROTR dispatches SRL (rs==0) vs ROTR (rs==1); both share
// funct 0x02, distinguished by the rs field.
func (e *Executor) execSRLorROTR(inst uint32) Event {
	rd, rt := bitutils.Rd(inst), bitutils.Rt(inst)
	shamt := bitutils.Shamt(inst)
	v := e.reg.Read(rt)
	switch bitutils.Rs(inst) {
	case 1:
		e.reg.Write(rd, rotateRight(v, shamt))
	case 0:
		e.reg.Write(rd, v>>shamt)
	default:
		return fatalf("unknown SRL/ROTR variant rs=%d", bitutils.Rs(inst))
	}
	return NothingEvent
}

func rotateRight(v uint32, n uint32) uint32 {
	n &= 0x1F
	if n == 0 {
		return v
	}
	return v>>n | v<<(32-n)
}

func (e *Executor) execSRA(inst uint32) Event {
	rd, rt := bitutils.Rd(inst), bitutils.Rt(inst)
	shamt := bitutils.Shamt(inst)
	e.reg.Write(rd, uint32(int32(e.reg.Read(rt))>>shamt))
	return NothingEvent
}

func (e *Executor) execSLLV(inst uint32) Event {
	rd, rt, rs := bitutils.Rd(inst), bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rd, e.reg.Read(rt)<<(e.reg.Read(rs)&0x1F))
	return NothingEvent
}

func (e *Executor) execSRLV(inst uint32) Event {
	rd, rt, rs := bitutils.Rd(inst), bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rd, e.reg.Read(rt)>>(e.reg.Read(rs)&0x1F))
	return NothingEvent
}

func (e *Executor) execSRAV(inst uint32) Event {
	rd, rt, rs := bitutils.Rd(inst), bitutils.Rt(inst), bitutils.Rs(inst)
	e.reg.Write(rd, uint32(int32(e.reg.Read(rt))>>(e.reg.Read(rs)&0x1F)))
	return NothingEvent
}

func (e *Executor) execJR(inst uint32) Event {
	target := e.reg.Read(bitutils.Rs(inst))
	return FlowChangeDelayedEvent(target)
}

func (e *Executor) execJALR(inst uint32) Event {
	rd, rs := bitutils.Rd(inst), bitutils.Rs(inst)
	target := e.reg.Read(rs)
	e.reg.Write(rd, e.reg.PC()+8)
	return FlowChangeDelayedEvent(target)
}

func (e *Executor) execMOVZ(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	if e.reg.Read(rt) == 0 {
		e.reg.Write(rd, e.reg.Read(rs))
	}
	return NothingEvent
}

func (e *Executor) execMOVN(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	if e.reg.Read(rt) != 0 {
		e.reg.Write(rd, e.reg.Read(rs))
	}
	return NothingEvent
}

func (e *Executor) execSYSCALL(uint32) Event {
	if e.Sys == nil {
		return fatalf("syscall instruction with no SyscallHandler installed")
	}
	return e.Sys.Syscall(e.reg, e.mem)
}

func (e *Executor) execBREAK(uint32) Event {
	return fatalf("break instruction at pc=%#x", e.reg.PC())
}

func (e *Executor) execSYNC(uint32) Event {
	return NothingEvent
}

func (e *Executor) execMFHI(inst uint32) Event {
	e.reg.Write(bitutils.Rd(inst), e.reg.HI())
	return NothingEvent
}

func (e *Executor) execMFLO(inst uint32) Event {
	e.reg.Write(bitutils.Rd(inst), e.reg.LO())
	return NothingEvent
}

func (e *Executor) execMULT(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	product := int64(int32(e.reg.Read(rs))) * int64(int32(e.reg.Read(rt)))
	e.reg.SetLO(uint32(product))
	e.reg.SetHI(uint32(product >> 32))
	return NothingEvent
}

func (e *Executor) execMULTU(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	product := uint64(e.reg.Read(rs)) * uint64(e.reg.Read(rt))
	e.reg.SetLO(uint32(product))
	e.reg.SetHI(uint32(product >> 32))
	return NothingEvent
}

func (e *Executor) execDIV(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	divisor := int32(e.reg.Read(rt))
	if divisor == 0 {
		return fatalf("division by zero at pc=%#x", e.reg.PC())
	}
	dividend := int32(e.reg.Read(rs))
	e.reg.SetLO(uint32(dividend / divisor))
	e.reg.SetHI(uint32(dividend % divisor))
	return NothingEvent
}

func (e *Executor) execDIVU(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	divisor := e.reg.Read(rt)
	if divisor == 0 {
		return fatalf("division by zero at pc=%#x", e.reg.PC())
	}
	dividend := e.reg.Read(rs)
	e.reg.SetLO(dividend / divisor)
	e.reg.SetHI(dividend % divisor)
	return NothingEvent
}

func (e *Executor) execADD(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	a, b := int32(e.reg.Read(rs)), int32(e.reg.Read(rt))
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return fatalf("signed overflow in add at pc=%#x", e.reg.PC())
	}
	e.reg.Write(rd, uint32(sum))
	return NothingEvent
}

func (e *Executor) execADDU(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, e.reg.Read(rs)+e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execSUB(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	a, b := int32(e.reg.Read(rs)), int32(e.reg.Read(rt))
	diff := a - b
	if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff > 0) {
		return fatalf("signed overflow in sub at pc=%#x", e.reg.PC())
	}
	e.reg.Write(rd, uint32(diff))
	return NothingEvent
}

func (e *Executor) execSUBU(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, e.reg.Read(rs)-e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execAND(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, e.reg.Read(rs)&e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execOR(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, e.reg.Read(rs)|e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execXOR(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, e.reg.Read(rs)^e.reg.Read(rt))
	return NothingEvent
}

func (e *Executor) execNOR(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	e.reg.Write(rd, ^(e.reg.Read(rs) | e.reg.Read(rt)))
	return NothingEvent
}

func (e *Executor) execSLT(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	var v uint32
	if int32(e.reg.Read(rs)) < int32(e.reg.Read(rt)) {
		v = 1
	}
	e.reg.Write(rd, v)
	return NothingEvent
}

func (e *Executor) execSLTU(inst uint32) Event {
	rd, rs, rt := bitutils.Rd(inst), bitutils.Rs(inst), bitutils.Rt(inst)
	var v uint32
	if e.reg.Read(rs) < e.reg.Read(rt) {
		v = 1
	}
	e.reg.Write(rd, v)
	return NothingEvent
}

func (e *Executor) execTEQ(inst uint32) Event {
	rs, rt := bitutils.Rs(inst), bitutils.Rt(inst)
	if e.reg.Read(rs) == e.reg.Read(rt) {
		return fatalf("teq trap at pc=%#x", e.reg.PC())
	}
	return NothingEvent
}
