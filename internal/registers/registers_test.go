package registers

import "testing"

// Invariant 5: r0 reads as 0 after every possible write; all other
// registers return the most recent write.
func TestZeroRegisterHardWired(t *testing.T) {
	f := New(0)
	f.Write(0, 0xDEADBEEF)
	if r := f.Read(0); r != 0 {
		t.Errorf("Read(0) got: %#x expected: 0", r)
	}
	f.Write(5, 0x12345678)
	if r := f.Read(5); r != 0x12345678 {
		t.Errorf("Read(5) got: %#x expected: %#x", r, uint32(0x12345678))
	}
}

func TestStackPointerInitialised(t *testing.T) {
	f := New(0x7ffffff0)
	if r := f.Read(SP); r != 0x7ffffff0 {
		t.Errorf("Read(SP) got: %#x expected: %#x", r, uint32(0x7ffffff0))
	}
}

type recorder struct {
	reads, writes []uint32
}

func (r *recorder) OnRead(id, value uint32)  { r.reads = append(r.reads, value) }
func (r *recorder) OnWrite(id, value uint32) { r.writes = append(r.writes, value) }

func TestObserverFires(t *testing.T) {
	f := New(0)
	rec := &recorder{}
	f.SetObserver(rec)

	f.Write(3, 42)
	f.Read(3)

	if len(rec.writes) != 1 || rec.writes[0] != 42 {
		t.Errorf("writes got: %v expected: [42]", rec.writes)
	}
	if len(rec.reads) != 1 || rec.reads[0] != 42 {
		t.Errorf("reads got: %v expected: [42]", rec.reads)
	}
}

func TestFPRPairAssembly(t *testing.T) {
	f := New(0)
	f.WriteDouble(4, 0x1122334455667788)
	if r := f.ReadFPR(4); r != 0x55667788 {
		t.Errorf("low FPR got: %#x expected: %#x", r, uint32(0x55667788))
	}
	if r := f.ReadFPR(5); r != 0x11223344 {
		t.Errorf("high FPR got: %#x expected: %#x", r, uint32(0x11223344))
	}
	if r := f.ReadDouble(4); r != 0x1122334455667788 {
		t.Errorf("ReadDouble got: %#x expected: %#x", r, uint64(0x1122334455667788))
	}
}
