// Package registers implements the MIPS O32 register file: 31 general
// purpose registers (r0 hard-wired to zero), PC, HI/LO, and 32 FPRs.
package registers

// Well-known register indices used by the O32 calling convention.
const (
	V0 = 2
	A0 = 4
	A1 = 5
	A2 = 6
	A3 = 7
	SP = 29
	RA = 31
)

var names = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// Name returns the ABI name of general-purpose register id.
func Name(id uint32) string {
	if id >= uint32(len(names)) {
		return "?"
	}
	return names[id]
}

// AccessObserver is notified of every register access. It is installed
// once, through SetObserver before execution begins, and never reseated.
type AccessObserver interface {
	OnRead(id uint32, value uint32)
	OnWrite(id uint32, value uint32)
}

// File is the MIPS register file for a single guest execution context.
type File struct {
	gpr [31]uint32
	fpr [32]uint32
	pc  uint32
	hi  uint32
	lo  uint32

	observer AccessObserver
}

// New creates a register file with the stack pointer initialised to sp.
func New(sp uint32) *File {
	f := &File{}
	f.Write(SP, sp)
	return f
}

// SetObserver installs the watchdog's read/write observer. Must be
// called at most once, before execution begins.
func (f *File) SetObserver(o AccessObserver) {
	f.observer = o
}

// Read returns the value of GPR id. Register 0 always reads as zero.
func (f *File) Read(id uint32) uint32 {
	var v uint32
	if id != 0 {
		v = f.gpr[id-1]
	}
	if f.observer != nil {
		f.observer.OnRead(id, v)
	}
	return v
}

// Write stores v into GPR id. Writes to register 0 are discarded, but
// the observer still fires as if the write had happened.
func (f *File) Write(id uint32, v uint32) {
	if f.observer != nil {
		f.observer.OnWrite(id, v)
	}
	if id != 0 {
		f.gpr[id-1] = v
	}
}

// PC returns the program counter.
func (f *File) PC() uint32 { return f.pc }

// SetPC sets the program counter.
func (f *File) SetPC(pc uint32) { f.pc = pc }

// HI returns the HI scratch register (legacy multiply/divide high word).
func (f *File) HI() uint32 { return f.hi }

// LO returns the LO scratch register (legacy multiply/divide low word,
// or quotient).
func (f *File) LO() uint32 { return f.lo }

// SetHI sets the HI scratch register.
func (f *File) SetHI(v uint32) { f.hi = v }

// SetLO sets the LO scratch register.
func (f *File) SetLO(v uint32) { f.lo = v }

// ReadFPR returns the raw 32-bit pattern stored in FPR id.
func (f *File) ReadFPR(id uint32) uint32 { return f.fpr[id] }

// WriteFPR stores the raw 32-bit pattern v into FPR id.
func (f *File) WriteFPR(id uint32, v uint32) { f.fpr[id] = v }

// ReadDouble assembles a 64-bit double-precision pattern from the FPR
// pair starting at id: the lower-indexed register holds the low 32
// bits, matching the O32 register-pair convention.
func (f *File) ReadDouble(id uint32) uint64 {
	lo := uint64(f.fpr[id])
	hi := uint64(f.fpr[id+1])
	return hi<<32 | lo
}

// WriteDouble splits a 64-bit pattern across the FPR pair starting at id.
func (f *File) WriteDouble(id uint32, v uint64) {
	f.fpr[id] = uint32(v)
	f.fpr[id+1] = uint32(v >> 32)
}

// Snapshot copies every GPR (1..31) into a map, for diagnostics.
func (f *File) Snapshot() map[uint32]uint32 {
	m := make(map[uint32]uint32, len(f.gpr))
	for i := range f.gpr {
		m[uint32(i+1)] = f.gpr[i]
	}
	return m
}
