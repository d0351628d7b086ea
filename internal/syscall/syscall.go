// Package syscall services the MIPS O32 syscall instruction by
// forwarding to the host kernel through golang.org/x/sys/unix,
// translating calling convention and struct layout on the way in and
// out. See internal/sysnum for the number-to-name mapping every call
// is first run through.
package syscall

import (
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"mipsuser/internal/cpu"
	"mipsuser/internal/memory"
	"mipsuser/internal/registers"
	"mipsuser/internal/sysnum"
)

// Config holds the CLI-selected behavioural overrides for the syscall
// layer; each field corresponds to one of the emulator's --syscall-*
// or --fake-* flags.
type Config struct {
	FakeRoot          bool
	FakeRootDir       bool
	IoctlBlockOnStdio bool
	IoctlAlwaysFail   bool
}

// GuestSigaction is the guest-layout struct sigaction: a 32-bit
// handler, a 128-bit signal mask, a 32-bit flags word and a 32-bit
// restorer pointer.
type GuestSigaction struct {
	Handler  uint32
	Mask     [4]uint32
	Flags    int32
	Restorer uint32
}

// SystemState carries process-wide guest state that outlives a single
// syscall call, most importantly the installed signal dispositions.
type SystemState struct {
	Sigactions [64]GuestSigaction
}

// Layer implements cpu.SyscallHandler.
type Layer struct {
	Config Config
	State  *SystemState
}

// New builds a Layer with fresh process state.
func New(cfg Config) *Layer {
	return &Layer{Config: cfg, State: &SystemState{}}
}

// fatal reports an unrecoverable syscall condition, matching the
// cpu package's fatalf convention.
func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Error("syscall: fatal", "reason", msg)
	panic(msg)
}

func errnoOf(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}

// Syscall reads the syscall number and arguments per the O32
// convention, dispatches to the matching host operation, and writes
// the result/error-flag pair back to v0/a3.
func (l *Layer) Syscall(reg *registers.File, mem *memory.Memory) cpu.Event {
	nr := reg.Read(registers.V0)
	a0 := reg.Read(registers.A0)
	a1 := reg.Read(registers.A1)
	a2 := reg.Read(registers.A2)
	a3 := reg.Read(registers.A3)

	name, ok := sysnum.Name(nr)
	if !ok {
		fatal("unmapped O32 syscall number %d at pc=%#x", nr, reg.PC())
	}

	var result uint32
	var errno unix.Errno
	event := cpu.NothingEvent

	switch name {
	case "brk":
		result, errno = l.sysBrk(mem, a0)
	case "set_thread_area", "set_tid_address":
		result, errno = 0, 0
	case "rt_sigprocmask":
		result, errno = l.sysRtSigprocmask(mem, a0, a1, a2)
	case "rt_sigaction":
		result, errno = l.sysRtSigaction(mem, a0, a1, a2)
	case "getuid", "geteuid":
		result, errno = l.sysGetuid()
	case "getgid", "getegid":
		result, errno = l.sysGetgid()
	case "getpid":
		result, errno = uint32(unix.Getpid()), 0
	case "getppid":
		result, errno = uint32(unix.Getppid()), 0
	case "gettid":
		result, errno = uint32(unix.Gettid()), 0
	case "uname":
		result, errno = l.sysUname(mem, a0)
	case "wait4":
		result, errno = l.sysWait4(mem, a0, a1, a2, a3)
	case "stat64", "lstat64", "fstat64":
		result, errno = l.sysStat(mem, name, a0, a1)
	case "fork":
		pid, e := unix.Fork()
		result, errno = uint32(pid), errnoOf(e)
		if e == nil {
			event = cpu.ForkEvent(uint32(pid))
		}
	case "execve":
		result, errno = l.sysExecve(mem, a0, a1, a2)
	case "ioctl":
		result, errno = l.sysIoctl(mem, a0, a1, a2)
	case "futex":
		result, errno = l.sysFutex(mem, a0, a1, a2, a3)
	case "clock_gettime":
		result, errno = l.sysClockGettime(mem, a0, a1)
	case "dup2":
		fd, e := unix.Dup2(int(a0), int(a1))
		result, errno = uint32(fd), errnoOf(e)
	case "open":
		result, errno = l.sysOpen(mem, a0, a1, a2)
	case "close":
		errno = errnoOf(unix.Close(int(a0)))
	case "read":
		result, errno = l.sysRead(mem, a0, a1, a2)
	case "write":
		result, errno = l.sysWrite(mem, a0, a1, a2)
	case "readv":
		result, errno = l.sysReadv(mem, a0, a1, a2)
	case "writev":
		result, errno = l.sysWritev(mem, a0, a1, a2)
	case "chdir":
		errno = errnoOf(unix.Chdir(readCString(mem, a0)))
	case "setuid":
		errno = errnoOf(unix.Setuid(int(a0)))
	case "setgid":
		errno = errnoOf(unix.Setgid(int(a0)))
	case "llseek":
		result, errno = l.sysLlseek(reg, mem, a0, a1, a2, a3)
	case "getcwd":
		result, errno = l.sysGetcwd(mem, a0, a1)
	case "time":
		result, errno = l.sysTime(mem, a0)
	case "exit", "exit_group":
		event = cpu.ExitEvent
	case "mmap2":
		result, errno = l.sysMmap2(a1)
	default:
		fatal("unimplemented syscall %q (number %d) at pc=%#x", name, nr, reg.PC())
	}

	if errno != 0 {
		reg.Write(registers.V0, uint32(errno))
		reg.Write(registers.A3, 1)
	} else {
		reg.Write(registers.V0, result)
		reg.Write(registers.A3, 0)
	}
	return event
}

func (l *Layer) sysBrk(mem *memory.Memory, addr uint32) (uint32, unix.Errno) {
	if addr == 0 {
		return mem.ProgramBreak(), 0
	}
	mem.SetProgramBreak(addr)
	return addr, 0
}

func (l *Layer) sysGetuid() (uint32, unix.Errno) {
	if l.Config.FakeRoot {
		return 0, 0
	}
	return uint32(unix.Getuid()), 0
}

func (l *Layer) sysGetgid() (uint32, unix.Errno) {
	if l.Config.FakeRoot {
		return 0, 0
	}
	return uint32(unix.Getgid()), 0
}

func (l *Layer) sysOpen(mem *memory.Memory, pathAddr, flags, mode uint32) (uint32, unix.Errno) {
	const guestOLargefile = 0x2000
	path := readCString(mem, pathAddr)
	fd, err := unix.Open(path, int(flags&^guestOLargefile), uint32(mode))
	return uint32(fd), errnoOf(err)
}

func (l *Layer) sysRead(mem *memory.Memory, fd, bufAddr, count uint32) (uint32, unix.Errno) {
	buf := make([]byte, count)
	n, err := unix.Read(int(fd), buf)
	if err != nil {
		return 0, errnoOf(err)
	}
	mem.WriteBlock(bufAddr, buf[:n])
	return uint32(n), 0
}

func (l *Layer) sysWrite(mem *memory.Memory, fd, bufAddr, count uint32) (uint32, unix.Errno) {
	n, err := unix.Write(int(fd), mem.ReadBytes(bufAddr, int(count)))
	return uint32(n), errnoOf(err)
}

func (l *Layer) sysReadv(mem *memory.Memory, fd, iovecAddr, iovcnt uint32) (uint32, unix.Errno) {
	total := 0
	for i := uint32(0); i < iovcnt; i++ {
		base, length := readIovecEntry(mem, iovecAddr, i)
		buf := make([]byte, length)
		n, err := unix.Read(int(fd), buf)
		if err != nil {
			return 0, errnoOf(err)
		}
		mem.WriteBlock(base, buf[:n])
		total += n
		if n < int(length) {
			break
		}
	}
	return uint32(total), 0
}

func (l *Layer) sysWritev(mem *memory.Memory, fd, iovecAddr, iovcnt uint32) (uint32, unix.Errno) {
	total := 0
	for i := uint32(0); i < iovcnt; i++ {
		base, length := readIovecEntry(mem, iovecAddr, i)
		n, err := unix.Write(int(fd), mem.ReadBytes(base, int(length)))
		if err != nil {
			return 0, errnoOf(err)
		}
		total += n
	}
	return uint32(total), 0
}

func readIovecEntry(mem *memory.Memory, iovecAddr, index uint32) (base, length uint32) {
	entry := iovecAddr + index*8
	return mem.ReadWord(entry), mem.ReadWord(entry + 4)
}

func (l *Layer) sysLlseek(reg *registers.File, mem *memory.Memory, fd, offHi, offLo, resultPtr uint32) (uint32, unix.Errno) {
	whence := mem.ReadWord(reg.Read(registers.SP) + 4*4)
	off := int64(offHi)<<32 | int64(offLo)
	pos, err := unix.Seek(int(fd), off, int(whence))
	if err != nil {
		return 0, errnoOf(err)
	}
	writeU64(mem, resultPtr, uint64(pos))
	return 0, 0
}

func (l *Layer) sysGetcwd(mem *memory.Memory, bufAddr, size uint32) (uint32, unix.Errno) {
	if l.Config.FakeRootDir && size >= 6 {
		mem.WriteBlock(bufAddr, []byte("/root\x00"))
		return bufAddr, 0
	}
	cwd, err := os.Getwd()
	if err != nil {
		return 0, unix.EIO
	}
	if uint32(len(cwd)+1) > size {
		return 0, unix.ERANGE
	}
	mem.WriteBlock(bufAddr, append([]byte(cwd), 0))
	return bufAddr, 0
}

func (l *Layer) sysTime(mem *memory.Memory, tloc uint32) (uint32, unix.Errno) {
	seconds := uint32(time.Now().Unix())
	if tloc != 0 {
		mem.WriteWord(tloc, seconds)
	}
	return seconds, 0
}

func (l *Layer) sysMmap2(length uint32) (uint32, unix.Errno) {
	if length == 0 {
		return 0, unix.EINVAL
	}
	fatal("mmap2 is not implemented")
	return 0, 0
}

func (l *Layer) sysClockGettime(mem *memory.Memory, clockID, tsAddr uint32) (uint32, unix.Errno) {
	var ts unix.Timespec
	if err := unix.ClockGettime(int32(clockID), &ts); err != nil {
		return 0, errnoOf(err)
	}
	mem.WriteWord(tsAddr, uint32(ts.Sec))
	mem.WriteWord(tsAddr+4, uint32(ts.Nsec))
	return 0, 0
}

func (l *Layer) sysFutex(mem *memory.Memory, uaddr, op, val, timeoutAddr uint32) (uint32, unix.Errno) {
	var ts *unix.Timespec
	if timeoutAddr != 0 {
		t := unix.Timespec{Sec: int64(mem.ReadWord(timeoutAddr)), Nsec: int64(mem.ReadWord(timeoutAddr + 4))}
		ts = &t
	}
	buf := mem.TranslateAddress(uaddr)
	addr := (*uint32)(unsafe.Pointer(&buf[0]))
	n, err := unix.Futex(addr, int(op), val, ts, nil, 0)
	return uint32(n), errnoOf(err)
}

func (l *Layer) sysIoctl(mem *memory.Memory, fd, req, argAddr uint32) (uint32, unix.Errno) {
	if l.Config.IoctlBlockOnStdio && fd < 3 {
		return 0, 0
	}
	if l.Config.IoctlAlwaysFail {
		return 0, unix.EINVAL
	}
	var ptr uintptr
	if buf := mem.TranslateAddress(argAddr); buf != nil {
		ptr = uintptr(unsafe.Pointer(&buf[0]))
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), ptr)
	return 0, errno
}

func (l *Layer) sysExecve(mem *memory.Memory, pathAddr, argvAddr, envpAddr uint32) (uint32, unix.Errno) {
	path := readCString(mem, pathAddr)
	argv := readStringArray(mem, argvAddr)
	envp := readStringArray(mem, envpAddr)
	err := unix.Exec(path, argv, envp)
	return 0, errnoOf(err)
}

func (l *Layer) sysWait4(mem *memory.Memory, pid, statusAddr, options, rusageAddr uint32) (uint32, unix.Errno) {
	var ws unix.WaitStatus
	var ru unix.Rusage
	wpid, err := unix.Wait4(int(int32(pid)), &ws, int(options), &ru)
	if err != nil {
		return 0, errnoOf(err)
	}
	if statusAddr != 0 {
		mem.WriteWord(statusAddr, uint32(ws))
	}
	if rusageAddr != 0 {
		// Only the CPU-time fields are modelled; struct rusage carries
		// two dozen fields the reference workloads never inspect.
		mem.WriteWord(rusageAddr, uint32(ru.Utime.Sec))
		mem.WriteWord(rusageAddr+4, uint32(ru.Utime.Usec))
		mem.WriteWord(rusageAddr+8, uint32(ru.Stime.Sec))
		mem.WriteWord(rusageAddr+12, uint32(ru.Stime.Usec))
	}
	return uint32(wpid), 0
}

func (l *Layer) sysUname(mem *memory.Memory, addr uint32) (uint32, unix.Errno) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return 0, errnoOf(err)
	}
	const fieldLen = 65
	fields := [][65]byte{u.Sysname, u.Nodename, u.Release, u.Version, u.Machine, u.Domainname}
	for i, f := range fields {
		writeCStringBytes(mem, addr+uint32(i*fieldLen), f[:])
	}
	return 0, 0
}

func writeCStringBytes(mem *memory.Memory, addr uint32, b []byte) {
	for i, c := range b {
		mem.WriteByte(addr+uint32(i), uint32(c))
		if c == 0 {
			return
		}
	}
}

// stat64 layout: 160 bytes, field order and padding fixed by the O32
// ABI. u64 fields are split into two words honouring guest endianness.
func (l *Layer) sysStat(mem *memory.Memory, which string, pathOrFdAddr, bufAddr uint32) (uint32, unix.Errno) {
	var st unix.Stat_t
	var err error
	switch which {
	case "stat64":
		err = unix.Stat(readCString(mem, pathOrFdAddr), &st)
	case "lstat64":
		err = unix.Lstat(readCString(mem, pathOrFdAddr), &st)
	case "fstat64":
		err = unix.Fstat(int(pathOrFdAddr), &st)
	}
	if err != nil {
		return 0, errnoOf(err)
	}
	writeStat64(mem, bufAddr, &st)
	return 0, 0
}

func writeStat64(mem *memory.Memory, addr uint32, st *unix.Stat_t) {
	writeU64(mem, addr+0, uint64(st.Dev))
	writeU64(mem, addr+16, uint64(st.Ino))
	mem.WriteWord(addr+24, uint32(st.Mode))
	mem.WriteWord(addr+28, uint32(st.Nlink))
	mem.WriteWord(addr+32, st.Uid)
	mem.WriteWord(addr+36, st.Gid)
	writeU64(mem, addr+40, uint64(st.Rdev))
	writeU64(mem, addr+56, uint64(st.Size))
	mem.WriteWord(addr+64, uint32(st.Atim.Sec))
	mem.WriteWord(addr+68, uint32(st.Atim.Nsec))
	mem.WriteWord(addr+72, uint32(st.Mtim.Sec))
	mem.WriteWord(addr+76, uint32(st.Mtim.Nsec))
	mem.WriteWord(addr+80, uint32(st.Ctim.Sec))
	mem.WriteWord(addr+84, uint32(st.Ctim.Nsec))
	mem.WriteWord(addr+88, uint32(st.Blksize))
	writeU64(mem, addr+96, uint64(st.Blocks))
}

func writeU64(mem *memory.Memory, addr uint32, v uint64) {
	lo, hi := uint32(v), uint32(v>>32)
	if mem.Endian() == memory.BigEndian {
		mem.WriteWord(addr, hi)
		mem.WriteWord(addr+4, lo)
		return
	}
	mem.WriteWord(addr, lo)
	mem.WriteWord(addr+4, hi)
}

// Guest (MIPS) SA_* bit values, from the kernel's
// arch/mips/include/uapi/asm/signal.h; these do not line up with the
// host's generic bit assignments, so rt_sigaction must translate them
// explicitly rather than pass the raw word through.
const (
	mipsSANocldstop = 0x00000001
	mipsSASiginfo   = 0x00000008
	mipsSANocldwait = 0x00010000
	mipsSARestart   = 0x10000000
	mipsSAOnstack   = 0x08000000
	mipsSANodefer   = 0x40000000
	mipsSAResethand = 0x80000000
)

func translateSigactionFlags(guestFlags int32) uint32 {
	g := uint32(guestFlags)
	var host uint32
	if g&mipsSAOnstack != 0 {
		host |= unix.SA_ONSTACK
	}
	if g&mipsSAResethand != 0 {
		host |= unix.SA_RESETHAND
	}
	if g&mipsSARestart != 0 {
		host |= unix.SA_RESTART
	}
	if g&mipsSASiginfo != 0 {
		host |= unix.SA_SIGINFO
	}
	if g&mipsSANodefer != 0 {
		host |= unix.SA_NODEFER
	}
	if g&mipsSANocldwait != 0 {
		host |= unix.SA_NOCLDWAIT
	}
	if g&mipsSANocldstop != 0 {
		host |= unix.SA_NOCLDSTOP
	}
	return host
}

// rt_sigaction only records the guest's requested disposition and
// reports the translated host flag bits; it never installs a host
// handler for a guest code address; see Design Notes in DESIGN.md
// ("signal delivery") for why.
func (l *Layer) sysRtSigaction(mem *memory.Memory, sig, actAddr, oldactAddr uint32) (uint32, unix.Errno) {
	if sig == 0 || sig >= uint32(len(l.State.Sigactions)) {
		return 0, unix.EINVAL
	}
	prev := l.State.Sigactions[sig]
	if oldactAddr != 0 {
		writeSigaction(mem, oldactAddr, prev)
	}
	if actAddr != 0 {
		next := readSigaction(mem, actAddr)
		slog.Debug("syscall: rt_sigaction", "signal", sig, "handler", next.Handler,
			"host_flags", translateSigactionFlags(next.Flags))
		l.State.Sigactions[sig] = next
	}
	return 0, 0
}

func readSigaction(mem *memory.Memory, addr uint32) GuestSigaction {
	var g GuestSigaction
	g.Handler = mem.ReadWord(addr)
	for i := 0; i < 4; i++ {
		g.Mask[i] = mem.ReadWord(addr + 4 + uint32(i)*4)
	}
	g.Flags = int32(mem.ReadWord(addr + 20))
	g.Restorer = mem.ReadWord(addr + 24)
	return g
}

func writeSigaction(mem *memory.Memory, addr uint32, g GuestSigaction) {
	mem.WriteWord(addr, g.Handler)
	for i := 0; i < 4; i++ {
		mem.WriteWord(addr+4+uint32(i)*4, g.Mask[i])
	}
	mem.WriteWord(addr+20, uint32(g.Flags))
	mem.WriteWord(addr+24, g.Restorer)
}

func (l *Layer) sysRtSigprocmask(mem *memory.Memory, how, setAddr, oldsetAddr uint32) (uint32, unix.Errno) {
	var newset, oldset unix.Sigset_t
	var newPtr *unix.Sigset_t
	if setAddr != 0 {
		var words [4]uint32
		for i := range words {
			words[i] = mem.ReadWord(setAddr + uint32(i)*4)
		}
		newset = guestSigsetToHost(words)
		newPtr = &newset
	}
	if err := unix.PthreadSigmask(translateSigprocmaskHow(how), newPtr, &oldset); err != nil {
		return 0, errnoOf(err)
	}
	if oldsetAddr != 0 {
		words := hostSigsetToGuest(oldset)
		for i, w := range words {
			mem.WriteWord(oldsetAddr+uint32(i)*4, w)
		}
	}
	return 0, 0
}

// MIPS SIG_BLOCK/UNBLOCK/SETMASK are numbered one higher than the
// host's generic values.
func translateSigprocmaskHow(guestHow uint32) int {
	switch guestHow {
	case 1:
		return unix.SIG_BLOCK
	case 2:
		return unix.SIG_UNBLOCK
	default:
		return unix.SIG_SETMASK
	}
}

func guestSigsetToHost(words [4]uint32) unix.Sigset_t {
	var s unix.Sigset_t
	for i := 0; i < 128; i++ {
		if words[i/32]&(1<<uint(i%32)) == 0 {
			continue
		}
		s.Val[i/64] |= 1 << uint(i%64)
	}
	return s
}

func hostSigsetToGuest(s unix.Sigset_t) [4]uint32 {
	var words [4]uint32
	for i := 0; i < 128; i++ {
		if s.Val[i/64]&(1<<uint(i%64)) == 0 {
			continue
		}
		words[i/32] |= 1 << uint(i%32)
	}
	return words
}

func readCString(mem *memory.Memory, addr uint32) string {
	var b []byte
	for {
		c := byte(mem.ReadByte(addr))
		if c == 0 {
			break
		}
		b = append(b, c)
		addr++
	}
	return string(b)
}

func readStringArray(mem *memory.Memory, addr uint32) []string {
	var out []string
	for {
		ptr := mem.ReadWord(addr)
		if ptr == 0 {
			break
		}
		out = append(out, readCString(mem, ptr))
		addr += 4
	}
	return out
}
