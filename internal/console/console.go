// Package console implements an interactive debugging REPL over a
// running control.Loop: step instructions, set breakpoints, and
// inspect registers and memory between stops.
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/peterh/liner"

	"mipsuser/internal/control"
	"mipsuser/internal/cpu"
)

// Console wraps a control.Loop with breakpoint bookkeeping and a
// command dispatch table.
type Console struct {
	Loop        *control.Loop
	breakpoints map[uint32]bool
	lastPC      uint32
	exited      bool
}

// New builds a console over an already-seeded loop. Call loop.Seed
// before handing it to New so the first "step"/"continue" has
// somewhere to run from.
func New(loop *control.Loop) *Console {
	return &Console{Loop: loop, breakpoints: make(map[uint32]bool)}
}

type cmdLine struct {
	line string
	pos  int
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool { return l.pos >= len(l.line) }

// getWord returns the next run of letters, lower-cased, as a command
// name or sub-keyword.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return strings.ToLower(l.line[start:l.pos])
}

// getToken returns the next whitespace-delimited token verbatim,
// preserving case, for addresses and numeric arguments.
func (l *cmdLine) getToken() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

func parseAddr(tok string) (uint32, error) {
	if tok == "" {
		return 0, errors.New("expected an address")
	}
	v, err := strconv.ParseUint(tok, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", tok, err)
	}
	return uint32(v), nil
}

type cmd struct {
	name    string
	min     int
	process func(*cmdLine, *Console) (bool, error)
}

var cmdList = []cmd{
	{name: "step", min: 1, process: cmdStep},
	{name: "continue", min: 1, process: cmdContinue},
	{name: "break", min: 1, process: cmdBreak},
	{name: "delete", min: 1, process: cmdDelete},
	{name: "registers", min: 3, process: cmdRegisters},
	{name: "memory", min: 1, process: cmdMemory},
	{name: "pending", min: 1, process: cmdPending},
	{name: "quit", min: 1, process: cmdQuit},
}

func matchCommand(m cmd, name string) bool {
	if len(name) > len(m.name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if m.name[i] != name[i] {
			return false
		}
	}
	return len(name) >= m.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var out []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			out = append(out, m)
		}
	}
	return out
}

// ProcessCommand parses and runs a single console command line,
// returning true when the console should stop reading further lines.
func (c *Console) ProcessCommand(commandLine string) (bool, error) {
	line := &cmdLine{line: commandLine}
	name := line.getWord()
	if name == "" {
		return false, nil
	}

	matches := matchList(name)
	switch len(matches) {
	case 0:
		return false, fmt.Errorf("command not found: %s", name)
	case 1:
		return matches[0].process(line, c)
	default:
		return false, fmt.Errorf("ambiguous command: %s", name)
	}
}

func cmdStep(line *cmdLine, c *Console) (bool, error) {
	count := 1
	if tok := line.getToken(); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return false, fmt.Errorf("invalid step count %q: %w", tok, err)
		}
		count = n
	}
	for i := 0; i < count; i++ {
		if c.exited {
			fmt.Println("program has already exited")
			return false, nil
		}
		pc, ev := c.Loop.Step()
		c.lastPC = pc
		if ev.Kind == cpu.Exit {
			c.exited = true
			fmt.Printf("exited at pc=%#x\n", pc)
			return false, nil
		}
	}
	fmt.Printf("stopped at pc=%#x\n", c.lastPC)
	return false, nil
}

func cmdContinue(_ *cmdLine, c *Console) (bool, error) {
	if c.exited {
		fmt.Println("program has already exited")
		return false, nil
	}
	for {
		pc, ev := c.Loop.Step()
		c.lastPC = pc
		if ev.Kind == cpu.Exit {
			c.exited = true
			fmt.Printf("exited at pc=%#x\n", pc)
			return false, nil
		}
		if next, ok := peekNext(c.Loop); ok && c.breakpoints[next] {
			fmt.Printf("breakpoint hit at pc=%#x\n", next)
			return false, nil
		}
	}
}

// peekNext reports the program counter the loop will execute next,
// without consuming it.
func peekNext(l *control.Loop) (uint32, bool) {
	pending := l.Pending()
	if len(pending) == 0 {
		return 0, false
	}
	return pending[0], true
}

func cmdBreak(line *cmdLine, c *Console) (bool, error) {
	addr, err := parseAddr(line.getToken())
	if err != nil {
		return false, err
	}
	c.breakpoints[addr] = true
	fmt.Printf("breakpoint set at %#x\n", addr)
	return false, nil
}

func cmdDelete(line *cmdLine, c *Console) (bool, error) {
	addr, err := parseAddr(line.getToken())
	if err != nil {
		return false, err
	}
	delete(c.breakpoints, addr)
	fmt.Printf("breakpoint cleared at %#x\n", addr)
	return false, nil
}

func cmdRegisters(_ *cmdLine, c *Console) (bool, error) {
	reg := c.Loop.Reg
	fmt.Printf("pc=%#010x hi=%#010x lo=%#010x\n", reg.PC(), reg.HI(), reg.LO())
	for i := 0; i < 32; i += 4 {
		fmt.Printf("r%-2d=%#010x r%-2d=%#010x r%-2d=%#010x r%-2d=%#010x\n",
			i, reg.Read(uint32(i)),
			i+1, reg.Read(uint32(i+1)),
			i+2, reg.Read(uint32(i+2)),
			i+3, reg.Read(uint32(i+3)))
	}
	return false, nil
}

func cmdMemory(line *cmdLine, c *Console) (bool, error) {
	addr, err := parseAddr(line.getToken())
	if err != nil {
		return false, err
	}
	count := 4
	if tok := line.getToken(); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return false, fmt.Errorf("invalid word count %q: %w", tok, err)
		}
		count = n
	}
	for i := 0; i < count; i++ {
		a := addr + uint32(i)*4
		fmt.Printf("%#010x: %#010x\n", a, c.Loop.Mem.ReadWord(a))
	}
	return false, nil
}

func cmdPending(_ *cmdLine, c *Console) (bool, error) {
	fmt.Printf("pending: %#x\n", c.Loop.Pending())
	return false, nil
}

func cmdQuit(_ *cmdLine, _ *Console) (bool, error) {
	return true, nil
}

// Run starts an interactive liner-backed REPL over c until the user
// quits or aborts with ctrl-D.
func (c *Console) Run() {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		name := strings.ToLower(line)
		var out []string
		for _, m := range matchList(name) {
			out = append(out, m.name)
		}
		return out
	})

	for {
		input, err := term.Prompt("mips> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			fmt.Println("error reading line: " + err.Error())
			return
		}
		term.AppendHistory(input)

		quit, err := c.ProcessCommand(input)
		if err != nil {
			fmt.Println("error: " + err.Error())
		}
		if quit {
			return
		}
	}
}
