/*
 * S370 - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"log/slog"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"mipsuser/internal/console"
	"mipsuser/internal/control"
	"mipsuser/internal/cpu"
	"mipsuser/internal/loader"
	"mipsuser/internal/registers"
	"mipsuser/internal/syscall"
	"mipsuser/internal/sysnum"
	"mipsuser/internal/watchdog"
	logger "mipsuser/util/logger"
)

var Logger *slog.Logger

func main() {
	optCoredump := getopt.BoolLong("coredump", 'c', "treat ELF_PATH as a coredump")
	optEntryPoint := getopt.StringLong("entry-point", 'e', "", "override entry point (hex, required for coredumps)")
	optStackPointer := getopt.StringLong("stack-pointer", 's', "", "override initial stack pointer (hex, required for coredumps)")
	optVerbose := getopt.CounterLong("verbose", 'v', "increase verbosity (error->warn->info->debug->trace)")
	optTraceFile := getopt.StringLong("tracefile", 0, "", "gzip-compressed JSONL reference trace for the watchdog")
	optFakeRoot := getopt.BoolLong("fake-root", 0, "all id syscalls return 0")
	optFakeRootDir := getopt.BoolLong("fake-root-dir", 0, `getcwd returns "/root"`)
	optCheckAllRegs := getopt.BoolLong("trace-check-all-register-values", 0, "compare all non-volatile GPRs per step")
	optPanicOnRead := getopt.BoolLong("trace-panic-on-different-register-value-read", 0, "escalate read mismatches to fatal")
	optIoctlBlock := getopt.BoolLong("syscall-ioctl-block-on-stdio", 0, "ignore ioctl on fds 0-2")
	optIoctlFail := getopt.BoolLong("syscall-ioctl-always-fail", 0, "ioctl returns -EINVAL")
	optInteractive := getopt.BoolLong("interactive", 'i', "drop into the debug console instead of running to completion")
	optHelp := getopt.BoolLong("help", 'h', "help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	args := getopt.Args()
	if len(args) == 0 {
		getopt.Usage()
		os.Exit(1)
	}
	elfPath := args[0]
	guestArgs := args[1:]

	programLevel := new(slog.LevelVar)
	programLevel.Set(logger.VerbosityLevel(*optVerbose))
	debug := *optVerbose > 0
	Logger = slog.New(logger.NewHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel}, &debug))
	slog.SetDefault(Logger)

	defer func() {
		if r := recover(); r != nil {
			Logger.Error("fatal", "reason", r)
			os.Exit(1)
		}
	}()

	mem, fileEntry, err := loader.LoadELF(elfPath)
	if err != nil {
		Logger.Error("loading ELF image", "path", elfPath, "error", err)
		os.Exit(1)
	}

	entryPoint := fileEntry
	if *optEntryPoint != "" {
		entryPoint = parseHexFlag(*optEntryPoint, "--entry-point")
	} else if *optCoredump {
		Logger.Error("--entry-point is required for a coredump")
		os.Exit(1)
	}

	sp := uint32(loader.DefaultStackPointer)
	if *optStackPointer != "" {
		sp = parseHexFlag(*optStackPointer, "--stack-pointer")
	} else if *optCoredump {
		Logger.Error("--stack-pointer is required for a coredump")
		os.Exit(1)
	}

	if !*optCoredump {
		loader.InitializeProcessStack(mem, sp, elfPath, guestArgs)
	}

	reg := registers.New(sp)

	var trace []watchdog.InstructionRecord
	if *optTraceFile != "" {
		trace, err = watchdog.ReadTrace(*optTraceFile)
		if err != nil {
			Logger.Error("reading trace file", "path", *optTraceFile, "error", err)
			os.Exit(1)
		}
	}
	wd := watchdog.New(trace, watchdog.Config{
		CheckAllRegisterValues:      *optCheckAllRegs,
		PanicOnDifferentRegisterRead: *optPanicOnRead,
	})
	reg.SetObserver(wd)

	Logger.Info("syscall numbers loaded", "count", sysnum.Count())

	sys := syscall.New(syscall.Config{
		FakeRoot:          *optFakeRoot,
		FakeRootDir:       *optFakeRootDir,
		IoctlBlockOnStdio: *optIoctlBlock,
		IoctlAlwaysFail:   *optIoctlFail,
	})

	exec := cpu.New(sys)
	loop := control.New(reg, mem, exec, wd)

	if *optInteractive {
		loop.Seed(entryPoint)
		console.New(loop).Run()
		return
	}

	loop.Run(entryPoint)
	Logger.Info("guest exited")
}

func parseHexFlag(s, name string) uint32 {
	digits := s
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits = digits[2:]
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err == nil {
		return uint32(v)
	}
	Logger.Error("invalid numeric value for flag", "flag", name, "value", s)
	os.Exit(1)
	return 0
}
