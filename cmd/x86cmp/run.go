package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/zotley/x86sim/cpu"
	"github.com/zotley/x86sim/loader"
)

type runOptions struct {
	MemoryMap       string
	MemoryContents  string
	Instructions    string
	InstructionsMap string
	MaxCycles       uint64
}

// run implements the §6 comparator protocol: an initial OK line, a line
// per instruction boundary (INST), a CHANGES block (REG/MEM lines) for
// each cycle that changed a register or memory, and a terminal
// ERROR/END (or SIGNAL) line. The returned int is the
// process exit code the caller must use: 0 on a clean END, the
// interrupted signal's number on SIGNAL, and 1 on any other error —
// mirroring program_compare.cpp's quick_exit_handler/signal_handler.
func run(w io.Writer, opts *runOptions) (int, error) {
	regions, instsMap, mem, err := loadInputs(opts)
	if err != nil {
		fmt.Fprintf(w, "ERROR %s\n", err)
		return 1, nil
	}
	_ = instsMap // reserved for INST <hexaddr> translation below
	_ = regions

	monitor := cpu.NewRecordingMonitor()
	engine := cpu.NewEngine(mem, opts.MaxCycles)
	engine.SetMonitor(monitor)
	engine.Log = cpu.NewLogger(cpu.LogOff, nil)
	engine.Startup()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() { done <- driveEngine(w, engine, monitor, instsMap) }()

	select {
	case sig := <-sigCh:
		mnemonic := sig.String()
		fmt.Fprintf(w, "SIGNAL %s\n", mnemonic)
		if unixSig, ok := sig.(syscall.Signal); ok {
			return int(unixSig), nil
		}
		return 1, nil
	case err := <-done:
		if err != nil {
			if stop, ok := err.(*cpu.MaxCyclesStop); ok {
				fmt.Fprintf(w, "ERROR MAX_CYCLES %d\n", stop.CycleCount)
			} else {
				fmt.Fprintf(w, "ERROR %s\n", err)
			}
			return 1, nil
		}
		fmt.Fprintln(w, "END")
		return 0, nil
	}
}

// driveEngine runs the engine to completion, printing one INST line per
// cycle and one CHANGES block (with nested REG/MEM lines) per cycle that
// changed a register or memory. It returns
// the terminal error, if any — including *cpu.MaxCyclesStop on budget
// exhaustion — so run() alone decides the single terminal ERROR/END
// line and exit code.
func driveEngine(w io.Writer, engine *cpu.Engine, monitor *cpu.RecordingMonitor, instsMap []loader.InstructionMapEntry) error {
	fmt.Fprintln(w, "OK")
	for !engine.Halted {
		eip := engine.Regs.ReadEIP()
		addr := eip
		if a, ok := loader.AddressOf(instsMap, eip); ok {
			addr = a
		}
		fmt.Fprintf(w, "INST %#x\n", addr)

		inst, fetchErr := engine.Mem.FetchInstruction(eip)
		if fetchErr != nil {
			return fetchErr
		}

		engine.ClockCycleCount++
		monitor.NewClockCycle()
		cycleIndex := len(monitor.Cycles) - 1

		err := engine.ExecuteInstruction(&inst)
		printChanges(w, monitor, cycleIndex)
		if err != nil {
			return err
		}
		if engine.MaxCycles > 0 && engine.ClockCycleCount >= engine.MaxCycles {
			return &cpu.MaxCyclesStop{CycleCount: engine.ClockCycleCount}
		}
	}
	return nil
}

func printChanges(w io.Writer, monitor *cpu.RecordingMonitor, cycleIndex int) {
	if cycleIndex >= len(monitor.Cycles) {
		return
	}
	changes := monitor.Cycles[cycleIndex]
	if len(changes.Registers) == 0 && len(changes.Memory) == 0 {
		return
	}
	fmt.Fprintln(w, "CHANGES")
	for _, rc := range changes.Registers {
		fmt.Fprintf(w, "REG %s\n", cpu.RegisterName(rc.Register))
	}
	for _, mc := range changes.Memory {
		fmt.Fprintf(w, "MEM %#x %s\n", mc.Address, mc.Size)
	}
}

func loadInputs(opts *runOptions) ([]cpu.Region, []loader.InstructionMapEntry, *cpu.Memory, error) {
	mapFile, err := os.Open(opts.MemoryMap)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening memory map: %w", err)
	}
	defer mapFile.Close()
	regions, err := loader.ParseMemoryMap(mapFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing memory map: %w", err)
	}

	contentsFile, err := os.Open(opts.MemoryContents)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening memory contents: %w", err)
	}
	defer contentsFile.Close()
	contents, err := loader.LoadMemoryContents(contentsFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading memory contents: %w", err)
	}

	instFile, err := os.Open(opts.Instructions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening instructions: %w", err)
	}
	defer instFile.Close()
	insts, err := loader.ParseInstructions(instFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing instructions: %w", err)
	}

	var instsMap []loader.InstructionMapEntry
	if opts.InstructionsMap != "" {
		mapFile, err := os.Open(opts.InstructionsMap)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening instructions map: %w", err)
		}
		defer mapFile.Close()
		instsMap, err = loader.ParseInstructionsMap(mapFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing instructions map: %w", err)
		}
	}

	size := loader.TotalSize(regions)
	mem := cpu.NewMemory(size, regions, insts)
	mem.LoadBytes(0, contents)
	return regions, instsMap, mem, nil
}
