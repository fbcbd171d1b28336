// Command x86cmp drives the engine against externally supplied memory
// and instruction streams and prints the line-oriented comparator
// protocol spec.md §6 describes, so an outside harness can diff this
// engine's behavior against a reference processor cycle by cycle.
//
// Grounded on _examples/oisee-z80-optimizer/cmd/z80opt/main.go's cobra
// entry point shape, and on original_source/compare_with_processor/
// program_compare.cpp for the protocol and signal-handling behavior.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "x86cmp",
		Short: "Run a decoded program against the engine and print a change-by-change trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			os.Exit(code)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.MemoryMap, "memory-map", "", "path to the memory map file (required)")
	cmd.Flags().StringVar(&opts.MemoryContents, "memory-contents", "", "path to the raw memory contents file (required)")
	cmd.Flags().StringVar(&opts.Instructions, "instructions", "", "path to the packed Inst record stream (required)")
	cmd.Flags().StringVar(&opts.InstructionsMap, "instructions-map", "", "path to the HEXINDEX,HEXADDRESS instructions map (optional)")
	cmd.Flags().Uint64Var(&opts.MaxCycles, "max-cycles", 0, "stop after this many cycles (0 means unbounded)")
	_ = cmd.MarkFlagRequired("memory-map")
	_ = cmd.MarkFlagRequired("memory-contents")
	_ = cmd.MarkFlagRequired("instructions")
	return cmd
}
