// Package loader parses the external file formats spec.md §6 names as
// out-of-scope tool inputs: the memory map, memory contents, the packed
// Inst stream, and the tooling-only instructions map. None of this
// package decodes x86 byte streams — it only deserializes the
// already-decoded records the external decoder produced.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zotley/x86sim/cpu"
)

// ParseMemoryMap reads the human-readable memory-map text format
// (spec.md §6): one region per non-blank, non-comment line of the form
//
//	KIND START SIZE
//
// e.g. "TEXT 0x00000000 0x200". KIND is one of TEXT, ROM, RAM, STACK.
func ParseMemoryMap(r io.Reader) ([]cpu.Region, error) {
	scanner := bufio.NewScanner(r)
	var regions []cpu.Region
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("memory map line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		kind, err := parseRegionKind(fields[0])
		if err != nil {
			return nil, fmt.Errorf("memory map line %d: %w", lineNo, err)
		}
		start, err := parseHexOrDec(fields[1])
		if err != nil {
			return nil, fmt.Errorf("memory map line %d: bad start address: %w", lineNo, err)
		}
		size, err := parseHexOrDec(fields[2])
		if err != nil {
			return nil, fmt.Errorf("memory map line %d: bad size: %w", lineNo, err)
		}
		regions = append(regions, cpu.Region{Kind: kind, Start: uint32(start), Size: uint32(size)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

func parseRegionKind(s string) (cpu.RegionKind, error) {
	switch strings.ToUpper(s) {
	case "TEXT":
		return cpu.RegionText, nil
	case "ROM":
		return cpu.RegionROM, nil
	case "RAM":
		return cpu.RegionRAM, nil
	case "STACK":
		return cpu.RegionStack, nil
	default:
		return 0, fmt.Errorf("unknown region kind %q", s)
	}
}

func parseHexOrDec(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// TotalSize returns the address one past the highest byte any region
// covers — the size the backing Memory byte slice needs.
func TotalSize(regions []cpu.Region) uint32 {
	var max uint32
	for _, r := range regions {
		if end := r.Start + r.Size; end > max {
			max = end
		}
	}
	return max
}

// LoadMemoryContents reads the raw bytes to install into ROM/RAM
// regions (spec.md §6's "memory contents" file).
func LoadMemoryContents(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
