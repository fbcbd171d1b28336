package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zotley/x86sim/cpu"
)

// instRecordSize is the fixed on-disk width of one packed Inst record.
// Every field is stored little-endian; booleans occupy one byte.
const instRecordSize = 1 /*opcode*/ + 3 + 3 /*op1,op2*/ + 5 /*addr flags*/ + 4 + 4 /*address,imm*/ + 7 /*override/flags bytes*/ + 1 /*register_out*/ + 4 /*imm3*/

// ParseInstructions reads a packed binary sequence of Inst records
// (spec.md §6) into the ordered slice the engine indexes by EIP.
func ParseInstructions(r io.Reader) ([]cpu.Inst, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%instRecordSize != 0 {
		return nil, fmt.Errorf("instruction stream length %d is not a multiple of the record size %d", len(data), instRecordSize)
	}
	count := len(data) / instRecordSize
	insts := make([]cpu.Inst, count)
	for i := 0; i < count; i++ {
		rec := data[i*instRecordSize : (i+1)*instRecordSize]
		insts[i] = decodeInstRecord(rec)
	}
	return insts, nil
}

func decodeInstRecord(rec []byte) cpu.Inst {
	var inst cpu.Inst
	p := 0
	readU8 := func() byte { v := rec[p]; p++; return v }
	readBool := func() bool { return readU8() != 0 }
	readU32 := func() uint32 { v := binary.LittleEndian.Uint32(rec[p : p+4]); p += 4; return v }

	inst.Opcode = cpu.Opcode(readU8())
	inst.Op1 = cpu.Operand{Type: cpu.OpType(readU8()), Reg: cpu.Register(readU8()), Read: readBool()}
	inst.Op2 = cpu.Operand{Type: cpu.OpType(readU8()), Reg: cpu.Register(readU8()), Read: readBool()}
	inst.ComputeAddress = readBool()
	inst.BaseRegPresent = readBool()
	inst.ScaledRegPresent = readBool()
	inst.ScaledReg = readU8()
	inst.RegField = readU8()
	inst.AddressValue = readU32()
	inst.ImmediateValue = readU32()
	inst.OperandSizeOverride = readBool()
	inst.OperandByteSizeOverride = readBool()
	inst.GetFlags = readBool()
	inst.WriteRet1ToOp1 = readBool()
	inst.WriteRet2ToOp2 = readBool()
	inst.WriteRet2ToRegister = readBool()
	inst.ScaleOutputOverride = readBool()
	inst.RegisterOut = cpu.Register(readU8())
	inst.Imm3 = readU32()
	return inst
}

// InstructionMapEntry is one line of the tooling-only instructions map:
// the decoded EIP index paired with the original x86 byte address it
// came from (spec.md §6).
type InstructionMapEntry struct {
	Index   uint32
	Address uint32
}

// ParseInstructionsMap reads "HEXINDEX,HEXADDRESS" lines, grounded on
// original_source/compare_with_processor/program_compare.cpp's
// load_instructions_map.
func ParseInstructionsMap(r io.Reader) ([]InstructionMapEntry, error) {
	scanner := bufio.NewScanner(r)
	var entries []InstructionMapEntry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("instructions map line %d: expected HEXINDEX,HEXADDRESS", lineNo)
		}
		idx, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("instructions map line %d: bad index: %w", lineNo, err)
		}
		addr, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("instructions map line %d: bad address: %w", lineNo, err)
		}
		entries = append(entries, InstructionMapEntry{Index: uint32(idx), Address: uint32(addr)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddressOf looks up the original byte address for a decoded index,
// mirroring program_compare.cpp's use of the map to label INST lines.
func AddressOf(entries []InstructionMapEntry, index uint32) (uint32, bool) {
	for _, e := range entries {
		if e.Index == index {
			return e.Address, true
		}
	}
	return 0, false
}
