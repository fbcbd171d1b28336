// Package cpu implements a cycle-driven software model of a 32-bit
// x86-family CPU: register/flag state, the primitive ALU, a flat memory
// abstraction, an I/O port buffer, a stubbed interrupt descriptor table,
// and the execution engine that dispatches pre-decoded instruction
// records produced by an external decoder.
package cpu

import "fmt"

// U8, U16, U32 are the unsigned word widths the engine operates on.
// U64 holds intermediate results (carry, multiply, rotate-through-carry,
// SHD) and the engine's cycle counters.
type (
	U8  = uint8
	U16 = uint16
	U32 = uint32
	U64 = uint64
)

// OpSize is the width of an operand, selected at dispatch time from the
// instruction's size-override bits.
type OpSize int

const (
	SizeUnknown OpSize = iota
	SizeB
	SizeW
	SizeDW
)

// Bits returns the width of the size in bits, or 0 for SizeUnknown.
func (s OpSize) Bits() int {
	switch s {
	case SizeB:
		return 8
	case SizeW:
		return 16
	case SizeDW:
		return 32
	default:
		return 0
	}
}

// Mask returns the bitmask covering exactly the low Bits() bits.
func (s OpSize) Mask() U32 {
	switch s {
	case SizeB:
		return 0xFF
	case SizeW:
		return 0xFFFF
	case SizeDW:
		return 0xFFFFFFFF
	default:
		return 0
	}
}

func (s OpSize) String() string {
	switch s {
	case SizeB:
		return "B"
	case SizeW:
		return "W"
	case SizeDW:
		return "DW"
	default:
		return "UNKNOWN"
	}
}

// OpType identifies where an operand's value comes from.
type OpType int

const (
	OpREG OpType = iota
	OpMEM
	OpIMM
	OpIMMMEM
)

func (t OpType) String() string {
	switch t {
	case OpREG:
		return "REG"
	case OpMEM:
		return "MEM"
	case OpIMM:
		return "IMM"
	case OpIMMMEM:
		return "IMM_MEM"
	default:
		return fmt.Sprintf("OpType(%d)", int(t))
	}
}

// Register names an architectural register. Ordering matches spec.md's
// data model so that ordered range checks (e.g. "is this a general
// 32-bit register") stay cheap range comparisons.
type Register int

const (
	EAX Register = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI

	AX
	CX
	DX
	BX
	SP
	BP
	SI
	DI

	AL
	CL
	DL
	BL

	AH
	CH
	DH
	BH

	CS
	SS
	DS
	ES
	FS
	GS

	CR0Reg
	CR1Reg

	registerCount
)

var registerNames = [registerCount]string{
	EAX: "EAX", ECX: "ECX", EDX: "EDX", EBX: "EBX",
	ESP: "ESP", EBP: "EBP", ESI: "ESI", EDI: "EDI",
	AX: "AX", CX: "CX", DX: "DX", BX: "BX",
	SP: "SP", BP: "BP", SI: "SI", DI: "DI",
	AL: "AL", CL: "CL", DL: "DL", BL: "BL",
	AH: "AH", CH: "CH", DH: "DH", BH: "BH",
	CS: "CS", SS: "SS", DS: "DS", ES: "ES", FS: "FS", GS: "GS",
	CR0Reg: "CR0", CR1Reg: "CR1",
}

// RegisterName returns the architectural name of reg, or "?" if reg is
// out of range. Used by the change-monitor protocol line (§6 CHANGES).
func RegisterName(reg Register) string {
	if reg < 0 || reg >= registerCount {
		return "?"
	}
	return registerNames[reg]
}

func (r Register) String() string { return RegisterName(r) }

// AllRegisters returns every architectural register in declaration
// order, for callers that enumerate the whole register file (the
// single-step test harness looks registers up by name through it).
func AllRegisters() []Register {
	regs := make([]Register, 0, registerCount)
	for r := Register(0); r < registerCount; r++ {
		regs = append(regs, r)
	}
	return regs
}

// gpIndex returns the index into the 8-cell general-purpose bank that reg
// aliases, and ok=false if reg does not alias a general register.
func gpIndex(reg Register) (index int, ok bool) {
	switch {
	case reg >= EAX && reg <= EDI:
		return int(reg - EAX), true
	case reg >= AX && reg <= DI:
		return int(reg - AX), true
	case reg >= AL && reg <= BL:
		return int(reg - AL), true
	case reg >= AH && reg <= BH:
		return int(reg - AH), true
	default:
		return 0, false
	}
}

// nativeSize returns the OpSize a bare register identifier implies
// (before any instruction-level size override is applied).
func nativeSize(reg Register) OpSize {
	switch {
	case reg >= EAX && reg <= EDI:
		return SizeDW
	case reg >= AX && reg <= DI:
		return SizeW
	case reg >= AL && reg <= BH:
		return SizeB
	case reg >= CS && reg <= GS:
		return SizeW
	case reg == CR0Reg || reg == CR1Reg:
		return SizeDW
	default:
		return SizeUnknown
	}
}

func isHighByte(reg Register) bool { return reg >= AH && reg <= BH }
func isSegment(reg Register) bool  { return reg >= CS && reg <= GS }
func isControl(reg Register) bool  { return reg == CR0Reg || reg == CR1Reg }
