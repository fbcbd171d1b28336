package cpu

import "fmt"

// This file is the exception taxonomy (component J): structured failure
// values, not ad-hoc strings, so that the comparator CLI and tests can
// branch on *kind* rather than parse an error string. Grounded on
// original_source/src/CPU/CPU.h's throw_NYI/throw_exception helpers and
// the named Interrupt vectors in original_source/src/CPU/interrupts.h.

// BadInstructionError reports an internally inconsistent Inst record
// (e.g. compute_address set with no MEM operand, an unknown operand
// size, a bad push/pop size).
type BadInstructionError struct {
	EIP    U32
	Reason string
}

func (e *BadInstructionError) Error() string {
	return fmt.Sprintf("bad instruction at EIP=%#x: %s", e.EIP, e.Reason)
}

// UnknownInstructionError reports an opcode byte outside the dispatch
// table.
type UnknownInstructionError struct {
	EIP    U32
	Opcode U8
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unknown instruction at EIP=%#x: opcode %#x", e.EIP, e.Opcode)
}

// NotImplementedError reports a recognized opcode whose behavior is
// intentionally stubbed (e.g. BT/BTC/BTR/BTS on a memory bit index >= 32,
// or the interrupt fault/trap/abort save-resume path).
type NotImplementedError struct {
	EIP    U32
	Detail string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("not implemented at EIP=%#x: %s", e.EIP, e.Detail)
}

// Interrupt names a vector in the interrupt descriptor table, mirroring
// original_source/src/CPU/interrupts.h's named constants.
type Interrupt struct {
	Vector   U8
	Mnemonic string
}

var (
	DivideError      = Interrupt{0, "DE"}
	DebugException   = Interrupt{1, "DB"}
	NMI              = Interrupt{2, "NMI"}
	Breakpoint       = Interrupt{3, "BP"}
	OverflowVector   = Interrupt{4, "OF"}
	BoundRangeVector = Interrupt{5, "BR"}
	InvalidOpcode    = Interrupt{6, "UD"}
	DeviceNotAvail   = Interrupt{7, "NM"}
	DoubleFault      = Interrupt{8, "DF"}
	InvalidTSS       = Interrupt{10, "TS"}
	SegmentNotPres   = Interrupt{11, "NP"}
	StackFault       = Interrupt{12, "SS"}
	GeneralProtection = Interrupt{13, "GP"}
	PageFault        = Interrupt{14, "PF"}
	AlignmentCheck   = Interrupt{17, "AC"}
)

// ProcessorException is a modeled x86 fault raised by a semantic
// routine — conceptually equivalent to a CPU fault delivered through
// the IDT.
type ProcessorException struct {
	EIP       U32
	Interrupt Interrupt
	ErrorCode U32
	HasCode   bool
}

func (e *ProcessorException) Error() string {
	if e.HasCode {
		return fmt.Sprintf("processor exception %s (vector %d) at EIP=%#x, error code %#x",
			e.Interrupt.Mnemonic, e.Interrupt.Vector, e.EIP, e.ErrorCode)
	}
	return fmt.Sprintf("processor exception %s (vector %d) at EIP=%#x",
		e.Interrupt.Mnemonic, e.Interrupt.Vector, e.EIP)
}

// DivideErrorException, BoundException and OverflowException are the
// named specializations spec.md §7 calls out explicitly.
func DivideErrorException(eip U32) *ProcessorException {
	return &ProcessorException{EIP: eip, Interrupt: DivideError}
}

func BoundException(eip U32) *ProcessorException {
	return &ProcessorException{EIP: eip, Interrupt: BoundRangeVector}
}

func OverflowException(eip U32) *ProcessorException {
	return &ProcessorException{EIP: eip, Interrupt: OverflowVector}
}

// RegisterException reports an invalid register id or size used with
// the register file.
type RegisterException struct {
	Register Register
	Size     OpSize
	Reason   string
}

func (e *RegisterException) Error() string {
	return fmt.Sprintf("register exception on %s at size %s: %s", RegisterName(e.Register), e.Size, e.Reason)
}

// MemoryException reports a read/write out of bounds, a write to
// ROM/text, or a bad alignment.
type MemoryException struct {
	Address U32
	Size    OpSize
	Reason  string
}

func (e *MemoryException) Error() string {
	return fmt.Sprintf("memory exception at %#x (size %s): %s", e.Address, e.Size, e.Reason)
}

// MaxCyclesStop is not an error in the failure-taxonomy sense — it is
// the clean, distinct "ran out of budget" sentinel spec.md §7 requires
// be reported as ERROR MAX_CYCLES rather than treated as a fault.
type MaxCyclesStop struct {
	CycleCount U64
}

func (e *MaxCyclesStop) Error() string {
	return fmt.Sprintf("max cycles reached: %d", e.CycleCount)
}
