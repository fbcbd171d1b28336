package cpu

// Engine is the execution engine (component H): it owns the register
// file, memory, I/O ports and IDT exclusively, and drives the
// fetch/resolve/dispatch/writeback loop described in spec.md §4.H.
type Engine struct {
	Regs *Registers
	Mem  *Memory
	IO   *IOPorts
	IDT  *InterruptDescriptorTable
	Log  *Logger

	Monitor ChangeMonitor

	MaxCycles       U64
	ClockCycleCount U64
	Halted          bool

	// lastOperandSize implements the push/pop default-size coupling
	// spec.md §9 calls out: when the PUSH/POP opcodes see an unknown
	// operand size, they fall back to the size used by the instruction
	// most recently executed — made an explicit field here rather than
	// an implicit read of "whatever the last instruction happened to
	// leave behind".
	lastOperandSize OpSize
}

// NewEngine builds an Engine over an already-populated Memory. Call
// Startup before Run.
func NewEngine(mem *Memory, maxCycles U64) *Engine {
	return &Engine{
		Regs:      NewRegisters(),
		Mem:       mem,
		IO:        &IOPorts{},
		IDT:       NewInterruptDescriptorTable(),
		MaxCycles: maxCycles,
	}
}

// SetMonitor wires a ChangeMonitor into the engine and the components
// whose writes it observes.
func (e *Engine) SetMonitor(m ChangeMonitor) {
	e.Monitor = m
	e.Regs.Monitor = m
	e.Mem.Monitor = m
}

// Startup resets architectural state to the values spec.md §4.H names:
// zeroed registers, default EFLAGS, protected mode enabled, ESP at the
// top of the stack region, EIP at the start of the text region.
func (e *Engine) Startup() {
	e.Regs.CompleteReset()
	cr0 := e.Regs.GetCR0()
	cr0.SetPE(true)
	e.Regs.SetCR0(cr0)
	e.Regs.Write(ESP, e.Mem.StackEnd())
	e.Regs.WriteEIP(e.Mem.TextPos())
	e.Halted = false
	e.ClockCycleCount = 0
	e.lastOperandSize = SizeDW
}

// Run drives the single-threaded cooperative loop (spec.md §5): one
// new_clock_cycle per executed instruction, strictly sequential, no
// suspension points. It returns nil only if HLT halts the engine;
// *MaxCyclesStop on budget exhaustion (a clean stop, not a fault); or
// whatever structured failure a semantic routine raised.
func (e *Engine) Run() error {
	for !e.Halted {
		e.ClockCycleCount++
		if e.Monitor != nil {
			e.Monitor.NewClockCycle()
		}
		eip := e.Regs.ReadEIP()
		inst, err := e.Mem.FetchInstruction(eip)
		if err != nil {
			return err
		}
		e.Log.Debugf("cycle %d: EIP=%#x opcode=%#x", e.ClockCycleCount, eip, inst.Opcode)
		if err := e.ExecuteInstruction(&inst); err != nil {
			return err
		}
		if e.MaxCycles > 0 && e.ClockCycleCount >= e.MaxCycles {
			return &MaxCyclesStop{CycleCount: e.ClockCycleCount}
		}
	}
	return nil
}

// resolveOperandSize picks the width fetchOperand/writeOperand use for
// a register operand: segment registers are forced to W, control
// registers to DW, everything else uses the instruction's resolved
// operand size (spec.md §4.H step 3).
func resolveOperandSize(reg Register, operandSize OpSize) OpSize {
	switch {
	case isSegment(reg):
		return SizeW
	case isControl(reg):
		return SizeDW
	default:
		return operandSize
	}
}

func (e *Engine) fetchOperand(op Operand, opSize OpSize, inst *Inst, address U32) (U32, OpSize, error) {
	switch op.Type {
	case OpREG:
		size := resolveOperandSize(op.Reg, opSize)
		return e.Regs.ReadSized(op.Reg, size), size, nil
	case OpMEM:
		v, err := e.Mem.Read(address, opSize)
		return v, opSize, err
	case OpIMM:
		return inst.ImmediateValue, opSize, nil
	case OpIMMMEM:
		return inst.AddressValue, opSize, nil
	default:
		return 0, opSize, &BadInstructionError{EIP: e.Regs.ReadEIP(), Reason: "unknown operand type"}
	}
}

func (e *Engine) writeOperand(op Operand, value U32, size OpSize, address U32) error {
	switch op.Type {
	case OpREG:
		e.Regs.WriteSized(op.Reg, value, size)
		return nil
	case OpMEM:
		return e.Mem.Write(address, value, size)
	default:
		return &BadInstructionError{EIP: e.Regs.ReadEIP(), Reason: "cannot write to a non-addressable operand"}
	}
}

// computeEffectiveAddress implements spec.md §4.H's formula:
// displacement + base_register + (scaled_register << scale), mod 2^32.
func (e *Engine) computeEffectiveAddress(inst *Inst) U32 {
	address := inst.AddressValue
	if inst.BaseRegPresent {
		base := e.Regs.ReadIndex(inst.BaseRegIndex(), SizeDW, false)
		address = addNoCarry(address, base, SizeDW)
	}
	if inst.ScaledRegPresent {
		scaled := e.Regs.ReadIndex(int(inst.ScaledReg), SizeDW, false)
		shifted := scaled << inst.ScaleShift()
		address = addNoCarry(address, shifted, SizeDW)
	}
	return address
}

// push decrements ESP by size (DW or W only — B is a bad-instruction
// error per spec.md §4.H) and writes value at the new ESP.
func (e *Engine) push(value U32, size OpSize) error {
	if size != SizeDW && size != SizeW {
		return &BadInstructionError{EIP: e.Regs.ReadEIP(), Reason: "bad operand size for push"}
	}
	n := U32(size.Bits() / 8)
	newESP := subNoCarry(e.Regs.Read(ESP), n, SizeDW)
	e.Regs.Write(ESP, newESP)
	return e.Mem.Write(newESP, value, size)
}

// pop reads size bytes from the current ESP, then increments it.
func (e *Engine) pop(size OpSize) (U32, error) {
	if size != SizeDW && size != SizeW {
		return 0, &BadInstructionError{EIP: e.Regs.ReadEIP(), Reason: "bad operand size for pop"}
	}
	esp := e.Regs.Read(ESP)
	v, err := e.Mem.Read(esp, size)
	if err != nil {
		return 0, err
	}
	n := U32(size.Bits() / 8)
	e.Regs.Write(ESP, addNoCarry(esp, n, SizeDW))
	return v, nil
}

// Interrupt is the stubbed routine spec.md §4.F describes: it bounds-
// checks the vector, and on a missing descriptor recursively raises
// GeneralProtection with a properly encoded error code. The full
// fault/trap/abort save-and-resume is intentionally unimplemented.
func (e *Engine) Interrupt(vector U8, errorCode U32, external bool) error {
	eip := e.Regs.ReadEIP()
	if U32(vector) >= e.IDT.Limit {
		return &MemoryException{Address: U32(vector), Reason: "interrupt vector exceeds IDT limit"}
	}
	desc, present := e.IDT.GetDescriptor(vector)
	if !present || !desc.Present {
		code := interruptErrorCode(GeneralProtection.Vector, external)
		return &ProcessorException{EIP: eip, Interrupt: GeneralProtection, ErrorCode: code, HasCode: true}
	}
	return &NotImplementedError{EIP: eip, Detail: "fault/trap/abort save-and-resume is not modeled"}
}

// ExecuteInstruction runs exactly one decoded instruction: operand
// resolution, dispatch, writeback, and EIP advance (spec.md §4.H).
func (e *Engine) ExecuteInstruction(inst *Inst) error {
	eip := e.Regs.ReadEIP()

	var opSize OpSize
	switch {
	case inst.OperandByteSizeOverride:
		opSize = SizeB
	case inst.OperandSizeOverride:
		opSize = SizeW
	default:
		opSize = SizeDW
	}
	e.lastOperandSize = opSize

	var d InstData
	d.OpSize = opSize

	if inst.ComputeAddress {
		d.Address = e.computeEffectiveAddress(inst)
	} else {
		d.Address = inst.AddressValue
	}

	if inst.Op1.Read {
		v, sz, err := e.fetchOperand(inst.Op1, opSize, inst, d.Address)
		if err != nil {
			return err
		}
		d.Op1, d.Op1Size = v, sz
	}
	if inst.Op2.Read {
		v, sz, err := e.fetchOperand(inst.Op2, opSize, inst, d.Address)
		if err != nil {
			return err
		}
		d.Op2, d.Op2Size = v, sz
	}
	d.Op3 = inst.Imm3
	d.Imm = inst.ImmediateValue

	flagsLocal := e.Regs.Flags

	var ret, ret2 U32
	var err error
	stateMachine := false

	switch inst.Opcode.Class() {
	case classArithmetic:
		ret, ret2, err = e.dispatchArithmetic(inst.Opcode, inst, &d, &flagsLocal)
	case classStateMachine:
		err = e.dispatchStateMachine(inst.Opcode, inst, &d, &flagsLocal)
		stateMachine = true
	default:
		ret, ret2, err = e.dispatchNonArithmetic(inst.Opcode, inst, &d)
	}
	if err != nil {
		return err
	}

	if inst.GetFlags {
		e.Regs.Flags = flagsLocal
	}

	if inst.WriteRet1ToOp1 {
		if err := e.writeOperand(inst.Op1, ret, d.Op1Size, d.Address); err != nil {
			return err
		}
	}
	if inst.WriteRet2ToRegister {
		size := SizeDW
		if inst.ScaleOutputOverride {
			size = d.Op1Size
		}
		e.Regs.WriteSized(inst.RegisterOut, ret2, size)
	} else if inst.WriteRet2ToOp2 {
		if err := e.writeOperand(inst.Op2, ret2, d.Op2Size, d.Address); err != nil {
			return err
		}
	}

	if !stateMachine {
		e.Regs.WriteEIP(eip + 1)
	}
	return nil
}
