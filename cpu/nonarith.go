package cpu

// Single-cycle non-arithmetic opcodes (spec.md §4.H step 6's third
// dispatch bucket): HLT, IN/OUT, PUSH/POP, and the LGDT/LIDT/INT/IRET
// family. None of these rewrite EIP themselves — like the arithmetic
// class, the engine advances EIP by one after dispatch.
func (e *Engine) dispatchNonArithmetic(op Opcode, inst *Inst, d *InstData) (ret, ret2 U32, err error) {
	switch op {
	case HLT:
		e.Halted = true
		return 0, 0, nil

	case IN:
		v, err := e.IO.Read(d.Op2, d.OpSize)
		if err != nil {
			return 0, 0, err
		}
		return v, 0, nil

	case OUT:
		if err := e.IO.Write(d.Op1, d.Op2, d.OpSize); err != nil {
			return 0, 0, err
		}
		return 0, 0, nil

	case PUSH:
		size := d.OpSize
		if size == SizeUnknown {
			size = e.lastOperandSize
		}
		if size == SizeB {
			return 0, 0, &BadInstructionError{EIP: e.Regs.ReadEIP(), Reason: "bad operand size for push"}
		}
		if err := e.push(d.Op1, size); err != nil {
			return 0, 0, err
		}
		e.lastOperandSize = size
		return 0, 0, nil

	case POP:
		size := d.OpSize
		if size == SizeUnknown {
			size = e.lastOperandSize
		}
		v, err := e.pop(size)
		if err != nil {
			return 0, 0, err
		}
		e.lastOperandSize = size
		return v, 0, nil

	case LGDT, LIDT:
		return 0, 0, &NotImplementedError{EIP: e.Regs.ReadEIP(), Detail: "descriptor table loads are not modeled"}

	case INT:
		vector := U8(d.Imm)
		return 0, 0, e.Interrupt(vector, 0, false)

	case IRET:
		return 0, 0, &NotImplementedError{EIP: e.Regs.ReadEIP(), Detail: "IRET state restore is not modeled"}

	default:
		return 0, 0, &UnknownInstructionError{EIP: e.Regs.ReadEIP(), Opcode: U8(op)}
	}
}
