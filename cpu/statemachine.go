package cpu

// State-machine opcodes (spec.md §4.H step 6's second dispatch bucket,
// glossary "State-machine instruction"): ENTER/LEAVE/PUSHA/POPA and the
// control-flow/loop class. Unlike the arithmetic and single-cycle
// non-arithmetic buckets, these rewrite EIP themselves instead of
// letting the engine auto-advance it by one.
func (e *Engine) dispatchStateMachine(op Opcode, inst *Inst, d *InstData, f *EFLAGS) error {
	eip := e.Regs.ReadEIP()
	switch op {
	case ENTER:
		frameSize := d.Op1
		nestingLevel := d.Op2 & 0x1F
		if err := e.push(e.Regs.Read(EBP), SizeDW); err != nil {
			return err
		}
		frameTemp := e.Regs.Read(ESP)
		for i := U32(1); nestingLevel > 0 && i < nestingLevel; i++ {
			newEBP := subNoCarry(e.Regs.Read(EBP), 4, SizeDW)
			e.Regs.Write(EBP, newEBP)
			v, err := e.Mem.Read(newEBP, SizeDW)
			if err != nil {
				return err
			}
			if err := e.push(v, SizeDW); err != nil {
				return err
			}
		}
		if nestingLevel > 0 {
			if err := e.push(frameTemp, SizeDW); err != nil {
				return err
			}
		}
		e.Regs.Write(EBP, frameTemp)
		e.Regs.Write(ESP, subNoCarry(e.Regs.Read(ESP), frameSize, SizeDW))
		e.Regs.WriteEIP(eip + 1)
		return nil

	case LEAVE:
		e.Regs.Write(ESP, e.Regs.Read(EBP))
		v, err := e.pop(SizeDW)
		if err != nil {
			return err
		}
		e.Regs.Write(EBP, v)
		e.Regs.WriteEIP(eip + 1)
		return nil

	case PUSHA:
		saved := e.Regs.Read(ESP)
		order := []Register{EAX, ECX, EDX, EBX}
		for _, r := range order {
			if err := e.push(e.Regs.Read(r), SizeDW); err != nil {
				return err
			}
		}
		if err := e.push(saved, SizeDW); err != nil {
			return err
		}
		for _, r := range []Register{EBP, ESI, EDI} {
			if err := e.push(e.Regs.Read(r), SizeDW); err != nil {
				return err
			}
		}
		e.Regs.WriteEIP(eip + 1)
		return nil

	case POPA:
		order := []Register{EDI, ESI, EBP, ESP /* skipped */, EBX, EDX, ECX, EAX}
		for _, r := range order {
			v, err := e.pop(SizeDW)
			if err != nil {
				return err
			}
			if r == ESP {
				continue
			}
			e.Regs.Write(r, v)
		}
		e.Regs.WriteEIP(eip + 1)
		return nil

	case JMPCC:
		if evalCondition(d.Imm&0xF, f) {
			e.Regs.WriteEIP(d.Address)
		} else {
			e.Regs.WriteEIP(eip + 1)
		}
		return nil

	case CALL:
		if err := e.push(eip+1, SizeDW); err != nil {
			return err
		}
		e.Regs.WriteEIP(d.Address)
		return nil

	case RET:
		v, err := e.pop(SizeDW)
		if err != nil {
			return err
		}
		e.Regs.WriteEIP(v)
		return nil

	case LOOPCC:
		count := subNoCarry(e.Regs.Read(ECX), 1, SizeDW)
		e.Regs.Write(ECX, count)
		cc := d.Imm & 0xF
		take := count != 0
		switch cc {
		case 1:
			take = take && f.ZF()
		case 2:
			take = take && !f.ZF()
		}
		if take {
			e.Regs.WriteEIP(d.Address)
		} else {
			e.Regs.WriteEIP(eip + 1)
		}
		return nil

	default:
		return &UnknownInstructionError{EIP: eip, Opcode: U8(op)}
	}
}
