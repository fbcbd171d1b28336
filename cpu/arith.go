package cpu

// This file is the arithmetic opcode semantic table (spec.md §4.H's
// condensed table), grounded on
// original_source/src/CPU/CPU_arithmetic_instructions.cpp. Every
// routine receives the working InstData and the in-flight EFLAGS
// snapshot, and returns (ret, ret2, error); the engine performs
// writeback per the Inst's boolean flags.

func boolToU32(b bool) U32 {
	if b {
		return 1
	}
	return 0
}

// signedRange returns the representable signed range of size, used to
// detect IMUL/IMULX overflow.
func signedRange(size OpSize) (min, max int64) {
	w := uint(size.Bits())
	if w == 0 {
		w = 32
	}
	max = int64(1)<<(w-1) - 1
	min = -(int64(1) << (w - 1))
	return
}

func (e *Engine) dispatchArithmetic(op Opcode, inst *Inst, d *InstData, f *EFLAGS) (ret, ret2 U32, err error) {
	switch op {
	case AAA:
		al := d.Op1 & 0xFF
		if f.AF() || al&0xF >= 10 {
			ret = (d.Op1 + 0x106) & 0x0F0F
			f.SetAF(true)
			f.SetCF(true)
		} else {
			ret = d.Op1
			f.SetAF(false)
			f.SetCF(false)
		}
		return ret, 0, nil

	case AAD:
		al := d.Op1 & 0xFF
		ah := (d.Op1 >> 8) & 0xFF
		newAL := (ah*10 + al) & 0xFF
		f.updateSignFlag(newAL, SizeB)
		f.updateZeroFlag(newAL)
		f.updateParityFlag(newAL)
		return newAL, 0, nil

	case AAM:
		al := d.Op1 & 0xFF
		q, r := al/10, al%10
		ret = (q << 8) | r
		f.updateSignFlag(r, SizeB)
		f.updateZeroFlag(r)
		f.updateParityFlag(r)
		return ret, 0, nil

	case AAS:
		al := d.Op1 & 0xFF
		ah := (d.Op1 >> 8) & 0xFF
		if f.AF() || al&0xF > 9 {
			al = (al - 6) & 0xFF
			ah = (ah - 1) & 0xFF
			f.SetAF(true)
			f.SetCF(true)
		} else {
			f.SetAF(false)
			f.SetCF(false)
		}
		al &= 0x0F
		return (ah << 8) | al, 0, nil

	case ADC:
		sum, carryOut := add(d.Op1, d.Op2, f.CF(), d.OpSize)
		f.updateStatusFlags(d.Op1, d.Op2, sum, d.OpSize, carryOut, false)
		return sum, 0, nil

	case ADD:
		sum, carryOut := add(d.Op1, d.Op2, false, d.OpSize)
		f.updateStatusFlags(d.Op1, d.Op2, sum, d.OpSize, carryOut, false)
		return sum, 0, nil

	case AND:
		ret = bitwiseAnd(d.Op1, d.Op2, d.OpSize)
		f.SetOF(false)
		f.SetCF(false)
		f.updateSignFlag(ret, d.OpSize)
		f.updateZeroFlag(ret)
		f.updateParityFlag(ret)
		return ret, 0, nil

	case ARPL:
		rpl1, rpl2 := d.Op1&0b11, d.Op2&0b11
		if rpl1 < rpl2 {
			f.SetZF(true)
			return (d.Op1 &^ 0b11) | rpl2, 0, nil
		}
		f.SetZF(false)
		return d.Op1, 0, nil

	case BOUND:
		idx := toSigned(d.Op1, d.OpSize)
		lower := toSigned(d.Op2, d.OpSize)
		upper := toSigned(d.Op3, d.OpSize)
		if idx < lower || idx > upper {
			return 0, 0, BoundException(e.Regs.ReadEIP())
		}
		return d.Op1, 0, nil

	case BSF:
		idx, isZero := getFirstSetBitIndex(d.Op2)
		f.SetZF(isZero)
		if isZero {
			return 0, 0, nil
		}
		return U32(idx), 0, nil

	case BSR:
		idx, isZero := getLastSetBitIndex(d.Op2)
		f.SetZF(isZero)
		if isZero {
			return 0, 0, nil
		}
		return U32(idx), 0, nil

	case BT, BTC, BTR, BTS:
		if d.Op2 >= 32 && inst.Op1.Type == OpMEM {
			return 0, 0, &NotImplementedError{EIP: e.Regs.ReadEIP(), Detail: "bit index beyond 32 bits on a memory operand"}
		}
		bitIndex := d.Op2 & 31
		old := getBitAt(d.Op1, uint(bitIndex))
		f.SetCF(old)
		switch op {
		case BT:
			return d.Op1, 0, nil
		case BTC:
			if old {
				return d.Op1 &^ (1 << bitIndex), 0, nil
			}
			return d.Op1 | (1 << bitIndex), 0, nil
		case BTR:
			return d.Op1 &^ (1 << bitIndex), 0, nil
		default: // BTS
			return d.Op1 | (1 << bitIndex), 0, nil
		}

	case CBW:
		lower := SizeB
		if d.OpSize == SizeDW {
			lower = SizeW
		}
		return signExtend(d.Op1, lower) & d.OpSize.Mask(), 0, nil

	case CLC:
		f.SetCF(false)
		return 0, 0, nil
	case CLD:
		f.SetDF(false)
		return 0, 0, nil
	case CLI:
		f.SetIF(false)
		return 0, 0, nil
	case STC:
		f.SetCF(true)
		return 0, 0, nil
	case STD:
		f.SetDF(true)
		return 0, 0, nil
	case STI:
		f.SetIF(true)
		return 0, 0, nil
	case CMC:
		f.SetCF(!f.CF())
		return 0, 0, nil

	case CLTS:
		c := e.Regs.GetCR0()
		c.SetTS(false)
		e.Regs.SetCR0(c)
		return 0, 0, nil

	case CMP:
		diff, borrowOut := sub(d.Op1, d.Op2, false, d.OpSize)
		f.updateStatusFlags(d.Op1, d.Op2, diff, d.OpSize, borrowOut, true)
		return d.Op1, 0, nil

	case CWD:
		if checkIsNegative(d.Op1, d.OpSize) {
			return d.Op1, d.OpSize.Mask(), nil
		}
		return d.Op1, 0, nil

	case DAA:
		al := d.Op1 & 0xFF
		oldCF, oldAL := f.CF(), al
		newCF := false
		if al&0xF > 9 || f.AF() {
			newCF = oldCF || al > 0xFF-6
			al = (al + 6) & 0xFF
			f.SetAF(true)
		} else {
			f.SetAF(false)
		}
		if oldAL > 0x99 || oldCF {
			al = (al + 0x60) & 0xFF
			newCF = true
		}
		f.SetCF(newCF)
		f.updateSignFlag(al, SizeB)
		f.updateZeroFlag(al)
		f.updateParityFlag(al)
		return al, 0, nil

	case DAS:
		al := d.Op1 & 0xFF
		oldCF, oldAL := f.CF(), al
		newCF := false
		if al&0xF > 9 || f.AF() {
			newCF = oldCF || al < 6
			al = (al - 6) & 0xFF
			f.SetAF(true)
		} else {
			f.SetAF(false)
		}
		if oldAL > 0x99 || oldCF {
			al = (al - 0x60) & 0xFF
			newCF = true
		}
		f.SetCF(newCF)
		f.updateSignFlag(al, SizeB)
		f.updateZeroFlag(al)
		f.updateParityFlag(al)
		return al, 0, nil

	case DEC:
		diff, _ := sub(d.Op1, 1, false, d.OpSize)
		savedCF := f.CF()
		f.updateOverflowFlag(d.Op1, 1, diff, d.OpSize, true)
		f.updateAdjustFlag(d.Op1, 1, true)
		f.updateSignFlag(diff, d.OpSize)
		f.updateZeroFlag(diff)
		f.updateParityFlag(diff)
		f.SetCF(savedCF)
		return diff, 0, nil

	case INC:
		sum, _ := add(d.Op1, 1, false, d.OpSize)
		savedCF := f.CF()
		f.updateOverflowFlag(d.Op1, 1, sum, d.OpSize, false)
		f.updateAdjustFlag(d.Op1, 1, false)
		f.updateSignFlag(sum, d.OpSize)
		f.updateZeroFlag(sum)
		f.updateParityFlag(sum)
		f.SetCF(savedCF)
		return sum, 0, nil

	case DIV:
		q, r, divByZero := unsignedDivide(d.Op1, d.Op2, d.OpSize)
		if divByZero {
			return 0, 0, DivideErrorException(e.Regs.ReadEIP())
		}
		return q, r, nil

	case IDIV:
		q, r, divByZero := signedDivide(d.Op1, d.Op2, d.OpSize)
		if divByZero {
			return 0, 0, DivideErrorException(e.Regs.ReadEIP())
		}
		return q, r, nil

	case MUL:
		product, overflow := multiply(d.Op1, d.Op2, d.OpSize)
		f.SetCF(overflow)
		f.SetOF(overflow)
		return product, 0, nil

	case IMUL:
		wide := toSigned(d.Op1, d.OpSize) * toSigned(d.Op2, d.OpSize)
		mask := d.OpSize.Mask()
		ret = U32(wide) & mask
		min, max := signedRange(d.OpSize)
		overflow := wide < min || wide > max
		f.SetCF(overflow)
		f.SetOF(overflow)
		return ret, 0, nil

	case MULX:
		wide := multiplyWide(d.Op1&d.OpSize.Mask(), d.Op2&d.OpSize.Mask())
		ret, ret2 = U32(wide), U32(wide>>32)
		overflow := ret2 != 0
		f.SetCF(overflow)
		f.SetOF(overflow)
		return ret, ret2, nil

	case IMULX:
		wide := toSigned(d.Op1, d.OpSize) * toSigned(d.Op2, d.OpSize)
		ret, ret2 = U32(wide), U32(wide>>32)
		overflow := wide != int64(int32(ret))
		f.SetCF(overflow)
		f.SetOF(overflow)
		return ret, ret2, nil

	case LAHF:
		return f.Value() & 0xFF, 0, nil

	case SAHF:
		f.SetValue((f.Value() &^ 0xFF) | (d.Op1 & 0xFF))
		return 0, 0, nil

	case LEA:
		return d.Address, 0, nil

	case MOV:
		return d.Op2, 0, nil

	case MOVSX:
		return signExtend(d.Op2, d.Op2Size) & d.OpSize.Mask(), 0, nil

	case MOVZX:
		return d.Op2 & d.Op2Size.Mask(), 0, nil

	case NEG:
		ret = negate(d.Op1, d.OpSize)
		f.SetCF(d.Op1 != 0)
		f.SetOF(false)
		f.updateSignFlag(ret, d.OpSize)
		f.updateZeroFlag(ret)
		f.updateParityFlag(ret)
		return ret, 0, nil

	case NOT:
		return bitwiseNot(d.Op1, d.OpSize), 0, nil

	case NOP:
		return 0, 0, nil

	case OR:
		ret = bitwiseOr(d.Op1, d.Op2, d.OpSize)
		f.SetOF(false)
		f.SetCF(false)
		f.updateSignFlag(ret, d.OpSize)
		f.updateZeroFlag(ret)
		f.updateParityFlag(ret)
		return ret, 0, nil

	case XOR:
		ret = bitwiseXor(d.Op1, d.Op2, d.OpSize)
		f.SetOF(false)
		f.SetCF(false)
		f.updateSignFlag(ret, d.OpSize)
		f.updateZeroFlag(ret)
		f.updateParityFlag(ret)
		return ret, 0, nil

	case ROT:
		return e.execROT(d, f)

	case SHFT:
		return e.execSHFT(d, f)

	case SHD:
		return e.execSHD(d, f)

	case SBB:
		op2ext := signExtend(d.Op2, d.Op2Size) & d.OpSize.Mask()
		diff, borrowOut := sub(d.Op1, op2ext, f.CF(), d.OpSize)
		f.updateStatusFlags(d.Op1, op2ext, diff, d.OpSize, borrowOut, true)
		return diff, 0, nil

	case SETCC:
		if evalCondition(d.Imm&0xF, f) {
			return 1, 0, nil
		}
		return 0, 0, nil

	case SUB:
		op2ext := signExtend(d.Op2, d.Op2Size) & d.OpSize.Mask()
		diff, borrowOut := sub(d.Op1, op2ext, false, d.OpSize)
		f.updateStatusFlags(d.Op1, op2ext, diff, d.OpSize, borrowOut, true)
		return diff, 0, nil

	case TEST:
		result := bitwiseAnd(d.Op1, d.Op2, d.OpSize)
		f.SetOF(false)
		f.SetCF(false)
		f.updateSignFlag(result, d.OpSize)
		f.updateZeroFlag(result)
		f.updateParityFlag(result)
		return d.Op1, 0, nil

	case XCHG:
		return d.Op2, d.Op1, nil

	case XLAT:
		return d.Op1, 0, nil

	default:
		return 0, 0, &UnknownInstructionError{EIP: e.Regs.ReadEIP(), Opcode: U8(op)}
	}
}

// rotShiftFields unpacks the shared {count:5, use_imm:1, op_a:1, op_b:1}
// bitfield layout ROT and SHFT both use (spec.md §4.H, §9 "compound
// opcodes"): bits 0-4 count, bit 5 use_imm, bit 6 left/direction, bit 7
// the opcode-specific third flag (with_carry for ROT, keep_sign for
// SHFT).
func rotShiftFields(bitfield U32) (count uint, useImm, left, thirdFlag bool) {
	count = uint(bitfield & 0x1F)
	useImm = bitfield&(1<<5) != 0
	left = bitfield&(1<<6) != 0
	thirdFlag = bitfield&(1<<7) != 0
	return
}

func (e *Engine) execROT(d *InstData, f *EFLAGS) (ret, ret2 U32, err error) {
	count, useImm, left, withCarry := rotShiftFields(d.Op3)
	if !useImm {
		count = uint(d.Op2 & 0xFF)
	}
	w := uint(d.OpSize.Bits())
	var result U32
	var newCF bool
	if withCarry {
		if left {
			result, newCF = rotateLeftCarry(d.Op1, count, d.OpSize, f.CF())
		} else {
			result, newCF = rotateRightCarry(d.Op1, count, d.OpSize, f.CF())
		}
	} else {
		if left {
			result = rotateLeft(d.Op1, count, d.OpSize)
			if count > 0 {
				newCF = getBitAt(result, 0)
			} else {
				newCF = f.CF()
			}
		} else {
			result = rotateRight(d.Op1, count, d.OpSize)
			if count > 0 {
				newCF = getBitAt(result, w-1)
			} else {
				newCF = f.CF()
			}
		}
	}
	f.SetCF(newCF)
	if count == 1 {
		top := getBitAt(result, w-1)
		second := getBitAt(result, w-2)
		f.SetOF(top != second)
	}
	return result, 0, nil
}

func (e *Engine) execSHFT(d *InstData, f *EFLAGS) (ret, ret2 U32, err error) {
	count, useImm, left, keepSign := rotShiftFields(d.Op3)
	if !useImm {
		count = uint(d.Op2 & 0xFF)
	}
	w := uint(d.OpSize.Bits())
	var result U32
	var carryOut bool
	if left {
		result, carryOut = shiftLeft(d.Op1, count, d.OpSize)
	} else {
		result, carryOut = shiftRight(d.Op1, count, d.OpSize, keepSign)
	}
	if count > 0 {
		f.SetCF(carryOut)
		f.updateSignFlag(result, d.OpSize)
		f.updateZeroFlag(result)
		f.updateParityFlag(result)
		if count == 1 {
			switch {
			case left:
				f.SetOF(getBitAt(result, w-1) != carryOut)
			case !keepSign:
				f.SetOF(getBitAt(d.Op1, w-1) != getBitAt(result, w-1))
			default:
				f.SetOF(false)
			}
		}
	}
	return result, 0, nil
}

func (e *Engine) execSHD(d *InstData, f *EFLAGS) (ret, ret2 U32, err error) {
	bitfield := d.Op3
	count := uint(bitfield & 0x1F)
	left := bitfield&(1<<5) != 0
	w := uint(d.OpSize.Bits())
	var result U32
	var carryOut bool
	if count > 0 && count <= w {
		if left {
			combined := (U64(d.Op1) << w) | U64(d.Op2)
			shifted := combined << count
			result = U32(shifted>>w) & d.OpSize.Mask()
			carryOut = (combined>>(2*w-count))&1 != 0
		} else {
			combined := (U64(d.Op2) << w) | U64(d.Op1)
			shifted := combined >> count
			result = U32(shifted) & d.OpSize.Mask()
			carryOut = (combined>>(count-1))&1 != 0
		}
	} else {
		result = d.Op1
	}
	f.SetCF(carryOut)
	f.updateSignFlag(result, d.OpSize)
	f.updateZeroFlag(result)
	f.updateParityFlag(result)
	return result, 0, nil
}

// evalCondition implements the 16 SETcc/Jcc condition codes (spec.md
// §4.H's condition-code table).
func evalCondition(cc U32, f *EFLAGS) bool {
	switch cc {
	case 0x0:
		return f.OF()
	case 0x1:
		return !f.OF()
	case 0x2:
		return f.CF()
	case 0x3:
		return !f.CF()
	case 0x4:
		return f.ZF()
	case 0x5:
		return !f.ZF()
	case 0x6:
		return f.ZF() || f.CF()
	case 0x7:
		return !f.ZF() && !f.CF()
	case 0x8:
		return f.SF()
	case 0x9:
		return !f.SF()
	case 0xA:
		return f.PF()
	case 0xB:
		return !f.PF()
	case 0xC:
		return f.SF() != f.OF()
	case 0xD:
		return f.SF() == f.OF()
	case 0xE:
		return f.ZF() || (f.SF() != f.OF())
	case 0xF:
		return !f.ZF() && (f.SF() == f.OF())
	default:
		return false
	}
}
