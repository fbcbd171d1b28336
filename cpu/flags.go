package cpu

// EFLAGS bit positions (spec.md §3).
const (
	flagCF   = 0
	flagRsv1 = 1
	flagPF   = 2
	flagAF   = 4
	flagZF   = 6
	flagSF   = 7
	flagTF   = 8
	flagIF   = 9
	flagDF   = 10
	flagOF   = 11
	flagIOPL = 12 // two bits, 12-13
	flagNT   = 14
	flagRF   = 16
	flagVM   = 17
	flagAC   = 18
	flagVIF  = 19
	flagVIP  = 20
	flagID   = 21
)

// DefaultEFLAGS is the architectural reset value: only the reserved bit
// 1 is set.
const DefaultEFLAGS U32 = 0b10

// reservedClearMask covers bits the hardware defines as always zero in
// this subset (3, 5, 15, 22-31) — checked by the invariant in spec.md §8.
const reservedClearMask U32 = (1 << 3) | (1 << 5) | (1 << 15) | (0x3FF << 22)

// parityTable[b] is true when byte b has an even number of set bits.
// Precomputed once at init, the idiom this module borrows from
// oisee-z80-optimizer/pkg/cpu/flags.go's lookup-table construction.
var parityTable [256]bool

func init() {
	for i := 0; i < 256; i++ {
		v := i
		count := 0
		for v != 0 {
			count += v & 1
			v >>= 1
		}
		parityTable[i] = count%2 == 0
	}
}

// EFLAGS is the 32-bit processor status/control flags cell (component B).
type EFLAGS struct {
	value U32
}

// Reset sets the cell to its architectural default.
func (f *EFLAGS) Reset() { f.value = DefaultEFLAGS }

// Value returns the raw 32-bit cell.
func (f *EFLAGS) Value() U32 { return f.value }

// SetValue overwrites the raw cell, forcing the always-one reserved bit.
func (f *EFLAGS) SetValue(v U32) { f.value = (v | (1 << flagRsv1)) &^ reservedClearMask }

func (f *EFLAGS) getBit(pos uint) bool { return f.value&(1<<pos) != 0 }

func (f *EFLAGS) setBit(pos uint, on bool) {
	if on {
		f.value |= 1 << pos
	} else {
		f.value &^= 1 << pos
	}
	f.value |= 1 << flagRsv1
}

func (f *EFLAGS) CF() bool  { return f.getBit(flagCF) }
func (f *EFLAGS) PF() bool  { return f.getBit(flagPF) }
func (f *EFLAGS) AF() bool  { return f.getBit(flagAF) }
func (f *EFLAGS) ZF() bool  { return f.getBit(flagZF) }
func (f *EFLAGS) SF() bool  { return f.getBit(flagSF) }
func (f *EFLAGS) TF() bool  { return f.getBit(flagTF) }
func (f *EFLAGS) IF() bool  { return f.getBit(flagIF) }
func (f *EFLAGS) DF() bool  { return f.getBit(flagDF) }
func (f *EFLAGS) OF() bool  { return f.getBit(flagOF) }
func (f *EFLAGS) NT() bool  { return f.getBit(flagNT) }

func (f *EFLAGS) SetCF(v bool) { f.setBit(flagCF, v) }
func (f *EFLAGS) SetPF(v bool) { f.setBit(flagPF, v) }
func (f *EFLAGS) SetAF(v bool) { f.setBit(flagAF, v) }
func (f *EFLAGS) SetZF(v bool) { f.setBit(flagZF, v) }
func (f *EFLAGS) SetSF(v bool) { f.setBit(flagSF, v) }
func (f *EFLAGS) SetTF(v bool) { f.setBit(flagTF, v) }
func (f *EFLAGS) SetIF(v bool) { f.setBit(flagIF, v) }
func (f *EFLAGS) SetDF(v bool) { f.setBit(flagDF, v) }
func (f *EFLAGS) SetOF(v bool) { f.setBit(flagOF, v) }
func (f *EFLAGS) SetNT(v bool) { f.setBit(flagNT, v) }

// IOPL reads the two-bit I/O privilege level field.
func (f *EFLAGS) IOPL() U32 { return (f.value >> flagIOPL) & 0b11 }

// String renders the set status flags mnemonically, in the order
// original_source/src/CPU/registers.cpp's EFLAGS::print uses. The
// comparator CLI does not call it; its REG lines print register names.
func (f *EFLAGS) String() string {
	var set []string
	for _, b := range []struct {
		name string
		on   bool
	}{
		{"CF", f.CF()}, {"PF", f.PF()}, {"AF", f.AF()}, {"ZF", f.ZF()},
		{"SF", f.SF()}, {"TF", f.TF()}, {"IF", f.IF()}, {"DF", f.DF()},
		{"OF", f.OF()}, {"NT", f.NT()},
	} {
		if b.on {
			set = append(set, b.name)
		}
	}
	if len(set) == 0 {
		return "-"
	}
	out := set[0]
	for _, s := range set[1:] {
		out += " " + s
	}
	return out
}

// updateSignFlag sets SF to the top bit of result within size.
func (f *EFLAGS) updateSignFlag(result U32, size OpSize) {
	f.SetSF(checkIsNegative(result, size))
}

// updateZeroFlag sets ZF to (result == 0).
func (f *EFLAGS) updateZeroFlag(result U32) {
	f.SetZF(checkEqualZero(result))
}

// updateParityFlag sets PF to the parity of the low byte of result.
func (f *EFLAGS) updateParityFlag(result U32) {
	f.SetPF(checkParity(result))
}

// updateCarryFlag sets CF to the caller-supplied carry/borrow-out. For
// a plain op1-op2 (no borrow-in) this is exactly "op1 < op2 unsigned"
// per spec.md §4.B; callers that fold in a borrow-in (SBB) pass the
// combined borrow-out from sub(), which subsumes that simpler rule.
func (f *EFLAGS) updateCarryFlag(carryOut bool) {
	f.SetCF(carryOut)
}

// updateOverflowFlag implements spec.md §4.B's exact formula:
// OF ← ¬(sign(op1) ⊕ sign(op2_effective)) ∧ (sign(result) ⊕ sign(op1)),
// where op2_effective is op2 negated for subtraction.
func (f *EFLAGS) updateOverflowFlag(op1, op2, result U32, size OpSize, isSub bool) {
	s1 := checkIsNegative(op1, size)
	op2eff := op2
	if isSub {
		op2eff = negate(op2, size)
	}
	s2 := checkIsNegative(op2eff, size)
	sr := checkIsNegative(result, size)
	f.SetOF(!(s1 != s2) && (sr != s1))
}

// updateAdjustFlag sets AF when the low-nibble operation produced a
// borrow/carry into bit 4.
func (f *EFLAGS) updateAdjustFlag(op1, op2 U32, isSub bool) {
	n1, n2 := op1&0xF, op2&0xF
	if isSub {
		f.SetAF(n1 < n2)
	} else {
		f.SetAF(n1+n2 > 0xF)
	}
}

// updateStatusFlags applies all six derivations in one call — the
// "full status" update most arithmetic opcodes request.
func (f *EFLAGS) updateStatusFlags(op1, op2, result U32, size OpSize, carryOut bool, isSub bool) {
	f.updateCarryFlag(carryOut)
	f.updateOverflowFlag(op1, op2, result, size, isSub)
	f.updateAdjustFlag(op1, op2, isSub)
	f.updateSignFlag(result, size)
	f.updateZeroFlag(result)
	f.updateParityFlag(result)
}

// CR0 bit positions (spec.md §3).
const (
	cr0PE = 0
	cr0MP = 1
	cr0EM = 2
	cr0TS = 3
	cr0ET = 4
	cr0PG = 31
)

// CR0Flags is the subset of control-register 0 this engine models.
type CR0Flags struct {
	value U32
}

func (c *CR0Flags) Value() U32     { return c.value }
func (c *CR0Flags) SetValue(v U32) { c.value = v }

func (c *CR0Flags) bit(pos uint) bool { return c.value&(1<<pos) != 0 }
func (c *CR0Flags) setBit(pos uint, on bool) {
	if on {
		c.value |= 1 << pos
	} else {
		c.value &^= 1 << pos
	}
}

func (c *CR0Flags) PE() bool     { return c.bit(cr0PE) }
func (c *CR0Flags) SetPE(v bool) { c.setBit(cr0PE, v) }
func (c *CR0Flags) TS() bool     { return c.bit(cr0TS) }
func (c *CR0Flags) SetTS(v bool) { c.setBit(cr0TS, v) }
