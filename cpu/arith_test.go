package cpu

import "testing"

func TestBitTestFamily(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{Op1: Operand{Type: OpREG}}
	d := InstData{Op1: 0b0100, Op2: 2, OpSize: SizeDW}

	ret, _, err := e.dispatchArithmetic(BT, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("BT: %v", err)
	}
	if !e.Regs.Flags.CF() {
		t.Error("BT of a set bit should set CF")
	}
	if ret != d.Op1 {
		t.Error("BT must not modify the operand")
	}

	ret, _, err = e.dispatchArithmetic(BTR, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("BTR: %v", err)
	}
	if ret != 0 {
		t.Errorf("BTR should clear bit 2, got %#x", ret)
	}

	d.Op1 = 0
	ret, _, err = e.dispatchArithmetic(BTS, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("BTS: %v", err)
	}
	if ret != 0b0100 {
		t.Errorf("BTS should set bit 2, got %#x", ret)
	}

	d.Op1 = 0b0100
	ret, _, err = e.dispatchArithmetic(BTC, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("BTC: %v", err)
	}
	if ret != 0 {
		t.Errorf("BTC should toggle a set bit off, got %#x", ret)
	}
}

// TestBitIndexBeyond32OnMemoryOperand is a regression test: an earlier
// version masked the bit index before range-checking it, which made the
// NotImplementedError branch for an out-of-range memory bit index dead
// code.
func TestBitIndexBeyond32OnMemoryOperand(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{Op1: Operand{Type: OpMEM}}
	d := InstData{Op1: 0, Op2: 40, OpSize: SizeDW}
	_, _, err := e.dispatchArithmetic(BT, &inst, &d, &e.Regs.Flags)
	if err == nil {
		t.Fatal("expected NotImplementedError for a bit index >= 32 on a memory operand")
	}
	if _, ok := err.(*NotImplementedError); !ok {
		t.Errorf("expected *NotImplementedError, got %T", err)
	}
}

func TestRotateThroughCarry(t *testing.T) {
	e := newTestEngine(nil)
	e.Regs.Flags.SetCF(false)
	inst := Inst{}
	// ROL with carry, count=1, via immediate bitfield (bit5 use_imm, bit6 left, bit7 with_carry).
	d := InstData{Op1: 0x80, Op3: 1 | (1 << 5) | (1 << 6) | (1 << 7), OpSize: SizeB}
	ret, _, err := e.dispatchArithmetic(ROT, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("ROT: %v", err)
	}
	// Rotating 0x80 (top bit set) left through CF=0 shifts bit7 into CF
	// and brings the old CF (0) into bit0.
	if !e.Regs.Flags.CF() {
		t.Error("expected CF set after rotating out the top bit")
	}
	if ret != 0 {
		t.Errorf("ROL-through-carry of 0x80 with old CF=0 = %#x, want 0", ret)
	}
}

func TestShiftRightArithmeticKeepsSign(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{}
	d := InstData{Op1: 0x80, Op3: 1 | (1 << 5) | (1 << 7), OpSize: SizeB} // count=1, imm, right, keepSign
	ret, _, err := e.dispatchArithmetic(SHFT, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("SHFT: %v", err)
	}
	if ret != 0xC0 {
		t.Errorf("arithmetic shift right of 0x80 = %#x, want 0xC0 (sign-extended)", ret)
	}
}

func TestShiftLeftLogical(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{}
	d := InstData{Op1: 0x01, Op3: 3 | (1 << 5) | (1 << 6), OpSize: SizeB} // count=3, imm, left
	ret, _, err := e.dispatchArithmetic(SHFT, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("SHFT: %v", err)
	}
	if ret != 0x08 {
		t.Errorf("logical shift left of 0x01 by 3 = %#x, want 0x08", ret)
	}
}

func TestImulOverflowSetsCFAndOF(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{}
	// 0x40 * 0x40 within a byte overflows the signed byte range.
	d := InstData{Op1: 0x40, Op2: 0x40, OpSize: SizeB}
	_, _, err := e.dispatchArithmetic(IMUL, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("IMUL: %v", err)
	}
	if !e.Regs.Flags.CF() || !e.Regs.Flags.OF() {
		t.Error("IMUL overflow should set both CF and OF")
	}
}

func TestImulNoOverflow(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{}
	d := InstData{Op1: 2, Op2: 3, OpSize: SizeB}
	ret, _, err := e.dispatchArithmetic(IMUL, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("IMUL: %v", err)
	}
	if ret != 6 {
		t.Errorf("IMUL 2*3 = %#x, want 6", ret)
	}
	if e.Regs.Flags.CF() || e.Regs.Flags.OF() {
		t.Error("IMUL within range should clear CF and OF")
	}
}

func TestSetccWritesBooleanResult(t *testing.T) {
	e := newTestEngine(nil)
	e.Regs.Flags.SetZF(true)
	inst := Inst{}
	d := InstData{Imm: 0x4} // cc == ZF
	ret, _, err := e.dispatchArithmetic(SETCC, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("SETCC: %v", err)
	}
	if ret != 1 {
		t.Errorf("SETCC(ZF) with ZF set = %#x, want 1", ret)
	}
}

func TestXchgSwapsOperands(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{}
	d := InstData{Op1: 1, Op2: 2}
	ret, ret2, err := e.dispatchArithmetic(XCHG, &inst, &d, &e.Regs.Flags)
	if err != nil {
		t.Fatalf("XCHG: %v", err)
	}
	if ret != 2 || ret2 != 1 {
		t.Errorf("XCHG(1,2) = (%d,%d), want (2,1)", ret, ret2)
	}
}
