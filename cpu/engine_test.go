package cpu

import "testing"

// newTestEngine builds a minimal engine over a tiny flat memory whose
// decoded instruction stream is insts (nil for none); tests that call
// ExecuteInstruction build the Inst they execute by hand.
func newTestEngine(insts []Inst) *Engine {
	regions := []Region{
		{Kind: RegionText, Start: 0, Size: 0x100},
		{Kind: RegionStack, Start: 0x100, Size: 0x100},
	}
	mem := NewMemory(0x200, regions, insts)
	e := NewEngine(mem, 0)
	e.Log = NewLogger(LogOff, nil)
	e.Startup()
	return e
}

// addEAXImm builds the Inst that implements "EAX <- EAX op imm32" for a
// given arithmetic opcode, reading EAX as Op1 and an immediate as Op2,
// writing the result back to EAX and applying flags.
func addEAXImm(op Opcode, imm U32) Inst {
	return Inst{
		Opcode:         op,
		Op1:            Operand{Type: OpREG, Reg: EAX, Read: true},
		Op2:            Operand{Type: OpIMM, Read: true},
		ImmediateValue: imm,
		GetFlags:       true,
		WriteRet1ToOp1: true,
	}
}

func setFlagsSubset(t *testing.T, e *Engine, want map[string]bool) {
	t.Helper()
	f := &e.Regs.Flags
	all := map[string]bool{
		"CF": f.CF(), "PF": f.PF(), "AF": f.AF(), "ZF": f.ZF(),
		"SF": f.SF(), "OF": f.OF(),
	}
	for name, got := range all {
		if want[name] != got {
			t.Errorf("flag %s = %v, want %v (full set %v)", name, got, want[name], want)
		}
	}
}

func TestEndToEndAddSub(t *testing.T) {
	cases := []struct {
		name    string
		initial U32
		op      Opcode
		operand U32
		want    U32
		flags   map[string]bool
	}{
		{"scenario1 ADD 2,-7", 2, ADD, 0xFFFFFFF9, 0xFFFFFFFB, map[string]bool{"SF": true}},
		{"scenario2 ADD 2,7", 2, ADD, 7, 9, map[string]bool{"PF": true}},
		{"scenario3 ADD overflow", 0x80000001, ADD, 0x0FFFFFFF, 0x90000000, map[string]bool{"PF": true, "AF": true, "SF": true}},
		{"scenario4 ADD -1", 0x7FFFFFFF, ADD, 0xFFFFFFFF, 0x7FFFFFFE, map[string]bool{"CF": true, "AF": true}},
		{"scenario5 SUB 2,7", 2, SUB, 7, 0xFFFFFFFB, map[string]bool{"CF": true, "AF": true, "SF": true}},
		{"scenario6 SUB overflow", 0x80000001, SUB, 0x0FFFFFFF, 0x70000002, map[string]bool{"OF": true, "AF": true}},
		{"scenario7 SUB -1", 0x7FFFFFFF, SUB, 0xFFFFFFFF, 0x80000000, map[string]bool{"CF": true, "PF": true, "SF": true, "OF": true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inst := addEAXImm(c.op, c.operand)
			e := newTestEngine([]Inst{inst})
			e.Regs.Write(EAX, c.initial)
			if err := e.ExecuteInstruction(&inst); err != nil {
				t.Fatalf("ExecuteInstruction: %v", err)
			}
			if got := e.Regs.Read(EAX); got != c.want {
				t.Errorf("EAX = %#x, want %#x", got, c.want)
			}
			setFlagsSubset(t, e, c.flags)
			if e.Regs.Flags.Value()&0b10 == 0 {
				t.Error("reserved bit 1 must remain set")
			}
		})
	}
}

func TestEndToEndStackRoundTrip(t *testing.T) {
	e := newTestEngine(nil)
	monitor := NewRecordingMonitor()
	e.SetMonitor(monitor)
	esp0 := e.Regs.Read(ESP)

	if err := e.push(0xDEADBEEF, SizeDW); err != nil {
		t.Fatalf("push: %v", err)
	}
	monitor.NewClockCycle()
	v, err := e.pop(SizeDW)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Errorf("popped %#x, want 0xDEADBEEF", v)
	}
	if got := e.Regs.Read(ESP); got != esp0 {
		t.Errorf("ESP = %#x after round trip, want %#x", got, esp0)
	}

	total := 0
	for _, c := range monitor.Cycles {
		for _, mc := range c.Memory {
			total++
			if mc.Address != esp0-4 || mc.Size != SizeDW {
				t.Errorf("unexpected memory event %+v", mc)
			}
		}
	}
	if total != 2 {
		t.Errorf("expected exactly two memory events, got %d", total)
	}
}

func TestSubRegisterAliasingInvariant(t *testing.T) {
	e := newTestEngine(nil)
	e.Regs.Write(EAX, 0x12345678)
	if got := e.Regs.Read(AX); got != 0x5678 {
		t.Errorf("AX = %#x, want 0x5678", got)
	}
	if got := e.Regs.Read(AL); got != 0x78 {
		t.Errorf("AL = %#x, want 0x78", got)
	}
	if got := e.Regs.Read(AH); got != 0x56 {
		t.Errorf("AH = %#x, want 0x56", got)
	}
}

func TestPartialRegisterWriteMaskThenOR(t *testing.T) {
	e := newTestEngine(nil)
	e.Regs.Write(EAX, 0xFFFFFFFF)
	e.Regs.WriteSized(AL, 0x00, SizeB)
	if got := e.Regs.Read(EAX); got != 0xFFFFFF00 {
		t.Errorf("writing AL=0 corrupted sibling bits: EAX = %#x, want 0xFFFFFF00", got)
	}
	if got := e.Regs.Read(AH); got != 0xFF {
		t.Errorf("writing AL must not disturb AH: AH = %#x, want 0xFF", got)
	}

	e.Regs.Write(EAX, 0xFFFFFFFF)
	e.Regs.WriteSized(AX, 0x0000, SizeW)
	if got := e.Regs.Read(EAX); got != 0xFFFF0000 {
		t.Errorf("writing AX=0 must not disturb bits 16-31: EAX = %#x, want 0xFFFF0000", got)
	}
}

func TestAddThenSubRestoresOriginal(t *testing.T) {
	a, b := U32(12345), U32(987)
	sum, _ := add(a, b, false, SizeDW)
	back, _ := sub(sum, b, false, SizeDW)
	if back != a {
		t.Errorf("ADD then SUB = %#x, want original %#x", back, a)
	}
}

func TestNotNotIdentity(t *testing.T) {
	x := U32(0xA5A5A5A5)
	if got := bitwiseNot(bitwiseNot(x, SizeDW), SizeDW); got != x {
		t.Errorf("NOT NOT x = %#x, want %#x", got, x)
	}
}

func TestXorSelfIsZero(t *testing.T) {
	x := U32(0x12345678)
	if got := bitwiseXor(x, x, SizeDW); got != 0 {
		t.Errorf("x XOR x = %#x, want 0", got)
	}
}

func TestAndAllOnesIsIdentity(t *testing.T) {
	x := U32(0x12345678)
	if got := bitwiseAnd(x, 0xFFFFFFFF, SizeDW); got != x {
		t.Errorf("x AND ALL_ONES = %#x, want %#x", got, x)
	}
}

func TestMovsxMovzxRoundTrip(t *testing.T) {
	low := U32(0xAB)
	wide := signExtend(low, SizeB)
	back := wide & SizeB.Mask()
	if back != low {
		t.Errorf("MOVSX then MOVZX of low bits = %#x, want %#x", back, low)
	}
}

func TestRolRorIdentity(t *testing.T) {
	x := U32(0x3C)
	for n := uint(1); n < 8; n++ {
		left := rotateLeft(x, n, SizeB)
		back := rotateRight(left, n, SizeB)
		if back != x {
			t.Errorf("ROR(ROL(x,%d),%d) = %#x, want %#x", n, n, back, x)
		}
	}
}

func TestBoundEdgeCases(t *testing.T) {
	e := newTestEngine(nil)
	check := func(idx, lower, upper U32) error {
		inst := Inst{Opcode: BOUND}
		d := InstData{Op1: idx, Op2: lower, Op3: upper, OpSize: SizeDW}
		_, _, err := e.dispatchArithmetic(BOUND, &inst, &d, &e.Regs.Flags)
		return err
	}
	if err := check(5, 5, 10); err != nil {
		t.Errorf("idx == lower should pass, got %v", err)
	}
	if err := check(10, 5, 10); err != nil {
		t.Errorf("idx == upper should pass, got %v", err)
	}
	if err := check(11, 5, 10); err == nil {
		t.Error("idx == upper+1 should raise BR")
	} else if pe, ok := err.(*ProcessorException); !ok || pe.Interrupt != BoundRangeVector {
		t.Errorf("expected BoundRangeVector ProcessorException, got %v", err)
	}
}

func TestDivideByZeroDoesNotTouchDestination(t *testing.T) {
	e := newTestEngine(nil)
	inst := Inst{Opcode: DIV}
	d := InstData{Op1: 10, Op2: 0, OpSize: SizeB}
	ret, ret2, err := e.dispatchArithmetic(DIV, &inst, &d, &e.Regs.Flags)
	if err == nil {
		t.Fatal("DIV by zero should raise DivideErrorException")
	}
	if _, ok := err.(*ProcessorException); !ok {
		t.Errorf("expected *ProcessorException, got %T", err)
	}
	if ret != 0 || ret2 != 0 {
		t.Errorf("DIV by zero must return zero writebacks, got (%#x,%#x)", ret, ret2)
	}
}

func TestEFLAGSReservedBits(t *testing.T) {
	e := newTestEngine(nil)
	e.Regs.Flags.SetValue(0xFFFFFFFF)
	v := e.Regs.Flags.Value()
	if v&0b10 == 0 {
		t.Error("bit 1 must remain set")
	}
	for _, bit := range []uint{3, 5, 15} {
		if v&(1<<bit) != 0 {
			t.Errorf("reserved bit %d must be clear", bit)
		}
	}
	if v&(0x3FF<<22) != 0 {
		t.Error("bits 22-31 must be clear")
	}
}

func TestEIPRangeAndCycleCount(t *testing.T) {
	inst := Inst{Opcode: NOP}
	e := newTestEngine([]Inst{inst, inst})
	if e.Regs.ReadEIP() != e.Mem.TextPos() {
		t.Errorf("EIP should start at text_pos")
	}
	before := e.ClockCycleCount
	if err := e.ExecuteInstruction(&inst); err != nil {
		t.Fatalf("ExecuteInstruction: %v", err)
	}
	if e.Regs.ReadEIP() != e.Mem.TextPos()+1 {
		t.Errorf("EIP should advance by 1 after a non-state-machine opcode")
	}
	// ExecuteInstruction itself does not touch ClockCycleCount; Run does.
	if e.ClockCycleCount != before {
		t.Errorf("ExecuteInstruction must not itself touch clock_cycle_count")
	}
}
