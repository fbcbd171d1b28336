package cpu

// Registers is the architectural register file (component C): eight
// 32-bit general-purpose cells (with 16/8-high/8-low aliasing views),
// six 16-bit segment cells, two 32-bit control-register cells, EIP,
// and EFLAGS.
//
// Sub-register writes use mask-then-OR: the target subfield is cleared
// before the new bits are OR-ed in. The original this engine is modeled
// on ORs the new bits in without clearing first, which corrupts any bit
// the new value leaves as zero — that bug is not reproduced here.
type Registers struct {
	general  [8]U32
	segments [6]U16
	control  [2]U32
	eip      U32
	Flags    EFLAGS

	Monitor ChangeMonitor // nil is a valid, silent sink
}

func NewRegisters() *Registers {
	r := &Registers{}
	r.CompleteReset()
	return r
}

// CompleteReset zeroes all banks and resets EFLAGS/EIP (spec.md §4.C).
func (r *Registers) CompleteReset() {
	r.general = [8]U32{}
	r.segments = [6]U16{}
	r.control = [2]U32{}
	r.eip = 0
	r.Flags.Reset()
}

func (r *Registers) notify(reg Register) {
	if r.Monitor != nil {
		r.Monitor.RegisterChange(reg)
	}
}

// Read returns the zero-extended value of reg at its own native width.
func (r *Registers) Read(reg Register) U32 {
	return r.ReadSized(reg, nativeSize(reg))
}

// ReadSized reads reg reinterpreted at the given OpSize. For general
// registers this lets effective-address computation and operand fetch
// pick a width independent of the identifier used (spec.md §4.C).
func (r *Registers) ReadSized(reg Register, size OpSize) U32 {
	switch {
	case isSegment(reg):
		return U32(r.segments[reg-CS])
	case isControl(reg):
		if reg == CR0Reg {
			return r.control[0]
		}
		return r.control[1]
	}
	idx, ok := gpIndex(reg)
	if !ok {
		return 0
	}
	return r.ReadIndex(idx, size, isHighByte(reg))
}

// ReadIndex reads the general-purpose cell at idx (0..7) at size,
// reading the high byte instead of the low byte when high is true.
// Needed directly by effective-address computation, which addresses
// general registers by their raw ModRM/SIB index rather than by name.
func (r *Registers) ReadIndex(idx int, size OpSize, high bool) U32 {
	cell := r.general[idx]
	switch size {
	case SizeDW:
		return cell
	case SizeW:
		return cell & 0xFFFF
	case SizeB:
		if high {
			return (cell >> 8) & 0xFF
		}
		return cell & 0xFF
	default:
		return cell
	}
}

// Write stores value into reg at reg's native width.
func (r *Registers) Write(reg Register, value U32) {
	r.WriteSized(reg, value, nativeSize(reg))
}

// WriteSized stores value into reg reinterpreted at size, using
// mask-then-OR so that narrower writes preserve the untouched bits of
// the backing 32-bit cell (spec.md §4.C's sub-register write rule).
func (r *Registers) WriteSized(reg Register, value U32, size OpSize) {
	switch {
	case isSegment(reg):
		nv := U16(value)
		if r.segments[reg-CS] != nv {
			r.segments[reg-CS] = nv
			r.notify(reg)
		}
		return
	case isControl(reg):
		idx := 0
		if reg == CR1Reg {
			idx = 1
		}
		if r.control[idx] != value {
			r.control[idx] = value
			r.notify(reg)
		}
		return
	}
	idx, ok := gpIndex(reg)
	if !ok {
		return
	}
	before := r.general[idx]
	r.WriteIndex(idx, value, size, isHighByte(reg))
	if r.general[idx] != before {
		r.notify(reg)
	}
}

// WriteIndex writes value into the general-purpose cell at idx at size,
// targeting the high byte instead of the low byte when high is true.
// Mask-then-OR: the destination bits are cleared before the new value
// is OR-ed in, so a byte write never corrupts the sibling sub-register.
func (r *Registers) WriteIndex(idx int, value U32, size OpSize, high bool) {
	switch size {
	case SizeDW:
		r.general[idx] = value
	case SizeW:
		r.general[idx] = (r.general[idx] &^ 0xFFFF) | (value & 0xFFFF)
	case SizeB:
		if high {
			r.general[idx] = (r.general[idx] &^ 0xFF00) | ((value & 0xFF) << 8)
		} else {
			r.general[idx] = (r.general[idx] &^ 0xFF) | (value & 0xFF)
		}
	}
}

func (r *Registers) ReadEIP() U32     { return r.eip }
func (r *Registers) WriteEIP(v U32) { r.eip = v }

func (r *Registers) GetCR0() CR0Flags { return CR0Flags{value: r.control[0]} }
func (r *Registers) SetCR0(c CR0Flags) {
	if r.control[0] != c.value {
		r.control[0] = c.value
		r.notify(CR0Reg)
	}
}
