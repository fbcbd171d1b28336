package cpu

// RegionKind classifies a memory region at load time (spec.md §4.D).
type RegionKind int

const (
	RegionText RegionKind = iota
	RegionROM
	RegionRAM
	RegionStack
)

func (k RegionKind) String() string {
	switch k {
	case RegionText:
		return "TEXT"
	case RegionROM:
		return "ROM"
	case RegionRAM:
		return "RAM"
	case RegionStack:
		return "STACK"
	default:
		return "UNKNOWN"
	}
}

// Region describes one partition of the flat address space.
type Region struct {
	Kind  RegionKind
	Start U32
	Size  U32
}

func (r Region) contains(addr U32) bool {
	return addr >= r.Start && addr < r.Start+r.Size
}

// Memory is the flat 32-bit linear address space (component D),
// partitioned into TEXT/ROM/RAM/STACK regions at load time. Bytes live
// in one contiguous array addressed by linear address; instructions are
// stored as a separate
// decoded sequence indexed by EIP, matching spec.md's "EIP is a linear
// index, not a byte address" invariant.
type Memory struct {
	regions []Region
	bytes   []byte // one contiguous backing array addressed by linear address
	insts   []Inst

	textPos  U32
	stackEnd U32

	Monitor ChangeMonitor // nil is a valid, silent sink
}

// NewMemory builds a Memory whose backing store spans [0, size) and
// whose regions are as given. insts is the decoded instruction stream
// loaded into the TEXT region, indexed by EIP.
func NewMemory(size U32, regions []Region, insts []Inst) *Memory {
	m := &Memory{
		regions: regions,
		bytes:   make([]byte, size),
		insts:   insts,
	}
	for _, r := range regions {
		if r.Kind == RegionText {
			m.textPos = r.Start
		}
		if r.Kind == RegionStack {
			m.stackEnd = r.Start + r.Size
		}
	}
	return m
}

// TextPos is the linear address the TEXT region starts at.
func (m *Memory) TextPos() U32 { return m.textPos }

// StackEnd is the address one past the top of the stack region — the
// initial value ESP resets to.
func (m *Memory) StackEnd() U32 { return m.stackEnd }

// LoadBytes copies data into the backing store starting at addr. Used
// by the loader package to populate ROM/RAM contents; bypasses
// protection checks since it represents program load, not execution.
func (m *Memory) LoadBytes(addr U32, data []byte) {
	copy(m.bytes[addr:], data)
}

// FetchInstruction returns the decoded instruction at linear index eip
// (spec.md §4.D's fetch_instruction).
func (m *Memory) FetchInstruction(eip U32) (Inst, error) {
	idx := eip
	if idx >= U32(len(m.insts)) {
		return Inst{}, &MemoryException{Address: eip, Reason: "EIP out of range of decoded instruction stream"}
	}
	return m.insts[idx], nil
}

// InstructionCount is the number of decoded instructions loaded.
func (m *Memory) InstructionCount() int { return len(m.insts) }

func (m *Memory) regionAt(addr U32) (Region, bool) {
	for _, r := range m.regions {
		if r.contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// Read returns the zero-extended little-endian value at address over
// size bytes.
func (m *Memory) Read(address U32, size OpSize) (U32, error) {
	n := size.Bits() / 8
	if n == 0 {
		return 0, &MemoryException{Address: address, Size: size, Reason: "read with unknown operand size"}
	}
	if int(address)+n > len(m.bytes) {
		return 0, &MemoryException{Address: address, Size: size, Reason: "read out of bounds"}
	}
	var v U32
	for i := 0; i < n; i++ {
		v |= U32(m.bytes[int(address)+i]) << (8 * i)
	}
	return v, nil
}

// Write stores the low size bytes of value little-endian at address.
// Writes to the ROM or TEXT regions fail with a memory-protection
// error, per spec.md §4.D.
func (m *Memory) Write(address U32, value U32, size OpSize) error {
	n := size.Bits() / 8
	if n == 0 {
		return &MemoryException{Address: address, Size: size, Reason: "write with unknown operand size"}
	}
	if r, ok := m.regionAt(address); ok && (r.Kind == RegionROM || r.Kind == RegionText) {
		return &MemoryException{Address: address, Size: size, Reason: "write to " + r.Kind.String() + " region"}
	}
	if int(address)+n > len(m.bytes) {
		return &MemoryException{Address: address, Size: size, Reason: "write out of bounds"}
	}
	for i := 0; i < n; i++ {
		m.bytes[int(address)+i] = byte(value >> (8 * i))
	}
	if m.Monitor != nil {
		m.Monitor.MemoryChange(address, size)
	}
	return nil
}
