package cpu

// ChangeMonitor is the optional per-cycle diff sink (component I). The
// engine calls these as a side effect of register/memory writes; it is
// never required to be present (a nil monitor is a valid, silent sink).
// Grounded on original_source/compare_with_processor/program_compare.cpp's
// ChangesMonitor: a drain-before-next-cycle consumer walks the current
// cycle's changes between NewClockCycle calls.
type ChangeMonitor interface {
	NewClockCycle()
	RegisterChange(reg Register)
	MemoryChange(address U32, size OpSize)
}

// RegisterChangeEvent and MemoryChangeEvent are the two kinds of diff
// recorded per cycle by RecordingMonitor.
type RegisterChangeEvent struct {
	Register Register
}

type MemoryChangeEvent struct {
	Address U32
	Size    OpSize
}

// CycleChanges holds every change observed during one clock cycle.
type CycleChanges struct {
	Registers []RegisterChangeEvent
	Memory    []MemoryChangeEvent
}

// RecordingMonitor is an in-memory ChangeMonitor implementation used by
// tests and by cmd/x86cmp to print the §6 CHANGES/REG/MEM protocol lines.
type RecordingMonitor struct {
	Cycles []CycleChanges
}

func NewRecordingMonitor() *RecordingMonitor {
	return &RecordingMonitor{Cycles: []CycleChanges{{}}}
}

func (m *RecordingMonitor) NewClockCycle() {
	m.Cycles = append(m.Cycles, CycleChanges{})
}

func (m *RecordingMonitor) RegisterChange(reg Register) {
	i := len(m.Cycles) - 1
	m.Cycles[i].Registers = append(m.Cycles[i].Registers, RegisterChangeEvent{Register: reg})
}

func (m *RecordingMonitor) MemoryChange(address U32, size OpSize) {
	i := len(m.Cycles) - 1
	m.Cycles[i].Memory = append(m.Cycles[i].Memory, MemoryChangeEvent{Address: address, Size: size})
}

// Current returns the changes accumulated in the cycle currently being
// recorded (the one since the last NewClockCycle call).
func (m *RecordingMonitor) Current() CycleChanges {
	return m.Cycles[len(m.Cycles)-1]
}
