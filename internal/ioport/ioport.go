// Package ioport is the seam between the kernel core and the x86 I/O port
// space (the "in"/"out" instructions the 8259 PIC and 8253 PIT wire
// protocols are built on).
//
// Go has no portable way to execute IN/OUT directly; real hardware access is
// provided by an external, architecture-specific collaborator, exactly like
// the boot-time assembly entry and descriptor-table setup this kernel
// already treats as out of scope. internal/interrupt and internal/timer are
// written against the small Bus interface here instead of calling hardware
// directly: production wires a real Bus, tests wire a Recording.
package ioport

// Bus is the port I/O interface hardware drivers in this module use to talk
// to the 8259 PIC and 8253 PIT. A nil Bus is never passed to a driver; Null
// is used where no hardware access should occur.
type Bus interface {
	Out8(port uint16, val uint8)
	In8(port uint16) uint8
}

// Null is a Bus that discards writes and reads as zero. It is useful in
// tests that only exercise the logic above the port boundary.
var Null Bus = nullBus{}

type nullBus struct{}

func (nullBus) Out8(uint16, uint8) {}
func (nullBus) In8(uint16) uint8   { return 0 }

// Write is a single recorded port write, used by Recording for assertions in
// tests.
type Write struct {
	Port uint16
	Val  uint8
}

// Recording is a Bus that remembers every write it receives, in order, so
// tests can assert the exact byte sequence a wire protocol requires (e.g.
// the 8259 ICW1..ICW4 sequence, or the PIT's command-then-divisor-low-
// then-divisor-high sequence).
type Recording struct {
	Writes []Write
	regs   map[uint16]uint8
}

// NewRecording creates an empty Recording bus.
func NewRecording() *Recording {
	return &Recording{regs: make(map[uint16]uint8)}
}

func (r *Recording) Out8(port uint16, val uint8) {
	r.Writes = append(r.Writes, Write{Port: port, Val: val})
	r.regs[port] = val
}

func (r *Recording) In8(port uint16) uint8 {
	return r.regs[port]
}
