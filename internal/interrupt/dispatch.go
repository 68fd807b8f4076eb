package interrupt

import (
	"fmt"

	"github.com/itisrazza/ClankerOS/internal/log"
)

// NumVectors is the size of the CPU's vector space.
const NumVectors = 256

// NumHardwareLines is the number of cascaded-8259 IRQ lines (0..15),
// remapped to vectors MasterOffset..MasterOffset+15.
const NumHardwareLines = 16

// Handler observes (and may rewrite) the interrupt frame. Most handlers
// only read it and perform side effects; the scheduler rewrites it to
// switch contexts. Both are expressed as this single mutable-frame
// signature, since Go has no cheap way to express "this closure promises
// not to write" short of a second, read-only frame type nothing else needs.
type Handler func(frame *Frame)

// PanicHandler is invoked for an exception vector with no registered
// handler. It never returns.
type PanicHandler func(vector uint32, mnemonic string, frame *Frame)

// Dispatcher routes CPU vectors to handlers and issues end-of-interrupt for
// hardware lines: a fixed table, Register, and last-registration-wins.
type Dispatcher struct {
	exceptions [NumVectors]Handler
	hardware   [NumHardwareLines]Handler

	pic   *PIC
	panic PanicHandler

	log *log.Logger
}

// NewDispatcher creates a Dispatcher. pic must already have had Remap
// called; panicFn is invoked for any exception vector that has no
// registered handler.
func NewDispatcher(pic *PIC, panicFn PanicHandler) *Dispatcher {
	return &Dispatcher{
		pic:   pic,
		panic: panicFn,
		log:   log.DefaultLogger(),
	}
}

// RegisterException installs handler for a CPU exception/trap vector
// (0..255). Registering twice for the same vector replaces the earlier
// registration; the most recent wins.
func (d *Dispatcher) RegisterException(vector uint32, handler Handler) {
	d.exceptions[vector] = handler
}

// RegisterHardware installs handler for hardware line irq (0..15), i.e. CPU
// vector MasterOffset+irq. The most recent registration wins.
func (d *Dispatcher) RegisterHardware(irq uint8, handler Handler) {
	d.hardware[irq] = handler
}

// UnmaskHardware unmasks hardware line irq at the PIC, allowing that line's
// interrupts to reach the CPU. Drivers call this once they have registered
// their handler.
func (d *Dispatcher) UnmaskHardware(irq uint8) {
	d.pic.Unmask(irq)
}

// Dispatch routes a single interrupt. It is the function the (external)
// assembly entry stub calls for every vector, after pushing the shared
// Frame layout and before returning via IRET.
//
// For hardware vectors (MasterOffset..MasterOffset+15), the registered
// handler, if any, runs before end-of-interrupt is sent; end-of-interrupt
// is always sent for a hardware vector whether or not a handler is
// registered, so a stray/unhandled IRQ doesn't wedge the controller.
//
// For exception vectors (0..31) with no registered handler, Dispatch invokes
// the panic handler with the vector's well-known mnemonic.
func (d *Dispatcher) Dispatch(frame *Frame) {
	vec := frame.Vector

	if vec >= MasterOffset && vec < MasterOffset+NumHardwareLines {
		irq := uint8(vec - MasterOffset)

		if h := d.hardware[irq]; h != nil {
			h(frame)
		}

		d.pic.EOI(irq)

		return
	}

	if h := d.exceptions[vec]; h != nil {
		h(frame)
		return
	}

	if vec < 32 {
		mnemonic := exceptionMnemonics[vec]
		if mnemonic == "" {
			mnemonic = fmt.Sprintf("Unknown Exception %d", vec)
		}

		d.panic(vec, mnemonic, frame)

		return
	}

	d.log.Warn("unhandled vector", log.Uint64("vector", uint64(vec)))
}

// exceptionMnemonics names the architecturally-defined CPU exceptions
// (vectors 0-19); the remainder of 0-31 are Intel-reserved.
var exceptionMnemonics = [32]string{
	0:  "Division By Zero",
	1:  "Debug",
	2:  "Non Maskable Interrupt",
	3:  "Breakpoint",
	4:  "Into Detected Overflow",
	5:  "Out of Bounds",
	6:  "Invalid Opcode",
	7:  "No Coprocessor",
	8:  "Double Fault",
	9:  "Coprocessor Segment Overrun",
	10: "Bad TSS",
	11: "Segment Not Present",
	12: "Stack Fault",
	13: "General Protection Fault",
	14: "Page Fault",
	15: "Unknown Interrupt",
	16: "Coprocessor Fault",
	17: "Alignment Check",
	18: "Machine Check",
	19: "SIMD Floating-Point Exception",
}
