// Package interrupt implements the kernel's interrupt dispatch and the
// 8259 PIC driver: a small, fixed handler table, a Register-style API, and
// "the most recent registration wins" semantics, with end-of-interrupt
// issued for hardware lines after the handler returns.
package interrupt

import "fmt"

// Frame records the full CPU state captured at the entry of an interrupt.
// The boot assembly entry stubs (external, out of scope) and every Handler
// share this layout; it must never be reordered.
type Frame struct {
	// General-purpose registers, pushed by the entry stub in a fixed order.
	EDI, ESI, EBP, ESP, EBX, EDX, ECX, EAX uint32

	// Data segment selector, restored by the entry stub before IRET.
	DS uint32

	// Vector number of the interrupt that produced this frame.
	Vector uint32

	// ErrorCode is the CPU-pushed error code for vectors that have one;
	// zero-filled by the entry stub for vectors that don't, so every
	// handler observes an identically shaped frame.
	ErrorCode uint32

	// Hardware-pushed state.
	EIP, CS, EFlags uint32

	// Present only for privilege-crossing interrupts; zero otherwise.
	UserESP, SS uint32
}

func (f *Frame) String() string {
	return fmt.Sprintf(
		"INT vec=%#02x err=%#x eip=%#08x cs=%#04x eflags=%#08x esp=%#08x",
		f.Vector, f.ErrorCode, f.EIP, f.CS, f.EFlags, f.ESP,
	)
}
