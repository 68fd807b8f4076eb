// Package kernel wires the core subsystems (console, interrupt dispatch,
// timer, frame allocator, memory mapper, heap, scheduler, panic reporter)
// together in dependency order, providing the Go counterpart of
// kernel_main: the single entry point a hosted test or demo binary calls
// once the (external) boot stub has handed it a parsed Multiboot Info.
package kernel

import (
	"github.com/itisrazza/ClankerOS/internal/pmm"
)

// Arch is the seam to everything this kernel core needs from the CPU that a
// hosted Go process cannot itself provide: loading the page-directory and
// paging-enable control registers (internal/vmm's concern), masking
// interrupts and halting (internal/diag's concern), and reading the
// faulting address a page-fault handler would normally find in CR2.
// Production code wires a real, architecture-specific implementation
// (external, like the boot stub itself); tests and the hosted demo wire
// HostedArch.
type Arch interface {
	// LoadDirectory loads the physical address of the page directory into
	// the address-translation control register (CR3).
	LoadDirectory(phys pmm.FrameAddr)

	// EnablePaging sets the paging-enable bit in the CPU control register
	// (CR0).
	EnablePaging()

	// InvalidatePage invalidates any cached translation for virt.
	InvalidatePage(virt uintptr)

	// DisableInterrupts masks maskable interrupts, irrevocably from the
	// panic path's point of view.
	DisableInterrupts()

	// Halt executes one halt step. diag.Panic calls it in an unbounded
	// loop; this kernel's production wiring blocks forever on the first
	// call, exactly as a halted CPU would look from software never running
	// again.
	Halt()

	// FaultAddress returns the address a page fault occurred at (the
	// architecture's CR2 equivalent). The page-fault handler reads it when
	// building its diagnostic message.
	FaultAddress() uint32
}

// HostedArch is the default, hosted-process stand-in for Arch: it records
// every control-register write instead of touching real hardware, and its
// Halt blocks forever on an unbuffered channel that is never sent to -
// the hosted equivalent of a CPU that has stopped fetching instructions.
type HostedArch struct {
	Directory        pmm.FrameAddr
	PagingEnabled    bool
	InvalidatedPages []uintptr
	InterruptsMasked bool
	faultAddr        uint32
	block            chan struct{}
}

// NewHostedArch creates a HostedArch ready for use.
func NewHostedArch() *HostedArch {
	return &HostedArch{block: make(chan struct{})}
}

func (a *HostedArch) LoadDirectory(phys pmm.FrameAddr) { a.Directory = phys }
func (a *HostedArch) EnablePaging()                    { a.PagingEnabled = true }

func (a *HostedArch) InvalidatePage(virt uintptr) {
	a.InvalidatedPages = append(a.InvalidatedPages, virt)
}

func (a *HostedArch) DisableInterrupts() { a.InterruptsMasked = true }

// Halt blocks forever. A hosted process has no "the CPU fetches nothing
// further"; blocking on a channel nobody sends to is the closest idiomatic
// Go equivalent, and it means diag.Panic's "for { arch.Halt() }" loop never
// spins a hot CPU core waiting for a return that should never come.
func (a *HostedArch) Halt() { <-a.block }

// SetFaultAddress records the address the next simulated page fault should
// report, since a hosted process has no CR2 register to read.
func (a *HostedArch) SetFaultAddress(addr uint32) { a.faultAddr = addr }

func (a *HostedArch) FaultAddress() uint32 { return a.faultAddr }
