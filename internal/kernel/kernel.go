package kernel

import (
	"github.com/itisrazza/ClankerOS/internal/boot"
	"github.com/itisrazza/ClankerOS/internal/console"
	"github.com/itisrazza/ClankerOS/internal/diag"
	"github.com/itisrazza/ClankerOS/internal/heap"
	"github.com/itisrazza/ClankerOS/internal/interrupt"
	"github.com/itisrazza/ClankerOS/internal/log"
	"github.com/itisrazza/ClankerOS/internal/pmm"
	"github.com/itisrazza/ClankerOS/internal/sched"
	"github.com/itisrazza/ClankerOS/internal/timer"
	"github.com/itisrazza/ClankerOS/internal/vmm"
)

// TimerHz is the default tick rate the periodic timer is programmed for.
const TimerHz = 100

// Kernel holds every core subsystem, wired together in dependency order:
// console first (everything logs through it or internal/log), then
// interrupt dispatch, the timer, the physical frame allocator, the virtual
// memory mapper, the kernel heap, the scheduler, and finally Diag installed
// as the default handler for unhandled CPU exceptions.
type Kernel struct {
	Text   console.Sink
	Serial console.Sink

	PIC        *interrupt.PIC
	Dispatcher *interrupt.Dispatcher
	Timer      *timer.Timer
	Frames     *pmm.Allocator
	Mapper     *vmm.Mapper
	Heap       *heap.Heap
	Sched      *sched.Scheduler
	Diag       *diag.Reporter

	CmdLine boot.CommandLine

	arch      Arch
	log       *log.Logger
	demoTasks map[uint32]*DemoTask
}

// New creates an unwired Kernel. Call Init to bring every subsystem up in
// order.
func New(arch Arch) *Kernel {
	return &Kernel{arch: arch, log: log.DefaultLogger()}
}

// Init performs the boot sequence: initialize each subsystem in dependency
// order, install Diag as the default exception handler, bring up the idle
// task, and register the scheduler as the timer's tick sink. It does not
// enable interrupts or the scheduler - those are the caller's decision
// (Enable is a separate step; enabling interrupts is the external
// descriptor-table collaborator's concern).
func (k *Kernel) Init(info *boot.Info, kernelStart, kernelEnd pmm.FrameAddr, text, serial console.Sink) error {
	k.Text, k.Serial = text, serial

	k.CmdLine = boot.ParseCommandLine(info.CommandLine)
	if !k.CmdLine.EarlyConsole {
		k.Serial = console.NullSink{}
	}

	// A: diagnostic console is implicit - every component below logs
	// through internal/log, and Diag is wired once the rest exist.

	// B: interrupt dispatch.
	bus := hostedBus{}
	k.PIC = interrupt.NewPIC(bus)
	k.PIC.Remap()
	k.Dispatcher = interrupt.NewDispatcher(k.PIC, k.panicUnhandled)
	k.Dispatcher.RegisterException(pageFaultVector, k.handlePageFault)

	// C: periodic timer.
	k.Timer = timer.New(bus)
	k.Timer.Init(k.Dispatcher, TimerHz)

	// D: physical frame allocator.
	k.Frames = pmm.New()
	k.Frames.Init(info, kernelStart, kernelEnd)

	// E: virtual memory mapper.
	k.Mapper = vmm.New(k.Frames, k.arch)
	if err := k.Mapper.Init(); err != nil {
		return err
	}

	// F: kernel heap.
	k.Heap = heap.New(k.Frames, k.Mapper)
	if err := k.Heap.Init(); err != nil {
		return err
	}

	// G: task scheduler.
	k.Sched = sched.New(k.Heap, k.Mapper)
	k.Sched.Init()
	k.Timer.SetSink(k.Sched.Schedule)

	// H: panic/diagnostics, installed as the default handler for B's
	// unhandled CPU-exception slots via panicUnhandled above.
	k.Diag = diag.New(k.Text, k.Serial, k.arch)

	k.log.Info("kernel initialized",
		log.Uint64("total_memory", k.Frames.TotalBytes()),
		log.Uint64("free_memory", k.Frames.FreeBytes()),
		log.Int("timer_hz", k.Timer.Frequency()),
	)

	return nil
}

// Enable flips on interrupt-driven preemption. Interrupts themselves are
// assumed already enabled by the (external) boot stub; they must be enabled
// whenever the scheduler is.
func (k *Kernel) Enable() { k.Sched.Enable() }

// Tick simulates one firing of the periodic timer's hardware line, the
// hosted stand-in for real IRQ0 hardware: it drives the same
// Dispatcher.Dispatch path the PIC would invoke, incrementing the tick
// counter and, through the registered sink, giving the scheduler a chance
// to switch context.
func (k *Kernel) Tick() {
	k.Dispatcher.Dispatch(&interrupt.Frame{Vector: interrupt.MasterOffset + 0})
}

// TestPanic invokes diag.Panic with the well-known literal message and
// source location for the "testpanic" command-line token. It never
// returns.
func (k *Kernel) TestPanic() {
	k.Diag.Panic("internal/kernel/kernel.go", testPanicLine,
		"Test panic - this is intentional (value: %d)", 42)
}

// testPanicLine is the fixed source location the testpanic report cites.
const testPanicLine = 130

// TestPageFault exercises the page-fault handler for the "testpagefault"
// command-line token by recording the well-known invalid address 0xDEADBEEF
// as the simulated fault address and dispatching CPU vector 14 as the
// (external) MMU would on a real non-present-page read. It never returns.
func (k *Kernel) TestPageFault() {
	const faultAddr = 0xDEADBEEF

	if setter, ok := k.arch.(interface{ SetFaultAddress(uint32) }); ok {
		setter.SetFaultAddress(faultAddr)
	}

	k.Dispatcher.Dispatch(&interrupt.Frame{Vector: pageFaultVector, ErrorCode: 0})
}

const pageFaultVector = 14

// handlePageFault is installed for CPU vector 14. It is the one exception
// this kernel handles explicitly; every other unregistered exception vector
// panics generically via panicUnhandled.
func (k *Kernel) handlePageFault(frame *interrupt.Frame) {
	k.Diag.PanicWithFrame("internal/kernel/kernel.go", pageFaultLine, adaptFrame(frame),
		"Page Fault at 0x%x - Read from non-present page", k.arch.FaultAddress())
}

// pageFaultLine is the fixed source location the page-fault report cites.
const pageFaultLine = 148

// panicUnhandled is installed as the Dispatcher's PanicHandler: it fires for
// any exception vector (0-31) with no registered handler.
func (k *Kernel) panicUnhandled(vector uint32, mnemonic string, frame *interrupt.Frame) {
	k.Diag.PanicWithFrame("internal/interrupt/dispatch.go", 0, adaptFrame(frame), "%s", mnemonic)
}

// adaptFrame narrows an interrupt.Frame to the minimal diag.Frame shape, so
// internal/diag never needs to import internal/interrupt: the panic path
// must not depend on anything that could itself be implicated in the fault
// it's reporting.
func adaptFrame(f *interrupt.Frame) *diag.Frame {
	return &diag.Frame{
		EDI: f.EDI, ESI: f.ESI, EBP: f.EBP, ESP: f.ESP,
		EBX: f.EBX, EDX: f.EDX, ECX: f.ECX, EAX: f.EAX,
		DS:        f.DS,
		Vector:    f.Vector,
		ErrorCode: f.ErrorCode,
		EIP:       f.EIP,
		CS:        f.CS,
		EFlags:    f.EFlags,
	}
}

// hostedBus is the port-I/O Bus wired in a hosted Kernel: there is no real
// 8259/8253 hardware to address, so it discards writes and reads zero,
// exactly like internal/ioport.Null. Init always wires this type; Kernel
// offers no way to substitute another Bus.
type hostedBus struct{}

func (hostedBus) Out8(uint16, uint8) {}
func (hostedBus) In8(uint16) uint8   { return 0 }
