// Package sched implements the round-robin preemptive task scheduler: a
// Task Control Block per task, a FIFO ready queue threaded through
// Task.next, and a Schedule method meant to be installed as the timer's
// tick sink so that a context switch happens from inside the timer ISR by
// rewriting the saved register frame in place.
package sched

import (
	"github.com/itisrazza/ClankerOS/internal/heap"
	"github.com/itisrazza/ClankerOS/internal/interrupt"
	"github.com/itisrazza/ClankerOS/internal/log"
	"github.com/itisrazza/ClankerOS/internal/pmm"
	"github.com/itisrazza/ClankerOS/internal/vmm"
)

// State is a Task's lifecycle state.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Privilege is a Task's privilege mode. User is reserved for future use;
// every task in this kernel runs Kernel today.
type Privilege int

const (
	Kernel Privilege = iota
	User
)

// defaultTimeslice is the tick budget a task receives each time it becomes
// Running.
const defaultTimeslice = 10

// kernelStackSize is the size of the heap-backed stack allocated for every
// task created by Spawn.
const kernelStackSize = 8 * 1024

// Kernel selector constants the synthetic frame is built with. Descriptor
// table setup is an external collaborator; these are its well-known flat
// kernel code/data selectors.
const (
	kernelCodeSelector = 0x08
	kernelDataSelector = 0x10

	eflagsReservedBit1    = 1 << 1
	eflagsInterruptEnable = 1 << 9
)

// Task is a Task Control Block.
type Task struct {
	ID        uint64
	Name      string
	State     State
	Privilege Privilege

	// Context is the saved CPU state; Schedule copies frame fields into and
	// out of it on every switch.
	Context interrupt.Frame

	KernelStackBase heap.Ptr
	UserStackBase   heap.Ptr // unused for kernel tasks.
	AddressSpace    pmm.FrameAddr

	Timeslice int
	Priority  int // unused; reserved for a future non-round-robin policy.

	next *Task // ready-queue link.
}

// Scheduler owns the ready queue and the Running task, and implements the
// round-robin switch in Schedule.
type Scheduler struct {
	heap   *heap.Heap
	mapper *vmm.Mapper
	log    *log.Logger

	running   *Task
	readyHead *Task
	readyTail *Task

	nextID  uint64
	enabled bool
}

// New creates a Scheduler. Call Init before Spawn or Schedule.
func New(h *heap.Heap, mapper *vmm.Mapper) *Scheduler {
	return &Scheduler{heap: h, mapper: mapper, log: log.DefaultLogger()}
}

// Init constructs the idle Task Control Block (identifier 0, Running,
// representing the boot context) and returns it. The ready queue starts
// empty; the scheduler starts disabled.
func (s *Scheduler) Init() *Task {
	idle := &Task{
		ID:              0,
		Name:            "idle",
		State:           Running,
		Privilege:       Kernel,
		AddressSpace:    s.mapper.DirectoryAddr(),
		KernelStackBase: 0, // the boot stack.
		Timeslice:       defaultTimeslice,
	}

	s.running = idle
	s.nextID = 1

	return idle
}

// Running returns the currently Running task, or nil before Init.
func (s *Scheduler) Running() *Task { return s.running }

// Enable flips the scheduler on; timer ticks switch context only after
// this is called.
func (s *Scheduler) Enable() { s.enabled = true }

// Enabled reports whether the scheduler is currently switching context on
// timer ticks.
func (s *Scheduler) Enabled() bool { return s.enabled }

// Spawn allocates an 8 KiB kernel stack from the heap and a Task Control
// Block (an ordinary Go value, not a heap allocation), builds the synthetic
// interrupt frame the first switch to this task
// will install (initial EIP at the trampoline, kernel selectors,
// interrupt-enable and reserved flag bits set, zeroed general-purpose
// registers), mirrors it into the task's saved context, and enqueues the
// task Ready.
//
// trampolineEntry is the conceptual address the synthetic frame's EIP
// targets; internal/kernel's hosted demo runner associates it with the
// actual Go closure to execute, since a hosted Go process has no machine
// code at arbitrary addresses to jump to; see its own documentation for
// how the two are tied together.
//
// Spawn returns nil when the heap cannot back the kernel stack.
func (s *Scheduler) Spawn(name string, trampolineEntry uint32) *Task {
	stack := s.heap.Alloc(kernelStackSize)
	if stack == 0 {
		return nil
	}

	id := s.nextID
	s.nextID++

	frame := interrupt.Frame{
		EIP:    trampolineEntry,
		CS:     kernelCodeSelector,
		DS:     kernelDataSelector,
		EFlags: eflagsInterruptEnable | eflagsReservedBit1,
		ESP:    uint32(stack) + kernelStackSize,
	}

	t := &Task{
		ID:              id,
		Name:            name,
		State:           Ready,
		Privilege:       Kernel,
		Context:         frame,
		KernelStackBase: stack,
		AddressSpace:    s.mapper.DirectoryAddr(),
		Timeslice:       defaultTimeslice,
	}

	s.enqueue(t)

	s.log.Debug("task created",
		log.Uint64("id", t.ID),
		log.String("name", t.Name),
	)

	return t
}

func (s *Scheduler) enqueue(t *Task) {
	t.next = nil

	if s.readyTail == nil {
		s.readyHead, s.readyTail = t, t
		return
	}

	s.readyTail.next = t
	s.readyTail = t
}

func (s *Scheduler) dequeue() *Task {
	if s.readyHead == nil {
		return nil
	}

	t := s.readyHead
	s.readyHead = t.next
	if s.readyHead == nil {
		s.readyTail = nil
	}

	t.next = nil

	return t
}

// Schedule performs one round-robin scheduling decision. It is meant to be
// registered as the timer's tick sink (timer.Sink), so a context switch
// happens from inside the timer ISR with the interrupted task's real
// register state in frame: the outgoing task's registers are copied out of
// the frame into its saved context, and the incoming task's saved context
// is copied back in, to be reloaded by the interrupt return.
//
// If the scheduler is disabled or there is no current task, Schedule
// returns without making any change.
func (s *Scheduler) Schedule(frame *interrupt.Frame) {
	if !s.enabled || s.running == nil {
		return
	}

	current := s.running

	switch current.State {
	case Running:
		current.Context = *frame
		current.State = Ready
		current.Timeslice--

		if current.Timeslice <= 0 {
			current.Timeslice = defaultTimeslice
		}

		s.enqueue(current)

	case Terminated:
		s.heap.Free(current.KernelStackBase)
		current.KernelStackBase = 0

	default:
		// Blocked (or any other non-Running state) tasks are neither saved
		// nor re-enqueued here; they are handled by Block/Unblock.
	}

	next := s.dequeue()
	if next == nil {
		current.State = Running
		s.running = current

		return
	}

	if next.AddressSpace != current.AddressSpace {
		s.mapper.LoadAddressSpace(next.AddressSpace)
	}

	next.State = Running
	next.Timeslice = defaultTimeslice
	s.running = next

	*frame = next.Context
}

// Yield requests a reschedule. Per the design note on its reserved
// software-interrupt path, it performs no interrupt of its own: it is a
// marker only, and the caller is expected to keep interrupts enabled and
// busy-wait (e.g. halt in a loop) until the next timer tick's Schedule
// naturally preempts it, the documented simplification for a path that
// would otherwise fault on an uninstalled vector.
func (s *Scheduler) Yield() {}

// Block sets the current task's state to Blocked. A Blocked task is not
// in the ready queue and will not run again until Unblock is called for
// it; like Yield, actually giving up the CPU is the caller's
// responsibility (busy-wait for the next tick).
func (s *Scheduler) Block() {
	if s.running == nil {
		return
	}

	s.running.State = Blocked
}

// Unblock moves a Blocked task back to Ready and enqueues it. It is a
// no-op for a task that is not currently Blocked.
func (s *Scheduler) Unblock(t *Task) {
	if t == nil || t.State != Blocked {
		return
	}

	t.State = Ready
	s.enqueue(t)
}

// Exit sets the current task's state to Terminated. A Terminated task is
// never re-queued; its kernel stack is freed the next time Schedule
// observes it. The caller halts in an interrupt-enabled loop afterward so
// the next tick can evict it.
func (s *Scheduler) Exit() {
	if s.running == nil {
		return
	}

	s.running.State = Terminated
}
