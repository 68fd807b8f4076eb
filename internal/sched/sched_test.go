package sched

import (
	"testing"

	"github.com/itisrazza/ClankerOS/internal/boot"
	"github.com/itisrazza/ClankerOS/internal/heap"
	"github.com/itisrazza/ClankerOS/internal/interrupt"
	"github.com/itisrazza/ClankerOS/internal/pmm"
	"github.com/itisrazza/ClankerOS/internal/vmm"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()

	frames := pmm.New()
	frames.Init(&boot.Info{Flags: boot.FlagMemory, LowerMemKB: 0, UpperMemKB: 64 * 1024}, 0, 0)

	mapper := vmm.New(frames, vmm.NullArchControl{})
	if err := mapper.Init(); err != nil {
		t.Fatalf("mapper.Init() = %v", err)
	}

	h := heap.New(frames, mapper)
	if err := h.Init(); err != nil {
		t.Fatalf("heap.Init() = %v", err)
	}

	return New(h, mapper)
}

func TestInit_createsRunningIdleTask(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	idle := s.Init()

	if idle.ID != 0 || idle.State != Running {
		t.Fatalf("idle task = %+v, want ID 0, State Running", idle)
	}

	if s.Running() != idle {
		t.Fatalf("Running() = %v, want idle", s.Running())
	}
}

func TestSchedule_disabledIsNoop(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	idle := s.Init()
	s.Spawn("t1", 0x1000)

	frame := &interrupt.Frame{EIP: 0xdead}
	s.Schedule(frame)

	if s.Running() != idle {
		t.Fatalf("Schedule while disabled switched tasks: running = %v", s.Running())
	}
}

func TestSchedule_roundRobinsBetweenTasks(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	idle := s.Init()
	t1 := s.Spawn("t1", 0x1000)
	t2 := s.Spawn("t2", 0x2000)
	s.Enable()

	frame := &interrupt.Frame{EIP: 0xdead, EAX: 42}
	s.Schedule(frame)

	if s.Running() != t1 {
		t.Fatalf("after first tick, running = %v, want t1", s.Running())
	}

	if idle.State != Ready {
		t.Fatalf("idle.State = %v, want Ready after being preempted", idle.State)
	}

	if idle.Context.EAX != 42 {
		t.Fatalf("idle.Context.EAX = %d, want 42 (saved from frame)", idle.Context.EAX)
	}

	if frame.EIP != t1.Context.EIP {
		t.Fatalf("frame.EIP = %#x, want t1's synthetic EIP %#x", frame.EIP, t1.Context.EIP)
	}

	s.Schedule(frame)
	if s.Running() != t2 {
		t.Fatalf("after second tick, running = %v, want t2", s.Running())
	}

	s.Schedule(frame)
	if s.Running() != idle {
		t.Fatalf("after third tick, running = %v, want idle (full rotation)", s.Running())
	}
}

func TestSchedule_noReadyTasks_keepsCurrentRunning(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	idle := s.Init()
	s.Enable()

	frame := &interrupt.Frame{}
	s.Schedule(frame)

	if s.Running() != idle || idle.State != Running {
		t.Fatalf("solo task should remain Running, got %v state=%v", s.Running(), idle.State)
	}
}

func TestSchedule_timesliceDecrementsWhilePreemptedAndResetsOnSelection(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	s.Init()
	t1 := s.Spawn("t1", 0x1000)
	t2 := s.Spawn("t2", 0x2000)
	s.Enable()

	frame := &interrupt.Frame{}

	s.Schedule(frame) // idle -> t1; t1.Timeslice == defaultTimeslice

	if t1.Timeslice != defaultTimeslice {
		t.Fatalf("freshly selected t1.Timeslice = %d, want %d", t1.Timeslice, defaultTimeslice)
	}

	s.Schedule(frame) // t1 preempted (decremented, enqueued) -> t2 selected (reset)

	if t1.Timeslice != defaultTimeslice-1 {
		t.Fatalf("preempted t1.Timeslice = %d, want %d", t1.Timeslice, defaultTimeslice-1)
	}

	if t2.Timeslice != defaultTimeslice {
		t.Fatalf("newly selected t2.Timeslice = %d, want %d", t2.Timeslice, defaultTimeslice)
	}

	s.Schedule(frame) // t2 preempted -> idle selected (it was queued before t1)
	s.Schedule(frame) // idle preempted -> t1 selected again, forced back to 10

	if t1.Timeslice != defaultTimeslice {
		t.Fatalf("re-selected t1.Timeslice = %d, want %d", t1.Timeslice, defaultTimeslice)
	}
}

func TestSchedule_terminatedTaskIsNeverRequeued(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	s.Init()
	t1 := s.Spawn("t1", 0x1000)
	t2 := s.Spawn("t2", 0x2000)
	s.Enable()

	frame := &interrupt.Frame{}
	s.Schedule(frame) // idle -> t1

	s.running = t1
	s.Exit()

	if t1.State != Terminated {
		t.Fatalf("t1.State = %v, want Terminated", t1.State)
	}

	s.Schedule(frame) // t1 terminated, evicted; t2 should run next

	if s.Running() != t2 {
		t.Fatalf("running = %v, want t2 after t1 terminates", s.Running())
	}

	// Drive a full rotation; t1 must never reappear.
	for i := 0; i < 5; i++ {
		s.Schedule(frame)
		if s.Running() == t1 {
			t.Fatalf("terminated task t1 was rescheduled")
		}
	}
}

func TestBlockUnblock(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	s.Init()
	t1 := s.Spawn("t1", 0x1000)
	s.Enable()

	frame := &interrupt.Frame{}
	s.Schedule(frame) // idle -> t1

	s.running = t1
	s.Block()

	if t1.State != Blocked {
		t.Fatalf("t1.State = %v, want Blocked", t1.State)
	}

	s.Unblock(t1)
	if t1.State != Ready {
		t.Fatalf("t1.State = %v, want Ready after Unblock", t1.State)
	}
}

func TestUnblock_ignoresNonBlockedTask(t *testing.T) {
	t.Parallel()

	s := newScheduler(t)
	s.Init()
	t1 := s.Spawn("t1", 0x1000)

	s.Unblock(t1) // t1 is Ready, not Blocked; must be a no-op
	if t1.State != Ready {
		t.Fatalf("t1.State = %v, want unchanged Ready", t1.State)
	}
}
