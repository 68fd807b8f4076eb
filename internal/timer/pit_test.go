package timer

import (
	"testing"

	"github.com/itisrazza/ClankerOS/internal/interrupt"
	"github.com/itisrazza/ClankerOS/internal/ioport"
)

func newTestDispatcher() *interrupt.Dispatcher {
	bus := ioport.NewRecording()
	pic := interrupt.NewPIC(bus)
	pic.Remap()

	return interrupt.NewDispatcher(pic, func(uint32, string, *interrupt.Frame) {})
}

func TestInit_programsExpectedDivisor(t *testing.T) {
	t.Parallel()

	bus := ioport.NewRecording()
	tm := New(bus)

	actual := tm.Init(newTestDispatcher(), 100)

	// divisor = 1193182 / 100 = 11931
	wantDivisor := 11931

	if len(bus.Writes) != 3 {
		t.Fatalf("got %d writes, want 3: %+v", len(bus.Writes), bus.Writes)
	}

	if bus.Writes[0] != (ioport.Write{Port: cmdPort, Val: modeSquareWave}) {
		t.Errorf("command write = %+v", bus.Writes[0])
	}

	if got := int(bus.Writes[1].Val) | int(bus.Writes[2].Val)<<8; got != wantDivisor {
		t.Errorf("divisor = %d, want %d", got, wantDivisor)
	}

	if wantHz := baseFrequency / wantDivisor; actual != wantHz {
		t.Errorf("actual hz = %d, want %d", actual, wantHz)
	}
}

func TestInit_clampsDivisor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		requestedHz int
		wantDivisor int
	}{
		{"zero clamps to fastest", 0, minDivisor},
		{"huge request clamps to fastest", 10_000_000, minDivisor},
		{"tiny request clamps to slowest", 1, maxDivisor},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			bus := ioport.NewRecording()
			tm := New(bus)
			tm.Init(newTestDispatcher(), c.requestedHz)

			got := int(bus.Writes[1].Val) | int(bus.Writes[2].Val)<<8
			if got != c.wantDivisor {
				t.Errorf("divisor = %d, want %d", got, c.wantDivisor)
			}
		})
	}
}

func TestTick_incrementsCounterBeforeInvokingSink(t *testing.T) {
	t.Parallel()

	bus := ioport.NewRecording()
	disp := newTestDispatcher()
	tm := New(bus)
	tm.Init(disp, 100)

	sunk := false
	calls := uint64(0)
	tm.SetSink(func(frame *interrupt.Frame) {
		sunk = true
		calls++

		// The counter is incremented before the sink runs, so the n-th
		// invocation observes exactly n ticks.
		if tm.Ticks() != calls {
			t.Errorf("sink call %d observed ticks=%d, want %d", calls, tm.Ticks(), calls)
		}
	})

	disp.Dispatch(&interrupt.Frame{Vector: interrupt.MasterOffset + 0})

	if !sunk {
		t.Fatal("sink was never invoked")
	}

	if tm.Ticks() != 1 {
		t.Fatalf("Ticks() = %d, want 1", tm.Ticks())
	}

	disp.Dispatch(&interrupt.Frame{Vector: interrupt.MasterOffset + 0})

	if tm.Ticks() != 2 {
		t.Fatalf("Ticks() = %d after second tick, want 2", tm.Ticks())
	}
}

func TestTick_noSinkIsFine(t *testing.T) {
	t.Parallel()

	bus := ioport.NewRecording()
	disp := newTestDispatcher()
	tm := New(bus)
	tm.Init(disp, 100)

	disp.Dispatch(&interrupt.Frame{Vector: interrupt.MasterOffset + 0})

	if tm.Ticks() != 1 {
		t.Fatalf("Ticks() = %d, want 1", tm.Ticks())
	}
}
