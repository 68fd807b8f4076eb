// Package timer drives the legacy channel-0 8253 PIT as a fixed-rate tick
// source. It registers its own ISR with internal/interrupt on hardware
// line 0 and forwards every tick to at most one registered sink before
// end-of-interrupt is issued.
package timer

import (
	"github.com/itisrazza/ClankerOS/internal/interrupt"
	"github.com/itisrazza/ClankerOS/internal/ioport"
	"github.com/itisrazza/ClankerOS/internal/log"
)

const (
	cmdPort   uint16 = 0x43
	chan0Port uint16 = 0x40

	// modeSquareWave selects channel 0, low-then-high byte access, mode 3
	// (square wave generator), binary counting.
	modeSquareWave uint8 = 0x36

	// baseFrequency is the PIT's fixed input clock, in Hz.
	baseFrequency = 1193182

	minDivisor = 1
	maxDivisor = 65535
)

// Sink receives the mutable interrupt frame of the tick that invoked it,
// enabling a scheduler to switch contexts from within the timer ISR. At
// most one sink may be registered at a time.
type Sink func(frame *interrupt.Frame)

// Timer is the periodic-tick source. A zero Timer is not usable; construct
// with New.
type Timer struct {
	bus   ioport.Bus
	log   *log.Logger
	ticks uint64
	sink  Sink
	freq  int
}

// New creates a Timer bound to bus. Init must be called before ticks occur.
func New(bus ioport.Bus) *Timer {
	return &Timer{bus: bus, log: log.DefaultLogger()}
}

// Init programs the PIT for requestedHz, registers the tick ISR on hardware
// line 0 of disp, and unmasks that line. It returns the actual frequency the
// hardware will produce, which may differ from requestedHz because the
// divisor is an integer clamped to [1, 65535].
//
// Divisor = baseFrequency / requestedHz, clamped to [1, 65535]; a
// requestedHz of 0 or one large enough to compute a divisor < 1 clamps to
// divisor 1 (the fastest rate), and one small enough to compute a divisor >
// 65535 clamps to 65535 (the slowest rate).
func (t *Timer) Init(disp *interrupt.Dispatcher, requestedHz int) (actualHz int) {
	divisor := 0
	if requestedHz > 0 {
		divisor = baseFrequency / requestedHz
	}

	if divisor < minDivisor {
		divisor = minDivisor
	}
	if divisor > maxDivisor {
		divisor = maxDivisor
	}

	t.bus.Out8(cmdPort, modeSquareWave)
	t.bus.Out8(chan0Port, uint8(divisor&0xFF))
	t.bus.Out8(chan0Port, uint8((divisor>>8)&0xFF))

	t.freq = baseFrequency / divisor

	disp.RegisterHardware(0, t.handle)
	disp.UnmaskHardware(0)

	t.log.Info("timer initialized",
		log.Int("requested_hz", requestedHz),
		log.Int("actual_hz", t.freq),
		log.Uint64("divisor", uint64(divisor)),
	)

	return t.freq
}

// Frequency returns the actual tick frequency most recently programmed by
// Init.
func (t *Timer) Frequency() int { return t.freq }

// Ticks returns the monotonic tick count observed so far. It is safe to call
// from outside interrupt context; interrupts only ever increment it.
func (t *Timer) Ticks() uint64 { return t.ticks }

// SetSink installs the single tick sink, replacing any previous one. A nil
// sink disables forwarding without affecting the tick counter.
func (t *Timer) SetSink(sink Sink) { t.sink = sink }

// handle is the hardware-line-0 handler registered with the dispatcher. It
// increments the tick counter and, if a sink is registered, invokes it with
// the frame before returning control to the dispatcher, which then issues
// end-of-interrupt: the sink runs exactly once per tick and before EOI.
func (t *Timer) handle(frame *interrupt.Frame) {
	t.ticks++

	if t.sink != nil {
		t.sink(frame)
	}
}
