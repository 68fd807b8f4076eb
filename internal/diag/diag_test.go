package diag

import (
	"strings"
	"testing"
)

// haltSignal is the sentinel a fakeArch's Halt panics with, letting a test
// recover out of Panic's "for { r.arch.Halt() }" loop instead of hanging.
type haltSignal struct{}

type fakeArch struct {
	disabled bool
}

func (a *fakeArch) DisableInterrupts() { a.disabled = true }
func (a *fakeArch) Halt()              { panic(haltSignal{}) }

func recoverHalt(t *testing.T) {
	t.Helper()

	if r := recover(); r != nil {
		if _, ok := r.(haltSignal); !ok {
			panic(r)
		}
	}
}

type bufSink struct{ bytes []byte }

func (b *bufSink) PutChar(c byte) { b.bytes = append(b.bytes, c) }

func TestPanic_writesLocationAndMessageToBothSinks(t *testing.T) {
	t.Parallel()

	text, serial := &bufSink{}, &bufSink{}
	arch := &fakeArch{}
	r := New(text, serial, arch)

	func() {
		defer recoverHalt(t)
		r.Panic("internal/diag/diag_test.go", 42, "boom %d", 7)
	}()

	for _, sink := range []*bufSink{text, serial} {
		got := string(sink.bytes)

		if !strings.Contains(got, "Location: internal/diag/diag_test.go:42") {
			t.Errorf("sink output = %q, missing location", got)
		}

		if !strings.Contains(got, "Message: boom 7") {
			t.Errorf("sink output = %q, missing message", got)
		}

		if !strings.Contains(got, banner) {
			t.Errorf("sink output = %q, missing banner", got)
		}
	}

	if !arch.disabled {
		t.Error("Panic must disable interrupts before reporting")
	}
}

func TestPanic_noFrameOmitsRegisterDump(t *testing.T) {
	t.Parallel()

	text, serial := &bufSink{}, &bufSink{}
	r := New(text, serial, &fakeArch{})

	func() {
		defer recoverHalt(t)
		r.Panic("f.go", 1, "no frame here")
	}()

	if strings.Contains(string(serial.bytes), "EAX=") {
		t.Errorf("serial output should have no register dump without a frame: %q", serial.bytes)
	}
}

func TestPanicWithFrame_dumpsRegistersToSerialOnly(t *testing.T) {
	t.Parallel()

	text, serial := &bufSink{}, &bufSink{}
	r := New(text, serial, &fakeArch{})

	frame := &Frame{
		EAX: 1, EBX: 2, ECX: 3, EDX: 4,
		ESI: 5, EDI: 6, EBP: 7, ESP: 8,
		DS: 0x10, CS: 0x08, EFlags: 0x202,
		EIP: 0xc0ffee, Vector: 14, ErrorCode: 0,
	}

	func() {
		defer recoverHalt(t)
		r.PanicWithFrame("f.go", 1, frame, "page fault")
	}()

	if !strings.Contains(string(serial.bytes), "EAX=1 EBX=2 ECX=3 EDX=4") {
		t.Errorf("serial output = %q, missing full register dump", serial.bytes)
	}

	if !strings.Contains(string(text.bytes), "EIP=c0ffee ESP=8") {
		t.Errorf("text output = %q, missing EIP/ESP summary", text.bytes)
	}

	if strings.Contains(string(text.bytes), "EAX=") {
		t.Errorf("text sink must not receive the full register dump: %q", text.bytes)
	}
}

func TestPanic_neverReturns(t *testing.T) {
	t.Parallel()

	returned := false

	func() {
		defer recoverHalt(t)

		r := New(&bufSink{}, &bufSink{}, &fakeArch{})
		r.Panic("f.go", 1, "unreachable")

		returned = true
	}()

	if returned {
		t.Fatal("Panic returned control; it must halt forever")
	}
}
