// Package diag implements the kernel's panic and fatal-diagnostics path.
//
// Panic and PanicWithFrame use only console.Sink.PutChar and their own
// minimal, stack-only integer/string formatting: no heap allocation, and
// deliberately no dependency on internal/console.Printf or internal/log,
// either of which could itself be implicated in whatever state the rest of
// the runtime is in when a panic fires. Supported verbs are %s, %d, %u, %x,
// %%; width digits after '%' are consumed and ignored, so "%08x" still
// parses. Unlike internal/console.Printf, a '.' precision marker is not
// skipped.
package diag

import "github.com/itisrazza/ClankerOS/internal/console"

// ArchControl is the seam to the two CPU-level actions a panic needs:
// masking further interrupts and halting. Both are architecture-specific
// and therefore abstracted the same way internal/vmm abstracts CR3/CR0.
type ArchControl interface {
	// DisableInterrupts masks maskable interrupts, irrevocably from the
	// panic path's point of view: nothing re-enables them afterward.
	DisableInterrupts()

	// Halt executes one halt step (e.g. the HLT instruction). Panic calls
	// it in an unbounded loop; a real implementation never returns from
	// that loop's perspective since nothing re-enables interrupts to wake
	// the CPU.
	Halt()
}

// Reporter drives the panic sequence against a fixed pair of sinks and an
// ArchControl.
type Reporter struct {
	text   console.Sink // VGA text-mode sink, or equivalent.
	serial console.Sink // COM1 serial sink, or equivalent.
	arch   ArchControl
}

// New creates a Reporter. text and serial may be the same Sink, or either
// may be console.NullSink{}.
func New(text, serial console.Sink, arch ArchControl) *Reporter {
	return &Reporter{text: text, serial: serial, arch: arch}
}

const banner = "==================== KERNEL PANIC ===================="

// Panic reports a fatal error with no captured register frame. It never
// returns.
func (r *Reporter) Panic(file string, line int, format string, args ...any) {
	r.report(file, line, nil, format, args...)
}

// PanicWithFrame reports a fatal error together with the CPU state captured
// at the fault, dumping every register to the serial sink and a short
// instruction-pointer/stack-pointer summary to the text sink. It never
// returns.
func (r *Reporter) PanicWithFrame(file string, line int, frame *Frame, format string, args ...any) {
	r.report(file, line, frame, format, args...)
}

// Frame is the subset of interrupt.Frame a panic report needs. It is
// defined locally (rather than importing internal/interrupt) so this
// package has no dependency that could itself be implicated in the fault
// being reported; internal/kernel copies an interrupt.Frame into it
// field by field before calling PanicWithFrame.
type Frame struct {
	EDI, ESI, EBP, ESP, EBX, EDX, ECX, EAX uint32
	DS                                     uint32
	Vector, ErrorCode                      uint32
	EIP, CS, EFlags                        uint32
}

func (r *Reporter) report(file string, line int, frame *Frame, format string, args ...any) {
	r.arch.DisableInterrupts()

	r.banner()
	printf(r.text, "Location: %s:%d\n", file, line)
	printf(r.serial, "Location: %s:%d\n", file, line)

	printf(r.text, "Message: ")
	printf(r.text, format, args...)
	printf(r.text, "\n")

	printf(r.serial, "Message: ")
	printf(r.serial, format, args...)
	printf(r.serial, "\n")

	if frame != nil {
		r.dumpFrame(frame)
	}

	r.banner()

	for {
		r.arch.Halt()
	}
}

func (r *Reporter) banner() {
	printf(r.text, "%s\n", banner)
	printf(r.serial, "%s\n", banner)
}

// dumpFrame writes every captured register to the serial sink and a short
// EIP/ESP summary to the text sink.
func (r *Reporter) dumpFrame(f *Frame) {
	printf(r.serial, "EAX=%08x EBX=%08x ECX=%08x EDX=%08x\n", f.EAX, f.EBX, f.ECX, f.EDX)
	printf(r.serial, "ESI=%08x EDI=%08x EBP=%08x ESP=%08x\n", f.ESI, f.EDI, f.EBP, f.ESP)
	printf(r.serial, "DS=%08x CS=%08x EFLAGS=%08x\n", f.DS, f.CS, f.EFlags)
	printf(r.serial, "EIP=%08x VECTOR=%08x ERROR=%08x\n", f.EIP, f.Vector, f.ErrorCode)

	printf(r.text, "EIP=%08x ESP=%08x\n", f.EIP, f.ESP)
}

// printf is diag's own minimal formatter: it writes to sink one byte at a
// time via PutChar and never touches internal/console.Printf or the heap.
// It supports only the verbs a panic report needs: %s, %d, %u, %x, %%.
// Width digits immediately after '%' are consumed and ignored, the same
// "don't desynchronize on %08x" rule internal/console.Printf follows, so
// the two formatters read identically on such forms despite sharing no code.
func printf(sink console.Sink, format string, args ...any) {
	argi := 0

	nextArg := func() any {
		if argi < len(args) {
			a := args[argi]
			argi++

			return a
		}

		return nil
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			sink.PutChar(c)
			i++

			continue
		}

		i++ // consume '%'

		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}

		if i >= len(format) {
			sink.PutChar('%')
			break
		}

		verb := format[i]
		i++

		switch verb {
		case 's':
			putString(sink, stringArg(nextArg()))
		case 'd':
			putInt(sink, intArg(nextArg()))
		case 'u':
			putUint(sink, uintArg(nextArg()), 10)
		case 'x':
			putUint(sink, uintArg(nextArg()), 16)
		case '%':
			sink.PutChar('%')
		default:
			sink.PutChar('%')
			sink.PutChar(verb)
		}
	}
}

func putString(sink console.Sink, s string) {
	for i := 0; i < len(s); i++ {
		sink.PutChar(s[i])
	}
}

func putInt(sink console.Sink, v int64) {
	if v < 0 {
		sink.PutChar('-')
		putUint(sink, uint64(-v), 10)

		return
	}

	putUint(sink, uint64(v), 10)
}

const hexDigits = "0123456789abcdef"

// putUint writes v in the given base (10 for %u, 16 for %x, lowercase). A
// fixed stack array backs the digit buffer; there is no heap involvement
// anywhere in this package.
func putUint(sink console.Sink, v uint64, base uint64) {
	var buf [20]byte

	if v == 0 {
		sink.PutChar('0')
		return
	}

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = hexDigits[v%base]
		v /= base
	}

	putString(sink, string(buf[i:]))
}

func stringArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "(null)"
	case string:
		return v
	default:
		return ""
	}
}

func intArg(a any) int64 {
	switch v := a.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return 0
	}
}

func uintArg(a any) uint64 {
	switch v := a.(type) {
	case int:
		return uint64(v)
	case int32:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	default:
		return 0
	}
}
