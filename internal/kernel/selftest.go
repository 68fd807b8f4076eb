package kernel

import "fmt"

// SelfTestReport is the record BootSelfTests produces for each check run
// when the command line carries the "boottest" token.
type SelfTestReport struct {
	Name string
	Pass bool
	Want string
	Got  string
}

func (r SelfTestReport) String() string {
	if r.Pass {
		return fmt.Sprintf("PASS %s", r.Name)
	}

	return fmt.Sprintf("FAIL %s: want %s, got %s", r.Name, r.Want, r.Got)
}

// BootSelfTests runs the three boot-time self-tests the "boottest"
// command-line token requests: an allocator alloc/free/reuse round trip, an
// identity-map translation check, and a heap alloc/read/free/realloc
// exercise.
func (k *Kernel) BootSelfTests() []SelfTestReport {
	return []SelfTestReport{
		k.testAllocatorReuse(),
		k.testIdentityTranslation(),
		k.testHeapRoundTrip(),
	}
}

// testAllocatorReuse: alloc A, B, C; free B; alloc D must reuse B's address
// (first-fit guarantees it), and A, B, C must be pairwise distinct.
func (k *Kernel) testAllocatorReuse() SelfTestReport {
	const name = "allocator reuse"

	a := k.Frames.Alloc()
	b := k.Frames.Alloc()
	c := k.Frames.Alloc()

	if a == b || b == c || a == c {
		return SelfTestReport{Name: name, Want: "A, B, C pairwise distinct",
			Got: fmt.Sprintf("A=%#x B=%#x C=%#x", a, b, c)}
	}

	k.Frames.Free(b)

	d := k.Frames.Alloc()
	if d != b {
		return SelfTestReport{Name: name, Want: fmt.Sprintf("D == B (%#x)", b),
			Got: fmt.Sprintf("D=%#x", d)}
	}

	return SelfTestReport{Name: name, Pass: true}
}

// testIdentityTranslation: Translate(0x1000) == 0x1000 immediately after
// virtual memory initialization.
func (k *Kernel) testIdentityTranslation() SelfTestReport {
	const name = "identity translation"

	got := k.Mapper.Translate(0x1000)
	if got != 0x1000 {
		return SelfTestReport{Name: name, Want: "0x1000", Got: fmt.Sprintf("%#x", got)}
	}

	return SelfTestReport{Name: name, Pass: true}
}

// testHeapRoundTrip: allocate three blocks, write and read back through the
// second, free it, grow the first via realloc, and free everything.
func (k *Kernel) testHeapRoundTrip() SelfTestReport {
	const name = "heap alloc/read/free/realloc"

	p1 := k.Heap.Alloc(32)
	p2 := k.Heap.Alloc(40)
	p3 := k.Heap.Alloc(64)

	if p1 == 0 || p2 == 0 || p3 == 0 {
		return SelfTestReport{Name: name, Want: "three non-null allocations",
			Got: fmt.Sprintf("p1=%#x p2=%#x p3=%#x", p1, p2, p3)}
	}

	slots := k.Heap.Bytes(p2)
	for i := 0; i < 10; i++ {
		v := uint32(i * 10)
		slots[i*4], slots[i*4+1], slots[i*4+2], slots[i*4+3] =
			byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}

	readBack := uint32(slots[5*4]) | uint32(slots[5*4+1])<<8 | uint32(slots[5*4+2])<<16 | uint32(slots[5*4+3])<<24
	if readBack != 50 {
		return SelfTestReport{Name: name, Want: "slot 5 == 50", Got: fmt.Sprintf("%d", readBack)}
	}

	k.Heap.Free(p2)

	p1b := k.Heap.Realloc(p1, 128)
	if p1b == 0 {
		return SelfTestReport{Name: name, Want: "realloc(p1, 128) != null", Got: "0"}
	}

	k.Heap.Free(p1b)
	k.Heap.Free(p3)

	return SelfTestReport{Name: name, Pass: true}
}
