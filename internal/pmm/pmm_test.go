package pmm

import (
	"testing"

	"github.com/itisrazza/ClankerOS/internal/boot"
)

func TestInit_fallbackMemory_noMemoryMap(t *testing.T) {
	t.Parallel()

	info := &boot.Info{
		Flags:      boot.FlagMemory,
		LowerMemKB: 639,
		UpperMemKB: 7 * 1024, // 7 MiB above the 1 MiB mark
	}

	a := New()
	a.Init(info, 0, FrameSize) // pretend the kernel+bitmap occupies frame 0

	wantTotal := uint64(639*1024+oneMiB+7*1024*1024) / FrameSize * FrameSize
	if a.TotalBytes() != wantTotal {
		t.Fatalf("TotalBytes() = %d, want %d", a.TotalBytes(), wantTotal)
	}

	// Frame 0 is reserved (low memory) in addition to the kernel range, so it
	// must not be free, and the rest of the first MiB is reserved too.
	if a.bit(0) != true {
		t.Fatalf("frame 0 should be reserved")
	}

	if a.FreeBytes() == 0 {
		t.Fatal("expected some free memory from upper memory region")
	}
}

func TestInit_memoryMap_releasesOnlyAvailableRegions(t *testing.T) {
	t.Parallel()

	info := &boot.Info{
		Flags: boot.FlagMmap,
		MemoryMap: []boot.MemoryMapEntry{
			{Address: 0, Length: oneMiB, Type: boot.RegionAvailable},
			{Address: oneMiB, Length: oneMiB, Type: boot.RegionReserved},
			{Address: 2 * oneMiB, Length: 2 * oneMiB, Type: boot.RegionAvailable},
		},
	}

	a := New()
	a.Init(info, 0, 0)

	// The reserved 1..2 MiB range must never be free.
	for addr := FrameAddr(oneMiB); addr < 2*oneMiB; addr += FrameSize {
		if !a.bit(a.frameIndex(addr)) {
			t.Fatalf("frame at %#x in reserved region should be used", addr)
		}
	}

	// The available 2..4 MiB range should be free (kernelStart==kernelEnd==0
	// reserves nothing beyond the implicit low-memory reservation).
	addr := FrameAddr(3 * oneMiB)
	if a.bit(a.frameIndex(addr)) {
		t.Fatalf("frame at %#x in available region should be free", addr)
	}
}

func TestAllocFree_firstFitAndCounters(t *testing.T) {
	t.Parallel()

	info := &boot.Info{
		Flags: boot.FlagMmap,
		MemoryMap: []boot.MemoryMapEntry{
			{Address: oneMiB, Length: 4 * FrameSize, Type: boot.RegionAvailable},
		},
	}

	a := New()
	a.Init(info, oneMiB, oneMiB) // nothing beyond the low-memory reservation

	freeBefore := a.FreeBytes()
	if freeBefore != 4*FrameSize {
		t.Fatalf("freeBefore = %d, want %d", freeBefore, 4*FrameSize)
	}

	f1 := a.Alloc()
	f2 := a.Alloc()

	if f1 == f2 {
		t.Fatalf("Alloc returned the same frame twice: %#x", f1)
	}

	if a.FreeBytes() != freeBefore-2*FrameSize {
		t.Fatalf("FreeBytes() = %d after 2 allocs, want %d", a.FreeBytes(), freeBefore-2*FrameSize)
	}

	a.Free(f1)

	if a.FreeBytes() != freeBefore-FrameSize {
		t.Fatalf("FreeBytes() = %d after free, want %d", a.FreeBytes(), freeBefore-FrameSize)
	}

	// First-fit: the next alloc should reuse f1, the lowest free frame.
	f3 := a.Alloc()
	if f3 != f1 {
		t.Fatalf("Alloc() = %#x, want reused frame %#x", f3, f1)
	}
}

func TestFree_ignoresMisalignedAddress(t *testing.T) {
	t.Parallel()

	info := &boot.Info{Flags: boot.FlagMemory, LowerMemKB: 0, UpperMemKB: 1024}
	a := New()
	a.Init(info, 0, 0)

	before := a.FreeBytes()
	a.Free(FrameAddr(oneMiB + 1)) // not frame-aligned

	if a.FreeBytes() != before {
		t.Fatalf("FreeBytes() changed after misaligned Free: %d != %d", a.FreeBytes(), before)
	}
}

func TestAlloc_exhaustionReturnsZero(t *testing.T) {
	t.Parallel()

	info := &boot.Info{
		Flags: boot.FlagMmap,
		MemoryMap: []boot.MemoryMapEntry{
			{Address: oneMiB, Length: FrameSize, Type: boot.RegionAvailable},
		},
	}

	a := New()
	a.Init(info, oneMiB, oneMiB) // reserve nothing extra beyond the low-memory baseline

	if a.FreeBytes() != FrameSize {
		t.Fatalf("FreeBytes() = %d, want %d", a.FreeBytes(), FrameSize)
	}

	if got := a.Alloc(); got == 0 {
		t.Fatalf("Alloc() on a single free frame = 0, want a nonzero address")
	}

	if got := a.Alloc(); got != 0 {
		t.Fatalf("Alloc() on exhausted pool = %#x, want 0", got)
	}
}
