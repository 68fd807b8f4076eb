// Package heap implements the kernel heap: a first-fit, singly-linked
// block list over a growable virtual range, grown on demand by pulling
// frames from internal/pmm and mapping them through internal/vmm.
//
// A hosted Go process has no raw memory at 0x00500000 to hand out pointers
// into, so the heap's payload storage is a backing byte slice addressed by
// offset; Ptr values are still expressed in the heap's real virtual address
// space (Base-relative) so callers reason about them as kernel virtual
// addresses, and Bytes translates a Ptr into the slice view that holds it.
package heap

import (
	"errors"

	"github.com/itisrazza/ClankerOS/internal/log"
	"github.com/itisrazza/ClankerOS/internal/pmm"
	"github.com/itisrazza/ClankerOS/internal/vmm"
)

// Ptr is a heap-relative virtual address; the zero value is the null
// pointer every failed allocation returns.
type Ptr uintptr

const (
	// Base and Limit bound the heap's virtual address range.
	Base  Ptr = 0x00500000
	Limit Ptr = 0x10000000

	initialSize = 1 << 20 // 1 MiB

	payloadAlign = 16

	// headerSize is the simulated per-block bookkeeping cost; it is counted
	// against "used" the same way a real block header would be.
	headerSize = 16

	minGrowthPages = 4
)

// ErrOutOfMemory is returned when growth fails because the physical
// allocator is exhausted or the heap limit is reached. A failed mapping
// returns the mapper's own error instead.
var ErrOutOfMemory = errors.New("heap: out of memory")

type block struct {
	offset int // offset into buf
	size   int // payload size, excluding header
	free   bool
	next   *block
}

// Heap is the kernel's single dynamic-allocation arena.
type Heap struct {
	frames *pmm.Allocator
	mapper *vmm.Mapper
	log    *log.Logger

	buf       []byte
	committed int // bytes backed by real frames, == len(buf)

	head *block

	totalBytes int
	usedBytes  int
}

// New creates an uninitialized Heap. Call Init before use.
func New(frames *pmm.Allocator, mapper *vmm.Mapper) *Heap {
	return &Heap{frames: frames, mapper: mapper, log: log.DefaultLogger()}
}

// Init commits the initial 1 MiB of the heap region and creates the single
// initial free block spanning it.
func (h *Heap) Init() error {
	if err := h.grow(initialSize); err != nil {
		return err
	}

	h.head = &block{offset: 0, size: h.committed - headerSize, free: true}
	h.totalBytes = h.committed

	return nil
}

func align(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}

// Alloc returns a Ptr to size bytes of storage, first-fit from the free
// list, growing the heap on failure. Storage is not cleared: a reused block
// still holds whatever bytes were last written to it. Alloc(0) returns null
// without mutating state.
func (h *Heap) Alloc(size int) Ptr {
	if size <= 0 {
		return 0
	}

	size = align(size, payloadAlign)

	if b := h.findFit(size); b != nil {
		h.use(b, size)
		return Ptr(Base) + Ptr(b.offset)
	}

	if err := h.growFor(size); err != nil {
		return 0
	}

	b := h.findFit(size)
	if b == nil {
		return 0
	}

	h.use(b, size)

	return Ptr(Base) + Ptr(b.offset)
}

func (h *Heap) findFit(size int) *block {
	for b := h.head; b != nil; b = b.next {
		if b.free && b.size >= size {
			return b
		}
	}

	return nil
}

// use marks b allocated, splitting off a trailing free block when there is
// enough surplus (at least header+16 bytes) to be worth it.
func (h *Heap) use(b *block, size int) {
	surplus := b.size - size

	if surplus >= headerSize+payloadAlign {
		newBlock := &block{
			offset: b.offset + size + headerSize,
			size:   surplus - headerSize,
			free:   true,
			next:   b.next,
		}

		b.next = newBlock
		b.size = size
	}

	b.free = false
	h.usedBytes += b.size
}

// Free marks the block at p free and performs one pass of adjacent-pair
// coalescing over the whole list. Freeing null is a no-op.
func (h *Heap) Free(p Ptr) {
	if p == 0 {
		return
	}

	b := h.blockAt(p)
	if b == nil || b.free {
		return
	}

	b.free = true
	h.usedBytes -= b.size

	h.coalesce()
}

// coalesce performs a single pass merging adjacent, physically contiguous,
// mutually free blocks. After a merge, b is re-tested against its new
// b.next instead of advancing, so a run of three or more mutually free,
// contiguous blocks collapses into one block in the same pass rather than
// leaving the tail blocks unmerged.
func (h *Heap) coalesce() {
	b := h.head

	for b != nil && b.next != nil {
		n := b.next

		if b.free && n.free && b.offset+b.size == n.offset-headerSize {
			b.size += headerSize + n.size
			b.next = n.next

			continue
		}

		b = b.next
	}
}

// Realloc resizes the allocation at p: null source is alloc(n); newSize 0
// is free(p); an existing block that already fits is returned unchanged;
// otherwise a fresh block is allocated, min(old,new) bytes are copied, and
// the old block is freed.
func (h *Heap) Realloc(p Ptr, newSize int) Ptr {
	if p == 0 {
		return h.Alloc(newSize)
	}

	if newSize == 0 {
		h.Free(p)
		return 0
	}

	b := h.blockAt(p)
	if b == nil {
		return 0
	}

	aligned := align(newSize, payloadAlign)
	if b.size >= aligned {
		return p
	}

	np := h.Alloc(newSize)
	if np == 0 {
		return 0
	}

	copy(h.Bytes(np), h.Bytes(p)[:min(b.size, newSize)])
	h.Free(p)

	return np
}

// Bytes returns the payload storage backing p, sized to its current block.
// It panics if p does not refer to a live block, the same contract a bad
// pointer dereference would have on real hardware.
func (h *Heap) Bytes(p Ptr) []byte {
	b := h.blockAt(p)
	if b == nil {
		panic("heap: Bytes of invalid pointer")
	}

	return h.buf[b.offset : b.offset+b.size]
}

func (h *Heap) blockAt(p Ptr) *block {
	offset := int(p - Base)

	for b := h.head; b != nil; b = b.next {
		if b.offset == offset {
			return b
		}
	}

	return nil
}

// growFor grows the heap enough to satisfy an allocation of size bytes:
// request size+header rounded up to a page, with a floor of four pages.
func (h *Heap) growFor(size int) error {
	needed := align(size+headerSize, pmm.FrameSize)
	if floor := minGrowthPages * pmm.FrameSize; needed < floor {
		needed = floor
	}

	before := h.committed

	if err := h.grow(needed); err != nil {
		return err
	}

	added := h.committed - before
	if added <= headerSize {
		return ErrOutOfMemory
	}

	newBlock := &block{offset: before, size: added - headerSize, free: true}

	// Appended without merging into the previous tail block, even if
	// contiguous: growth blocks only coalesce on the next Free, per design.
	last := h.head
	for last.next != nil {
		last = last.next
	}

	last.next = newBlock
	h.totalBytes += added

	h.log.Debug("heap grown",
		log.Int("added_bytes", added),
		log.Int("total_bytes", h.totalBytes),
	)

	return nil
}

// grow commits n additional bytes of the heap region: one frame per page,
// mapped writable through the virtual memory mapper. If a mapping fails
// partway through, the offending frame is returned and growth stops; pages
// already committed are kept.
func (h *Heap) grow(n int) error {
	pages := align(n, pmm.FrameSize) / pmm.FrameSize

	for i := 0; i < pages; i++ {
		if Base+Ptr(h.committed)+Ptr(pmm.FrameSize) > Limit {
			return ErrOutOfMemory
		}

		frame := h.frames.Alloc()
		if frame == 0 {
			return ErrOutOfMemory
		}

		virt := uintptr(Base) + uintptr(h.committed)

		if err := h.mapper.Map(virt, uintptr(frame), vmm.FlagPresent|vmm.FlagWritable); err != nil {
			h.frames.Free(frame)
			return err
		}

		h.buf = append(h.buf, make([]byte, pmm.FrameSize)...)
		h.committed += pmm.FrameSize
	}

	return nil
}

// TotalBytes, UsedBytes, and FreeBytes report the heap's byte-count
// statistics: total grows only with expansion, used and free sum to total
// minus header bytes.
func (h *Heap) TotalBytes() int { return h.totalBytes }
func (h *Heap) UsedBytes() int  { return h.usedBytes }
func (h *Heap) FreeBytes() int  { return h.totalBytes - h.usedBytes - h.headerOverhead() }

// headerOverhead sums the header bytes of every block currently in the
// list, so Used+Free+headers == Total exactly.
func (h *Heap) headerOverhead() int {
	n := 0

	for b := h.head; b != nil; b = b.next {
		n += headerSize
	}

	return n
}
