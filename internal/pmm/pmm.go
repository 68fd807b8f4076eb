// Package pmm implements the physical frame allocator: a bitmap over 4 KiB
// frames, one bit per frame, with deterministic first-fit allocation and
// counters that only move on a bit transition.
//
// A freestanding build would place the bitmap in physical RAM immediately
// after the kernel image; this implementation, like the rest of the module,
// treats that placement as an architecture-specific concern of the
// (external) boot collaborator and simply accepts the kernel's occupied
// range as input; the bitmap itself lives in the Go heap.
package pmm

import (
	"github.com/itisrazza/ClankerOS/internal/boot"
	"github.com/itisrazza/ClankerOS/internal/log"
)

// FrameSize is the fixed physical page size this module manages.
const FrameSize = 4096

// FrameAddr is a physical address, always a multiple of FrameSize for
// frame-granular operations.
type FrameAddr uintptr

const oneMiB = 1 << 20

// Allocator is a bitmap-backed physical frame allocator. A zero Allocator is
// not usable; construct with New and call Init once.
type Allocator struct {
	bitmap []byte // one bit per frame; 1 = used.

	totalFrames int
	freeFrames  int

	log *log.Logger
}

// New creates an uninitialized Allocator.
func New() *Allocator {
	return &Allocator{log: log.DefaultLogger()}
}

// Init determines total_frames from info (the memory map's highest region
// end if present, else lower+upper memory), marks every frame used, then
// releases available memory to the free pool, and finally reclaims
// {0..1MiB} and {kernelStart..kernelEnd} as used. kernelEnd is expected to
// already account for the bitmap's own footprint, so the reservation runs
// from the kernel image through the end of the bitmap.
//
// Counters only move on a bit transition; calling Init twice, or double
// reserving a range, is harmless.
func (a *Allocator) Init(info *boot.Info, kernelStart, kernelEnd FrameAddr) {
	a.totalFrames = totalFrames(info)
	a.bitmap = make([]byte, (a.totalFrames+7)/8)

	for i := range a.bitmap {
		a.bitmap[i] = 0xFF
	}

	a.freeFrames = 0

	if info.HasMemoryMap() {
		for _, region := range info.MemoryMap {
			if region.Type != boot.RegionAvailable {
				continue
			}

			a.releaseRange(FrameAddr(region.Address), FrameAddr(region.Address+region.Length))
		}
	} else {
		upperEnd := oneMiB + uint64(info.UpperMemKB)*1024
		a.releaseRange(oneMiB, FrameAddr(upperEnd))
	}

	a.reserveRange(0, oneMiB)
	a.reserveRange(kernelStart, kernelEnd)

	a.log.Info("physical frame allocator initialized",
		log.Int("total_frames", a.totalFrames),
		log.Uint64("free_bytes", uint64(a.FreeBytes())),
	)
}

// totalFrames determines the frame count from the memory map's highest
// region end address, or lower+upper memory as a fallback.
func totalFrames(info *boot.Info) int {
	if info.HasMemoryMap() {
		var highest uint64

		for _, region := range info.MemoryMap {
			end := region.Address + region.Length
			if end > highest {
				highest = end
			}
		}

		return int(highest / FrameSize)
	}

	totalBytes := uint64(info.LowerMemKB)*1024 + oneMiB + uint64(info.UpperMemKB)*1024

	return int(totalBytes / FrameSize)
}

func (a *Allocator) frameIndex(addr FrameAddr) int { return int(addr) / FrameSize }

// bit reports the used/free bit for frame index i.
func (a *Allocator) bit(i int) bool {
	return a.bitmap[i/8]&(1<<uint(i%8)) != 0
}

func (a *Allocator) setBit(i int) {
	if !a.bit(i) {
		a.bitmap[i/8] |= 1 << uint(i%8)
		a.freeFrames--
	}
}

func (a *Allocator) clearBit(i int) {
	if a.bit(i) {
		a.bitmap[i/8] &^= 1 << uint(i%8)
		a.freeFrames++
	}
}

// releaseRange clears the bits for every frame fully contained in
// [start, end), marking them free.
func (a *Allocator) releaseRange(start, end FrameAddr) {
	for i := a.frameIndex(start); i < a.frameIndex(end) && i < a.totalFrames; i++ {
		a.clearBit(i)
	}
}

// reserveRange sets the bits for every frame overlapping [start, end),
// marking them used.
func (a *Allocator) reserveRange(start, end FrameAddr) {
	first := a.frameIndex(start)
	last := (int(end) + FrameSize - 1) / FrameSize

	for i := first; i < last && i < a.totalFrames; i++ {
		a.setBit(i)
	}
}

// Alloc scans the bitmap for the first clear bit, marks it used, and
// returns its physical address, or zero on exhaustion.
func (a *Allocator) Alloc() FrameAddr {
	for i := 0; i < a.totalFrames; i++ {
		if !a.bit(i) {
			a.setBit(i)
			return FrameAddr(i * FrameSize)
		}
	}

	return 0
}

// Free clears the bit for the frame at addr, returning it to the free pool.
// A non-page-aligned address is silently ignored.
func (a *Allocator) Free(addr FrameAddr) {
	if addr%FrameSize != 0 {
		return
	}

	i := a.frameIndex(addr)
	if i < 0 || i >= a.totalFrames {
		return
	}

	a.clearBit(i)
}

// TotalBytes returns the total managed memory, in bytes.
func (a *Allocator) TotalBytes() uint64 { return uint64(a.totalFrames) * FrameSize }

// FreeBytes returns the currently free memory, in bytes.
func (a *Allocator) FreeBytes() uint64 { return uint64(a.freeFrames) * FrameSize }

// UsedBytes returns the currently allocated memory, in bytes.
func (a *Allocator) UsedBytes() uint64 { return a.TotalBytes() - a.FreeBytes() }
