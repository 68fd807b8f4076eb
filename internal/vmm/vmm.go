// Package vmm implements the two-level x86 page directory / page table
// mapper: Flag* entry bits and a walk-the-tables Map/Unmap/Translate API.
//
// Real physical memory is not addressable from a hosted Go process, so page
// tables are kept in an in-process map keyed by the physical frame address
// internal/pmm handed out for them: the logic above the hardware seam is
// identical to a real freestanding build, only the seam's implementation
// differs.
package vmm

import (
	"errors"

	"github.com/itisrazza/ClankerOS/internal/log"
	"github.com/itisrazza/ClankerOS/internal/pmm"
)

// PageSize is the mapping granularity; must match pmm.FrameSize.
const PageSize = pmm.FrameSize

const entriesPerTable = 1024

// identityMapBytes is the range the kernel identity-maps during Init:
// 1,024 pages (4 MiB).
const identityMapBytes = 1024 * PageSize

// Flag is a page-table/page-directory entry bit.
type Flag uint32

const (
	FlagPresent  Flag = 1 << 0
	FlagWritable Flag = 1 << 1

	entryAddrMask uint32 = ^uint32(PageSize - 1)
)

// ErrOutOfMemory is returned when Map needs a new page table and the
// physical frame allocator is exhausted.
var ErrOutOfMemory = errors.New("vmm: out of physical memory")

type pageTable [entriesPerTable]uint32

// ArchControl is the seam to the CR3/CR0 control registers and the TLB
// invalidate instruction: the one piece of this package that must touch
// real hardware, and therefore the one piece abstracted behind an
// interface.
type ArchControl interface {
	// LoadDirectory loads the physical address of the page directory into
	// CR3.
	LoadDirectory(phys pmm.FrameAddr)

	// EnablePaging sets the paging-enable bit in CR0.
	EnablePaging()

	// InvalidatePage invalidates any cached translation for virt.
	InvalidatePage(virt uintptr)
}

// NullArchControl discards every call; useful in tests that only exercise
// the table-walking logic.
type NullArchControl struct{}

func (NullArchControl) LoadDirectory(pmm.FrameAddr) {}
func (NullArchControl) EnablePaging()               {}
func (NullArchControl) InvalidatePage(uintptr)      {}

// Mapper owns a single kernel page directory and every page table it
// references.
type Mapper struct {
	frames *pmm.Allocator
	arch   ArchControl
	log    *log.Logger

	directoryAddr pmm.FrameAddr
	directory     *pageTable

	// tables simulates the physical-memory backing of each page table,
	// keyed by the frame address the allocator gave it.
	tables map[pmm.FrameAddr]*pageTable
}

// New creates a Mapper over frames, using arch for the hardware seam.
func New(frames *pmm.Allocator, arch ArchControl) *Mapper {
	return &Mapper{frames: frames, arch: arch, log: log.DefaultLogger()}
}

// DirectoryAddr returns the physical address of the kernel page directory.
// Every task in this kernel shares it (there is no isolation between
// tasks), so the scheduler uses this as every TCB's address-space handle.
func (m *Mapper) DirectoryAddr() pmm.FrameAddr { return m.directoryAddr }

// LoadAddressSpace loads dir into the address-translation control register.
// The scheduler calls this on a context switch when the incoming task's
// address space differs from the outgoing one's; since every task shares
// the kernel directory today, this is always a no-op in practice but kept
// for when per-task address spaces are introduced.
func (m *Mapper) LoadAddressSpace(dir pmm.FrameAddr) { m.arch.LoadDirectory(dir) }

// Init allocates the kernel page directory, identity-maps the first 4 MiB,
// loads the directory, and enables paging.
func (m *Mapper) Init() error {
	addr := m.frames.Alloc()
	if addr == 0 {
		return ErrOutOfMemory
	}

	m.directoryAddr = addr
	m.directory = &pageTable{}
	m.tables = make(map[pmm.FrameAddr]*pageTable)

	for virt := uintptr(0); virt < identityMapBytes; virt += PageSize {
		if err := m.Map(virt, virt, FlagPresent|FlagWritable); err != nil {
			return err
		}
	}

	m.arch.LoadDirectory(m.directoryAddr)
	m.arch.EnablePaging()

	m.log.Info("virtual memory enabled",
		log.Uint64("identity_mapped_bytes", uint64(identityMapBytes)),
	)

	return nil
}

func split(virt uintptr) (dirIndex, tableIndex int) {
	return int((virt >> 22) & 0x3FF), int((virt >> 12) & 0x3FF)
}

// Map installs a translation from virt to phys with the given flags. If the
// containing page table does not yet exist, one is allocated from the
// physical frame allocator, zeroed, and installed with {present|writable} in
// the directory; flags apply only to the leaf page-table entry. The TLB
// entry for virt is invalidated afterward.
func (m *Mapper) Map(virt, phys uintptr, flags Flag) error {
	dirIndex, tableIndex := split(virt)

	table, err := m.tableFor(dirIndex, true)
	if err != nil {
		return err
	}

	table[tableIndex] = uint32(phys)&entryAddrMask | uint32(flags)
	m.arch.InvalidatePage(virt)

	return nil
}

// Unmap clears the page-table entry for virt and invalidates its TLB entry.
// Unmapping an address with no containing page table is a no-op.
func (m *Mapper) Unmap(virt uintptr) {
	dirIndex, tableIndex := split(virt)

	table, err := m.tableFor(dirIndex, false)
	if err != nil || table == nil {
		return
	}

	table[tableIndex] = 0
	m.arch.InvalidatePage(virt)
}

// Translate returns the physical address virt maps to, or zero if any
// intermediate entry lacks the present bit.
func (m *Mapper) Translate(virt uintptr) uintptr {
	dirIndex, tableIndex := split(virt)

	table, err := m.tableFor(dirIndex, false)
	if err != nil || table == nil {
		return 0
	}

	entry := table[tableIndex]
	if entry&uint32(FlagPresent) == 0 {
		return 0
	}

	page := uintptr(entry & entryAddrMask)
	offset := virt & (PageSize - 1)

	return page | offset
}

// tableFor returns the page table backing directory slot dirIndex,
// allocating and installing it on a miss when create is true. Before Init
// has allocated the directory, a lookup without create finds no table.
func (m *Mapper) tableFor(dirIndex int, create bool) (*pageTable, error) {
	if m.directory == nil && !create {
		return nil, nil
	}

	entry := m.directory[dirIndex]

	if entry&uint32(FlagPresent) == 0 {
		if !create {
			return nil, nil
		}

		addr := m.frames.Alloc()
		if addr == 0 {
			return nil, ErrOutOfMemory
		}

		table := &pageTable{}
		m.tables[addr] = table
		m.directory[dirIndex] = uint32(addr)&entryAddrMask | uint32(FlagPresent|FlagWritable)

		return table, nil
	}

	addr := pmm.FrameAddr(entry & entryAddrMask)

	return m.tables[addr], nil
}
