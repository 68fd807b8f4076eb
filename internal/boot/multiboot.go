// Package boot holds the Multiboot 1 contracts the (external) boot assembly
// and bootloader satisfy, and the kernel command-line parsing.
//
// Nothing here executes before kernel_main: the header is a build-time
// constant laid out the way the bootloader expects to find it, and Info is
// populated by the boot stub before the Go-level entry point ever runs.
// internal/boot's job is to give the rest of the module typed, idiomatic
// access to that already-parsed information.
package boot

import "strings"

const (
	// Magic is the value the bootloader leaves in a register on entry.
	Magic uint32 = 0x1BADB002

	flagAlignModulesOnPageBoundaries uint32 = 1 << 0
	flagProvideMemoryMap             uint32 = 1 << 1

	// HeaderFlags is the flags field of the Multiboot header this kernel
	// ships: align modules on page boundaries, provide a memory map.
	HeaderFlags = flagAlignModulesOnPageBoundaries | flagProvideMemoryMap

	// HeaderChecksum is the checksum field required by the protocol:
	// -(magic + flags), computed mod 2^32. Written as two's complement
	// because Go rejects a constant negation that leaves uint32's range.
	HeaderChecksum = ^(Magic + HeaderFlags) + 1
)

// infoFlag bits, indexing Info.Flags.
const (
	FlagMemory  infoFlag = 1 << 0
	FlagMmap    infoFlag = 1 << 6
	FlagCmdline infoFlag = 1 << 2
)

type infoFlag uint32

// MemoryMapEntry is a single Multiboot memory-map record. Size excludes its
// own field, per the protocol.
type MemoryMapEntry struct {
	Size    uint32
	Address uint64
	Length  uint64
	Type    uint32
}

// RegionType values for MemoryMapEntry.Type.
const (
	RegionAvailable = 1
	RegionReserved  = 2
)

// Info is the Go projection of the Multiboot information structure the
// bootloader hands the kernel entry. It is populated once, before
// kernel_main runs, by the (external) boot stub; nothing in this module
// mutates it.
type Info struct {
	Flags infoFlag

	// LowerMemKB and UpperMemKB are valid when FlagMemory is set.
	LowerMemKB uint32
	UpperMemKB uint32

	// MemoryMap is valid when FlagMmap is set; nil otherwise.
	MemoryMap []MemoryMapEntry

	// CommandLine is the raw, unparsed command line; valid when
	// FlagCmdline is set, empty otherwise. Use ParseCommandLine to
	// interpret it.
	CommandLine string
}

// HasMemoryMap reports whether the bootloader supplied a memory map.
func (i *Info) HasMemoryMap() bool { return i.Flags&FlagMmap != 0 }

// HasCommandLine reports whether the bootloader supplied a command line.
func (i *Info) HasCommandLine() bool { return i.Flags&FlagCmdline != 0 }

// CommandLine is the parsed form of the kernel command line.
// ParseCommandLine returns a fresh value every call: there is no shared
// mutable state to alias, so concurrent or repeated lookups are safe by
// construction.
type CommandLine struct {
	EarlyConsole  bool
	BootTest      bool
	TestPanic     bool
	TestPageFault bool

	// raw holds the unrecognized tokens, in order, for diagnostics.
	raw []string
}

// ParseCommandLine tokenizes s on whitespace and recognizes the tokens the
// kernel acts on: earlycon, boottest, testpanic, testpagefault. Unknown
// tokens are preserved in Raw() but otherwise ignored.
func ParseCommandLine(s string) CommandLine {
	var cl CommandLine

	for _, tok := range strings.Fields(s) {
		switch tok {
		case "earlycon":
			cl.EarlyConsole = true
		case "boottest":
			cl.BootTest = true
		case "testpanic":
			cl.TestPanic = true
		case "testpagefault":
			cl.TestPageFault = true
		default:
			cl.raw = append(cl.raw, tok)
		}
	}

	return cl
}

// Raw returns the tokens ParseCommandLine did not recognize, in order.
func (c CommandLine) Raw() []string { return c.raw }
