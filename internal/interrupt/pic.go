package interrupt

import "github.com/itisrazza/ClankerOS/internal/ioport"

// Port addresses and initialization words for the cascaded 8259 PIC pair.
const (
	picMasterCmd  uint16 = 0x20
	picMasterData uint16 = 0x21
	picSlaveCmd   uint16 = 0xA0
	picSlaveData  uint16 = 0xA1

	icw1Init = 0x11 // ICW1: edge triggered, cascade mode, ICW4 needed.
	icw4x86  = 0x01

	eoi = 0x20 // End-of-interrupt command byte.
)

// MasterOffset and SlaveOffset are the CPU vectors the two PIC lines are
// remapped to. IRQ n maps to vector MasterOffset+n for n<8 and
// SlaveOffset+(n-8) for n>=8.
const (
	MasterOffset uint32 = 32
	SlaveOffset  uint32 = 40
)

// PIC drives the cascaded 8259 pair through a port bus.
type PIC struct {
	bus ioport.Bus
}

// NewPIC creates a PIC driver bound to bus. Remap performs the standard
// ICW1..ICW4 initialization sequence and masks every line; callers unmask
// individual IRQs (e.g. the timer unmasks IRQ0 in its own Init).
func NewPIC(bus ioport.Bus) *PIC {
	return &PIC{bus: bus}
}

// Remap reprograms both PICs to route IRQ0..15 to vectors MasterOffset and
// SlaveOffset via the standard ICW1/ICW2/ICW3/ICW4 sequence, and masks
// every line.
func (p *PIC) Remap() {
	p.bus.Out8(picMasterCmd, icw1Init)
	p.bus.Out8(picSlaveCmd, icw1Init)

	p.bus.Out8(picMasterData, uint8(MasterOffset))
	p.bus.Out8(picSlaveData, uint8(SlaveOffset))

	p.bus.Out8(picMasterData, 0x04) // ICW3: slave attached on IRQ2.
	p.bus.Out8(picSlaveData, 0x02)  // ICW3: slave's cascade identity.

	p.bus.Out8(picMasterData, icw4x86)
	p.bus.Out8(picSlaveData, icw4x86)

	p.bus.Out8(picMasterData, 0xFF) // OCW1: mask every line.
	p.bus.Out8(picSlaveData, 0xFF)
}

// Unmask clears the mask bit for IRQ line irq (0..15).
func (p *PIC) Unmask(irq uint8) {
	port, bit := p.lineRegister(irq)

	mask := p.bus.In8(port)
	mask &^= 1 << bit
	p.bus.Out8(port, mask)
}

// Mask sets the mask bit for IRQ line irq (0..15).
func (p *PIC) Mask(irq uint8) {
	port, bit := p.lineRegister(irq)

	mask := p.bus.In8(port)
	mask |= 1 << bit
	p.bus.Out8(port, mask)
}

func (p *PIC) lineRegister(irq uint8) (port uint16, bit uint8) {
	if irq < 8 {
		return picMasterData, irq
	}

	return picSlaveData, irq - 8
}

// EOI sends end-of-interrupt for the given IRQ line: always to the master,
// and additionally to the slave when the line is on the secondary
// controller (irq >= 8).
func (p *PIC) EOI(irq uint8) {
	if irq >= 8 {
		p.bus.Out8(picSlaveCmd, eoi)
	}

	p.bus.Out8(picMasterCmd, eoi)
}
