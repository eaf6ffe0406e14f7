// Package cpu emulates the Sharp LR35902, the 8 bit core of the DMG.
package cpu

import (
	"fmt"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// Bus is the memory interface the CPU executes against. The CPU holds it for
// its whole life but only touches it during Exec.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// Flag is one of the four condition flags packed in the high nibble of F.
type Flag uint8

const (
	flagZ Flag = 0x80 // zero
	flagN Flag = 0x40 // subtract
	flagH Flag = 0x20 // half carry
	flagC Flag = 0x10 // carry
)

// interruptCycles is the cost of servicing an interrupt (5 machine cycles).
const interruptCycles = 20

// DecodeError reports an opcode with no implementation. The core makes no
// guess about the instruction length, the caller decides how to proceed.
type DecodeError struct {
	Opcode   byte
	Prefixed bool // true when Opcode is the byte after a 0xCB prefix
	PC       uint16
}

func (e *DecodeError) Error() string {
	if e.Prefixed {
		return fmt.Sprintf("unknown opcode 0xCB 0x%02X at 0x%04X", e.Opcode, e.PC)
	}
	return fmt.Sprintf("unknown opcode 0x%02X at 0x%04X", e.Opcode, e.PC)
}

// CPU holds the LR35902 register file and execution state.
type CPU struct {
	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8
	sp   uint16
	pc   uint16

	ime       bool
	eiPending bool // EI enables interrupts after the following instruction
	halted    bool
	stopped   bool
	haltBug   bool // next opcode byte is fetched without advancing PC
	cycles    uint64

	bus Bus
}

// New returns a CPU wired to the given bus. All state is zero, as if the
// boot ROM were about to run; call ApplyPostBootState to skip it.
func New(bus Bus) *CPU {
	return &CPU{bus: bus}
}

// ApplyPostBootState sets the register values the DMG boot ROM leaves behind.
func (c *CPU) ApplyPostBootState() {
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
}

// Exec services one pending interrupt or executes one instruction, returning
// its cycle cost. Peripherals are not ticked here; the orchestrator forwards
// the returned cycles.
func (c *CPU) Exec() (int, error) {
	if c.serviceInterrupt() {
		return interruptCycles, nil
	}

	if c.halted {
		// HALT ends as soon as an interrupt is pending, IME or not.
		if !c.interruptPending() {
			return 4, nil
		}
		c.halted = false
	}

	if c.stopped {
		// STOP ends on a joypad line going low or any pending enabled
		// interrupt.
		joypadFlagged := c.bus.Read(addr.IF)&addr.Joypad.Mask() != 0
		if !joypadFlagged && !c.interruptPending() {
			return 4, nil
		}
		c.stopped = false
	}

	opPC := c.pc
	opcode := c.bus.Read(c.pc)
	if c.haltBug {
		// The bugged fetch does not advance PC, so this byte is seen
		// again: once as this opcode and once more afterwards.
		c.haltBug = false
	} else {
		c.pc++
	}

	enableIME := c.eiPending

	var instr Opcode
	if opcode == 0xCB {
		sub := c.fetch()
		instr = cbTable[sub]
		if instr == nil {
			return 0, &DecodeError{Opcode: sub, Prefixed: true, PC: opPC}
		}
	} else {
		instr = primary[opcode]
		if instr == nil {
			return 0, &DecodeError{Opcode: opcode, PC: opPC}
		}
	}

	cycles := instr(c)
	c.cycles += uint64(cycles)

	// The instruction after EI runs with interrupts still disabled.
	// DI in that slot clears eiPending and cancels the enable.
	if enableIME && c.eiPending {
		c.eiPending = false
		c.ime = true
	}

	return cycles, nil
}

// interruptPending reports whether any enabled interrupt has been requested,
// regardless of IME.
func (c *CPU) interruptPending() bool {
	return c.bus.Read(addr.IE)&c.bus.Read(addr.IF)&0x1F != 0
}

// serviceInterrupt dispatches the highest priority pending interrupt when
// IME is set: clears its IF bit, disables IME, pushes PC and jumps to the
// fixed vector.
func (c *CPU) serviceInterrupt() bool {
	if !c.ime {
		return false
	}
	pending := c.bus.Read(addr.IE) & c.bus.Read(addr.IF) & 0x1F
	if pending == 0 {
		return false
	}

	for irq := addr.VBlank; irq <= addr.Joypad; irq++ {
		if pending&irq.Mask() == 0 {
			continue
		}
		c.bus.Write(addr.IF, c.bus.Read(addr.IF)&^irq.Mask())
		c.ime = false
		c.eiPending = false
		c.halted = false
		c.push(c.pc)
		c.pc = irq.Vector()
		c.cycles += interruptCycles
		return true
	}
	return false
}

// fetch reads the byte at PC and advances past it.
func (c *CPU) fetch() uint8 {
	v := c.bus.Read(c.pc)
	c.pc++
	return v
}

// fetchWord reads a 16 bit immediate, low byte first.
func (c *CPU) fetchWord() uint16 {
	low := c.fetch()
	high := c.fetch()
	return bit.Combine(high, low)
}

func (c *CPU) push(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) pop() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

// operand reads one of the eight r8 operands in encoding order
// B, C, D, E, H, L, (HL), A.
func (c *CPU) operand(idx uint8) uint8 {
	switch idx {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case 6:
		return c.bus.Read(c.hl())
	default:
		return c.a
	}
}

func (c *CPU) setOperand(idx uint8, value uint8) {
	switch idx {
	case 0:
		c.b = value
	case 1:
		c.c = value
	case 2:
		c.d = value
	case 3:
		c.e = value
	case 4:
		c.h = value
	case 5:
		c.l = value
	case 6:
		c.bus.Write(c.hl(), value)
	default:
		c.a = value
	}
}

func (c *CPU) af() uint16 { return bit.Combine(c.a, c.f) }
func (c *CPU) bc() uint16 { return bit.Combine(c.b, c.c) }
func (c *CPU) de() uint16 { return bit.Combine(c.d, c.e) }
func (c *CPU) hl() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// low nibble of F is hardwired to zero
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

// Registers is a plain copy of the full CPU state, used by snapshots,
// debugging and tests.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool
	EIPending              bool
	Halted                 bool
	Stopped                bool
	HaltBug                bool
	Cycles                 uint64
}

// Registers returns a copy of the current CPU state.
func (c *CPU) Registers() Registers {
	return Registers{
		A: c.a, F: c.f, B: c.b, C: c.c,
		D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
		IME: c.ime, EIPending: c.eiPending,
		Halted: c.halted, Stopped: c.stopped, HaltBug: c.haltBug,
		Cycles: c.cycles,
	}
}

// SetRegisters overwrites the CPU state, used when restoring snapshots.
func (c *CPU) SetRegisters(r Registers) {
	c.a, c.b, c.c = r.A, r.B, r.C
	c.f = r.F & 0xF0
	c.d, c.e, c.h, c.l = r.D, r.E, r.H, r.L
	c.sp, c.pc = r.SP, r.PC
	c.ime, c.eiPending = r.IME, r.EIPending
	c.halted, c.stopped, c.haltBug = r.Halted, r.Stopped, r.HaltBug
	c.cycles = r.Cycles
}

// PC returns the current program counter.
func (c *CPU) PC() uint16 { return c.pc }

// Cycles returns the total cycles executed since power on.
func (c *CPU) Cycles() uint64 { return c.cycles }

// Halted reports whether the CPU is suspended by HALT.
func (c *CPU) Halted() bool { return c.halted }

// FlagString renders the F register as "ZNHC" with dashes for clear bits,
// handy in logs.
func (c *CPU) FlagString() string {
	out := []byte("----")
	if c.flagSet(flagZ) {
		out[0] = 'Z'
	}
	if c.flagSet(flagN) {
		out[1] = 'N'
	}
	if c.flagSet(flagH) {
		out[2] = 'H'
	}
	if c.flagSet(flagC) {
		out[3] = 'C'
	}
	return string(out)
}
