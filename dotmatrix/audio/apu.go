// Package audio models the APU register file. This core produces no sound,
// but the registers are part of the memory map and games (and test ROMs)
// depend on their exact read-back behavior: unused bits read as 1, NR52
// gates writes while powered off, and wave RAM stays fully accessible.
package audio

import "github.com/valerio/go-dotmatrix/dotmatrix/addr"

// readMasks is OR-ed into every register read; a set bit is unused on
// hardware and always reads as 1. Indexed by address - 0xFF10.
var readMasks = [0x20]byte{
	0x00: 0x80, // NR10
	0x01: 0x3F, // NR11: only duty readable
	0x02: 0x00, // NR12
	0x03: 0xFF, // NR13: write only
	0x04: 0xBF, // NR14: only length-enable readable
	0x05: 0xFF, // unused
	0x06: 0x3F, // NR21
	0x07: 0x00, // NR22
	0x08: 0xFF, // NR23: write only
	0x09: 0xBF, // NR24
	0x0A: 0x7F, // NR30
	0x0B: 0xFF, // NR31: write only
	0x0C: 0x9F, // NR32
	0x0D: 0xFF, // NR33: write only
	0x0E: 0xBF, // NR34
	0x0F: 0xFF, // unused
	0x10: 0xFF, // NR41: write only
	0x11: 0x00, // NR42
	0x12: 0x00, // NR43
	0x13: 0xBF, // NR44
	0x14: 0x00, // NR50
	0x15: 0x00, // NR51
	0x16: 0x70, // NR52: bits 4-6 unused
	0x17: 0xFF, 0x18: 0xFF, 0x19: 0xFF, 0x1A: 0xFF,
	0x1B: 0xFF, 0x1C: 0xFF, 0x1D: 0xFF, 0x1E: 0xFF,
	0x1F: 0xFF, // 0xFF27-0xFF2F unused
}

// APU holds the audio register file and wave RAM.
type APU struct {
	enabled   bool
	registers [0x20]byte // 0xFF10-0xFF2F
	waveRAM   [16]byte   // 0xFF30-0xFF3F
}

// New returns an APU with the documented post-boot register values.
func New() *APU {
	a := &APU{enabled: true}
	a.ApplyPostBootState()
	return a
}

// ApplyPostBootState loads the register values the boot ROM leaves behind.
func (a *APU) ApplyPostBootState() {
	a.enabled = true
	defaults := map[uint16]byte{
		addr.NR10: 0x80, addr.NR11: 0xBF, addr.NR12: 0xF3, addr.NR14: 0xBF,
		addr.NR21: 0x3F, addr.NR22: 0x00, addr.NR24: 0xBF,
		addr.NR30: 0x7F, addr.NR31: 0xFF, addr.NR32: 0x9F, addr.NR34: 0xBF,
		addr.NR41: 0xFF, addr.NR42: 0x00, addr.NR43: 0x00, addr.NR44: 0xBF,
		addr.NR50: 0x77, addr.NR51: 0xF3, addr.NR52: 0xF1,
	}
	for reg, v := range defaults {
		a.registers[reg-addr.AudioStart] = v
	}
}

// ReadRegister reads an audio register, applying the unused-bit masks.
func (a *APU) ReadRegister(address uint16) byte {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.waveRAM[address-addr.WaveRAMStart]
	}
	if address < addr.AudioStart || address > addr.AudioEnd {
		return 0xFF
	}
	index := address - addr.AudioStart
	if address == addr.NR52 {
		status := byte(0)
		if a.enabled {
			status = 0x80
		}
		return status | readMasks[index]
	}
	return a.registers[index] | readMasks[index]
}

// WriteRegister writes an audio register. While NR52 bit 7 is clear, only
// NR52 itself and wave RAM accept writes; powering off clears every other
// register, as hardware does.
func (a *APU) WriteRegister(address uint16, value byte) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.waveRAM[address-addr.WaveRAMStart] = value
		return
	}
	if address < addr.AudioStart || address > addr.AudioEnd {
		return
	}
	if address == addr.NR52 {
		wasEnabled := a.enabled
		a.enabled = value&0x80 != 0
		if wasEnabled && !a.enabled {
			for i := range a.registers {
				a.registers[i] = 0
			}
		}
		return
	}
	if !a.enabled {
		return
	}
	a.registers[address-addr.AudioStart] = value
}

// Registers returns a copy of the register file and wave RAM for snapshots.
func (a *APU) Registers() (regs [0x20]byte, wave [16]byte, enabled bool) {
	return a.registers, a.waveRAM, a.enabled
}

// SetRegisters restores the register file, used by snapshot restore.
func (a *APU) SetRegisters(regs [0x20]byte, wave [16]byte, enabled bool) {
	a.registers = regs
	a.waveRAM = wave
	a.enabled = enabled
}
