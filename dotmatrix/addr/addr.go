// Package addr names every memory-mapped register and region boundary of the
// DMG address space. All other packages refer to hardware locations through
// these constants instead of raw numbers.
package addr

// Joypad.
const (
	// P1 selects and reads the button matrix. Bits 4-5 select the d-pad or
	// button group, bits 0-3 read the selected group (0 = pressed).
	P1 uint16 = 0xFF00
)

// Serial port.
const (
	// SB holds the byte being shifted out (and, after a transfer, the byte
	// shifted in from the peer, 0xFF when nothing is connected).
	SB uint16 = 0xFF01
	// SC controls transfers: bit 7 starts one, bit 0 selects the internal
	// clock. Hardware clears bit 7 and raises the serial interrupt on
	// completion.
	SC uint16 = 0xFF02
)

// Timer block.
const (
	// DIV is the visible upper byte of the internal 16 bit divider.
	// Any write resets the whole divider to zero.
	DIV uint16 = 0xFF04
	// TIMA is the timer counter; overflow reloads it from TMA and raises
	// the timer interrupt.
	TIMA uint16 = 0xFF05
	// TMA is the value reloaded into TIMA on overflow.
	TMA uint16 = 0xFF06
	// TAC enables the timer (bit 2) and selects its clock (bits 0-1).
	TAC uint16 = 0xFF07
)

// Interrupt registers.
const (
	// IF holds pending interrupt requests. Upper 3 bits read as 1.
	IF uint16 = 0xFF0F
	// IE enables individual interrupt sources.
	IE uint16 = 0xFFFF
)

// Audio registers (no synthesis in this core, but the register file keeps
// its documented read-back semantics).
const (
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F

	NR10 uint16 = 0xFF10
	NR11 uint16 = 0xFF11
	NR12 uint16 = 0xFF12
	NR13 uint16 = 0xFF13
	NR14 uint16 = 0xFF14
	NR21 uint16 = 0xFF16
	NR22 uint16 = 0xFF17
	NR23 uint16 = 0xFF18
	NR24 uint16 = 0xFF19
	NR30 uint16 = 0xFF1A
	NR31 uint16 = 0xFF1B
	NR32 uint16 = 0xFF1C
	NR33 uint16 = 0xFF1D
	NR34 uint16 = 0xFF1E
	NR41 uint16 = 0xFF20
	NR42 uint16 = 0xFF21
	NR43 uint16 = 0xFF22
	NR44 uint16 = 0xFF23
	NR50 uint16 = 0xFF24
	NR51 uint16 = 0xFF25
	NR52 uint16 = 0xFF26

	WaveRAMStart uint16 = 0xFF30
	WaveRAMEnd   uint16 = 0xFF3F
)

// PPU registers.
const (
	// LCDC is the LCD control register.
	LCDC uint16 = 0xFF40
	// STAT carries the current PPU mode and the STAT interrupt enables.
	STAT uint16 = 0xFF41
	// SCY / SCX scroll the background.
	SCY uint16 = 0xFF42
	SCX uint16 = 0xFF43
	// LY is the current scanline, read only.
	LY uint16 = 0xFF44
	// LYC is compared against LY for the coincidence interrupt.
	LYC uint16 = 0xFF45
	// DMA starts a 160 byte OAM transfer from value<<8.
	DMA uint16 = 0xFF46
	// BGP / OBP0 / OBP1 are the background and sprite palettes.
	BGP  uint16 = 0xFF47
	OBP0 uint16 = 0xFF48
	OBP1 uint16 = 0xFF49
	// WY / WX position the window layer.
	WY uint16 = 0xFF4A
	WX uint16 = 0xFF4B
)

// BootROMDisable unmaps the boot ROM overlay when written. Once disabled it
// stays disabled for the rest of the run.
const BootROMDisable uint16 = 0xFF50

// VRAM layout.
const (
	// TileDataUnsigned is tile data addressed with unsigned indices
	// (LCDC bit 4 set).
	TileDataUnsigned uint16 = 0x8000
	// TileDataSigned is the base for signed tile indexing (LCDC bit 4
	// clear); index 0 sits at 0x9000.
	TileDataSigned uint16 = 0x9000
	// TileMap0 / TileMap1 are the two 32x32 background/window maps.
	TileMap0 uint16 = 0x9800
	TileMap1 uint16 = 0x9C00
)

// OAM region: 40 sprite entries of 4 bytes each.
const (
	OAMStart uint16 = 0xFE00
	OAMEnd   uint16 = 0xFE9F
)

// Interrupt identifies one of the five interrupt sources by its bit
// position in IF and IE. Lower bits have higher priority.
type Interrupt uint8

const (
	// VBlank fires once per frame when the PPU enters line 144.
	VBlank Interrupt = iota
	// LCDStat fires on the STAT conditions enabled in the STAT register.
	LCDStat
	// Timer fires when TIMA overflows.
	Timer
	// Serial fires when a serial transfer completes.
	Serial
	// Joypad fires when a button line goes low.
	Joypad
)

// Mask returns the IF/IE bitmask for the interrupt.
func (i Interrupt) Mask() uint8 {
	return 1 << i
}

// Vector returns the fixed handler address for the interrupt.
func (i Interrupt) Vector() uint16 {
	return 0x40 + uint16(i)*8
}

func (i Interrupt) String() string {
	switch i {
	case VBlank:
		return "vblank"
	case LCDStat:
		return "lcdstat"
	case Timer:
		return "timer"
	case Serial:
		return "serial"
	case Joypad:
		return "joypad"
	}
	return "unknown"
}
