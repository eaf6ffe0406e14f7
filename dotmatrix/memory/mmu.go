// Package memory implements the DMG bus: work RAM, the cartridge and its
// bank controllers, the timer block, the joypad matrix and the routing of
// every memory-mapped register.
package memory

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/audio"
	"github.com/valerio/go-dotmatrix/dotmatrix/serial"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// SerialPort is a device wired to SB/SC. Implementations only accept reads
// and writes at those two addresses.
type SerialPort interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	Tick(cycles int)
	Reset()
}

// VideoRegisters is the PPU's register file as seen from the bus. The MMU
// routes 0xFF40-0xFF4B there, except DMA which it handles itself.
type VideoRegisters interface {
	ReadRegister(address uint16) byte
	WriteRegister(address uint16, value byte)
}

// MMU routes every CPU memory access to the right unit: cartridge banks,
// VRAM/WRAM, OAM, or one of the register owners. Each 256 byte page maps to
// a region once at construction, so dispatch is a single table lookup.
type MMU struct {
	cart      *Cartridge
	mbc       MBC
	memory    []byte
	regionMap [256]memRegion

	bootROM    []byte
	bootMapped bool

	joypad *Joypad
	timer  Timer
	serial SerialPort
	apu    *audio.APU
	video  VideoRegisters

	// mbcTicker is non-nil when the controller carries an RTC that
	// advances with the CPU clock.
	mbcTicker interface{ Tick(cycles int) }
	rtcClock  Clock

	dma byte // last value written to the DMA register
}

// Option configures an MMU at construction time.
type Option func(*MMU)

// WithBootROM maps a 256 byte boot ROM over 0x0000-0x00FF until the program
// writes to 0xFF50.
func WithBootROM(rom []byte) Option {
	return func(m *MMU) {
		m.bootROM = rom
		m.bootMapped = len(rom) > 0
	}
}

// WithRTCClock attaches a wall clock to the cartridge RTC, if it has one.
func WithRTCClock(c Clock) Option {
	return func(m *MMU) { m.rtcClock = c }
}

// WithSerialPort replaces the default log sink serial device.
func WithSerialPort(p SerialPort) Option {
	return func(m *MMU) { m.serial = p }
}

// New creates a memory unit with no cartridge, equivalent to powering on
// the console with an empty slot.
func New() *MMU {
	m := &MMU{memory: make([]byte, 0x10000)}
	m.joypad = NewJoypad(func() { m.RequestInterrupt(addr.Joypad) })
	m.timer.onOverflow = func() { m.RequestInterrupt(addr.Timer) }
	m.serial = serial.NewLogSink(func() { m.RequestInterrupt(addr.Serial) })
	m.apu = audio.New()
	initRegionMap(m)
	return m
}

// NewWithCartridge creates a memory unit with the cartridge inserted.
func NewWithCartridge(cart *Cartridge, opts ...Option) *MMU {
	m := New()
	m.cart = cart
	for _, opt := range opts {
		opt(m)
	}

	if cart.header.MBC == MBC3Type {
		mbc3 := NewMBC3(cart, m.rtcClock)
		if cart.hasRTC {
			m.mbcTicker = mbc3
		}
		m.mbc = mbc3
	} else {
		m.mbc = newMBC(cart)
	}
	return m
}

func initRegionMap(m *MMU) {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// AttachVideo wires the PPU register file into the bus. The PPU is built
// after the MMU because it reads VRAM and OAM through it.
func (m *MMU) AttachVideo(v VideoRegisters) {
	m.video = v
}

// Tick advances every unit that keeps time on the bus.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	m.serial.Tick(cycles)
	if m.mbcTicker != nil {
		m.mbcTicker.Tick(cycles)
	}
}

// RequestInterrupt raises an interrupt request bit in IF.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.memory[addr.IF] |= interrupt.Mask()
}

// ApplyPostBootState loads the register values the boot ROM would have left
// behind, for running without a boot ROM image.
func (m *MMU) ApplyPostBootState() {
	m.bootMapped = false
	m.timer.Seed(0xABCC)
	m.apu.ApplyPostBootState()
	m.memory[addr.IF] = 0xE1
	m.memory[addr.IE] = 0x00
}

func (m *MMU) Read(address uint16) byte {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.bootMapped && address < uint16(len(m.bootROM)) {
			return m.bootROM[address]
		}
		if m.mbc == nil {
			slog.Warn("read from ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionExtRAM:
		if m.mbc == nil {
			slog.Warn("read from external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM, regionWRAM:
		return m.memory[address]
	case regionEcho:
		return m.memory[address-0x2000]
	case regionOAM:
		if address <= addr.OAMEnd {
			return m.memory[address]
		}
		// 0xFEA0-0xFEFF is unusable
		return 0xFF
	case regionIO:
		return m.readIO(address)
	}
	panic(fmt.Sprintf("memory: read at unmapped address 0x%04X", address))
}

func (m *MMU) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return m.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address == addr.IF:
		// upper 3 bits are unwired and read as 1
		return m.memory[address] | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.apu.ReadRegister(address)
	case address == addr.DMA:
		return m.dma
	case address >= addr.LCDC && address <= addr.WX:
		if m.video != nil {
			return m.video.ReadRegister(address)
		}
		return m.memory[address]
	default:
		// HRAM, IE and the remaining IO slots
		return m.memory[address]
	}
}

func (m *MMU) Write(address uint16, value byte) {
	switch m.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if m.mbc == nil {
			slog.Warn("write with no cartridge", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM, regionWRAM:
		m.memory[address] = value
	case regionEcho:
		m.memory[address-0x2000] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			m.memory[address] = value
		}
		// writes to 0xFEA0-0xFEFF are dropped
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("memory: write at unmapped address 0x%04X", address))
	}
}

func (m *MMU) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		m.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	case address == addr.IF:
		m.memory[address] = value | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.apu.WriteRegister(address, value)
	case address == addr.DMA:
		m.dma = value
		m.runDMA(uint16(value) << 8)
	case address >= addr.LCDC && address <= addr.WX:
		if m.video != nil {
			m.video.WriteRegister(address, value)
			return
		}
		m.memory[address] = value
	case address == addr.BootROMDisable:
		if m.bootMapped && value != 0 {
			m.bootMapped = false
		}
		m.memory[address] = value
	default:
		m.memory[address] = value
	}
}

// runDMA copies 160 bytes from source into OAM. On this core the transfer
// is instantaneous; real hardware takes 160 machine cycles during which the
// CPU can only reach HRAM.
func (m *MMU) runDMA(source uint16) {
	for i := uint16(0); i < 160; i++ {
		m.memory[addr.OAMStart+i] = m.Read(source + i)
	}
}

// HandleKeyPress forwards a button press to the joypad matrix.
func (m *MMU) HandleKeyPress(key JoypadKey) {
	m.joypad.Press(key)
}

// HandleKeyRelease forwards a button release to the joypad matrix.
func (m *MMU) HandleKeyRelease(key JoypadKey) {
	m.joypad.Release(key)
}

// Cartridge returns the inserted cartridge, nil when the slot is empty.
func (m *MMU) Cartridge() *Cartridge {
	return m.cart
}

// RTC returns the cartridge real time clock, if the controller has one.
func (m *MMU) RTC() (*MBC3, bool) {
	mbc3, ok := m.mbc.(*MBC3)
	if !ok || !m.cart.hasRTC {
		return nil, false
	}
	return mbc3, true
}

// Snapshot accessors. The raw memory slice covers VRAM, WRAM, OAM, HRAM and
// the IO bytes the MMU stores directly.

func (m *MMU) MemoryCopy() []byte {
	out := make([]byte, len(m.memory))
	copy(out, m.memory)
	return out
}

func (m *MMU) SetMemory(data []byte) {
	copy(m.memory, data)
}

func (m *MMU) TimerState() TimerState      { return m.timer.State() }
func (m *MMU) SetTimerState(s TimerState)  { m.timer.SetState(s) }
func (m *MMU) MBCState() MBCState          { return m.mbc.State() }
func (m *MMU) SetMBCState(s MBCState)      { m.mbc.SetState(s) }
func (m *MMU) APU() *audio.APU             { return m.apu }
func (m *MMU) BootROMMapped() bool         { return m.bootMapped }
func (m *MMU) SetBootROMMapped(mapped bool) {
	m.bootMapped = mapped && len(m.bootROM) > 0
}
func (m *MMU) DMAValue() byte         { return m.dma }
func (m *MMU) SetDMAValue(value byte) { m.dma = value }
