// Package video implements the DMG PPU: the scanline state machine, the
// LCD register file, and background, window and sprite rendering into a
// shade framebuffer.
package video

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// Mode is the PPU mode as encoded in STAT bits 0-1.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeDrawing
)

// Scanline timing in CPU cycles. A full scanline is 456 cycles; the visible
// part splits into OAM scan, drawing and HBlank. Drawing really varies
// between 172 and 289 cycles with HBlank absorbing the difference, but this
// core uses the fixed minimum.
const (
	oamScanCycles  = 80
	drawingCycles  = 172
	hblankCycles   = 204
	scanlineCycles = oamScanCycles + drawingCycles + hblankCycles

	vblankStartLine = FramebufferHeight
	linesPerFrame   = 154
)

// LCDC bit positions.
const (
	lcdcBGEnable      = 0
	lcdcSpriteEnable  = 1
	lcdcSpriteSize    = 2
	lcdcBGTileMap     = 3
	lcdcTileData      = 4
	lcdcWindowEnable  = 5
	lcdcWindowTileMap = 6
	lcdcEnable        = 7
)

// STAT interrupt enable bit positions.
const (
	statHBlankInt = 3
	statVBlankInt = 4
	statOAMInt    = 5
	statLYCInt    = 6
)

// Bus is what the PPU needs from the rest of the machine: VRAM and OAM
// reads, and a way to raise its two interrupts.
type Bus interface {
	Read(address uint16) byte
	RequestInterrupt(addr.Interrupt)
}

// GPU owns the LCD register file and walks the per-scanline mode sequence,
// rendering each line as its drawing phase completes.
type GPU struct {
	bus Bus
	fb  *FrameBuffer

	lcdc byte
	stat byte // interrupt enable bits 3-6 only; mode and LYC flag are derived
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	mode   Mode
	cycles int

	// windowLine is the window's own line counter. It only advances on
	// scanlines where the window was actually drawn, so hiding and
	// re-showing the window resumes where it left off.
	windowLine int

	// statLine is the combined STAT interrupt line; the interrupt fires
	// only on its rising edge, so simultaneous conditions collapse into
	// one request.
	statLine bool

	frameComplete bool
	frames        uint64

	// bgIndex keeps the background color index (pre-palette) of the line
	// being drawn, for sprite-behind-background decisions.
	bgIndex      [FramebufferWidth]uint8
	priority     spritePriorityBuffer
	spriteBuffer [10]Sprite
}

// New returns a GPU at the top of the frame with the LCD off.
func New(bus Bus) *GPU {
	return &GPU{
		bus:  bus,
		fb:   NewFrameBuffer(),
		mode: ModeOAMScan,
	}
}

// ApplyPostBootState loads the LCD registers as the boot ROM leaves them.
func (g *GPU) ApplyPostBootState() {
	g.lcdc = 0x91
	g.stat = 0x00
	g.scy = 0
	g.scx = 0
	g.ly = 0
	g.lyc = 0
	g.bgp = 0xFC
	g.obp0 = 0xFF
	g.obp1 = 0xFF
	g.wy = 0
	g.wx = 0
	g.mode = ModeOAMScan
	g.cycles = 0
	g.windowLine = 0
	g.statLine = false
}

// Framebuffer returns the frame being rendered into.
func (g *GPU) Framebuffer() *FrameBuffer {
	return g.fb
}

// FrameCount returns the number of completed frames.
func (g *GPU) FrameCount() uint64 {
	return g.frames
}

// ConsumeFrame reports whether a frame completed since the last call and
// clears the flag.
func (g *GPU) ConsumeFrame() bool {
	if !g.frameComplete {
		return false
	}
	g.frameComplete = false
	return true
}

// Tick advances the scanline machine. With the LCD disabled nothing moves:
// the PPU holds line 0 in HBlank until the LCD is switched back on.
func (g *GPU) Tick(cycles int) {
	if !bit.IsSet(lcdcEnable, g.lcdc) {
		return
	}
	g.cycles += cycles

	for {
		switch g.mode {
		case ModeOAMScan:
			if g.cycles < oamScanCycles {
				return
			}
			g.cycles -= oamScanCycles
			g.setMode(ModeDrawing)
		case ModeDrawing:
			if g.cycles < drawingCycles {
				return
			}
			g.cycles -= drawingCycles
			g.renderScanline()
			g.setMode(ModeHBlank)
		case ModeHBlank:
			if g.cycles < hblankCycles {
				return
			}
			g.cycles -= hblankCycles
			g.setLine(g.ly + 1)
			if g.ly == vblankStartLine {
				g.setMode(ModeVBlank)
				g.bus.RequestInterrupt(addr.VBlank)
				g.frameComplete = true
				g.frames++
			} else {
				g.setMode(ModeOAMScan)
			}
		case ModeVBlank:
			if g.cycles < scanlineCycles {
				return
			}
			g.cycles -= scanlineCycles
			if g.ly == linesPerFrame-1 {
				g.windowLine = 0
				g.setLine(0)
				g.setMode(ModeOAMScan)
			} else {
				g.setLine(g.ly + 1)
			}
		}
	}
}

func (g *GPU) setMode(mode Mode) {
	g.mode = mode
	g.updateStatLine()
}

func (g *GPU) setLine(line byte) {
	g.ly = line
	g.updateStatLine()
}

// updateStatLine recomputes the combined STAT condition line and raises the
// LCDStat interrupt on a rising edge.
func (g *GPU) updateStatLine() {
	line := false
	switch g.mode {
	case ModeHBlank:
		line = bit.IsSet(statHBlankInt, g.stat)
	case ModeVBlank:
		line = bit.IsSet(statVBlankInt, g.stat)
	case ModeOAMScan:
		line = bit.IsSet(statOAMInt, g.stat)
	}
	if g.ly == g.lyc && bit.IsSet(statLYCInt, g.stat) {
		line = true
	}
	if line && !g.statLine {
		g.bus.RequestInterrupt(addr.LCDStat)
	}
	g.statLine = line
}

// ReadRegister reads one of the LCD registers.
func (g *GPU) ReadRegister(address uint16) byte {
	switch address {
	case addr.LCDC:
		return g.lcdc
	case addr.STAT:
		value := byte(0x80) | g.stat&0x78
		if !bit.IsSet(lcdcEnable, g.lcdc) {
			// LCD off: mode reads 0, the LYC flag still compares
			if g.ly == g.lyc {
				value |= 0x04
			}
			return value
		}
		if g.ly == g.lyc {
			value |= 0x04
		}
		return value | byte(g.mode)
	case addr.SCY:
		return g.scy
	case addr.SCX:
		return g.scx
	case addr.LY:
		return g.ly
	case addr.LYC:
		return g.lyc
	case addr.BGP:
		return g.bgp
	case addr.OBP0:
		return g.obp0
	case addr.OBP1:
		return g.obp1
	case addr.WY:
		return g.wy
	case addr.WX:
		return g.wx
	}
	return 0xFF
}

// WriteRegister writes one of the LCD registers. LY is read only; STAT only
// accepts the interrupt enable bits.
func (g *GPU) WriteRegister(address uint16, value byte) {
	switch address {
	case addr.LCDC:
		wasOn := bit.IsSet(lcdcEnable, g.lcdc)
		g.lcdc = value
		isOn := bit.IsSet(lcdcEnable, g.lcdc)
		if wasOn && !isOn {
			// switching off resets the scan position
			g.ly = 0
			g.cycles = 0
			g.mode = ModeHBlank
			g.windowLine = 0
			g.statLine = false
		} else if !wasOn && isOn {
			g.cycles = 0
			g.mode = ModeOAMScan
			g.updateStatLine()
		}
	case addr.STAT:
		g.stat = value & 0x78
		if bit.IsSet(lcdcEnable, g.lcdc) {
			g.updateStatLine()
		}
	case addr.SCY:
		g.scy = value
	case addr.SCX:
		g.scx = value
	case addr.LY:
		// read only
	case addr.LYC:
		g.lyc = value
		if bit.IsSet(lcdcEnable, g.lcdc) {
			g.updateStatLine()
		}
	case addr.BGP:
		g.bgp = value
	case addr.OBP0:
		g.obp0 = value
	case addr.OBP1:
		g.obp1 = value
	case addr.WY:
		g.wy = value
	case addr.WX:
		g.wx = value
	}
}

// Mode returns the current PPU mode.
func (g *GPU) Mode() Mode {
	return g.mode
}

// renderScanline draws the line LY into the framebuffer: background and
// window first, recording raw color indices, then sprites over them.
func (g *GPU) renderScanline() {
	y := int(g.ly)

	if bit.IsSet(lcdcBGEnable, g.lcdc) {
		g.renderBackground(y)
	} else {
		// background disabled: the line shows color 0
		for x := 0; x < FramebufferWidth; x++ {
			g.bgIndex[x] = 0
			g.fb.SetPixel(x, y, 0)
		}
	}

	if bit.IsSet(lcdcSpriteEnable, g.lcdc) {
		g.renderSprites(y)
	}
}

func (g *GPU) renderBackground(y int) {
	windowActive := bit.IsSet(lcdcWindowEnable, g.lcdc) &&
		int(g.wy) <= y && g.wx <= 166

	bgMap := addr.TileMap0
	if bit.IsSet(lcdcBGTileMap, g.lcdc) {
		bgMap = addr.TileMap1
	}
	winMap := addr.TileMap0
	if bit.IsSet(lcdcWindowTileMap, g.lcdc) {
		winMap = addr.TileMap1
	}

	windowDrawn := false
	for x := 0; x < FramebufferWidth; x++ {
		var colorIndex int
		if windowActive && x+7 >= int(g.wx) {
			colorIndex = g.fetchBGPixel(winMap, x+7-int(g.wx), g.windowLine)
			windowDrawn = true
		} else {
			bgX := (x + int(g.scx)) & 0xFF
			bgY := (y + int(g.scy)) & 0xFF
			colorIndex = g.fetchBGPixel(bgMap, bgX, bgY)
		}
		g.bgIndex[x] = uint8(colorIndex)
		g.fb.SetPixel(x, y, Shade(g.bgp>>(2*colorIndex)&3))
	}
	if windowDrawn {
		g.windowLine++
	}
}

// fetchBGPixel resolves one background or window pixel to its color index
// through the tile map and tile data.
func (g *GPU) fetchBGPixel(tileMap uint16, x, y int) int {
	tileIndex := g.bus.Read(tileMap + uint16(y/8*32+x/8))
	row := fetchRow(g.bus, tileRowAddress(bit.IsSet(lcdcTileData, g.lcdc), tileIndex, y%8))
	return row.Pixel(x % 8)
}

func (g *GPU) renderSprites(y int) {
	sprites := g.collectScanlineSprites(y)

	height := 8
	if bit.IsSet(lcdcSpriteSize, g.lcdc) {
		height = 16
	}

	for i := range sprites {
		s := &sprites[i]

		row := y - s.Y
		if s.FlipY {
			row = height - 1 - row
		}

		tile := s.TileIndex
		if height == 16 {
			// 8x16 sprites ignore bit 0; rows 8-15 land in the next tile
			tile &= 0xFE
		}
		tr := fetchRow(g.bus, addr.TileDataUnsigned+uint16(tile)*16+uint16(row)*2)

		palette := g.obp0
		if s.PaletteOBP1 {
			palette = g.obp1
		}

		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= FramebufferWidth {
				continue
			}
			if !s.OwnsPixel(px) {
				continue
			}
			colorIndex := tr.Pixel(px)
			if s.FlipX {
				colorIndex = tr.PixelFlipped(px)
			}
			if colorIndex == 0 {
				// color 0 is transparent for sprites
				continue
			}
			if s.BehindBG && g.bgIndex[x] != 0 {
				continue
			}
			g.fb.SetPixel(x, y, Shade(palette>>(2*colorIndex)&3))
		}
	}
}

// State is a plain copy of the PPU for snapshots. The framebuffer travels
// separately.
type State struct {
	LCDC, STAT             byte
	SCY, SCX, LY, LYC      byte
	BGP, OBP0, OBP1        byte
	WY, WX                 byte
	Mode                   Mode
	Cycles                 int
	WindowLine             int
	StatLine               bool
	Frames                 uint64
}

func (g *GPU) State() State {
	return State{
		LCDC: g.lcdc, STAT: g.stat,
		SCY: g.scy, SCX: g.scx, LY: g.ly, LYC: g.lyc,
		BGP: g.bgp, OBP0: g.obp0, OBP1: g.obp1,
		WY: g.wy, WX: g.wx,
		Mode: g.mode, Cycles: g.cycles,
		WindowLine: g.windowLine, StatLine: g.statLine,
		Frames: g.frames,
	}
}

func (g *GPU) SetState(s State) {
	g.lcdc, g.stat = s.LCDC, s.STAT
	g.scy, g.scx, g.ly, g.lyc = s.SCY, s.SCX, s.LY, s.LYC
	g.bgp, g.obp0, g.obp1 = s.BGP, s.OBP0, s.OBP1
	g.wy, g.wx = s.WY, s.WX
	g.mode, g.cycles = s.Mode, s.Cycles
	g.windowLine, g.statLine = s.WindowLine, s.StatLine
	g.frames = s.Frames
}
