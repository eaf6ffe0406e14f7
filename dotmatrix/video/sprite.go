package video

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// Sprite is one OAM entry prepared for rendering. X and Y are screen
// coordinates with the hardware offsets (+8, +16) already removed, so they
// can be negative for partially off-screen sprites.
type Sprite struct {
	Y         int
	X         int
	TileIndex uint8
	OAMIndex  int

	PaletteOBP1 bool
	FlipX       bool
	FlipY       bool
	BehindBG    bool

	// pixelMask has a bit set for each of the sprite's 8 columns that won
	// sprite-to-sprite priority; bit 7 is the leftmost column.
	pixelMask uint8
}

func (s *Sprite) parseFlags(flags uint8) {
	s.PaletteOBP1 = bit.IsSet(4, flags)
	s.FlipX = bit.IsSet(5, flags)
	s.FlipY = bit.IsSet(6, flags)
	s.BehindBG = bit.IsSet(7, flags)
}

// OwnsPixel reports whether the sprite won priority for its column x (0-7).
func (s *Sprite) OwnsPixel(x int) bool {
	if x < 0 || x > 7 {
		return false
	}
	return s.pixelMask&(1<<(7-x)) != 0
}

// spritePriorityBuffer resolves sprite-to-sprite priority per pixel. The
// DMG rule: the sprite with the lowest X wins, ties broken by lowest OAM
// index. Tracking per-pixel ownership during the OAM scan avoids sorting
// the scanline sprites.
type spritePriorityBuffer struct {
	ownerIndex [FramebufferWidth]int // OAM index per pixel, -1 when unowned
	ownerX     [FramebufferWidth]int
}

func (b *spritePriorityBuffer) clear() {
	for i := range b.ownerIndex {
		b.ownerIndex[i] = -1
		b.ownerX[i] = 0
	}
}

// tryClaim claims a pixel for a sprite if it beats the current owner.
func (b *spritePriorityBuffer) tryClaim(pixelX, oamIndex, spriteX int) bool {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return false
	}
	owner := b.ownerIndex[pixelX]
	switch {
	case owner == -1,
		spriteX < b.ownerX[pixelX],
		spriteX == b.ownerX[pixelX] && oamIndex < owner:
		b.ownerIndex[pixelX] = oamIndex
		b.ownerX[pixelX] = spriteX
		return true
	}
	return false
}

func (b *spritePriorityBuffer) owner(pixelX int) int {
	if pixelX < 0 || pixelX >= FramebufferWidth {
		return -1
	}
	return b.ownerIndex[pixelX]
}

// collectScanlineSprites scans OAM in index order and returns the sprites
// overlapping the scanline, at most 10 as on hardware, with per-pixel
// priority pre-resolved.
func (g *GPU) collectScanlineSprites(scanline int) []Sprite {
	sprites := g.spriteBuffer[:0]
	g.priority.clear()

	height := 8
	if bit.IsSet(lcdcSpriteSize, g.lcdc) {
		height = 16
	}

	for i := 0; i < 40; i++ {
		base := addr.OAMStart + uint16(i*4)
		spriteY := int(g.bus.Read(base)) - 16
		if scanline < spriteY || scanline >= spriteY+height {
			continue
		}

		sprite := Sprite{
			Y:         spriteY,
			X:         int(g.bus.Read(base+1)) - 8,
			TileIndex: g.bus.Read(base + 2),
			OAMIndex:  i,
		}
		sprite.parseFlags(g.bus.Read(base + 3))
		sprites = append(sprites, sprite)

		for px := 0; px < 8; px++ {
			g.priority.tryClaim(sprite.X+px, i, sprite.X)
		}

		if len(sprites) == 10 {
			break
		}
	}

	for i := range sprites {
		var mask uint8
		for px := 0; px < 8; px++ {
			if g.priority.owner(sprites[i].X+px) == sprites[i].OAMIndex {
				mask |= 1 << (7 - px)
			}
		}
		sprites[i].pixelMask = mask
	}

	return sprites
}
