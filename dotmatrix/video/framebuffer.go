package video

import "strings"

// Screen dimensions of the DMG LCD.
const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
)

// Shade is a 2 bit DMG pixel after palette translation: 0 is the lightest,
// 3 the darkest.
type Shade uint8

// shadeRGBA is the classic DMG green ramp, lightest to darkest.
var shadeRGBA = [4]uint32{
	0xE0F8D0FF,
	0x88C070FF,
	0x346856FF,
	0x081820FF,
}

// RGBA returns the shade as a packed RGBA value.
func (s Shade) RGBA() uint32 {
	return shadeRGBA[s&3]
}

// FrameBuffer holds one rendered 160x144 frame of palette-translated
// shades.
type FrameBuffer struct {
	pixels [FramebufferWidth * FramebufferHeight]Shade
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// ShadeAt returns the shade at (x, y); out-of-range coordinates read as 0.
func (fb *FrameBuffer) ShadeAt(x, y int) Shade {
	if x < 0 || x >= FramebufferWidth || y < 0 || y >= FramebufferHeight {
		return 0
	}
	return fb.pixels[y*FramebufferWidth+x]
}

// SetPixel stores a shade; out-of-range coordinates are dropped.
func (fb *FrameBuffer) SetPixel(x, y int, s Shade) {
	if x < 0 || x >= FramebufferWidth || y < 0 || y >= FramebufferHeight {
		return
	}
	fb.pixels[y*FramebufferWidth+x] = s
}

// Pixels returns a copy of the frame as a flat slice, row major.
func (fb *FrameBuffer) Pixels() []Shade {
	out := make([]Shade, len(fb.pixels))
	copy(out, fb.pixels[:])
	return out
}

// SetPixels restores a frame from a flat slice, used by snapshot restore.
func (fb *FrameBuffer) SetPixels(pixels []Shade) {
	copy(fb.pixels[:], pixels)
}

// ToRGBA expands the frame into packed RGBA values for a renderer.
func (fb *FrameBuffer) ToRGBA() []uint32 {
	out := make([]uint32, len(fb.pixels))
	for i, s := range fb.pixels {
		out[i] = s.RGBA()
	}
	return out
}

// shadeGlyphs maps shades to block characters, lightest to darkest.
var shadeGlyphs = [4]rune{' ', '░', '▒', '█'}

// String renders the frame as text, one glyph per pixel. Used by the
// headless snapshot dumps so frames diff cleanly.
func (fb *FrameBuffer) String() string {
	var sb strings.Builder
	sb.Grow((FramebufferWidth + 1) * FramebufferHeight * 3)
	for y := 0; y < FramebufferHeight; y++ {
		for x := 0; x < FramebufferWidth; x++ {
			sb.WriteRune(shadeGlyphs[fb.pixels[y*FramebufferWidth+x]&3])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
