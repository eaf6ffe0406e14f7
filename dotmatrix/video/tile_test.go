package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTileRowPixel(t *testing.T) {
	// leftmost pixel color 1, rightmost color 2, second-from-left color 3
	row := TileRow{Low: 0xC0, High: 0x41}

	assert.Equal(t, 1, row.Pixel(0))
	assert.Equal(t, 3, row.Pixel(1))
	assert.Equal(t, 0, row.Pixel(2))
	assert.Equal(t, 2, row.Pixel(7))

	t.Run("flipped mirrors the row", func(t *testing.T) {
		assert.Equal(t, 2, row.PixelFlipped(0))
		assert.Equal(t, 3, row.PixelFlipped(6))
		assert.Equal(t, 1, row.PixelFlipped(7))
	})
}

func TestTileRowAddress(t *testing.T) {
	cases := []struct {
		desc     string
		unsigned bool
		index    byte
		row      int
		want     uint16
	}{
		{"unsigned tile 0", true, 0, 0, 0x8000},
		{"unsigned tile 1 row 3", true, 1, 3, 0x8016},
		{"unsigned tile 255", true, 255, 0, 0x8FF0},
		{"signed tile 0", false, 0, 0, 0x9000},
		{"signed positive index", false, 0x7F, 0, 0x97F0},
		{"signed negative index", false, 0x80, 0, 0x8800},
		{"signed -1 row 7", false, 0xFF, 7, 0x8FFE},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tileRowAddress(tc.unsigned, tc.index, tc.row))
		})
	}
}

func TestFrameBuffer(t *testing.T) {
	fb := NewFrameBuffer()

	t.Run("pixels read back", func(t *testing.T) {
		fb.SetPixel(0, 0, 3)
		fb.SetPixel(159, 143, 1)
		assert.Equal(t, Shade(3), fb.ShadeAt(0, 0))
		assert.Equal(t, Shade(1), fb.ShadeAt(159, 143))
	})

	t.Run("out of range is safe", func(t *testing.T) {
		fb.SetPixel(-1, 0, 3)
		fb.SetPixel(160, 0, 3)
		fb.SetPixel(0, 144, 3)
		assert.Equal(t, Shade(0), fb.ShadeAt(-1, 0))
		assert.Equal(t, Shade(0), fb.ShadeAt(160, 0))
	})

	t.Run("round trip through a flat copy", func(t *testing.T) {
		pixels := fb.Pixels()
		assert.Len(t, pixels, FramebufferWidth*FramebufferHeight)

		other := NewFrameBuffer()
		other.SetPixels(pixels)
		assert.Equal(t, Shade(3), other.ShadeAt(0, 0))
	})

	t.Run("rgba uses the green ramp", func(t *testing.T) {
		rgba := fb.ToRGBA()
		assert.Equal(t, uint32(0x081820FF), rgba[0])
		assert.Equal(t, uint32(0xE0F8D0FF), rgba[1])
	})

	t.Run("text dump", func(t *testing.T) {
		s := fb.String()
		lines := 0
		for _, r := range s {
			if r == '\n' {
				lines++
			}
		}
		assert.Equal(t, FramebufferHeight, lines)
		assert.Equal(t, '█', []rune(s)[0])
	})
}
