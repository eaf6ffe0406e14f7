package video

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// TileRow is one 8 pixel row of a tile in the VRAM bit-plane format: the
// low byte carries bit 0 of each pixel's color index, the high byte bit 1.
// Bit 7 of each byte is the leftmost pixel.
type TileRow struct {
	Low  byte
	High byte
}

// Pixel returns the 2 bit color index at x (0 = leftmost).
func (t TileRow) Pixel(x int) int {
	index := uint8(7 - x)
	pixel := 0
	if bit.IsSet(index, t.Low) {
		pixel |= 1
	}
	if bit.IsSet(index, t.High) {
		pixel |= 2
	}
	return pixel
}

// PixelFlipped returns the color index at x with the row mirrored, used for
// sprites with the flip X attribute.
func (t TileRow) PixelFlipped(x int) int {
	return t.Pixel(7 - x)
}

// fetchRow reads one tile row (2 bytes) from VRAM.
func fetchRow(bus Bus, address uint16) TileRow {
	return TileRow{Low: bus.Read(address), High: bus.Read(address + 1)}
}

// tileRowAddress resolves a background or window tile index to the VRAM
// address of one of its rows. With LCDC bit 4 set, indices address tiles
// unsigned from 0x8000; clear, they address signed from 0x9000.
func tileRowAddress(unsignedMode bool, tileIndex byte, row int) uint16 {
	if unsignedMode {
		return addr.TileDataUnsigned + uint16(tileIndex)*16 + uint16(row)*2
	}
	offset := int(int8(tileIndex))*16 + row*2
	return uint16(int(addr.TileDataSigned) + offset)
}
