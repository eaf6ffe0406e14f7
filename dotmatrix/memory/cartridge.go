package memory

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// Header field offsets in the ROM image.
const (
	logoOffset           = 0x104
	titleOffset          = 0x134
	cgbFlagOffset        = 0x143
	newLicenseeOffset    = 0x144
	sgbFlagOffset        = 0x146
	cartTypeOffset       = 0x147
	romSizeOffset        = 0x148
	ramSizeOffset        = 0x149
	destinationOffset    = 0x14A
	oldLicenseeOffset    = 0x14B
	versionOffset        = 0x14C
	headerChecksumOffset = 0x14D
	globalChecksumOffset = 0x14E

	// headerEnd is the first byte past the header; anything shorter
	// cannot be a cartridge.
	headerEnd = 0x150
)

// ROM load errors. A bad header is never papered over with defaults: the
// MBC type it declares decides the whole addressing model.
var (
	ErrROMTooSmall       = errors.New("rom image smaller than the cartridge header")
	ErrHeaderChecksum    = errors.New("header checksum mismatch")
	ErrInvalidROMSize    = errors.New("invalid rom size code")
	ErrInvalidRAMSize    = errors.New("invalid ram size code")
	ErrUnsupportedMBC    = errors.New("unsupported cartridge type")
	ErrBatteryRAMLength  = errors.New("battery ram length does not match cartridge")
	ErrCartridgeHasNoRAM = errors.New("cartridge has no battery backed ram")
)

// nintendoLogo is the bitmap at 0x104 that the boot ROM verifies. Real
// hardware locks up on mismatch; we only report it.
var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// MBCType is the bank controller family declared by the header.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

func (t MBCType) String() string {
	switch t {
	case NoMBCType:
		return "ROM only"
	case MBC1Type:
		return "MBC1"
	case MBC2Type:
		return "MBC2"
	case MBC3Type:
		return "MBC3"
	case MBC5Type:
		return "MBC5"
	}
	return "unknown"
}

// cartFeatures maps the raw cartridge type byte to the controller family
// and the extra hardware on the board.
type cartFeatures struct {
	mbc     MBCType
	battery bool
	rtc     bool
	rumble  bool
}

var cartTypes = map[byte]cartFeatures{
	0x00: {mbc: NoMBCType},
	0x01: {mbc: MBC1Type},
	0x02: {mbc: MBC1Type},
	0x03: {mbc: MBC1Type, battery: true},
	0x05: {mbc: MBC2Type},
	0x06: {mbc: MBC2Type, battery: true},
	0x08: {mbc: NoMBCType},
	0x09: {mbc: NoMBCType, battery: true},
	0x0F: {mbc: MBC3Type, battery: true, rtc: true},
	0x10: {mbc: MBC3Type, battery: true, rtc: true},
	0x11: {mbc: MBC3Type},
	0x12: {mbc: MBC3Type},
	0x13: {mbc: MBC3Type, battery: true},
	0x19: {mbc: MBC5Type},
	0x1A: {mbc: MBC5Type},
	0x1B: {mbc: MBC5Type, battery: true},
	0x1C: {mbc: MBC5Type, rumble: true},
	0x1D: {mbc: MBC5Type, rumble: true},
	0x1E: {mbc: MBC5Type, battery: true, rumble: true},
}

// ramSizes maps the RAM size code to total bytes. Code 0x01 (2 KiB) is a
// partial bank; codes above it are whole 8 KiB banks.
var ramSizes = map[byte]int{
	0x00: 0,
	0x01: 2 * 1024,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// Header is the parsed cartridge header.
type Header struct {
	Title          string
	CGBFlag        byte
	SGBFlag        byte
	TypeCode       byte
	MBC            MBCType
	ROMSizeCode    byte
	RAMSizeCode    byte
	ROMBanks       int
	RAMBanks       int
	Destination    byte
	OldLicensee    byte
	NewLicensee    string
	Version        byte
	HeaderChecksum byte
	GlobalChecksum uint16

	// GlobalChecksumOK records whether the whole-ROM checksum matched.
	// Hardware ignores it, so a mismatch only warns.
	GlobalChecksumOK bool
	// LogoOK records whether the boot logo bitmap matched.
	LogoOK bool
}

// Cartridge owns the ROM image, the cartridge RAM and the parsed header.
type Cartridge struct {
	header     Header
	data       []byte
	ram        []byte
	hasBattery bool
	hasRTC     bool
	hasRumble  bool

	// generation increments on every RAM write; the save layer uses it
	// to detect settled state worth flushing.
	generation uint64
}

// ComputeHeaderChecksum runs the documented checksum over 0x134-0x14C.
func ComputeHeaderChecksum(data []byte) byte {
	var sum byte
	for _, b := range data[titleOffset:headerChecksumOffset] {
		sum = sum - b - 1
	}
	return sum
}

// ComputeGlobalChecksum sums every ROM byte except the checksum's own two.
func ComputeGlobalChecksum(data []byte) uint16 {
	var sum uint16
	for i, b := range data {
		if i == globalChecksumOffset || i == globalChecksumOffset+1 {
			continue
		}
		sum += uint16(b)
	}
	return sum
}

// LoadCartridge parses and validates a ROM image. It fails fast on a short
// image, a header checksum mismatch or an unsupported cartridge type.
func LoadCartridge(data []byte) (*Cartridge, error) {
	if len(data) < headerEnd {
		return nil, fmt.Errorf("%w: %d bytes", ErrROMTooSmall, len(data))
	}

	declared := data[headerChecksumOffset]
	computed := ComputeHeaderChecksum(data)
	if declared != computed {
		return nil, fmt.Errorf("%w: header declares 0x%02X, computed 0x%02X",
			ErrHeaderChecksum, declared, computed)
	}

	typeCode := data[cartTypeOffset]
	features, ok := cartTypes[typeCode]
	if !ok {
		return nil, fmt.Errorf("%w: code 0x%02X", ErrUnsupportedMBC, typeCode)
	}

	romSizeCode := data[romSizeOffset]
	if romSizeCode > 0x08 {
		return nil, fmt.Errorf("%w: code 0x%02X", ErrInvalidROMSize, romSizeCode)
	}
	romBanks := 2 << romSizeCode

	ramSizeCode := data[ramSizeOffset]
	ramBytes, ok := ramSizes[ramSizeCode]
	if !ok {
		return nil, fmt.Errorf("%w: code 0x%02X", ErrInvalidRAMSize, ramSizeCode)
	}
	if features.mbc == MBC2Type {
		// MBC2 RAM is on the controller itself: 512 half-byte cells,
		// regardless of the header's RAM size code.
		ramBytes = 512
	}

	header := Header{
		Title:            cleanTitle(titleBytes(data)),
		CGBFlag:          data[cgbFlagOffset],
		SGBFlag:          data[sgbFlagOffset],
		TypeCode:         typeCode,
		MBC:              features.mbc,
		ROMSizeCode:      romSizeCode,
		RAMSizeCode:      ramSizeCode,
		ROMBanks:         romBanks,
		RAMBanks:         (ramBytes + 0x1FFF) / 0x2000,
		Destination:      data[destinationOffset],
		OldLicensee:      data[oldLicenseeOffset],
		NewLicensee:      string(data[newLicenseeOffset : newLicenseeOffset+2]),
		Version:          data[versionOffset],
		HeaderChecksum:   declared,
		GlobalChecksum:   bit.Combine(data[globalChecksumOffset], data[globalChecksumOffset+1]),
		GlobalChecksumOK: bit.Combine(data[globalChecksumOffset], data[globalChecksumOffset+1]) == ComputeGlobalChecksum(data),
		LogoOK:           logoMatches(data),
	}

	rom := make([]byte, len(data))
	copy(rom, data)

	return &Cartridge{
		header:     header,
		data:       rom,
		ram:        make([]byte, ramBytes),
		hasBattery: features.battery,
		hasRTC:     features.rtc,
		hasRumble:  features.rumble,
	}, nil
}

// titleBytes returns the raw title field: 16 bytes, shortened to 15 when
// the CGB flag claims the last byte.
func titleBytes(data []byte) []byte {
	length := 16
	if flag := data[cgbFlagOffset]; flag == 0x80 || flag == 0xC0 {
		length = 15
	}
	return data[titleOffset : titleOffset+length]
}

func cleanTitle(raw []byte) string {
	out := make([]rune, 0, len(raw))
	for _, b := range raw {
		switch {
		case b == 0:
			out = append(out, ' ')
		case unicode.IsPrint(rune(b)):
			out = append(out, rune(b))
		default:
			out = append(out, '?')
		}
	}
	return strings.TrimSpace(string(out))
}

func logoMatches(data []byte) bool {
	for i, b := range nintendoLogo {
		if data[logoOffset+i] != b {
			return false
		}
	}
	return true
}

// Header returns the parsed header.
func (c *Cartridge) Header() Header { return c.header }

// Title returns the cleaned cartridge title.
func (c *Cartridge) Title() string { return c.header.Title }

// HasBattery reports whether the cartridge RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// HasRTC reports whether the cartridge carries a real time clock.
func (c *Cartridge) HasRTC() bool { return c.hasRTC }

// ROMSize returns the ROM image size in bytes.
func (c *Cartridge) ROMSize() int { return len(c.data) }

// RAMSize returns the cartridge RAM size in bytes.
func (c *Cartridge) RAMSize() int { return len(c.ram) }

func (c *Cartridge) String() string {
	return fmt.Sprintf("%s (%s, %d KiB ROM, %d KiB RAM, v%d)",
		c.header.Title, c.header.MBC, len(c.data)/1024, len(c.ram)/1024, c.header.Version)
}

// readROM reads a fully resolved offset into the ROM image.
func (c *Cartridge) readROM(offset int) byte {
	return c.data[offset]
}

func (c *Cartridge) readRAM(offset int) byte {
	if len(c.ram) == 0 {
		return 0xFF
	}
	return c.ram[offset%len(c.ram)]
}

func (c *Cartridge) writeRAM(offset int, value byte) {
	if len(c.ram) == 0 {
		return
	}
	c.ram[offset%len(c.ram)] = value
	c.generation++
}

// RAMGeneration returns a counter that increments on every RAM write. Equal
// values across two observations mean the RAM did not change in between.
func (c *Cartridge) RAMGeneration() uint64 { return c.generation }

// BatteryRAM returns a copy of the battery backed RAM, or an error when the
// cartridge has none.
func (c *Cartridge) BatteryRAM() ([]byte, error) {
	if !c.hasBattery || len(c.ram) == 0 {
		return nil, ErrCartridgeHasNoRAM
	}
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out, nil
}

// LoadBatteryRAM replaces the battery backed RAM with a saved image of the
// exact declared length.
func (c *Cartridge) LoadBatteryRAM(saved []byte) error {
	if !c.hasBattery || len(c.ram) == 0 {
		return ErrCartridgeHasNoRAM
	}
	if len(saved) != len(c.ram) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBatteryRAMLength, len(saved), len(c.ram))
	}
	copy(c.ram, saved)
	return nil
}

// SetRAM overwrites the cartridge RAM without battery checks, used by
// snapshot restore.
func (c *Cartridge) SetRAM(ram []byte) {
	copy(c.ram, ram)
}

// RAMCopy returns a copy of the cartridge RAM for snapshots.
func (c *Cartridge) RAMCopy() []byte {
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}
