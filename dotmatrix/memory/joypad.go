package memory

import "github.com/valerio/go-dotmatrix/dotmatrix/bit"

// JoypadKey identifies one of the eight buttons.
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad models the P1 button matrix. The register is a selector: bits 4-5
// choose which button group appears on bits 0-3 (0 = selected, and 0 =
// pressed on the low bits). Bits 6-7 are unwired and read as 1.
type Joypad struct {
	buttons uint8 // A, B, Select, Start on bits 0-3
	dpad    uint8 // Right, Left, Up, Down on bits 0-3
	selects uint8 // last written bits 4-5

	// onPress is called when any line transitions high to low, wired to
	// the joypad interrupt.
	onPress func()
}

// NewJoypad returns a joypad with every button released.
func NewJoypad(onPress func()) *Joypad {
	return &Joypad{
		buttons: 0x0F,
		dpad:    0x0F,
		selects: 0x30,
		onPress: onPress,
	}
}

// Read composes the current P1 value from the selector and button state.
// When both groups are selected the matrix lines AND together; with neither
// selected the lines float high.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | j.selects

	selectDpad := j.selects&0x10 == 0
	selectButtons := j.selects&0x20 == 0

	switch {
	case selectDpad && selectButtons:
		result |= j.dpad & j.buttons
	case selectDpad:
		result |= j.dpad
	case selectButtons:
		result |= j.buttons
	default:
		result |= 0x0F
	}
	return result
}

// Write latches the selector bits; everything else in P1 is read only.
func (j *Joypad) Write(value uint8) {
	j.selects = value & 0x30
}

func (j *Joypad) keyBit(key JoypadKey) (group *uint8, index uint8) {
	if key <= JoypadDown {
		return &j.dpad, uint8(key)
	}
	return &j.buttons, uint8(key - JoypadA)
}

// Press pulls a button line low and requests the joypad interrupt on the
// transition.
func (j *Joypad) Press(key JoypadKey) {
	group, index := j.keyBit(key)
	if bit.IsSet(index, *group) {
		*group = bit.Reset(index, *group)
		if j.onPress != nil {
			j.onPress()
		}
	}
}

// Release returns a button line high.
func (j *Joypad) Release(key JoypadKey) {
	group, index := j.keyBit(key)
	*group = bit.Set(index, *group)
}
