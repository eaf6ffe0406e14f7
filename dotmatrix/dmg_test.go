package dotmatrix

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
)

var testLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83,
	0x00, 0x0C, 0x00, 0x0D, 0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99, 0xBB, 0xBB, 0x67, 0x63,
	0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// testROM builds a 32 KiB flat cartridge whose entry point jumps to the
// given program at 0x0150.
func testROM(t *testing.T, title string, program []byte) []byte {
	t.Helper()
	data := make([]byte, 2*0x4000)

	// entry: JP 0x0150
	data[0x100] = 0xC3
	data[0x101] = 0x50
	data[0x102] = 0x01
	copy(data[0x150:], program)

	copy(data[0x104:], testLogo[:])
	copy(data[0x134:], title)
	data[0x14D] = memory.ComputeHeaderChecksum(data)
	global := memory.ComputeGlobalChecksum(data)
	data[0x14E] = byte(global >> 8)
	data[0x14F] = byte(global)
	return data
}

// countingProgram increments 0xC000 forever.
var countingProgram = []byte{
	0x21, 0x00, 0xC0, // LD HL, 0xC000
	0x34,       // INC (HL)
	0x18, 0xFD, // JR back to the INC
}

func newTestMachine(t *testing.T) *DMG {
	t.Helper()
	d, err := New(testROM(t, "SNAPTEST", countingProgram))
	require.NoError(t, err)
	return d
}

func TestNewStartsFromPostBootState(t *testing.T) {
	d := newTestMachine(t)

	s := d.CaptureSnapshot()
	assert.Equal(t, uint16(0x0100), s.CPU.PC)
	assert.Equal(t, uint16(0xFFFE), s.CPU.SP)
	assert.Equal(t, uint8(0x01), s.CPU.A)
	assert.Equal(t, uint8(0xB0), s.CPU.F)
	assert.Equal(t, "SNAPTEST", s.Title)
	assert.False(t, s.BootROMMapped)
}

func TestStep(t *testing.T) {
	d := newTestMachine(t)

	cycles, err := d.Step() // the entry JP
	require.NoError(t, err)

	assert.Equal(t, 16, cycles)
	assert.Equal(t, uint64(1), d.InstructionCount())
	assert.Equal(t, uint16(0x0150), d.CaptureSnapshot().CPU.PC)
}

func TestRunUntilFrame(t *testing.T) {
	d := newTestMachine(t)

	require.NoError(t, d.RunUntilFrame())
	assert.Equal(t, uint64(1), d.FrameCount())

	require.NoError(t, d.RunUntilFrame())
	assert.Equal(t, uint64(2), d.FrameCount())

	// the program has been running all along
	s := d.CaptureSnapshot()
	assert.NotZero(t, s.Memory[0xC000])
}

func TestRunUntilFrameWithLCDOff(t *testing.T) {
	lcdOff := []byte{
		0x3E, 0x00, // LD A, 0
		0xE0, 0x40, // LDH (LCDC), A
		0x18, 0xFE, // JR self
	}
	d, err := New(testROM(t, "LCDOFF", lcdOff))
	require.NoError(t, err)

	// no frame can complete, but the call must still return
	require.NoError(t, d.RunUntilFrame())
	assert.Equal(t, uint64(0), d.FrameCount())
	assert.NotZero(t, d.InstructionCount())
}

func TestDeterminism(t *testing.T) {
	a := newTestMachine(t)
	b := newTestMachine(t)

	for n := 0; n < 5; n++ {
		require.NoError(t, a.RunUntilFrame())
		require.NoError(t, b.RunUntilFrame())
	}

	assert.Equal(t, a.CaptureSnapshot(), b.CaptureSnapshot())
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := newTestMachine(t)
	for n := 0; n < 3; n++ {
		require.NoError(t, d.RunUntilFrame())
	}

	taken := d.CaptureSnapshot()

	var buf bytes.Buffer
	require.NoError(t, taken.Encode(&buf))

	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	fresh := newTestMachine(t)
	require.NoError(t, fresh.RestoreSnapshot(decoded))

	assert.Equal(t, taken, fresh.CaptureSnapshot())
	assert.Equal(t, d.FrameCount(), fresh.FrameCount())
	assert.Equal(t, d.InstructionCount(), fresh.InstructionCount())

	// both machines continue identically from the restore point
	require.NoError(t, d.RunUntilFrame())
	require.NoError(t, fresh.RunUntilFrame())
	assert.Equal(t, d.CaptureSnapshot(), fresh.CaptureSnapshot())
}

func TestSnapshotRejections(t *testing.T) {
	d := newTestMachine(t)

	t.Run("wrong version", func(t *testing.T) {
		s := d.CaptureSnapshot()
		s.Version = 99
		assert.ErrorIs(t, d.RestoreSnapshot(s), ErrSnapshotVersion)
	})

	t.Run("wrong cartridge", func(t *testing.T) {
		other, err := New(testROM(t, "OTHERGAME", countingProgram))
		require.NoError(t, err)

		assert.ErrorIs(t, other.RestoreSnapshot(d.CaptureSnapshot()), ErrSnapshotCartridge)
	})

	t.Run("decode rejects old versions", func(t *testing.T) {
		s := d.CaptureSnapshot()
		s.Version = 0

		var buf bytes.Buffer
		require.NoError(t, s.Encode(&buf))
		_, err := DecodeSnapshot(&buf)
		assert.ErrorIs(t, err, ErrSnapshotVersion)
	})
}

func TestJoypadPassThrough(t *testing.T) {
	d := newTestMachine(t)

	d.HandleKeyPress(memory.JoypadStart)
	s := d.CaptureSnapshot()
	// the press latches an interrupt request in IF
	assert.NotZero(t, s.Memory[0xFF0F]&0x10)

	d.HandleKeyRelease(memory.JoypadStart)
}

func TestCartridgeAccessors(t *testing.T) {
	d := newTestMachine(t)

	assert.Equal(t, "SNAPTEST", d.Cartridge().Title())
	assert.False(t, d.Cartridge().HasBattery())

	_, ok := d.RTCState()
	assert.False(t, ok)

	_, err := d.BatteryRAM()
	assert.ErrorIs(t, err, memory.ErrCartridgeHasNoRAM)
}
