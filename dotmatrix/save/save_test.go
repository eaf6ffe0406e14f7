package save

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
)

// fakeMachine stands in for the emulator with in-memory battery RAM.
type fakeMachine struct {
	ram        []byte
	generation uint64
	rtc        memory.RTCState
	hasRTC     bool
}

func (f *fakeMachine) BatteryRAM() ([]byte, error) {
	if f.ram == nil {
		return nil, memory.ErrCartridgeHasNoRAM
	}
	out := make([]byte, len(f.ram))
	copy(out, f.ram)
	return out, nil
}

func (f *fakeMachine) LoadBatteryRAM(data []byte) error {
	if len(data) != len(f.ram) {
		return memory.ErrBatteryRAMLength
	}
	copy(f.ram, data)
	return nil
}

func (f *fakeMachine) RAMGeneration() uint64 { return f.generation }

func (f *fakeMachine) RTCState() (memory.RTCState, bool) {
	return f.rtc, f.hasRTC
}

func (f *fakeMachine) SetRTCState(s memory.RTCState) { f.rtc = s }

// write simulates the game storing a byte of save RAM.
func (f *fakeMachine) write(offset int, value byte) {
	f.ram[offset] = value
	f.generation++
}

func TestPathsForROM(t *testing.T) {
	assert.Equal(t, "games/zelda.sav", SavePathForROM("games/zelda.gb"))
	assert.Equal(t, "games/zelda.rtc", RTCPathForROM("games/zelda.gb"))
	assert.Equal(t, "pokemon.sav", SavePathForROM("pokemon.gbc"))
	assert.Equal(t, "noext.sav", SavePathForROM("noext"))
}

func TestManagerFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.gb")

	machine := &fakeMachine{ram: make([]byte, 32)}
	machine.write(0, 0xAA)
	machine.write(5, 0xBB)

	mgr := NewManager(machine, romPath, nil)
	require.NoError(t, mgr.Flush())

	saved, err := os.ReadFile(SavePathForROM(romPath))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), saved[0])
	assert.Equal(t, byte(0xBB), saved[5])

	// a fresh machine picks the save back up
	restored := &fakeMachine{ram: make([]byte, 32)}
	require.NoError(t, NewManager(restored, romPath, nil).Load())
	assert.Equal(t, byte(0xAA), restored.ram[0])
}

func TestManagerLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	machine := &fakeMachine{ram: make([]byte, 32), hasRTC: true}

	mgr := NewManager(machine, filepath.Join(dir, "new.gb"), nil)
	assert.NoError(t, mgr.Load())
}

func TestManagerSettling(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.gb")
	savePath := SavePathForROM(romPath)

	machine := &fakeMachine{ram: make([]byte, 32)}
	mgr := NewManager(machine, romPath, nil)
	require.NoError(t, mgr.Load())

	t.Run("no writes, no file", func(t *testing.T) {
		for n := 0; n < settleFrames*2; n++ {
			mgr.TickFrame()
		}
		assert.NoFileExists(t, savePath)
	})

	t.Run("a write burst flushes once it settles", func(t *testing.T) {
		machine.write(0, 0x11)
		for n := 0; n < settleFrames; n++ {
			mgr.TickFrame()
		}
		assert.NoFileExists(t, savePath)

		mgr.TickFrame()
		assert.FileExists(t, savePath)
	})

	t.Run("ongoing writes keep resetting the countdown", func(t *testing.T) {
		require.NoError(t, os.Remove(savePath))

		for n := 0; n < settleFrames*3; n++ {
			machine.write(0, 0x22) // a write on every frame
			mgr.TickFrame()
		}
		assert.NoFileExists(t, savePath)
	})
}

func TestManagerClose(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.gb")

	machine := &fakeMachine{ram: make([]byte, 32)}
	mgr := NewManager(machine, romPath, nil)
	require.NoError(t, mgr.Load())

	t.Run("clean close writes nothing", func(t *testing.T) {
		require.NoError(t, mgr.Close())
		assert.NoFileExists(t, SavePathForROM(romPath))
	})

	t.Run("pending changes flush on close", func(t *testing.T) {
		machine.write(3, 0x42)
		require.NoError(t, mgr.Close())

		saved, err := os.ReadFile(SavePathForROM(romPath))
		require.NoError(t, err)
		assert.Equal(t, byte(0x42), saved[3])
	})
}

func TestManagerRTCRoundTrip(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.gb")

	machine := &fakeMachine{ram: make([]byte, 32), hasRTC: true}
	machine.rtc.Live[0] = 42
	machine.write(0, 1)

	require.NoError(t, NewManager(machine, romPath, nil).Flush())
	assert.FileExists(t, RTCPathForROM(romPath))

	restored := &fakeMachine{ram: make([]byte, 32), hasRTC: true}
	require.NoError(t, NewManager(restored, romPath, nil).Load())
	assert.Equal(t, byte(42), restored.rtc.Live[0])
}

func TestManagerNoBatteryRAM(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "game.gb")

	mgr := NewManager(&fakeMachine{}, romPath, nil)
	assert.NoError(t, mgr.Flush())
	assert.NoFileExists(t, SavePathForROM(romPath))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.sav")

	require.NoError(t, writeAtomic(path, []byte("first")))
	require.NoError(t, writeAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.NoFileExists(t, path+".tmp")
}
