// Package save persists battery backed cartridge RAM and RTC state next to
// the ROM file, the way most emulators do (.sav and .rtc siblings).
package save

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
)

// settleFrames is how many unchanged frames RAM must sit before it is
// flushed. Games write saves in bursts; waiting for the burst to settle
// avoids writing half a save file.
const settleFrames = 60

// Machine is the slice of the emulator the save manager needs.
type Machine interface {
	BatteryRAM() ([]byte, error)
	LoadBatteryRAM(data []byte) error
	RAMGeneration() uint64
	RTCState() (memory.RTCState, bool)
	SetRTCState(memory.RTCState)
}

// SavePathForROM returns the battery RAM file path for a ROM path:
// the same name with a .sav extension.
func SavePathForROM(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

// RTCPathForROM returns the RTC state file path for a ROM path.
func RTCPathForROM(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".rtc"
}

// Manager watches cartridge RAM and writes it out once writes settle, plus
// a final flush on Close.
type Manager struct {
	machine Machine
	ramPath string
	rtcPath string
	logger  *slog.Logger

	lastGen    uint64 // generation seen on the previous frame
	flushedGen uint64 // generation last written to disk
	settled    int
}

// NewManager creates a manager persisting next to the given ROM path.
func NewManager(machine Machine, romPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		machine: machine,
		ramPath: SavePathForROM(romPath),
		rtcPath: RTCPathForROM(romPath),
		logger:  logger,
	}
}

// Load restores battery RAM and RTC state from disk. Missing files are not
// errors: a first run simply has nothing to load.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.ramPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read save: %w", err)
	default:
		if err := m.machine.LoadBatteryRAM(data); err != nil {
			return fmt.Errorf("load save %s: %w", m.ramPath, err)
		}
		m.logger.Info("loaded battery RAM", "path", m.ramPath, "bytes", len(data))
	}

	if _, hasRTC := m.machine.RTCState(); hasRTC {
		if err := m.loadRTC(); err != nil {
			return err
		}
	}

	m.lastGen = m.machine.RAMGeneration()
	m.flushedGen = m.lastGen
	return nil
}

func (m *Manager) loadRTC() error {
	f, err := os.Open(m.rtcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read rtc: %w", err)
	}
	defer f.Close()

	var state memory.RTCState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return fmt.Errorf("decode rtc %s: %w", m.rtcPath, err)
	}
	m.machine.SetRTCState(state)
	m.logger.Info("loaded RTC state", "path", m.rtcPath)
	return nil
}

// TickFrame is called once per emulated frame. It flushes once RAM has been
// stable for settleFrames frames since the last unwritten change.
func (m *Manager) TickFrame() {
	gen := m.machine.RAMGeneration()
	if gen != m.lastGen {
		m.lastGen = gen
		m.settled = 0
		return
	}
	if gen == m.flushedGen {
		return
	}
	m.settled++
	if m.settled >= settleFrames {
		if err := m.Flush(); err != nil {
			m.logger.Error("save flush failed", "error", err)
		}
	}
}

// Flush writes battery RAM (and RTC state, when present) to disk. Writes go
// through a temp file and rename so a crash never leaves a torn save.
func (m *Manager) Flush() error {
	data, err := m.machine.BatteryRAM()
	if err != nil {
		if errors.Is(err, memory.ErrCartridgeHasNoRAM) {
			return nil
		}
		return err
	}

	if err := writeAtomic(m.ramPath, data); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	m.flushedGen = m.machine.RAMGeneration()
	m.settled = 0
	m.logger.Debug("flushed battery RAM", "path", m.ramPath, "bytes", len(data))

	if state, hasRTC := m.machine.RTCState(); hasRTC {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(state); err != nil {
			return fmt.Errorf("encode rtc: %w", err)
		}
		if err := writeAtomic(m.rtcPath, buf.Bytes()); err != nil {
			return fmt.Errorf("write rtc: %w", err)
		}
	}
	return nil
}

// Close performs a final flush if there are unwritten changes.
func (m *Manager) Close() error {
	if m.machine.RAMGeneration() == m.flushedGen {
		return nil
	}
	return m.Flush()
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
