package dotmatrix

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/valerio/go-dotmatrix/dotmatrix/cpu"
	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
	"github.com/valerio/go-dotmatrix/dotmatrix/video"
)

// snapshotVersion is bumped whenever the Snapshot layout changes; older
// files are rejected rather than misread.
const snapshotVersion = 1

var (
	ErrSnapshotVersion   = errors.New("snapshot: unsupported version")
	ErrSnapshotCartridge = errors.New("snapshot: cartridge does not match")
)

// Snapshot is the full machine state, serializable with encoding/gob. The
// ROM itself is not included: restoring requires the same cartridge, which
// is checked by title.
type Snapshot struct {
	Version      int
	Title        string
	Instructions uint64

	CPU    cpu.Registers
	Memory []byte
	Timer  memory.TimerState
	MBC    memory.MBCState
	Video  video.State
	Frame  []video.Shade

	AudioRegisters [0x20]byte
	WaveRAM        [16]byte
	AudioOn        bool

	CartridgeRAM  []byte
	BootROMMapped bool
	DMA           byte
}

// CaptureSnapshot copies the whole machine state.
func (d *DMG) CaptureSnapshot() *Snapshot {
	regs, wave, on := d.mmu.APU().Registers()
	return &Snapshot{
		Version:        snapshotVersion,
		Title:          d.mmu.Cartridge().Title(),
		Instructions:   d.instructions,
		CPU:            d.cpu.Registers(),
		Memory:         d.mmu.MemoryCopy(),
		Timer:          d.mmu.TimerState(),
		MBC:            d.mmu.MBCState(),
		Video:          d.gpu.State(),
		Frame:          d.gpu.Framebuffer().Pixels(),
		AudioRegisters: regs,
		WaveRAM:        wave,
		AudioOn:        on,
		CartridgeRAM:   d.mmu.Cartridge().RAMCopy(),
		BootROMMapped:  d.mmu.BootROMMapped(),
		DMA:            d.mmu.DMAValue(),
	}
}

// RestoreSnapshot loads a captured state back into the machine. The loaded
// cartridge must be the one the snapshot was taken from.
func (d *DMG) RestoreSnapshot(s *Snapshot) error {
	if s.Version != snapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	if s.Title != d.mmu.Cartridge().Title() {
		return fmt.Errorf("%w: snapshot %q, loaded %q",
			ErrSnapshotCartridge, s.Title, d.mmu.Cartridge().Title())
	}

	d.instructions = s.Instructions
	d.cpu.SetRegisters(s.CPU)
	d.mmu.SetMemory(s.Memory)
	d.mmu.SetTimerState(s.Timer)
	d.mmu.SetMBCState(s.MBC)
	d.gpu.SetState(s.Video)
	d.gpu.Framebuffer().SetPixels(s.Frame)
	d.mmu.APU().SetRegisters(s.AudioRegisters, s.WaveRAM, s.AudioOn)
	d.mmu.Cartridge().SetRAM(s.CartridgeRAM)
	d.mmu.SetBootROMMapped(s.BootROMMapped)
	d.mmu.SetDMAValue(s.DMA)
	return nil
}

// Encode writes the snapshot in gob format.
func (s *Snapshot) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(s)
}

// DecodeSnapshot reads a gob snapshot and checks its version.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return &s, nil
}
