// Package dotmatrix wires the DMG machine together: CPU, bus, PPU and the
// cartridge, stepped in lockstep at instruction granularity.
package dotmatrix

import (
	"fmt"
	"os"

	"github.com/valerio/go-dotmatrix/dotmatrix/cpu"
	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
	"github.com/valerio/go-dotmatrix/dotmatrix/timing"
	"github.com/valerio/go-dotmatrix/dotmatrix/video"
)

// DMG is one emulated machine instance.
type DMG struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mmu *memory.MMU

	instructions uint64
}

type config struct {
	bootROM []byte
	clock   memory.Clock
	serial  memory.SerialPort
}

// Option configures a machine at construction time.
type Option func(*config)

// WithBootROM runs the given 256 byte boot ROM instead of starting from the
// post-boot register state.
func WithBootROM(rom []byte) Option {
	return func(c *config) { c.bootROM = rom }
}

// WithRTCClock syncs a cartridge real time clock to wall time on latch.
func WithRTCClock(clock memory.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithSerialPort attaches a serial device in place of the default log sink.
func WithSerialPort(port memory.SerialPort) Option {
	return func(c *config) { c.serial = port }
}

// New builds a machine around a ROM image.
func New(data []byte, opts ...Option) (*DMG, error) {
	cart, err := memory.LoadCartridge(data)
	if err != nil {
		return nil, fmt.Errorf("load cartridge: %w", err)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var memOpts []memory.Option
	if len(cfg.bootROM) > 0 {
		memOpts = append(memOpts, memory.WithBootROM(cfg.bootROM))
	}
	if cfg.clock != nil {
		memOpts = append(memOpts, memory.WithRTCClock(cfg.clock))
	}
	if cfg.serial != nil {
		memOpts = append(memOpts, memory.WithSerialPort(cfg.serial))
	}

	mmu := memory.NewWithCartridge(cart, memOpts...)
	gpu := video.New(mmu)
	mmu.AttachVideo(gpu)

	d := &DMG{
		cpu: cpu.New(mmu),
		gpu: gpu,
		mmu: mmu,
	}

	if len(cfg.bootROM) == 0 {
		d.applyPostBootState()
	}
	return d, nil
}

// NewWithFile builds a machine from a ROM file on disk.
func NewWithFile(path string, opts ...Option) (*DMG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ROM: %w", err)
	}
	return New(data, opts...)
}

// applyPostBootState puts every unit in the state the boot ROM leaves
// behind, so execution can start straight at 0x0100.
func (d *DMG) applyPostBootState() {
	d.cpu.ApplyPostBootState()
	d.mmu.ApplyPostBootState()
	d.gpu.ApplyPostBootState()
}

// Step executes one instruction (or one interrupt dispatch) and advances
// every unit by the cycles it took.
func (d *DMG) Step() (int, error) {
	cycles, err := d.cpu.Exec()
	if err != nil {
		return 0, err
	}
	d.mmu.Tick(cycles)
	d.gpu.Tick(cycles)
	d.instructions++
	return cycles, nil
}

// RunUntilFrame executes until the PPU completes a frame. With the LCD off
// no frames complete, so it returns after one frame's worth of cycles to
// keep the caller's loop live.
func (d *DMG) RunUntilFrame() error {
	budget := timing.CyclesPerFrame
	for budget > 0 {
		cycles, err := d.Step()
		if err != nil {
			return err
		}
		budget -= cycles
		if d.gpu.ConsumeFrame() {
			return nil
		}
	}
	return nil
}

// GetCurrentFrame returns the framebuffer the PPU renders into.
func (d *DMG) GetCurrentFrame() *video.FrameBuffer {
	return d.gpu.Framebuffer()
}

// FrameCount returns the number of frames completed so far.
func (d *DMG) FrameCount() uint64 {
	return d.gpu.FrameCount()
}

// InstructionCount returns the number of instructions executed so far.
func (d *DMG) InstructionCount() uint64 {
	return d.instructions
}

// HandleKeyPress forwards a button press to the joypad.
func (d *DMG) HandleKeyPress(key memory.JoypadKey) {
	d.mmu.HandleKeyPress(key)
}

// HandleKeyRelease forwards a button release to the joypad.
func (d *DMG) HandleKeyRelease(key memory.JoypadKey) {
	d.mmu.HandleKeyRelease(key)
}

// Cartridge returns the loaded cartridge.
func (d *DMG) Cartridge() *memory.Cartridge {
	return d.mmu.Cartridge()
}

// BatteryRAM returns a copy of the battery backed RAM for persistence.
func (d *DMG) BatteryRAM() ([]byte, error) {
	return d.mmu.Cartridge().BatteryRAM()
}

// LoadBatteryRAM restores previously saved battery RAM.
func (d *DMG) LoadBatteryRAM(data []byte) error {
	return d.mmu.Cartridge().LoadBatteryRAM(data)
}

// RAMGeneration counts external RAM writes, for save-dirty tracking.
func (d *DMG) RAMGeneration() uint64 {
	return d.mmu.Cartridge().RAMGeneration()
}

// RTCState returns the cartridge clock state when the cartridge has one.
func (d *DMG) RTCState() (memory.RTCState, bool) {
	rtc, ok := d.mmu.RTC()
	if !ok {
		return memory.RTCState{}, false
	}
	return rtc.RTCState(), true
}

// SetRTCState restores a persisted cartridge clock.
func (d *DMG) SetRTCState(s memory.RTCState) {
	if rtc, ok := d.mmu.RTC(); ok {
		rtc.SetRTCState(s)
	}
}
