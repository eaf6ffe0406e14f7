package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// testBus is a flat 64 KiB memory with no mapping, enough for exercising
// the CPU in isolation.
type testBus struct {
	mem [0x10000]byte
}

func (b *testBus) Read(address uint16) byte         { return b.mem[address] }
func (b *testBus) Write(address uint16, value byte) { b.mem[address] = value }

// newTestCPU loads a program at 0x0100 and points PC at it.
func newTestCPU(program ...byte) (*CPU, *testBus) {
	bus := &testBus{}
	copy(bus.mem[0x0100:], program)
	c := New(bus)
	c.pc = 0x0100
	c.sp = 0xFFFE
	return c, bus
}

func step(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Exec()
	require.NoError(t, err)
	return cycles
}

func TestApplyPostBootState(t *testing.T) {
	c, _ := newTestCPU()
	c.ApplyPostBootState()

	assert.Equal(t, uint16(0x01B0), c.af())
	assert.Equal(t, uint16(0x0013), c.bc())
	assert.Equal(t, uint16(0x00D8), c.de())
	assert.Equal(t, uint16(0x014D), c.hl())
	assert.Equal(t, uint16(0xFFFE), c.sp)
	assert.Equal(t, uint16(0x0100), c.pc)
}

func TestNop(t *testing.T) {
	c, _ := newTestCPU(0x00)

	cycles := step(t, c)

	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0x0101), c.pc)
}

func TestUnknownOpcode(t *testing.T) {
	t.Run("primary", func(t *testing.T) {
		c, _ := newTestCPU(0xD3)

		_, err := c.Exec()

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, byte(0xD3), decodeErr.Opcode)
		assert.False(t, decodeErr.Prefixed)
		assert.Equal(t, uint16(0x0100), decodeErr.PC)
	})

	t.Run("every CB opcode decodes", func(t *testing.T) {
		for op := 0; op < 256; op++ {
			c, _ := newTestCPU(0xCB, byte(op))
			_, err := c.Exec()
			assert.NoError(t, err, "CB 0x%02X", op)
		}
	})
}

func TestLowFlagNibbleAlwaysZero(t *testing.T) {
	c, _ := newTestCPU()
	c.setAF(0x12FF)

	assert.Equal(t, uint8(0xF0), c.f)
	assert.Equal(t, uint16(0x12F0), c.af())
}

func TestEIDelay(t *testing.T) {
	t.Run("IME set after the following instruction", func(t *testing.T) {
		c, _ := newTestCPU(0xFB, 0x00, 0x00) // EI; NOP; NOP

		step(t, c)
		assert.False(t, c.ime)
		assert.True(t, c.eiPending)

		step(t, c)
		assert.True(t, c.ime)
		assert.False(t, c.eiPending)
	})

	t.Run("interrupt not taken during the delay slot", func(t *testing.T) {
		c, bus := newTestCPU(0xFB, 0x00, 0x00) // EI; NOP; NOP
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01

		step(t, c) // EI
		step(t, c) // NOP still runs, interrupts come up after it
		assert.Equal(t, uint16(0x0102), c.pc)

		cycles := step(t, c)
		assert.Equal(t, interruptCycles, cycles)
		assert.Equal(t, uint16(0x0040), c.pc)
	})

	t.Run("DI in the delay slot cancels the enable", func(t *testing.T) {
		c, _ := newTestCPU(0xFB, 0xF3, 0x00) // EI; DI; NOP

		step(t, c)
		step(t, c)
		assert.False(t, c.ime)
		assert.False(t, c.eiPending)

		step(t, c)
		assert.False(t, c.ime)
	})
}

func TestInterruptService(t *testing.T) {
	t.Run("dispatch clears IF bit and IME", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		c.ime = true
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01

		cycles := step(t, c)

		assert.Equal(t, interruptCycles, cycles)
		assert.Equal(t, uint16(0x0040), c.pc)
		assert.False(t, c.ime)
		assert.Equal(t, byte(0x00), bus.mem[addr.IF]&0x01)

		// old PC pushed on the stack, high byte first
		assert.Equal(t, uint16(0xFFFC), c.sp)
		assert.Equal(t, byte(0x01), bus.mem[0xFFFD])
		assert.Equal(t, byte(0x00), bus.mem[0xFFFC])
	})

	t.Run("lower bits win priority", func(t *testing.T) {
		vectors := []struct {
			flags  byte
			vector uint16
		}{
			{0x1F, 0x0040}, // vblank beats everything
			{0x1E, 0x0048},
			{0x1C, 0x0050},
			{0x18, 0x0058},
			{0x10, 0x0060},
		}
		for _, tc := range vectors {
			c, bus := newTestCPU(0x00)
			c.ime = true
			bus.mem[addr.IF] = tc.flags
			bus.mem[addr.IE] = 0x1F

			step(t, c)
			assert.Equal(t, tc.vector, c.pc, "IF=0x%02X", tc.flags)
		}
	})

	t.Run("masked by IE", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		c.ime = true
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x00

		cycles := step(t, c)

		assert.Equal(t, 4, cycles) // the NOP ran instead
		assert.Equal(t, uint16(0x0101), c.pc)
	})

	t.Run("not taken while IME clear", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01

		step(t, c)
		assert.Equal(t, uint16(0x0101), c.pc)
	})
}

func TestHalt(t *testing.T) {
	t.Run("stays halted until an interrupt pends", func(t *testing.T) {
		c, bus := newTestCPU(0x76, 0x3C) // HALT; INC A

		step(t, c)
		assert.True(t, c.halted)

		cycles := step(t, c)
		assert.Equal(t, 4, cycles)
		assert.True(t, c.halted)

		// pending but disabled interrupt wakes without servicing
		bus.mem[addr.IF] = 0x04
		bus.mem[addr.IE] = 0x04
		step(t, c)
		assert.False(t, c.halted)
		assert.Equal(t, uint8(1), c.a)
	})

	t.Run("IME=1 services straight out of halt", func(t *testing.T) {
		c, bus := newTestCPU(0x76, 0x00)
		c.ime = true

		step(t, c)
		require.True(t, c.halted)

		bus.mem[addr.IF] = 0x01
		bus.mem[addr.IE] = 0x01
		cycles := step(t, c)

		assert.Equal(t, interruptCycles, cycles)
		assert.Equal(t, uint16(0x0040), c.pc)
		assert.False(t, c.halted)
	})
}

func TestHaltBug(t *testing.T) {
	// HALT with IME=0 and an interrupt already pending: the next byte is
	// fetched twice, so INC A runs twice here.
	c, bus := newTestCPU(0x76, 0x3C, 0x00) // HALT; INC A; NOP
	bus.mem[addr.IF] = 0x01
	bus.mem[addr.IE] = 0x01

	step(t, c)
	assert.False(t, c.halted)
	assert.True(t, c.haltBug)

	step(t, c)
	assert.Equal(t, uint8(1), c.a)
	assert.Equal(t, uint16(0x0101), c.pc) // PC did not advance

	step(t, c)
	assert.Equal(t, uint8(2), c.a)
	assert.Equal(t, uint16(0x0102), c.pc)
}

func TestStop(t *testing.T) {
	c, bus := newTestCPU(0x10, 0x00, 0x3C) // STOP; (skipped); INC A

	step(t, c)
	assert.True(t, c.stopped)
	assert.Equal(t, uint16(0x0102), c.pc) // the byte after STOP is consumed
	assert.Equal(t, byte(0), bus.mem[addr.DIV])

	cycles := step(t, c)
	assert.Equal(t, 4, cycles)
	assert.True(t, c.stopped)

	// a joypad line flagged in IF wakes the machine even with IE clear
	bus.mem[addr.IF] = addr.Joypad.Mask()
	step(t, c)
	assert.False(t, c.stopped)
	assert.Equal(t, uint8(1), c.a)
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{Opcode: 0xD3, PC: 0x1234}
	assert.Equal(t, "unknown opcode 0xD3 at 0x1234", err.Error())

	prefixed := &DecodeError{Opcode: 0x12, Prefixed: true, PC: 0x0100}
	assert.Contains(t, prefixed.Error(), "0xCB")
}

func TestRegistersRoundTrip(t *testing.T) {
	c, _ := newTestCPU()
	c.ApplyPostBootState()
	c.ime = true
	c.cycles = 1234

	saved := c.Registers()

	other, _ := newTestCPU()
	other.SetRegisters(saved)

	assert.Equal(t, saved, other.Registers())
}
