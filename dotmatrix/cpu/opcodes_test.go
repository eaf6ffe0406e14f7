package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchTableCoverage(t *testing.T) {
	// the LR35902 leaves exactly 11 slots undefined, plus 0xCB which Exec
	// handles before dispatch
	undefined := map[int]bool{
		0xCB: true,
		0xD3: true, 0xDB: true, 0xDD: true,
		0xE3: true, 0xE4: true, 0xEB: true, 0xEC: true, 0xED: true,
		0xF4: true, 0xFC: true, 0xFD: true,
	}
	for op := 0; op < 256; op++ {
		if undefined[op] {
			assert.Nil(t, primary[op], "0x%02X should be undefined", op)
		} else {
			assert.NotNil(t, primary[op], "0x%02X should dispatch", op)
		}
	}
}

func TestLoadBlock(t *testing.T) {
	t.Run("LD B,C", func(t *testing.T) {
		c, _ := newTestCPU(0x41)
		c.c = 0x42

		cycles := step(t, c)

		assert.Equal(t, 4, cycles)
		assert.Equal(t, uint8(0x42), c.b)
	})

	t.Run("LD D,(HL)", func(t *testing.T) {
		c, bus := newTestCPU(0x56)
		c.setHL(0xC000)
		bus.mem[0xC000] = 0x99

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x99), c.d)
	})

	t.Run("LD (HL),A", func(t *testing.T) {
		c, bus := newTestCPU(0x77)
		c.a = 0x55
		c.setHL(0xC123)

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x55), bus.mem[0xC123])
	})
}

func TestALUBlock(t *testing.T) {
	t.Run("ADD A,B", func(t *testing.T) {
		c, _ := newTestCPU(0x80)
		c.a, c.b = 0x01, 0x02

		cycles := step(t, c)

		assert.Equal(t, 4, cycles)
		assert.Equal(t, uint8(0x03), c.a)
	})

	t.Run("XOR A clears A", func(t *testing.T) {
		c, _ := newTestCPU(0xAF)
		c.a = 0x5A

		step(t, c)

		assert.Equal(t, uint8(0x00), c.a)
		assert.True(t, c.flagSet(flagZ))
	})

	t.Run("CP (HL)", func(t *testing.T) {
		c, bus := newTestCPU(0xBE)
		c.a = 0x10
		c.setHL(0xC000)
		bus.mem[0xC000] = 0x10

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.True(t, c.flagSet(flagZ))
	})

	t.Run("immediate forms cost 8", func(t *testing.T) {
		c, _ := newTestCPU(0xC6, 0x05) // ADD A,5
		c.a = 0x01

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x06), c.a)
	})

	t.Run("SBC A,n", func(t *testing.T) {
		c, _ := newTestCPU(0xDE, 0x01)
		c.a = 0x03
		c.setFlag(flagC)

		step(t, c)

		assert.Equal(t, uint8(0x01), c.a)
	})
}

func TestIncDecLoadRow(t *testing.T) {
	t.Run("INC (HL) costs 12", func(t *testing.T) {
		c, bus := newTestCPU(0x34)
		c.setHL(0xC000)
		bus.mem[0xC000] = 0xFF

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint8(0x00), bus.mem[0xC000])
		assert.True(t, c.flagSet(flagZ))
	})

	t.Run("LD C,n", func(t *testing.T) {
		c, _ := newTestCPU(0x0E, 0x77)

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x77), c.c)
	})
}

func TestPairOps(t *testing.T) {
	t.Run("LD SP,nn", func(t *testing.T) {
		c, _ := newTestCPU(0x31, 0xFE, 0xFF) // low byte first

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint16(0xFFFE), c.sp)
	})

	t.Run("INC DE wraps", func(t *testing.T) {
		c, _ := newTestCPU(0x13)
		c.setDE(0xFFFF)

		step(t, c)

		assert.Equal(t, uint16(0x0000), c.de())
	})

	t.Run("ADD HL,BC", func(t *testing.T) {
		c, _ := newTestCPU(0x09)
		c.setHL(0x1000)
		c.setBC(0x0234)

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint16(0x1234), c.hl())
	})
}

func TestStackOps(t *testing.T) {
	t.Run("PUSH then POP round trips", func(t *testing.T) {
		c, _ := newTestCPU(0xC5, 0xD1) // PUSH BC; POP DE
		c.setBC(0xBEEF)

		cycles := step(t, c)
		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint16(0xFFFC), c.sp)

		cycles = step(t, c)
		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint16(0xBEEF), c.de())
		assert.Equal(t, uint16(0xFFFE), c.sp)
	})

	t.Run("POP AF masks the low flag nibble", func(t *testing.T) {
		c, bus := newTestCPU(0xF1)
		c.sp = 0xFFFC
		bus.mem[0xFFFC] = 0xFF // would-be F
		bus.mem[0xFFFD] = 0x12 // A

		step(t, c)

		assert.Equal(t, uint8(0x12), c.a)
		assert.Equal(t, uint8(0xF0), c.f)
	})
}

func TestJumps(t *testing.T) {
	t.Run("JP nn", func(t *testing.T) {
		c, _ := newTestCPU(0xC3, 0x00, 0x80)

		cycles := step(t, c)

		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint16(0x8000), c.pc)
	})

	t.Run("JR with negative offset", func(t *testing.T) {
		c, _ := newTestCPU(0x18, 0xFE) // JR -2: loops onto itself

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint16(0x0100), c.pc)
	})

	t.Run("JP (HL)", func(t *testing.T) {
		c, _ := newTestCPU(0xE9)
		c.setHL(0x4000)

		cycles := step(t, c)

		assert.Equal(t, 4, cycles)
		assert.Equal(t, uint16(0x4000), c.pc)
	})

	t.Run("CALL and RET", func(t *testing.T) {
		c, _ := newTestCPU(0xCD, 0x00, 0x02) // CALL 0x0200
		c.bus.Write(0x0200, 0xC9)            // RET

		cycles := step(t, c)
		assert.Equal(t, 24, cycles)
		assert.Equal(t, uint16(0x0200), c.pc)

		cycles = step(t, c)
		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint16(0x0103), c.pc)
	})

	t.Run("RST 0x38", func(t *testing.T) {
		c, _ := newTestCPU(0xFF)

		cycles := step(t, c)

		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint16(0x0038), c.pc)
	})
}

func TestConditionalCosts(t *testing.T) {
	cases := []struct {
		desc     string
		program  []byte
		carry    bool
		cycles   int
		wantPC   uint16
		setupRet bool
	}{
		{"JR NC taken", []byte{0x30, 0x02}, false, 12, 0x0104, false},
		{"JR NC not taken", []byte{0x30, 0x02}, true, 8, 0x0102, false},
		{"JP C taken", []byte{0xDA, 0x00, 0x90}, true, 16, 0x9000, false},
		{"JP C not taken", []byte{0xDA, 0x00, 0x90}, false, 12, 0x0103, false},
		{"CALL NC taken", []byte{0xD4, 0x00, 0x90}, false, 24, 0x9000, false},
		{"CALL NC not taken", []byte{0xD4, 0x00, 0x90}, true, 12, 0x0103, false},
		{"RET C taken", []byte{0xD8}, true, 20, 0x1234, true},
		{"RET C not taken", []byte{0xD8}, false, 8, 0x0101, true},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			c, _ := newTestCPU(tc.program...)
			c.setFlagIf(flagC, tc.carry)
			if tc.setupRet {
				c.push(0x1234)
			}

			cycles := step(t, c)

			assert.Equal(t, tc.cycles, cycles)
			assert.Equal(t, tc.wantPC, c.pc)
		})
	}
}

func TestMemoryForms(t *testing.T) {
	t.Run("LDH (n),A", func(t *testing.T) {
		c, bus := newTestCPU(0xE0, 0x80)
		c.a = 0x42

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint8(0x42), bus.mem[0xFF80])
	})

	t.Run("LDH A,(C)", func(t *testing.T) {
		c, bus := newTestCPU(0xF2)
		c.c = 0x81
		bus.mem[0xFF81] = 0x7F

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x7F), c.a)
	})

	t.Run("LD (nn),SP stores low byte first", func(t *testing.T) {
		c, bus := newTestCPU(0x08, 0x00, 0xC0)
		c.sp = 0xFFFE

		cycles := step(t, c)

		assert.Equal(t, 20, cycles)
		assert.Equal(t, uint8(0xFE), bus.mem[0xC000])
		assert.Equal(t, uint8(0xFF), bus.mem[0xC001])
	})

	t.Run("LD A,(HL+) advances HL", func(t *testing.T) {
		c, bus := newTestCPU(0x2A)
		c.setHL(0xC000)
		bus.mem[0xC000] = 0x11

		step(t, c)

		assert.Equal(t, uint8(0x11), c.a)
		assert.Equal(t, uint16(0xC001), c.hl())
	})

	t.Run("LD (HL-),A walks down", func(t *testing.T) {
		c, bus := newTestCPU(0x32)
		c.a = 0x22
		c.setHL(0xC001)

		step(t, c)

		assert.Equal(t, uint8(0x22), bus.mem[0xC001])
		assert.Equal(t, uint16(0xC000), c.hl())
	})
}

func TestCBOperations(t *testing.T) {
	t.Run("SWAP A", func(t *testing.T) {
		c, _ := newTestCPU(0xCB, 0x37)
		c.a = 0xF0

		cycles := step(t, c)

		assert.Equal(t, 8, cycles)
		assert.Equal(t, uint8(0x0F), c.a)
	})

	t.Run("BIT 7,(HL) costs 12", func(t *testing.T) {
		c, bus := newTestCPU(0xCB, 0x7E)
		c.setHL(0xC000)
		bus.mem[0xC000] = 0x80

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.False(t, c.flagSet(flagZ))
	})

	t.Run("SET and RES on (HL) cost 16", func(t *testing.T) {
		c, bus := newTestCPU(0xCB, 0xFE, 0xCB, 0xBE) // SET 7,(HL); RES 7,(HL)
		c.setHL(0xC000)

		cycles := step(t, c)
		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint8(0x80), bus.mem[0xC000])

		cycles = step(t, c)
		assert.Equal(t, 16, cycles)
		assert.Equal(t, uint8(0x00), bus.mem[0xC000])
	})

	t.Run("RES does not touch flags", func(t *testing.T) {
		c, _ := newTestCPU(0xCB, 0x87) // RES 0,A
		c.a = 0xFF
		c.f = 0xF0

		step(t, c)

		assert.Equal(t, uint8(0xFE), c.a)
		assert.Equal(t, uint8(0xF0), c.f)
	})

	t.Run("RLC B", func(t *testing.T) {
		c, _ := newTestCPU(0xCB, 0x00)
		c.b = 0x80

		step(t, c)

		assert.Equal(t, uint8(0x01), c.b)
		assert.True(t, c.flagSet(flagC))
	})
}

func TestMiscOps(t *testing.T) {
	t.Run("CPL", func(t *testing.T) {
		c, _ := newTestCPU(0x2F)
		c.a = 0xAA

		step(t, c)

		assert.Equal(t, uint8(0x55), c.a)
		assert.True(t, c.flagSet(flagN))
		assert.True(t, c.flagSet(flagH))
	})

	t.Run("SCF then CCF", func(t *testing.T) {
		c, _ := newTestCPU(0x37, 0x3F)

		step(t, c)
		assert.True(t, c.flagSet(flagC))

		step(t, c)
		assert.False(t, c.flagSet(flagC))
	})

	t.Run("LD HL,SP+n", func(t *testing.T) {
		c, _ := newTestCPU(0xF8, 0x02)
		c.sp = 0xFFF0

		cycles := step(t, c)

		assert.Equal(t, 12, cycles)
		assert.Equal(t, uint16(0xFFF2), c.hl())
		assert.False(t, c.flagSet(flagZ))
	})

	t.Run("ADD SP,n", func(t *testing.T) {
		c, _ := newTestCPU(0xE8, 0xFE) // SP - 2
		c.sp = 0xFFFE

		cycles := step(t, c)

		require.Equal(t, 16, cycles)
		assert.Equal(t, uint16(0xFFFC), c.sp)
	})
}
