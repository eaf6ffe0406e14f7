package cpu

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// Opcode executes one instruction and returns its cycle cost. Conditional
// instructions return the taken cost only when the condition holds.
type Opcode func(*CPU) int

// primary is the main dispatch table. Slots left nil are the 11 opcodes the
// LR35902 never defined; hitting one surfaces a DecodeError from Exec.
// 0xCB is also nil because Exec handles the prefix before dispatch.
//
// The irregular instructions are listed here; the regular blocks (LD r,r',
// the ALU block, INC/DEC/LD r,n, 16 bit pair ops, conditionals, RST) are
// filled in by init below, keyed off the operand encoding in the opcode
// bits.
var primary = [256]Opcode{
	0x00: opNop,
	0x02: opLdBCA,
	0x07: opRlca,
	0x08: opLdMemSP,
	0x0A: opLdABC,
	0x0F: opRrca,
	0x10: opStop,
	0x12: opLdDEA,
	0x17: opRla,
	0x18: opJr,
	0x1A: opLdADE,
	0x1F: opRra,
	0x22: opLdHLIncA,
	0x27: opDaa,
	0x2A: opLdAHLInc,
	0x2F: opCpl,
	0x32: opLdHLDecA,
	0x37: opScf,
	0x3A: opLdAHLDec,
	0x3F: opCcf,
	0x76: opHalt,
	0xC3: opJp,
	0xC9: opRet,
	0xCD: opCall,
	0xD9: opReti,
	0xE0: opLdhNA,
	0xE2: opLdhCA,
	0xE8: opAddSP,
	0xE9: opJpHL,
	0xEA: opLdMemA,
	0xF0: opLdhAN,
	0xF2: opLdhAC,
	0xF3: opDi,
	0xF8: opLdHLSPOffset,
	0xF9: opLdSPHL,
	0xFA: opLdAMem,
	0xFB: opEi,
}

func init() {
	fillLoadBlock()
	fillALUBlock()
	fillIncDecLoad()
	fillPairOps()
	fillStackOps()
	fillConditionals()
	fillRst()
}

// fillLoadBlock populates 0x40-0x7F, LD r,r'. 0x76 is HALT and is skipped.
func fillLoadBlock() {
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		dst := uint8(op>>3) & 7
		src := uint8(op) & 7
		cost := 4
		if dst == 6 || src == 6 {
			cost = 8
		}
		primary[op] = func(c *CPU) int {
			c.setOperand(dst, c.operand(src))
			return cost
		}
	}
}

// fillALUBlock populates 0x80-0xBF (ADD/ADC/SUB/SBC/AND/XOR/OR/CP against
// the r8 operands) plus the immediate forms at 0xC6/0xCE/.../0xFE.
func fillALUBlock() {
	aluOps := [8]func(*CPU, uint8){
		(*CPU).add, (*CPU).adc, (*CPU).sub, (*CPU).sbc,
		(*CPU).and, (*CPU).xor, (*CPU).or, (*CPU).cp,
	}
	for op := 0x80; op <= 0xBF; op++ {
		fn := aluOps[uint8(op>>3)&7]
		src := uint8(op) & 7
		cost := 4
		if src == 6 {
			cost = 8
		}
		primary[op] = func(c *CPU) int {
			fn(c, c.operand(src))
			return cost
		}
	}
	for i, fn := range aluOps {
		fn := fn
		primary[0xC6+i*8] = func(c *CPU) int {
			fn(c, c.fetch())
			return 8
		}
	}
}

// fillIncDecLoad populates INC r / DEC r / LD r,n, which repeat every 8
// opcodes through rows 0x00-0x3F with the destination in bits 3-5.
func fillIncDecLoad() {
	for i := 0; i < 8; i++ {
		dst := uint8(i)
		cost, ldCost := 4, 8
		if dst == 6 {
			cost, ldCost = 12, 12
		}
		primary[0x04+i*8] = func(c *CPU) int {
			c.setOperand(dst, c.inc8(c.operand(dst)))
			return cost
		}
		primary[0x05+i*8] = func(c *CPU) int {
			c.setOperand(dst, c.dec8(c.operand(dst)))
			return cost
		}
		primary[0x06+i*8] = func(c *CPU) int {
			c.setOperand(dst, c.fetch())
			return ldCost
		}
	}
}

// fillPairOps populates the 16 bit ops over BC/DE/HL/SP:
// LD rr,nn / INC rr / DEC rr / ADD HL,rr.
func fillPairOps() {
	get := [4]func(*CPU) uint16{
		(*CPU).bc, (*CPU).de, (*CPU).hl,
		func(c *CPU) uint16 { return c.sp },
	}
	set := [4]func(*CPU, uint16){
		(*CPU).setBC, (*CPU).setDE, (*CPU).setHL,
		func(c *CPU, v uint16) { c.sp = v },
	}
	for i := 0; i < 4; i++ {
		g, s := get[i], set[i]
		primary[0x01+i*16] = func(c *CPU) int {
			s(c, c.fetchWord())
			return 12
		}
		primary[0x03+i*16] = func(c *CPU) int {
			s(c, g(c)+1)
			return 8
		}
		primary[0x09+i*16] = func(c *CPU) int {
			c.addHL(g(c))
			return 8
		}
		primary[0x0B+i*16] = func(c *CPU) int {
			s(c, g(c)-1)
			return 8
		}
	}
}

// fillStackOps populates PUSH/POP over BC/DE/HL/AF. POP AF goes through
// setAF, which keeps the low nibble of F zeroed.
func fillStackOps() {
	get := [4]func(*CPU) uint16{(*CPU).bc, (*CPU).de, (*CPU).hl, (*CPU).af}
	set := [4]func(*CPU, uint16){(*CPU).setBC, (*CPU).setDE, (*CPU).setHL, (*CPU).setAF}
	for i := 0; i < 4; i++ {
		g, s := get[i], set[i]
		primary[0xC1+i*16] = func(c *CPU) int {
			s(c, c.pop())
			return 12
		}
		primary[0xC5+i*16] = func(c *CPU) int {
			c.push(g(c))
			return 16
		}
	}
}

// fillConditionals populates JR cc / RET cc / JP cc / CALL cc. The
// condition order NZ, Z, NC, C is shared by all four shapes.
func fillConditionals() {
	conds := [4]func(*CPU) bool{
		func(c *CPU) bool { return !c.flagSet(flagZ) },
		func(c *CPU) bool { return c.flagSet(flagZ) },
		func(c *CPU) bool { return !c.flagSet(flagC) },
		func(c *CPU) bool { return c.flagSet(flagC) },
	}
	for i, cond := range conds {
		cond := cond
		primary[0x20+i*8] = func(c *CPU) int {
			offset := int8(c.fetch())
			if !cond(c) {
				return 8
			}
			c.pc += uint16(int16(offset))
			return 12
		}
		primary[0xC0+i*8] = func(c *CPU) int {
			if !cond(c) {
				return 8
			}
			c.pc = c.pop()
			return 20
		}
		primary[0xC2+i*8] = func(c *CPU) int {
			target := c.fetchWord()
			if !cond(c) {
				return 12
			}
			c.pc = target
			return 16
		}
		primary[0xC4+i*8] = func(c *CPU) int {
			target := c.fetchWord()
			if !cond(c) {
				return 12
			}
			c.push(c.pc)
			c.pc = target
			return 24
		}
	}
}

// fillRst populates the eight RST vectors; the target is encoded in
// bits 3-5 of the opcode.
func fillRst() {
	for i := 0; i < 8; i++ {
		target := uint16(i * 8)
		primary[0xC7+i*8] = func(c *CPU) int {
			c.push(c.pc)
			c.pc = target
			return 16
		}
	}
}

func opNop(c *CPU) int { return 4 }

func opStop(c *CPU) int {
	// STOP is a two byte instruction; the second byte is ignored.
	c.fetch()
	c.stopped = true
	// entering STOP resets the divider
	c.bus.Write(addr.DIV, 0)
	return 4
}

func opHalt(c *CPU) int {
	if !c.ime && c.interruptPending() {
		// halt bug: HALT falls through and the following byte is
		// fetched twice
		c.haltBug = true
	} else {
		c.halted = true
	}
	return 4
}

func opLdBCA(c *CPU) int {
	c.bus.Write(c.bc(), c.a)
	return 8
}

func opLdDEA(c *CPU) int {
	c.bus.Write(c.de(), c.a)
	return 8
}

func opLdABC(c *CPU) int {
	c.a = c.bus.Read(c.bc())
	return 8
}

func opLdADE(c *CPU) int {
	c.a = c.bus.Read(c.de())
	return 8
}

func opLdHLIncA(c *CPU) int {
	c.bus.Write(c.hl(), c.a)
	c.setHL(c.hl() + 1)
	return 8
}

func opLdAHLInc(c *CPU) int {
	c.a = c.bus.Read(c.hl())
	c.setHL(c.hl() + 1)
	return 8
}

func opLdHLDecA(c *CPU) int {
	c.bus.Write(c.hl(), c.a)
	c.setHL(c.hl() - 1)
	return 8
}

func opLdAHLDec(c *CPU) int {
	c.a = c.bus.Read(c.hl())
	c.setHL(c.hl() - 1)
	return 8
}

// opLdMemSP stores SP at the immediate address, low byte first.
func opLdMemSP(c *CPU) int {
	target := c.fetchWord()
	c.bus.Write(target, bit.Low(c.sp))
	c.bus.Write(target+1, bit.High(c.sp))
	return 20
}

func opRlca(c *CPU) int {
	c.a = c.rlc(c.a, false)
	return 4
}

func opRrca(c *CPU) int {
	c.a = c.rrc(c.a, false)
	return 4
}

func opRla(c *CPU) int {
	c.a = c.rl(c.a, false)
	return 4
}

func opRra(c *CPU) int {
	c.a = c.rr(c.a, false)
	return 4
}

func opDaa(c *CPU) int {
	c.daa()
	return 4
}

func opCpl(c *CPU) int {
	c.a = ^c.a
	c.setFlag(flagN)
	c.setFlag(flagH)
	return 4
}

func opScf(c *CPU) int {
	c.clearFlag(flagN)
	c.clearFlag(flagH)
	c.setFlag(flagC)
	return 4
}

func opCcf(c *CPU) int {
	c.clearFlag(flagN)
	c.clearFlag(flagH)
	c.setFlagIf(flagC, !c.flagSet(flagC))
	return 4
}

func opJr(c *CPU) int {
	offset := int8(c.fetch())
	c.pc += uint16(int16(offset))
	return 12
}

func opJp(c *CPU) int {
	c.pc = c.fetchWord()
	return 16
}

func opJpHL(c *CPU) int {
	c.pc = c.hl()
	return 4
}

func opCall(c *CPU) int {
	target := c.fetchWord()
	c.push(c.pc)
	c.pc = target
	return 24
}

func opRet(c *CPU) int {
	c.pc = c.pop()
	return 16
}

func opReti(c *CPU) int {
	c.pc = c.pop()
	c.ime = true
	return 16
}

// opLdhNA writes A into the high page at 0xFF00 + n.
func opLdhNA(c *CPU) int {
	c.bus.Write(0xFF00+uint16(c.fetch()), c.a)
	return 12
}

func opLdhAN(c *CPU) int {
	c.a = c.bus.Read(0xFF00 + uint16(c.fetch()))
	return 12
}

func opLdhCA(c *CPU) int {
	c.bus.Write(0xFF00+uint16(c.c), c.a)
	return 8
}

func opLdhAC(c *CPU) int {
	c.a = c.bus.Read(0xFF00 + uint16(c.c))
	return 8
}

func opLdMemA(c *CPU) int {
	c.bus.Write(c.fetchWord(), c.a)
	return 16
}

func opLdAMem(c *CPU) int {
	c.a = c.bus.Read(c.fetchWord())
	return 16
}

func opAddSP(c *CPU) int {
	c.sp = c.addSP(int8(c.fetch()))
	return 16
}

func opLdHLSPOffset(c *CPU) int {
	c.setHL(c.addSP(int8(c.fetch())))
	return 12
}

func opLdSPHL(c *CPU) int {
	c.sp = c.hl()
	return 8
}

func opDi(c *CPU) int {
	c.ime = false
	c.eiPending = false
	return 4
}

func opEi(c *CPU) int {
	c.eiPending = true
	return 4
}
