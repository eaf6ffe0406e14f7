package cpu

// Flag and arithmetic helpers shared by the opcode tables. The carry rules
// here are the part of LR35902 emulation that diverges most easily from
// hardware, so each helper states its rule explicitly.

func (c *CPU) setFlag(f Flag)   { c.f |= uint8(f) }
func (c *CPU) clearFlag(f Flag) { c.f &^= uint8(f) }

func (c *CPU) flagSet(f Flag) bool {
	return c.f&uint8(f) != 0
}

func (c *CPU) setFlagIf(f Flag, cond bool) {
	if cond {
		c.setFlag(f)
	} else {
		c.clearFlag(f)
	}
}

// carryBit returns 1 when the carry flag is set, 0 otherwise.
func (c *CPU) carryBit() uint8 {
	if c.flagSet(flagC) {
		return 1
	}
	return 0
}

// add performs A = A + v. Carry from bit 7, half carry from bit 3.
func (c *CPU) add(v uint8) {
	result := c.a + v
	c.setFlagIf(flagZ, result == 0)
	c.clearFlag(flagN)
	c.setFlagIf(flagH, (c.a&0xF)+(v&0xF) > 0xF)
	c.setFlagIf(flagC, uint16(c.a)+uint16(v) > 0xFF)
	c.a = result
}

// adc performs A = A + v + carry. The carry-in participates in both the
// half carry and carry computation.
func (c *CPU) adc(v uint8) {
	carry := c.carryBit()
	result := c.a + v + carry
	c.setFlagIf(flagZ, result == 0)
	c.clearFlag(flagN)
	c.setFlagIf(flagH, (c.a&0xF)+(v&0xF)+carry > 0xF)
	c.setFlagIf(flagC, uint16(c.a)+uint16(v)+uint16(carry) > 0xFF)
	c.a = result
}

// sub performs A = A - v. Carry means borrow.
func (c *CPU) sub(v uint8) {
	result := c.a - v
	c.setFlagIf(flagZ, result == 0)
	c.setFlag(flagN)
	c.setFlagIf(flagH, c.a&0xF < v&0xF)
	c.setFlagIf(flagC, c.a < v)
	c.a = result
}

// sbc performs A = A - v - carry.
func (c *CPU) sbc(v uint8) {
	carry := c.carryBit()
	result := c.a - v - carry
	c.setFlagIf(flagZ, result == 0)
	c.setFlag(flagN)
	c.setFlagIf(flagH, c.a&0xF < (v&0xF)+carry)
	c.setFlagIf(flagC, uint16(c.a) < uint16(v)+uint16(carry))
	c.a = result
}

// and performs A = A & v. Half carry is always set.
func (c *CPU) and(v uint8) {
	c.a &= v
	c.setFlagIf(flagZ, c.a == 0)
	c.clearFlag(flagN)
	c.setFlag(flagH)
	c.clearFlag(flagC)
}

func (c *CPU) xor(v uint8) {
	c.a ^= v
	c.setFlagIf(flagZ, c.a == 0)
	c.clearFlag(flagN)
	c.clearFlag(flagH)
	c.clearFlag(flagC)
}

func (c *CPU) or(v uint8) {
	c.a |= v
	c.setFlagIf(flagZ, c.a == 0)
	c.clearFlag(flagN)
	c.clearFlag(flagH)
	c.clearFlag(flagC)
}

// cp compares A against v: same flags as sub, A untouched.
func (c *CPU) cp(v uint8) {
	c.setFlagIf(flagZ, c.a == v)
	c.setFlag(flagN)
	c.setFlagIf(flagH, c.a&0xF < v&0xF)
	c.setFlagIf(flagC, c.a < v)
}

// inc8 returns v + 1. Carry is never touched by INC.
func (c *CPU) inc8(v uint8) uint8 {
	result := v + 1
	c.setFlagIf(flagZ, result == 0)
	c.clearFlag(flagN)
	c.setFlagIf(flagH, v&0xF == 0xF)
	return result
}

// dec8 returns v - 1. Carry is never touched by DEC.
func (c *CPU) dec8(v uint8) uint8 {
	result := v - 1
	c.setFlagIf(flagZ, result == 0)
	c.setFlag(flagN)
	c.setFlagIf(flagH, v&0xF == 0)
	return result
}

// addHL performs HL = HL + v. Zero flag is untouched; half carry comes from
// bit 11, carry from bit 15.
func (c *CPU) addHL(v uint16) {
	hl := c.hl()
	c.clearFlag(flagN)
	c.setFlagIf(flagH, hl&0xFFF+v&0xFFF > 0xFFF)
	c.setFlagIf(flagC, uint32(hl)+uint32(v) > 0xFFFF)
	c.setHL(hl + v)
}

// addSP computes SP + signed immediate for ADD SP,n and LD HL,SP+n.
// Flags come from unsigned byte arithmetic on the low byte: H from bit 3,
// C from bit 7. Z and N are always cleared.
func (c *CPU) addSP(offset int8) uint16 {
	result := c.sp + uint16(int16(offset))
	c.clearFlag(flagZ)
	c.clearFlag(flagN)
	c.setFlagIf(flagH, c.sp&0xF+uint16(uint8(offset))&0xF > 0xF)
	c.setFlagIf(flagC, c.sp&0xFF+uint16(uint8(offset))&0xFF > 0xFF)
	return result
}

// daa adjusts A to valid BCD after an addition or subtraction.
func (c *CPU) daa() {
	a := c.a
	var adjust uint8
	carry := false

	if c.flagSet(flagH) || (!c.flagSet(flagN) && a&0xF > 0x09) {
		adjust |= 0x06
	}
	if c.flagSet(flagC) || (!c.flagSet(flagN) && a > 0x99) {
		adjust |= 0x60
		carry = true
	}

	if c.flagSet(flagN) {
		a -= adjust
	} else {
		a += adjust
	}

	c.setFlagIf(flagZ, a == 0)
	c.clearFlag(flagH)
	c.setFlagIf(flagC, carry)
	c.a = a
}

// Rotates and shifts. The A-register forms (RLCA etc.) always clear Z, the
// CB-prefixed forms compute it; setZ selects between the two rules.

// rlc rotates left circular: bit 7 goes to both carry and bit 0.
func (c *CPU) rlc(v uint8, setZ bool) uint8 {
	result := v<<1 | v>>7
	c.rotFlags(result, v&0x80 != 0, setZ)
	return result
}

// rrc rotates right circular: bit 0 goes to both carry and bit 7.
func (c *CPU) rrc(v uint8, setZ bool) uint8 {
	result := v>>1 | v<<7
	c.rotFlags(result, v&1 != 0, setZ)
	return result
}

// rl rotates left through carry: old carry enters at bit 0.
func (c *CPU) rl(v uint8, setZ bool) uint8 {
	result := v<<1 | c.carryBit()
	c.rotFlags(result, v&0x80 != 0, setZ)
	return result
}

// rr rotates right through carry: old carry enters at bit 7.
func (c *CPU) rr(v uint8, setZ bool) uint8 {
	result := v>>1 | c.carryBit()<<7
	c.rotFlags(result, v&1 != 0, setZ)
	return result
}

// sla shifts left arithmetic, bit 0 becomes 0.
func (c *CPU) sla(v uint8) uint8 {
	result := v << 1
	c.rotFlags(result, v&0x80 != 0, true)
	return result
}

// sra shifts right arithmetic, bit 7 is preserved.
func (c *CPU) sra(v uint8) uint8 {
	result := v>>1 | v&0x80
	c.rotFlags(result, v&1 != 0, true)
	return result
}

// srl shifts right logical, bit 7 becomes 0.
func (c *CPU) srl(v uint8) uint8 {
	result := v >> 1
	c.rotFlags(result, v&1 != 0, true)
	return result
}

// swap exchanges the two nibbles, carry always cleared.
func (c *CPU) swap(v uint8) uint8 {
	result := v<<4 | v>>4
	c.rotFlags(result, false, true)
	return result
}

func (c *CPU) rotFlags(result uint8, carry, setZ bool) {
	c.setFlagIf(flagZ, setZ && result == 0)
	c.clearFlag(flagN)
	c.clearFlag(flagH)
	c.setFlagIf(flagC, carry)
}

// bitTest sets Z from the complement of the tested bit; carry is untouched.
func (c *CPU) bitTest(index, v uint8) {
	c.setFlagIf(flagZ, v>>index&1 == 0)
	c.clearFlag(flagN)
	c.setFlag(flagH)
}
