package cpu

// cbTable dispatches the 0xCB-prefixed instructions. Unlike the primary
// table it is fully regular: bits 6-7 select the group, bits 3-5 the
// rotate variant or bit index, bits 0-2 the operand. The whole table is
// generated here instead of being written out 256 times.
var cbTable [256]Opcode

func init() {
	shifts := [8]func(*CPU, uint8) uint8{
		func(c *CPU, v uint8) uint8 { return c.rlc(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rrc(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rl(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rr(v, true) },
		(*CPU).sla,
		(*CPU).sra,
		(*CPU).swap,
		(*CPU).srl,
	}

	for op := 0; op < 256; op++ {
		reg := uint8(op) & 7
		sel := uint8(op>>3) & 7

		switch op >> 6 {
		case 0: // rotates and shifts
			fn := shifts[sel]
			cost := 8
			if reg == 6 {
				cost = 16
			}
			cbTable[op] = func(c *CPU) int {
				c.setOperand(reg, fn(c, c.operand(reg)))
				return cost
			}
		case 1: // BIT n,r: read only, so (HL) costs 12 not 16
			cost := 8
			if reg == 6 {
				cost = 12
			}
			cbTable[op] = func(c *CPU) int {
				c.bitTest(sel, c.operand(reg))
				return cost
			}
		case 2: // RES n,r
			cost := 8
			if reg == 6 {
				cost = 16
			}
			cbTable[op] = func(c *CPU) int {
				c.setOperand(reg, c.operand(reg)&^(1<<sel))
				return cost
			}
		case 3: // SET n,r
			cost := 8
			if reg == 6 {
				cost = 16
			}
			cbTable[op] = func(c *CPU) int {
				c.setOperand(reg, c.operand(reg)|1<<sel)
				return cost
			}
		}
	}
}
