package cpu

import "fmt"

// opcodeNames holds mnemonics for diagnostics and decode errors. The two
// regular middle quadrants and the whole CB set are generated in init; only
// the irregular rows are written out.
var opcodeNames = [256]string{
	0x00: "NOP", 0x01: "LD BC,nn", 0x02: "LD (BC),A", 0x03: "INC BC",
	0x04: "INC B", 0x05: "DEC B", 0x06: "LD B,n", 0x07: "RLCA",
	0x08: "LD (nn),SP", 0x09: "ADD HL,BC", 0x0A: "LD A,(BC)", 0x0B: "DEC BC",
	0x0C: "INC C", 0x0D: "DEC C", 0x0E: "LD C,n", 0x0F: "RRCA",
	0x10: "STOP", 0x11: "LD DE,nn", 0x12: "LD (DE),A", 0x13: "INC DE",
	0x14: "INC D", 0x15: "DEC D", 0x16: "LD D,n", 0x17: "RLA",
	0x18: "JR n", 0x19: "ADD HL,DE", 0x1A: "LD A,(DE)", 0x1B: "DEC DE",
	0x1C: "INC E", 0x1D: "DEC E", 0x1E: "LD E,n", 0x1F: "RRA",
	0x20: "JR NZ,n", 0x21: "LD HL,nn", 0x22: "LD (HL+),A", 0x23: "INC HL",
	0x24: "INC H", 0x25: "DEC H", 0x26: "LD H,n", 0x27: "DAA",
	0x28: "JR Z,n", 0x29: "ADD HL,HL", 0x2A: "LD A,(HL+)", 0x2B: "DEC HL",
	0x2C: "INC L", 0x2D: "DEC L", 0x2E: "LD L,n", 0x2F: "CPL",
	0x30: "JR NC,n", 0x31: "LD SP,nn", 0x32: "LD (HL-),A", 0x33: "INC SP",
	0x34: "INC (HL)", 0x35: "DEC (HL)", 0x36: "LD (HL),n", 0x37: "SCF",
	0x38: "JR C,n", 0x39: "ADD HL,SP", 0x3A: "LD A,(HL-)", 0x3B: "DEC SP",
	0x3C: "INC A", 0x3D: "DEC A", 0x3E: "LD A,n", 0x3F: "CCF",
	0x76: "HALT",
	0xC0: "RET NZ", 0xC1: "POP BC", 0xC2: "JP NZ,nn", 0xC3: "JP nn",
	0xC4: "CALL NZ,nn", 0xC5: "PUSH BC", 0xC6: "ADD A,n", 0xC7: "RST 0x00",
	0xC8: "RET Z", 0xC9: "RET", 0xCA: "JP Z,nn", 0xCB: "CB prefix",
	0xCC: "CALL Z,nn", 0xCD: "CALL nn", 0xCE: "ADC A,n", 0xCF: "RST 0x08",
	0xD0: "RET NC", 0xD1: "POP DE", 0xD2: "JP NC,nn", 0xD3: "(unused)",
	0xD4: "CALL NC,nn", 0xD5: "PUSH DE", 0xD6: "SUB n", 0xD7: "RST 0x10",
	0xD8: "RET C", 0xD9: "RETI", 0xDA: "JP C,nn", 0xDB: "(unused)",
	0xDC: "CALL C,nn", 0xDD: "(unused)", 0xDE: "SBC A,n", 0xDF: "RST 0x18",
	0xE0: "LDH (n),A", 0xE1: "POP HL", 0xE2: "LD (C),A", 0xE3: "(unused)",
	0xE4: "(unused)", 0xE5: "PUSH HL", 0xE6: "AND n", 0xE7: "RST 0x20",
	0xE8: "ADD SP,n", 0xE9: "JP HL", 0xEA: "LD (nn),A", 0xEB: "(unused)",
	0xEC: "(unused)", 0xED: "(unused)", 0xEE: "XOR n", 0xEF: "RST 0x28",
	0xF0: "LDH A,(n)", 0xF1: "POP AF", 0xF2: "LD A,(C)", 0xF3: "DI",
	0xF4: "(unused)", 0xF5: "PUSH AF", 0xF6: "OR n", 0xF7: "RST 0x30",
	0xF8: "LD HL,SP+n", 0xF9: "LD SP,HL", 0xFA: "LD A,(nn)", 0xFB: "EI",
	0xFC: "(unused)", 0xFD: "(unused)", 0xFE: "CP n", 0xFF: "RST 0x38",
}

var cbNames [256]string

func init() {
	regs := [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}

	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		opcodeNames[op] = fmt.Sprintf("LD %s,%s", regs[(op>>3)&7], regs[op&7])
	}
	alu := [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	for op := 0x80; op <= 0xBF; op++ {
		opcodeNames[op] = alu[(op>>3)&7] + regs[op&7]
	}

	shifts := [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}
	for op := 0; op < 256; op++ {
		switch op >> 6 {
		case 0:
			cbNames[op] = fmt.Sprintf("%s %s", shifts[(op>>3)&7], regs[op&7])
		case 1:
			cbNames[op] = fmt.Sprintf("BIT %d,%s", (op>>3)&7, regs[op&7])
		case 2:
			cbNames[op] = fmt.Sprintf("RES %d,%s", (op>>3)&7, regs[op&7])
		case 3:
			cbNames[op] = fmt.Sprintf("SET %d,%s", (op>>3)&7, regs[op&7])
		}
	}
}

// OpcodeName renders the instruction at PC with its immediate bytes, for
// logs and error reports. It only peeks at memory.
func (c *CPU) OpcodeName() string {
	code := c.bus.Read(c.pc)
	if code == 0xCB {
		sub := c.bus.Read(c.pc + 1)
		return fmt.Sprintf("0xCB%02X (%s)", sub, cbNames[sub])
	}
	n := c.bus.Read(c.pc + 1)
	nn := uint16(c.bus.Read(c.pc+2))<<8 | uint16(n)
	return fmt.Sprintf("0x%02X (%s) n=0x%02X nn=0x%04X", code, opcodeNames[code], n, nn)
}
