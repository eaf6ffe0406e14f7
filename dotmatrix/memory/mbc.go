package memory

// MBC is the bank controller between the CPU address space and the
// cartridge. Reads cover 0x0000-0x7FFF (ROM) and 0xA000-0xBFFF (RAM);
// writes to the ROM area mutate bank-select state instead of storing.
//
// Bank indices are always reduced modulo the cartridge's actual bank count
// before use. Hardware wraps rather than faults, so an out-of-range select
// is normal operation, not an error.
type MBC interface {
	Read(address uint16) byte
	Write(address uint16, value byte)

	// State and SetState expose bank registers for snapshots.
	State() MBCState
	SetState(MBCState)
}

// MBCState is the superset of bank-select state across all controller
// variants; each variant uses the fields it has.
type MBCState struct {
	ROMBank    uint16
	RAMBank    uint8
	SecondBank uint8 // MBC1 2-bit secondary register
	Mode       uint8 // MBC1 banking mode
	RAMEnabled bool
	RTC        RTCState
}

// newMBC selects the controller declared by the cartridge header.
func newMBC(cart *Cartridge) MBC {
	switch cart.header.MBC {
	case NoMBCType:
		return &NoMBC{cart: cart}
	case MBC1Type:
		return NewMBC1(cart)
	case MBC2Type:
		return NewMBC2(cart)
	case MBC3Type:
		return NewMBC3(cart, nil)
	case MBC5Type:
		return NewMBC5(cart)
	}
	// LoadCartridge rejects unknown type codes before we get here
	panic("memory: cartridge with unsupported MBC type")
}

// romBanks returns the number of 16 KiB banks actually present.
func romBanks(cart *Cartridge) int {
	return len(cart.data) / 0x4000
}

// romOffset resolves a switchable-area address against a bank number,
// wrapping the bank modulo the real bank count.
func romOffset(cart *Cartridge, bank int, address uint16) int {
	banks := romBanks(cart)
	if banks == 0 {
		return 0
	}
	return (bank%banks)*0x4000 + int(address-0x4000)
}

// ramEnableValue is the magic low nibble that turns cartridge RAM on.
func ramEnableValue(value byte) bool {
	return value&0x0F == 0x0A
}

// NoMBC is a plain 32 KiB board: ROM mapped flat, control writes ignored.
type NoMBC struct {
	cart *Cartridge
}

func (m *NoMBC) Read(address uint16) byte {
	switch {
	case address <= 0x7FFF:
		if int(address) < len(m.cart.data) {
			return m.cart.readROM(int(address))
		}
		return 0xFF
	case address >= 0xA000 && address <= 0xBFFF:
		return m.cart.readRAM(int(address - 0xA000))
	}
	return 0xFF
}

func (m *NoMBC) Write(address uint16, value byte) {
	if address >= 0xA000 && address <= 0xBFFF {
		m.cart.writeRAM(int(address-0xA000), value)
	}
}

func (m *NoMBC) State() MBCState     { return MBCState{ROMBank: 1} }
func (m *NoMBC) SetState(s MBCState) {}

// MBC1 has a 5 bit ROM bank register and a 2 bit secondary register whose
// meaning depends on the mode select: in mode 0 it extends the ROM bank, in
// mode 1 it picks the RAM bank and remaps the fixed ROM area. Writing 0 to
// the 5 bit register selects bank 1; bank 0 is never reachable as the
// switchable bank.
type MBC1 struct {
	cart       *Cartridge
	bankLow    uint8 // 5 bit ROM bank, 0 aliased to 1 at write time
	bankHigh   uint8 // 2 bit secondary register
	mode       uint8
	ramEnabled bool
}

func NewMBC1(cart *Cartridge) *MBC1 {
	return &MBC1{cart: cart, bankLow: 1}
}

func (m *MBC1) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		// mode 1 swaps the secondary register into the fixed area,
		// which is how oversized (multicart) images reach their upper
		// halves
		bank := 0
		if m.mode == 1 {
			bank = int(m.bankHigh) << 5
		}
		return m.cart.readROM(romOffset(m.cart, bank, address+0x4000))
	case address <= 0x7FFF:
		bank := int(m.bankHigh)<<5 | int(m.bankLow)
		return m.cart.readROM(romOffset(m.cart, bank, address))
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.cart.readRAM(m.ramOffset(address))
	}
	return 0xFF
}

func (m *MBC1) Write(address uint16, value byte) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = ramEnableValue(value)
	case address <= 0x3FFF:
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.bankLow = bank
	case address <= 0x5FFF:
		m.bankHigh = value & 0x03
	case address <= 0x7FFF:
		m.mode = value & 0x01
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.cart.writeRAM(m.ramOffset(address), value)
	}
}

func (m *MBC1) ramOffset(address uint16) int {
	bank := 0
	if m.mode == 1 {
		bank = int(m.bankHigh)
	}
	return bank*0x2000 + int(address-0xA000)
}

func (m *MBC1) State() MBCState {
	return MBCState{
		ROMBank:    uint16(m.bankLow),
		SecondBank: m.bankHigh,
		Mode:       m.mode,
		RAMEnabled: m.ramEnabled,
	}
}

func (m *MBC1) SetState(s MBCState) {
	m.bankLow = uint8(s.ROMBank)
	m.bankHigh = s.SecondBank
	m.mode = s.Mode
	m.ramEnabled = s.RAMEnabled
}

// MBC2 has a 4 bit ROM bank register and 512 half-byte RAM cells on the
// controller itself. Address bit 8 routes control writes: clear selects the
// RAM enable, set selects the ROM bank. Reads from the built-in RAM carry
// only the low nibble; the upper one reads as 1s.
type MBC2 struct {
	cart       *Cartridge
	romBank    uint8
	ramEnabled bool
}

func NewMBC2(cart *Cartridge) *MBC2 {
	return &MBC2{cart: cart, romBank: 1}
}

func (m *MBC2) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.cart.readROM(int(address))
	case address <= 0x7FFF:
		return m.cart.readROM(romOffset(m.cart, int(m.romBank), address))
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// 512 cells mirrored through the whole RAM window
		return 0xF0 | m.cart.readRAM(int(address&0x1FF))&0x0F
	}
	return 0xFF
}

func (m *MBC2) Write(address uint16, value byte) {
	switch {
	case address <= 0x3FFF:
		if address&0x0100 == 0 {
			m.ramEnabled = ramEnableValue(value)
			return
		}
		bank := value & 0x0F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.cart.writeRAM(int(address&0x1FF), value&0x0F)
	}
}

func (m *MBC2) State() MBCState {
	return MBCState{ROMBank: uint16(m.romBank), RAMEnabled: m.ramEnabled}
}

func (m *MBC2) SetState(s MBCState) {
	m.romBank = uint8(s.ROMBank)
	m.ramEnabled = s.RAMEnabled
}

// MBC5 has a 9 bit ROM bank split across two registers and a 4 bit RAM
// bank. No aliasing quirks: bank 0 is selectable in the switchable area.
type MBC5 struct {
	cart       *Cartridge
	romBank    uint16
	ramBank    uint8
	ramEnabled bool
}

func NewMBC5(cart *Cartridge) *MBC5 {
	return &MBC5{cart: cart, romBank: 1}
}

func (m *MBC5) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.cart.readROM(int(address))
	case address <= 0x7FFF:
		return m.cart.readROM(romOffset(m.cart, int(m.romBank), address))
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.cart.readRAM(int(m.ramBank)*0x2000 + int(address-0xA000))
	}
	return 0xFF
}

func (m *MBC5) Write(address uint16, value byte) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = ramEnableValue(value)
	case address <= 0x2FFF:
		m.romBank = m.romBank&0x100 | uint16(value)
	case address <= 0x3FFF:
		m.romBank = m.romBank&0xFF | uint16(value&0x01)<<8
	case address <= 0x5FFF:
		m.ramBank = value & 0x0F
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.cart.writeRAM(int(m.ramBank)*0x2000+int(address-0xA000), value)
	}
}

func (m *MBC5) State() MBCState {
	return MBCState{ROMBank: m.romBank, RAMBank: m.ramBank, RAMEnabled: m.ramEnabled}
}

func (m *MBC5) SetState(s MBCState) {
	m.romBank = s.ROMBank
	m.ramBank = s.RAMBank
	m.ramEnabled = s.RAMEnabled
}
