package memory

import "time"

// rtcCyclesPerSecond is the CPU clock: the RTC advances one second for
// every 4194304 emulated cycles, keeping runs deterministic by default.
const rtcCyclesPerSecond = 4194304

// Clock provides wall time for cartridges that should keep real time
// across runs. When nil, the RTC advances purely from emulated cycles.
type Clock interface {
	Now() time.Time
}

// RTC register indices within the 0x08-0x0C select range.
const (
	rtcSeconds = iota
	rtcMinutes
	rtcHours
	rtcDayLow
	rtcDayHigh // bit 0 = day bit 8, bit 6 = halt, bit 7 = day carry
)

// RTCState is the full clock state, exposed for snapshots and for the
// frontend to persist alongside battery RAM.
type RTCState struct {
	Live     [5]byte
	Latched  [5]byte
	Cycles   uint64 // sub-second cycle accumulator
	LatchArm byte   // last value written to the latch register
}

// MBC3 has a 7 bit ROM bank, a combined RAM-bank/RTC-register select and a
// real time clock. The clock has live counters and a latched shadow: games
// write 0x00 then 0x01 to the latch register to snapshot the live counters
// into the readable shadow.
type MBC3 struct {
	cart       *Cartridge
	romBank    uint8
	ramSelect  uint8 // 0-3 RAM bank, 0x08-0x0C RTC register
	ramEnabled bool

	rtc      RTCState
	clock    Clock
	lastSync time.Time
}

func NewMBC3(cart *Cartridge, clock Clock) *MBC3 {
	m := &MBC3{cart: cart, romBank: 1, clock: clock}
	if clock != nil {
		m.lastSync = clock.Now()
	}
	return m
}

func (m *MBC3) Read(address uint16) byte {
	switch {
	case address <= 0x3FFF:
		return m.cart.readROM(int(address))
	case address <= 0x7FFF:
		return m.cart.readROM(romOffset(m.cart, int(m.romBank), address))
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramSelect <= 0x03 {
			return m.cart.readRAM(int(m.ramSelect)*0x2000 + int(address-0xA000))
		}
		if m.cart.hasRTC && m.ramSelect >= 0x08 && m.ramSelect <= 0x0C {
			return m.rtc.Latched[m.ramSelect-0x08]
		}
		return 0xFF
	}
	return 0xFF
}

func (m *MBC3) Write(address uint16, value byte) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = ramEnableValue(value)
	case address <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address <= 0x5FFF:
		m.ramSelect = value
	case address <= 0x7FFF:
		// latch protocol: a 0x00 write arms, the following 0x01
		// snapshots the live counters
		if m.rtc.LatchArm == 0x00 && value == 0x01 {
			m.latch()
		}
		m.rtc.LatchArm = value
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramSelect <= 0x03 {
			m.cart.writeRAM(int(m.ramSelect)*0x2000+int(address-0xA000), value)
			return
		}
		if m.cart.hasRTC && m.ramSelect >= 0x08 && m.ramSelect <= 0x0C {
			m.writeRTC(m.ramSelect-0x08, value)
		}
	}
}

// Tick drives the RTC from emulated cycles.
func (m *MBC3) Tick(cycles int) {
	if !m.cart.hasRTC || m.halted() {
		return
	}
	m.rtc.Cycles += uint64(cycles)
	if m.rtc.Cycles >= rtcCyclesPerSecond {
		seconds := m.rtc.Cycles / rtcCyclesPerSecond
		m.rtc.Cycles %= rtcCyclesPerSecond
		m.advance(seconds)
	}
}

func (m *MBC3) halted() bool {
	return m.rtc.Live[rtcDayHigh]&0x40 != 0
}

// latch copies the live counters into the readable shadow, syncing them
// from wall time first when a Clock is attached.
func (m *MBC3) latch() {
	if m.clock != nil && !m.halted() {
		now := m.clock.Now()
		if elapsed := now.Sub(m.lastSync); elapsed > 0 {
			m.advance(uint64(elapsed / time.Second))
		}
		m.lastSync = now
	}
	m.rtc.Latched = m.rtc.Live
}

// writeRTC stores into a live counter with the hardware bit widths.
func (m *MBC3) writeRTC(index, value byte) {
	switch index {
	case rtcSeconds:
		m.rtc.Live[index] = value & 0x3F
		// a seconds write also clears the sub-second counter
		m.rtc.Cycles = 0
	case rtcMinutes:
		m.rtc.Live[index] = value & 0x3F
	case rtcHours:
		m.rtc.Live[index] = value & 0x1F
	case rtcDayLow:
		m.rtc.Live[index] = value
	case rtcDayHigh:
		m.rtc.Live[index] = value & 0xC1
	}
}

// advance moves the live counters forward by whole seconds. The 9 bit day
// counter overflow sets the carry bit and wraps.
func (m *MBC3) advance(seconds uint64) {
	total := uint64(m.rtc.Live[rtcSeconds]) + seconds
	m.rtc.Live[rtcSeconds] = byte(total % 60)

	minutes := uint64(m.rtc.Live[rtcMinutes]) + total/60
	m.rtc.Live[rtcMinutes] = byte(minutes % 60)

	hours := uint64(m.rtc.Live[rtcHours]) + minutes/60
	m.rtc.Live[rtcHours] = byte(hours % 24)

	days := uint64(m.rtc.Live[rtcDayLow]) | uint64(m.rtc.Live[rtcDayHigh]&1)<<8
	days += hours / 24
	if days > 0x1FF {
		m.rtc.Live[rtcDayHigh] |= 0x80
		days &= 0x1FF
	}
	m.rtc.Live[rtcDayLow] = byte(days)
	m.rtc.Live[rtcDayHigh] = m.rtc.Live[rtcDayHigh]&0xFE | byte(days>>8)&1
}

// RTCState returns a copy of the clock for persistence and snapshots.
func (m *MBC3) RTCState() RTCState { return m.rtc }

// SetRTCState restores a persisted clock.
func (m *MBC3) SetRTCState(s RTCState) {
	m.rtc = s
	if m.clock != nil {
		m.lastSync = m.clock.Now()
	}
}

func (m *MBC3) State() MBCState {
	return MBCState{
		ROMBank:    uint16(m.romBank),
		RAMBank:    m.ramSelect,
		RAMEnabled: m.ramEnabled,
		RTC:        m.rtc,
	}
}

func (m *MBC3) SetState(s MBCState) {
	m.romBank = uint8(s.ROMBank)
	m.ramSelect = s.RAMBank
	m.ramEnabled = s.RAMEnabled
	m.rtc = s.RTC
}
