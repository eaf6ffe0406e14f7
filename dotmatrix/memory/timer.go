package memory

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
)

// tacBit maps the TAC clock select to the divider bit whose falling edge
// clocks TIMA:
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacBit = [4]uint8{9, 3, 5, 7}

// Timer implements DIV/TIMA/TMA/TAC on top of a single 16 bit divider.
// DIV is the divider's upper byte; TIMA increments on falling edges of the
// TAC-selected divider bit, and its overflow reloads TMA and raises the
// timer interrupt four cycles later.
type Timer struct {
	divider uint16
	tima    byte
	tma     byte
	tac     byte

	lastEdge     bool // previous state of the selected divider bit
	overflowLeft int  // cycles until the delayed TIMA reload
	pendingIRQ   bool // interrupt fires one cycle after the reload

	onOverflow func()
}

// TimerState is a plain copy of the timer for snapshots.
type TimerState struct {
	Divider      uint16
	TIMA         byte
	TMA          byte
	TAC          byte
	LastEdge     bool
	OverflowLeft int
	PendingIRQ   bool
}

// Seed initializes the divider; the boot ROM leaves it at 0xABCC.
func (t *Timer) Seed(divider uint16) {
	t.divider = divider
	t.lastEdge = false
	t.overflowLeft = 0
	t.pendingIRQ = false
}

// Tick advances the timer one CPU cycle at a time so divider edges are
// never skipped.
func (t *Timer) Tick(cycles int) {
	for n := 0; n < cycles; n++ {
		if t.pendingIRQ {
			t.pendingIRQ = false
			if t.onOverflow != nil {
				t.onOverflow()
			}
		}

		t.divider++

		if t.overflowLeft > 0 {
			t.overflowLeft--
			if t.overflowLeft == 0 {
				t.tima = t.tma
				t.pendingIRQ = true
			}
			continue
		}

		if !bit.IsSet(2, t.tac) {
			t.lastEdge = false
			continue
		}

		edge := bit.IsSet16(tacBit[t.tac&0x03], t.divider)
		if t.lastEdge && !edge {
			t.increment()
		}
		t.lastEdge = edge
	}
}

func (t *Timer) increment() {
	if t.tima == 0xFF {
		// TIMA reads 0x00 for four cycles before the TMA reload lands
		t.overflowLeft = 4
	}
	t.tima++
}

// Read returns the value of one of the four timer registers.
func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.divider >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	}
	return 0xFF
}

// Write stores a timer register. Writing DIV resets the whole divider no
// matter the value.
func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		t.divider = 0
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}

// State returns a copy of the timer for snapshots.
func (t *Timer) State() TimerState {
	return TimerState{
		Divider:      t.divider,
		TIMA:         t.tima,
		TMA:          t.tma,
		TAC:          t.tac,
		LastEdge:     t.lastEdge,
		OverflowLeft: t.overflowLeft,
		PendingIRQ:   t.pendingIRQ,
	}
}

// SetState restores the timer from a snapshot.
func (t *Timer) SetState(s TimerState) {
	t.divider = s.Divider
	t.tima = s.TIMA
	t.tma = s.TMA
	t.tac = s.TAC
	t.lastEdge = s.LastEdge
	t.overflowLeft = s.OverflowLeft
	t.pendingIRQ = s.PendingIRQ
}
