// Package serial emulates the link port with nothing plugged into it.
// Transfers complete against a disconnected peer, shifting in 0xFF, and the
// outgoing bytes are logged: Blargg's test ROMs report their results this
// way, so the sink doubles as the harness output channel.
package serial

import (
	"log/slog"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// bitClockCycles is the DMG internal clock: 8192 Hz, so 512 CPU cycles per
// bit, 4096 per byte.
const byteTransferCycles = 4096

// LogSink is a serial device that records outgoing bytes. Completed
// transfers raise the serial interrupt through the provided callback.
type LogSink struct {
	sb, sc    byte
	countdown int // cycles until the active transfer completes, 0 = idle
	immediate bool
	irq       func()
	logger    *slog.Logger

	line []byte // buffered output, flushed on newline
}

// Option configures a LogSink.
type Option func(*LogSink)

// WithFixedTiming makes transfers take the hardware 4096 cycles instead of
// completing on the next tick.
func WithFixedTiming() Option {
	return func(s *LogSink) { s.immediate = false }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *LogSink) { s.logger = l }
}

// NewLogSink returns a sink whose irq callback should request the serial
// interrupt on the bus.
func NewLogSink(irq func(), opts ...Option) *LogSink {
	s := &LogSink{
		irq:       irq,
		immediate: true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Reset returns the port to its idle power-on state.
func (s *LogSink) Reset() {
	s.sb = 0
	s.sc = 0x7E // unused bits read as 1
	s.countdown = 0
	s.line = s.line[:0]
}

// Read returns SB or SC. Only those two addresses are valid.
func (s *LogSink) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc | 0x7E
	}
	panic("serial: read outside SB/SC")
}

// Write stores SB or starts a transfer via SC. A transfer begins when both
// the start bit and the internal-clock bit are set; with no peer attached
// an externally clocked transfer never completes.
func (s *LogSink) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		if value&0x81 == 0x81 {
			if s.immediate {
				s.countdown = 1
			} else {
				s.countdown = byteTransferCycles
			}
		}
	default:
		panic("serial: write outside SB/SC")
	}
}

// Tick advances an active transfer by the given cycle count.
func (s *LogSink) Tick(cycles int) {
	if s.countdown == 0 {
		return
	}
	s.countdown -= cycles
	if s.countdown > 0 {
		return
	}
	s.countdown = 0
	s.record(s.sb)

	// disconnected link: all ones shift in
	s.sb = 0xFF
	s.sc &^= 0x80
	if s.irq != nil {
		s.irq()
	}
}

// record buffers printable output into lines so test ROM messages stay
// readable in the log.
func (s *LogSink) record(b byte) {
	if b == '\n' {
		s.logger.Info("serial", "text", string(s.line))
		s.line = s.line[:0]
		return
	}
	if b >= 0x20 && b < 0x7F {
		s.line = append(s.line, b)
		return
	}
	s.logger.Debug("serial", "byte", b)
}
