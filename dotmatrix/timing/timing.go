// Package timing holds the machine's clock constants and frame pacing.
package timing

import "time"

const (
	// CPUFrequency is the DMG master clock in Hz.
	CPUFrequency = 4194304
	// CyclesPerFrame is one full PPU frame: 154 scanlines of 456 cycles.
	CyclesPerFrame = 70224
)

// TargetFPS is the exact hardware frame rate, about 59.7275.
func TargetFPS() float64 {
	return float64(CPUFrequency) / float64(CyclesPerFrame)
}

// FrameDuration is the wall time of one frame at the hardware rate.
func FrameDuration() time.Duration {
	return time.Duration(float64(time.Second) / TargetFPS())
}

// Limiter paces emulation to the hardware frame rate.
type Limiter interface {
	// WaitForNextFrame blocks until the next frame is due. It returns
	// immediately when emulation is behind schedule.
	WaitForNextFrame()

	// Reset clears accumulated timing state, used after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that never waits, for headless runs.
func NewNoOpLimiter() Limiter {
	return noOpLimiter{}
}

type noOpLimiter struct{}

func (noOpLimiter) WaitForNextFrame() {}
func (noOpLimiter) Reset()            {}

// TickerLimiter paces frames with a time.Ticker. Accuracy is bounded by the
// runtime timer resolution, which is fine for an interactive frontend.
type TickerLimiter struct {
	ticker *time.Ticker
}

func NewTickerLimiter() *TickerLimiter {
	return &TickerLimiter{ticker: time.NewTicker(FrameDuration())}
}

func (t *TickerLimiter) WaitForNextFrame() {
	<-t.ticker.C
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(FrameDuration())
}

// Stop releases the underlying ticker.
func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
