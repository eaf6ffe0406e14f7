// Package render draws frames into a terminal with tcell. Two screen cells
// per pixel keep the aspect ratio roughly square.
package render

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valerio/go-dotmatrix/dotmatrix/memory"
	"github.com/valerio/go-dotmatrix/dotmatrix/timing"
	"github.com/valerio/go-dotmatrix/dotmatrix/video"
)

const (
	scaleX = 2

	// keyHoldDuration is how long a key press stays held. Terminals only
	// deliver key-down events, so releases are synthesized after a delay;
	// repeated presses keep extending the hold.
	keyHoldDuration = 120 * time.Millisecond
)

var shadeGlyphs = [4]rune{' ', '░', '▒', '█'}

// Machine is the slice of the emulator the renderer drives.
type Machine interface {
	RunUntilFrame() error
	GetCurrentFrame() *video.FrameBuffer
	HandleKeyPress(memory.JoypadKey)
	HandleKeyRelease(memory.JoypadKey)
}

// TerminalRenderer runs the emulation loop against a tcell screen.
type TerminalRenderer struct {
	screen  tcell.Screen
	machine Machine
	limiter timing.Limiter

	// onFrame runs after every completed frame, used to drive the save
	// manager.
	onFrame func()

	mu       sync.Mutex
	held     map[memory.JoypadKey]time.Time
	quitting bool
}

// Option configures a TerminalRenderer.
type Option func(*TerminalRenderer)

// WithFrameHook runs fn after every rendered frame.
func WithFrameHook(fn func()) Option {
	return func(t *TerminalRenderer) { t.onFrame = fn }
}

// WithLimiter replaces the default ticker frame limiter.
func WithLimiter(l timing.Limiter) Option {
	return func(t *TerminalRenderer) { t.limiter = l }
}

// NewTerminalRenderer initializes the terminal screen.
func NewTerminalRenderer(machine Machine, opts ...Option) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}

	t := &TerminalRenderer{
		screen:  screen,
		machine: machine,
		held:    make(map[memory.JoypadKey]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.limiter == nil {
		t.limiter = timing.NewTickerLimiter()
	}
	return t, nil
}

// Run executes the frame loop until Esc, Ctrl-C or a signal stops it.
func (t *TerminalRenderer) Run() error {
	defer t.screen.Fini()

	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.pollInput()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for {
		select {
		case <-signals:
			slog.Info("stopping on signal")
			return nil
		default:
		}
		if t.stopped() {
			return nil
		}

		t.limiter.WaitForNextFrame()
		if err := t.machine.RunUntilFrame(); err != nil {
			return err
		}
		t.releaseExpiredKeys()
		t.draw()
		t.screen.Show()
		if t.onFrame != nil {
			t.onFrame()
		}
	}
}

func (t *TerminalRenderer) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quitting
}

func (t *TerminalRenderer) pollInput() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				t.mu.Lock()
				t.quitting = true
				t.mu.Unlock()
				return
			case tcell.KeyEnter:
				t.press(memory.JoypadStart)
			case tcell.KeyRight:
				t.press(memory.JoypadRight)
			case tcell.KeyLeft:
				t.press(memory.JoypadLeft)
			case tcell.KeyUp:
				t.press(memory.JoypadUp)
			case tcell.KeyDown:
				t.press(memory.JoypadDown)
			case tcell.KeyRune:
				switch ev.Rune() {
				case 'a':
					t.press(memory.JoypadA)
				case 's':
					t.press(memory.JoypadB)
				case 'q':
					t.press(memory.JoypadSelect)
				}
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *TerminalRenderer) press(key memory.JoypadKey) {
	t.mu.Lock()
	t.held[key] = time.Now()
	t.mu.Unlock()
	t.machine.HandleKeyPress(key)
}

func (t *TerminalRenderer) releaseExpiredKeys() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, pressed := range t.held {
		if now.Sub(pressed) >= keyHoldDuration {
			delete(t.held, key)
			t.machine.HandleKeyRelease(key)
		}
	}
}

func (t *TerminalRenderer) draw() {
	fb := t.machine.GetCurrentFrame()
	for y := 0; y < video.FramebufferHeight; y++ {
		for x := 0; x < video.FramebufferWidth; x++ {
			glyph := shadeGlyphs[fb.ShadeAt(x, y)&3]
			for sx := 0; sx < scaleX; sx++ {
				t.screen.SetContent(x*scaleX+sx, y, glyph, nil, tcell.StyleDefault)
			}
		}
	}
}
