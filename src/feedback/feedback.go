// Package feedback shows the transient capture confirmation and the screen
// flash. Presenter must only be used from the dispatcher goroutine.
package feedback

import (
	"log/slog"
	"time"

	"screensnap/src/clock"
	"screensnap/src/messages"
)

// DefaultDuration is how long a confirmation stays visible.
const DefaultDuration = 3 * time.Second

// Handle is a visible confirmation. Close removes it.
type Handle interface {
	Close()
}

// Surface creates confirmation handles, e.g. the menu-bar title.
type Surface interface {
	Open(message string) Handle
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(message string) Handle

func (f SurfaceFunc) Open(message string) Handle { return f(message) }

// Flasher renders the screen flash.
type Flasher interface {
	Flash() error
}

// FlasherFunc adapts a function to Flasher.
type FlasherFunc func() error

func (f FlasherFunc) Flash() error { return f() }

// Presenter keeps at most one confirmation on screen.
type Presenter struct {
	surface Surface
	flasher Flasher
	poster  messages.Poster
	clock   clock.Clock

	generation uint64
	message    string
	handle     Handle
	timer      clock.Timer
}

// NewPresenter builds a Presenter. Dismiss timers re-enter through poster.
// flasher may be nil.
func NewPresenter(surface Surface, flasher Flasher, poster messages.Poster, clk clock.Clock) *Presenter {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Presenter{surface: surface, flasher: flasher, poster: poster, clock: clk}
}

// Show replaces any visible confirmation with message and schedules its
// dismissal after d (DefaultDuration when d <= 0).
func (p *Presenter) Show(message string, d time.Duration) {
	if d <= 0 {
		d = DefaultDuration
	}
	p.teardown()

	p.generation++
	gen := p.generation
	p.message = message
	p.handle = p.surface.Open(message)
	p.timer = p.clock.AfterFunc(d, func() {
		p.poster.Post(func() { p.expire(gen) })
	})
	slog.Debug("feedback: shown", "message", message, "duration", d, "generation", gen)
}

// Dismiss removes the visible confirmation. Calling it with nothing shown
// does nothing.
func (p *Presenter) Dismiss() {
	p.teardown()
}

// Active reports whether a confirmation is visible.
func (p *Presenter) Active() bool { return p.handle != nil }

// Message is the visible confirmation text, or "".
func (p *Presenter) Message() string {
	if p.handle == nil {
		return ""
	}
	return p.message
}

// Flash plays the screen flash. Failures are logged only.
func (p *Presenter) Flash() {
	if p.flasher == nil {
		return
	}
	if err := p.flasher.Flash(); err != nil {
		slog.Debug("feedback: flash unavailable", "error", err)
	}
}

func (p *Presenter) expire(gen uint64) {
	if gen != p.generation {
		slog.Debug("feedback: ignoring stale dismiss", "generation", gen, "current", p.generation)
		return
	}
	p.teardown()
}

// teardown cancels the timer, drops the reference, then closes the handle.
func (p *Presenter) teardown() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	h := p.handle
	p.handle = nil
	p.message = ""
	if h != nil {
		h.Close()
	}
}
