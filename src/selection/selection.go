// Package selection holds the region-selection state machine driven by an
// overlay's pointer and key events. It has no UI dependencies; the overlay
// host feeds events in and renders the Frame it gets back.
package selection

import (
	"fmt"
	"image"
	"image/color"

	"screensnap/src/screenshot"
)

// MinSpan is the size both axes must exceed for a drag to complete.
const MinSpan = 10

// State of a selection session.
type State int

const (
	Idle State = iota
	Dragging
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reason explains why a session was cancelled.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonEscape
	ReasonTooSmall
	ReasonTeardown
	ReasonAborted
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonEscape:
		return "escape"
	case ReasonTooSmall:
		return "too small"
	case ReasonTeardown:
		return "overlay closed"
	case ReasonAborted:
		return "aborted"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Outcome is the single terminal result of a session. Region is only
// meaningful when Completed is true.
type Outcome struct {
	Completed bool
	Region    screenshot.Region
	Reason    Reason
}

// Cancel builds a cancelled outcome.
func Cancel(reason Reason) Outcome { return Outcome{Reason: reason} }

// Session tracks one drag gesture. Points passed to the event methods are in
// overlay-local coordinates; the emitted region is translated into global
// coordinates using the overlay origin.
//
// A Session is not safe for concurrent use. It must be fed from the
// goroutine that pumps the overlay's input.
type Session struct {
	state   State
	anchor  screenshot.Point
	current screenshot.Point
	bounds  image.Rectangle
	emit    func(Outcome)
	done    bool
}

// NewSession starts a session over an overlay covering bounds (global
// coordinates). emit receives the terminal outcome exactly once.
func NewSession(bounds image.Rectangle, emit func(Outcome)) *Session {
	return &Session{bounds: bounds, emit: emit}
}

// State reports the current state.
func (s *Session) State() State { return s.state }

// Finished reports whether the terminal outcome has been emitted.
func (s *Session) Finished() bool { return s.done }

// PointerDown starts a drag at p.
func (s *Session) PointerDown(p screenshot.Point) {
	if s.state != Idle {
		return
	}
	s.anchor = p
	s.current = p
	s.state = Dragging
}

// PointerMove updates the live rectangle. It reports whether the host should redraw.
func (s *Session) PointerMove(p screenshot.Point) bool {
	if s.state != Dragging {
		return false
	}
	if p == s.current {
		return false
	}
	s.current = p
	return true
}

// PointerUp ends the drag. Drags that do not exceed MinSpan in both axes cancel.
func (s *Session) PointerUp(p screenshot.Point) {
	if s.state != Dragging {
		return
	}
	s.current = p
	local := screenshot.RegionFromPoints(s.anchor, s.current)
	if local.Width > MinSpan && local.Height > MinSpan {
		local.X += s.bounds.Min.X
		local.Y += s.bounds.Min.Y
		s.finish(Completed, Outcome{Completed: true, Region: local})
		return
	}
	s.finish(Cancelled, Cancel(ReasonTooSmall))
}

// Escape cancels from any non-terminal state.
func (s *Session) Escape() { s.finish(Cancelled, Cancel(ReasonEscape)) }

// Abort cancels the session for an external reason such as a cancelled request.
func (s *Session) Abort() { s.finish(Cancelled, Cancel(ReasonAborted)) }

// Teardown must be called when the overlay can no longer receive input. It
// cancels unless an outcome was already emitted.
func (s *Session) Teardown() { s.finish(Cancelled, Cancel(ReasonTeardown)) }

func (s *Session) finish(state State, out Outcome) {
	if s.done {
		return
	}
	s.done = true
	s.state = state
	if s.emit != nil {
		s.emit(out)
	}
}

// Selection returns the live rectangle in overlay-local coordinates, or an
// empty rectangle when no drag is in progress.
func (s *Session) Selection() image.Rectangle {
	if s.state != Dragging {
		return image.Rectangle{}
	}
	r := screenshot.RegionFromPoints(s.anchor, s.current)
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Rendering constants.
const (
	ScrimAlpha  = 0.3
	BorderWidth = 2
	labelMargin = 4
)

// Accent is the selection border color.
var Accent = color.RGBA{R: 0x00, G: 0x7a, B: 0xff, A: 0xff}

// MeasureFunc reports the rendered size of a label.
type MeasureFunc func(label string) (w, h int)

// Frame describes what the overlay must draw, in overlay-local coordinates.
type Frame struct {
	// Scrim covers the whole overlay.
	Scrim      image.Rectangle
	ScrimAlpha float64
	// Cutout is drawn clear of the scrim. Empty when not dragging.
	Cutout      image.Rectangle
	BorderWidth int
	Border      color.RGBA
	Label       string
	LabelAt     image.Point
}

// Frame computes the current render model. measure may be nil.
func (s *Session) Frame(measure MeasureFunc) Frame {
	f := Frame{
		Scrim:       image.Rect(0, 0, s.bounds.Dx(), s.bounds.Dy()),
		ScrimAlpha:  ScrimAlpha,
		BorderWidth: BorderWidth,
		Border:      Accent,
	}
	sel := s.Selection()
	if sel.Empty() {
		return f
	}
	f.Cutout = sel
	f.Label = fmt.Sprintf("%d×%d", sel.Dx(), sel.Dy())
	if measure == nil {
		measure = approximateMeasure
	}
	w, h := measure(f.Label)
	f.LabelAt = labelPosition(sel, w, h, f.Scrim)
	return f
}

// labelPosition anchors the label above the top-right corner, dropping it
// inside the rectangle when there is no room above, and clamps it to the overlay.
func labelPosition(sel image.Rectangle, w, h int, bounds image.Rectangle) image.Point {
	x := sel.Max.X - w
	y := sel.Min.Y - h - labelMargin
	if y < bounds.Min.Y {
		y = sel.Min.Y + labelMargin
	}
	if x+w > bounds.Max.X {
		x = bounds.Max.X - w
	}
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	return image.Pt(x, y)
}

func approximateMeasure(label string) (int, int) {
	return 8 * len([]rune(label)), 16
}
