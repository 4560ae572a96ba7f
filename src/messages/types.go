// Package messages defines what goroutines hand to the dispatcher.
package messages

import "screensnap/src/capture"

// Message is the base interface for everything queued on the event loop.
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeCaptureRequested = "CaptureRequested"
	TypeTask             = "Task"
)

// CaptureRequested asks the loop to start a capture session.
type CaptureRequested struct {
	Request capture.Request
	// Reply, when set, receives the admission result: nil once a session
	// started, or the reason it was rejected.
	Reply func(error)
}

func (CaptureRequested) Type() string { return TypeCaptureRequested }

// Task runs an arbitrary function on the loop goroutine.
type Task struct {
	Fn func()
}

func (Task) Type() string { return TypeTask }

// Poster hands work to the single goroutine allowed to mutate shared UI state.
// Post returns false if the work was dropped because the consumer stopped.
type Poster interface {
	Post(fn func()) bool
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(fn func()) bool

func (f PosterFunc) Post(fn func()) bool { return f(fn) }

// Immediate runs posted work synchronously on the caller. It suits one-shot
// flows that own their goroutine, and tests.
type Immediate struct{}

func (Immediate) Post(fn func()) bool {
	fn()
	return true
}
