package overlay

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"screensnap/src/gui"
	"screensnap/src/messages"
	"screensnap/src/selection"
)

// ErrUnsupported is returned by Begin when the platform has no native overlay.
var ErrUnsupported = gui.ErrUnsupported

// Selector starts an interactive region selection. Begin returns as soon as
// the overlay is up; done receives the single terminal outcome later, on the
// poster's goroutine. Cancelling ctx tears the overlay down, which completes
// the session as cancelled.
type Selector interface {
	Begin(ctx context.Context, done func(selection.Outcome)) error
}

// NewSelector returns the platform implementation.
func NewSelector(poster messages.Poster) Selector {
	return newPlatformSelector(poster)
}

// Supported reports whether err from Begin means the platform lacks an overlay.
func Supported(err error) bool {
	return !errors.Is(err, ErrUnsupported)
}

// Runner hosts a native selection over bounds until it finishes or stop is
// closed. It calls emit at most once, and only when it returns nil.
type Runner func(bounds image.Rectangle, emit func(selection.Outcome), stop <-chan struct{}) error

// nativeSelector drives a Runner on its own goroutine.
type nativeSelector struct {
	poster messages.Poster
	bounds func() (image.Rectangle, error)
	run    Runner
}

func (n *nativeSelector) Begin(ctx context.Context, done func(selection.Outcome)) error {
	bounds, err := n.bounds()
	if err != nil {
		return err
	}
	emit := deferred(n.poster, done)
	go func() {
		if err := n.run(bounds, emit, ctx.Done()); err != nil {
			slog.Error("overlay: region selection failed", "error", err)
			emit(selection.Cancel(selection.ReasonTeardown))
		}
	}()
	return nil
}

// deferred wraps done so the outcome reaches the caller through the poster,
// after the native input handler that produced it has returned. Only the
// first outcome is delivered.
func deferred(poster messages.Poster, done func(selection.Outcome)) func(selection.Outcome) {
	var once sync.Once
	return func(o selection.Outcome) {
		once.Do(func() {
			if !poster.Post(func() { done(o) }) {
				// Loop gone; deliver inline so the session still terminates.
				done(o)
			}
		})
	}
}
