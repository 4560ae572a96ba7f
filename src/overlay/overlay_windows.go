//go:build windows

package overlay

import (
	"image"

	"screensnap/src/gui"
	"screensnap/src/messages"
	"screensnap/src/screenshot"
)

// newPlatformSelector runs the native overlay on its own locked OS thread.
func newPlatformSelector(poster messages.Poster) Selector {
	return &nativeSelector{
		poster: poster,
		bounds: func() (image.Rectangle, error) {
			return screenshot.UnionBounds(screenshot.Displays())
		},
		run: gui.RunRegionSelection,
	}
}
