//go:build !windows

package gui

import (
	"image"

	"screensnap/src/selection"
)

// RunRegionSelection is a stub for non-Windows platforms. The out-of-process
// capture utility hosts its own selection UI there.
func RunRegionSelection(bounds image.Rectangle, emit func(selection.Outcome), stop <-chan struct{}) error {
	return ErrUnsupported
}

// Flash is a no-op where no native flash window exists.
func Flash(bounds image.Rectangle) error {
	return ErrUnsupported
}
