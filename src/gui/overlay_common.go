// Package gui hosts the native windows behind the selection overlay and the
// capture flash. Platform files implement RunRegionSelection and Flash.
package gui

import (
	"errors"
	"image"
	"time"

	"screensnap/src/selection"
)

// ErrUnsupported is returned where no native overlay exists.
var ErrUnsupported = errors.New("interactive region selection not implemented for this platform")

// ErrOverlayActive is returned when an overlay is already on screen.
var ErrOverlayActive = errors.New("selection overlay already active")

// Flash timing: visible at full alpha, then faded out and closed.
const (
	FlashAlpha     = 0.8
	FlashHold      = 100 * time.Millisecond
	FlashCloseWait = 200 * time.Millisecond
)

// SettleDelay lets the compositor drop a destroyed overlay before the screen
// is grabbed.
const SettleDelay = 50 * time.Millisecond

// latch holds a session's terminal outcome until the overlay window is gone.
type latch struct {
	out      selection.Outcome
	set      bool
	released bool
}

func (l *latch) record(o selection.Outcome) {
	if l.set {
		return
	}
	l.out, l.set = o, true
}

// release hands the held outcome to emit once and reports whether it did.
func (l *latch) release(emit func(selection.Outcome)) bool {
	if !l.set || l.released {
		return false
	}
	l.released = true
	if emit != nil {
		emit(l.out)
	}
	return true
}

// dimImage returns a copy of src with a black scrim of the given alpha
// composited over every pixel.
func dimImage(src *image.RGBA, alpha float64) *image.RGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	keep := 1 - alpha
	out := image.NewRGBA(src.Bounds())
	for i := 0; i+3 < len(src.Pix); i += 4 {
		out.Pix[i] = uint8(float64(src.Pix[i]) * keep)
		out.Pix[i+1] = uint8(float64(src.Pix[i+1]) * keep)
		out.Pix[i+2] = uint8(float64(src.Pix[i+2]) * keep)
		out.Pix[i+3] = 0xff
	}
	return out
}

// toBGRA converts RGBA pixels into the top-down BGRA layout GDI DIB sections use.
func toBGRA(src *image.RGBA) []byte {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dst := out[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			dst[x] = row[x+2]
			dst[x+1] = row[x+1]
			dst[x+2] = row[x]
			dst[x+3] = row[x+3]
		}
	}
	return out
}
