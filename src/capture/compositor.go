package capture

import (
	"context"
	"image"
	"log/slog"
	"strings"

	xdraw "golang.org/x/image/draw"

	"screensnap/src/screenshot"
)

// Grabber is the compositor surface the in-process backend talks to.
type Grabber interface {
	// Displays enumerates shareable displays; index 0 is the primary.
	Displays() []image.Rectangle
	// Grab returns a single still frame of rect in global coordinates.
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

type systemGrabber struct{}

func (systemGrabber) Displays() []image.Rectangle { return screenshot.Displays() }

func (systemGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// CompositorBackend grabs frames in-process. The frame it returns is
// already cropped to the requested region and resampled to Scale.
type CompositorBackend struct {
	Grabber Grabber
	// Scale is output pixels per screen unit. Zero means 1.
	Scale float64
}

// NewCompositorBackend returns a backend over the system compositor.
func NewCompositorBackend() *CompositorBackend {
	return &CompositorBackend{Grabber: systemGrabber{}, Scale: 1}
}

func (b *CompositorBackend) Name() string { return "compositor" }

func (b *CompositorBackend) SupportsInteractive() bool { return false }

func (b *CompositorBackend) Capture(ctx context.Context, t Target) Result {
	displays := b.Grabber.Displays()
	if len(displays) == 0 {
		return Failed(Errorf(KindGeneric, nil, "no shareable displays found"))
	}

	var rect image.Rectangle
	if t.FullScreen {
		rect = displays[0]
	} else {
		origin := screenshot.Point{X: t.Region.X, Y: t.Region.Y}
		display := displays[screenshot.DisplayFor(displays, origin)]
		rect = t.Region.Rect().Intersect(display)
	}
	if rect.Empty() {
		return Failed(Errorf(KindInvalidRegion, nil, "region %s is outside every display", t.Region))
	}

	type frame struct {
		img *image.RGBA
		err error
	}
	ch := make(chan frame, 1)
	go func() {
		img, err := b.Grabber.Grab(rect)
		ch <- frame{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		// The grab is abandoned; its frame is dropped when it arrives.
		return Cancelled()
	case f := <-ch:
		if f.err != nil {
			return Failed(classifyGrabError(f.err))
		}
		if f.img == nil {
			return Failed(Errorf(KindStreamInterrupted, nil, "compositor returned no frame"))
		}
		return Captured(b.normalize(f.img, rect))
	}
}

// normalize resamples the frame so its size equals rect at the configured
// scale. HiDPI displays hand back frames at backing-store resolution.
func (b *CompositorBackend) normalize(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	scale := b.Scale
	if scale <= 0 {
		scale = 1
	}
	want := image.Rect(0, 0, int(float64(rect.Dx())*scale+0.5), int(float64(rect.Dy())*scale+0.5))
	if img.Bounds().Size() == want.Size() {
		return toRGBA(img)
	}
	slog.Debug("capture: resampling frame", "from", img.Bounds().Size().String(), "to", want.Size().String())
	out := image.NewRGBA(want)
	xdraw.CatmullRom.Scale(out, want, img, img.Bounds(), xdraw.Src, nil)
	return out
}

func classifyGrabError(err error) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not permitted"),
		strings.Contains(msg, "denied"), strings.Contains(msg, "declined"):
		return Errorf(KindPermissionDenied, err, "screen capture was denied")
	case strings.Contains(msg, "interrupted"), strings.Contains(msg, "stopped"):
		return Errorf(KindStreamInterrupted, err, "capture stream interrupted")
	}
	return Errorf(KindGeneric, err, "screen capture failed")
}
