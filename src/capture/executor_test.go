package capture

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"screensnap/src/screenshot"
)

// fakeBackend returns a solid image of the target size unless block is set,
// in which case it waits for release or ctx.
type fakeBackend struct {
	calls       atomic.Int32
	block       chan struct{}
	interactive bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) SupportsInteractive() bool { return f.interactive }

func (f *fakeBackend) Capture(ctx context.Context, t Target) Result {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return Cancelled()
		}
	}
	w, h := t.Region.Width, t.Region.Height
	if t.FullScreen {
		w, h = 640, 480
	}
	return Captured(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func TestCaptureReturnsRegionSizedImage(t *testing.T) {
	backend := &fakeBackend{}
	exec := NewExecutor(backend, Options{})
	res := exec.Capture(context.Background(), RegionTarget(screenshot.Region{X: 100, Y: 100, Width: 200, Height: 150}))
	if res.Status != StatusImage {
		t.Fatalf("status = %v, err = %v", res.Status, res.Err)
	}
	if w, h := res.Size(); w != 200 || h != 150 {
		t.Fatalf("size = %dx%d, want 200x150", w, h)
	}
	if exec.Busy() {
		t.Fatal("executor should be idle after Capture returns")
	}
}

func TestZeroAreaRegionFailsFastWithoutOSCall(t *testing.T) {
	tests := []struct {
		name   string
		region screenshot.Region
	}{
		{"zero", screenshot.Region{}},
		{"zero width", screenshot.Region{X: 10, Y: 10, Width: 0, Height: 50}},
		{"negative height", screenshot.Region{X: 10, Y: 10, Width: 50, Height: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			exec := NewExecutor(backend, Options{})

			res := exec.Capture(context.Background(), RegionTarget(tt.region))
			if res.Status != StatusFailed || KindOf(res.Err) != KindInvalidRegion {
				t.Fatalf("expected invalid-region failure, got %v (%v)", res.Status, res.Err)
			}
			if !errors.Is(res.Err, ErrInvalidRegion) {
				t.Fatalf("error should match ErrInvalidRegion: %v", res.Err)
			}

			err := exec.Start(context.Background(), RegionTarget(tt.region), func(Result) {
				t.Error("done must not be called for a rejected capture")
			})
			if KindOf(err) != KindInvalidRegion {
				t.Fatalf("Start error = %v", err)
			}
			if n := backend.calls.Load(); n != 0 {
				t.Fatalf("backend called %d times", n)
			}
		})
	}
}

func TestSecondCaptureIsRejectedWhileInFlight(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{})}
	exec := NewExecutor(backend, Options{})
	target := RegionTarget(screenshot.Region{Width: 50, Height: 50})

	results := make(chan Result, 1)
	if err := exec.Start(context.Background(), target, func(r Result) { results <- r }); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := exec.Start(context.Background(), target, func(Result) { t.Error("second capture must not run") })
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("second Start error = %v, want ErrInProgress", err)
	}
	if err.Error() != "capture already in progress" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	close(backend.block)
	select {
	case r := <-results:
		if r.Status != StatusImage {
			t.Fatalf("first capture status = %v", r.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first capture never completed")
	}

	if res := exec.Capture(context.Background(), target); res.Status != StatusImage {
		t.Fatalf("capture after release: %v %v", res.Status, res.Err)
	}
	if n := backend.calls.Load(); n != 2 {
		t.Fatalf("backend calls = %d, want 2", n)
	}
}

func TestCaptureTimesOut(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{})}
	defer close(backend.block)
	exec := NewExecutor(backend, Options{Timeout: 20 * time.Millisecond})

	res := exec.Capture(context.Background(), FullScreenTarget())
	if res.Status != StatusFailed || KindOf(res.Err) != KindTimeout {
		t.Fatalf("expected timeout, got %v (%v)", res.Status, res.Err)
	}
}

func TestInteractiveCaptureIsNotTimed(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{}), interactive: true}
	exec := NewExecutor(backend, Options{Timeout: 10 * time.Millisecond})

	results := make(chan Result, 1)
	if err := exec.Start(context.Background(), InteractiveTarget(), func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case r := <-results:
		t.Fatalf("interactive capture finished early: %v", r.Status)
	case <-time.After(60 * time.Millisecond):
	}
	close(backend.block)
	if r := <-results; r.Status != StatusImage {
		t.Fatalf("status = %v", r.Status)
	}
}

func TestCancelledCaptureDiscardsResult(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{})}
	defer close(backend.block)
	exec := NewExecutor(backend, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 1)
	if err := exec.Start(ctx, FullScreenTarget(), func(r Result) { results <- r }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	select {
	case r := <-results:
		if r.Status != StatusCancelled {
			t.Fatalf("status = %v, want cancelled", r.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled capture never reported")
	}
}

func TestPermissionDeniedSkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	exec := NewExecutor(backend, Options{Permitted: func() bool { return false }})
	res := exec.Capture(context.Background(), FullScreenTarget())
	if KindOf(res.Err) != KindPermissionDenied {
		t.Fatalf("expected permission-denied, got %v", res.Err)
	}
	if backend.calls.Load() != 0 {
		t.Fatal("backend must not be called without permission")
	}
	if exec.Busy() {
		t.Fatal("executor must release its slot after a permission failure")
	}
}

func TestInteractiveRequiresCapableBackend(t *testing.T) {
	exec := NewExecutor(&fakeBackend{}, Options{})
	if err := exec.Start(context.Background(), InteractiveTarget(), func(Result) {}); err == nil {
		t.Fatal("expected an error for interactive capture on a non-interactive backend")
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultTimeout},
		{time.Second, MinTimeout},
		{7 * time.Second, 7 * time.Second},
		{time.Minute, MaxTimeout},
	}
	for _, tt := range tests {
		if got := ClampTimeout(tt.in); got != tt.want {
			t.Errorf("ClampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"area", ModeRegion, false},
		{"Region", ModeRegion, false},
		{"full", ModeFullScreen, false},
		{"full-screen", ModeFullScreen, false},
		{"window", ModeRegion, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	wrapped := Errorf(KindBusy, errors.New("inner"), "busy")
	if !errors.Is(wrapped, ErrInProgress) {
		t.Error("busy error should match ErrInProgress")
	}
	if errors.Is(wrapped, ErrInvalidRegion) {
		t.Error("busy error must not match ErrInvalidRegion")
	}
	if KindOf(errors.New("plain")) != KindGeneric {
		t.Error("plain errors are generic")
	}
	if KindProcessLaunch.String() != "process-launch-failure" {
		t.Errorf("unexpected kind string %q", KindProcessLaunch.String())
	}
}
