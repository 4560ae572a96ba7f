package session

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"screensnap/src/capture"
	"screensnap/src/delivery"
	"screensnap/src/screenshot"
	"screensnap/src/selection"
)

// chanPoster queues posted work so the test goroutine plays dispatcher.
type chanPoster struct{ ch chan func() }

func newChanPoster() *chanPoster { return &chanPoster{ch: make(chan func(), 16)} }

func (p *chanPoster) Post(fn func()) bool {
	p.ch <- fn
	return true
}

// drain runs posted work until done reports an outcome.
func (p *chanPoster) drain(t *testing.T, outcomes chan Outcome) Outcome {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case o := <-outcomes:
			return o
		case fn := <-p.ch:
			fn()
		case <-deadline:
			t.Fatal("session never finished")
		}
	}
}

type scriptedSelector struct {
	poster *chanPoster
	script func(s *selection.Session)
	err    error
}

func (s *scriptedSelector) Begin(ctx context.Context, done func(selection.Outcome)) error {
	if s.err != nil {
		return s.err
	}
	sess := selection.NewSession(image.Rect(0, 0, 1440, 900), func(o selection.Outcome) {
		s.poster.Post(func() { done(o) })
	})
	go s.script(sess)
	return nil
}

func drag(from, to screenshot.Point) func(*selection.Session) {
	return func(s *selection.Session) {
		s.PointerDown(from)
		s.PointerMove(to)
		s.PointerUp(to)
	}
}

type sizedBackend struct {
	mu          sync.Mutex
	calls       int
	targets     []capture.Target
	result      func(capture.Target) capture.Result
	interactive bool
}

func (b *sizedBackend) Name() string { return "fake" }

func (b *sizedBackend) SupportsInteractive() bool { return b.interactive }

func (b *sizedBackend) Capture(ctx context.Context, t capture.Target) capture.Result {
	b.mu.Lock()
	b.calls++
	b.targets = append(b.targets, t)
	b.mu.Unlock()
	if b.result != nil {
		return b.result(t)
	}
	w, h := t.Region.Width, t.Region.Height
	if t.FullScreen || t.Interactive {
		w, h = 64, 48
	}
	return capture.Captured(image.NewRGBA(image.Rect(0, 0, w, h)))
}

func run(t *testing.T, opts Options) (Outcome, int) {
	t.Helper()
	poster := opts.Poster.(*chanPoster)
	outcomes := make(chan Outcome, 1)
	delivered := 0
	opts.Deliver = func(img *image.RGBA) delivery.Outcome {
		delivered++
		return delivery.Outcome{}
	}
	Start(context.Background(), opts, func(o Outcome) { outcomes <- o })
	return poster.drain(t, outcomes), delivered
}

func TestRegionSessionDelivers(t *testing.T) {
	p := newChanPoster()
	b := &sizedBackend{}
	out, delivered := run(t, Options{
		Request:  capture.Request{Source: capture.SourceHotkey, Mode: capture.ModeRegion},
		Selector: &scriptedSelector{poster: p, script: drag(screenshot.Point{X: 100, Y: 100}, screenshot.Point{X: 300, Y: 250})},
		Executor: capture.NewExecutor(b, capture.Options{}),
		Poster:   p,
	})
	if out.Result.Status != capture.StatusImage {
		t.Fatalf("status = %v (%v)", out.Result.Status, out.Err())
	}
	if out.Size != image.Pt(200, 150) {
		t.Fatalf("size = %v, want 200x150", out.Size)
	}
	if delivered != 1 || out.Delivery == nil {
		t.Fatalf("delivered = %d", delivered)
	}
	if out.Result.Image != nil {
		t.Fatal("session must not retain the image")
	}
}

func TestTinyDragNeverCaptures(t *testing.T) {
	p := newChanPoster()
	b := &sizedBackend{}
	out, delivered := run(t, Options{
		Request:  capture.Request{Mode: capture.ModeRegion},
		Selector: &scriptedSelector{poster: p, script: drag(screenshot.Point{X: 100, Y: 100}, screenshot.Point{X: 105, Y: 102})},
		Executor: capture.NewExecutor(b, capture.Options{}),
		Poster:   p,
	})
	if !out.Cancelled() || out.Selection.Reason != selection.ReasonTooSmall {
		t.Fatalf("outcome = %+v", out)
	}
	if b.calls != 0 || delivered != 0 || out.Delivery != nil {
		t.Fatalf("backend calls=%d delivered=%d", b.calls, delivered)
	}
}

func TestFullScreenSkipsSelection(t *testing.T) {
	p := newChanPoster()
	b := &sizedBackend{}
	out, _ := run(t, Options{
		Request:  capture.Request{Mode: capture.ModeFullScreen},
		Selector: &scriptedSelector{poster: p, err: context.Canceled},
		Executor: capture.NewExecutor(b, capture.Options{}),
		Poster:   p,
	})
	if out.Result.Status != capture.StatusImage || !b.targets[0].FullScreen {
		t.Fatalf("outcome = %v targets=%v", out.Result.Status, b.targets)
	}
}

func TestInteractiveBackendHostsSelection(t *testing.T) {
	p := newChanPoster()
	b := &sizedBackend{interactive: true}
	out, _ := run(t, Options{
		Request:     capture.Request{Mode: capture.ModeRegion},
		Executor:    capture.NewExecutor(b, capture.Options{}),
		Poster:      p,
		Interactive: true,
	})
	if out.Result.Status != capture.StatusImage || !b.targets[0].Interactive {
		t.Fatalf("outcome = %v targets=%v", out.Result.Status, b.targets)
	}
}

func TestOverlayUnavailableWithoutFallbackFails(t *testing.T) {
	p := newChanPoster()
	b := &sizedBackend{}
	out, _ := run(t, Options{
		Request:  capture.Request{Mode: capture.ModeRegion},
		Executor: capture.NewExecutor(b, capture.Options{}),
		Poster:   p,
	})
	if out.Result.Status != capture.StatusFailed {
		t.Fatalf("status = %v", out.Result.Status)
	}
}

func TestCancelDiscardsCapture(t *testing.T) {
	p := newChanPoster()
	release := make(chan struct{})
	b := &sizedBackend{result: func(capture.Target) capture.Result {
		<-release
		return capture.Captured(image.NewRGBA(image.Rect(0, 0, 10, 10)))
	}}
	outcomes := make(chan Outcome, 1)
	delivered := 0
	s := Start(context.Background(), Options{
		Request:  capture.Request{Mode: capture.ModeFullScreen},
		Executor: capture.NewExecutor(b, capture.Options{}),
		Poster:   p,
		Deliver: func(*image.RGBA) delivery.Outcome {
			delivered++
			return delivery.Outcome{}
		},
	}, func(o Outcome) { outcomes <- o })
	if s.Phase() != PhaseCapturing {
		t.Fatalf("phase = %v", s.Phase())
	}
	s.Cancel()
	close(release)
	out := p.drain(t, outcomes)
	if !out.Cancelled() || delivered != 0 {
		t.Fatalf("outcome = %v delivered=%d", out.Result.Status, delivered)
	}
}

func TestBusyExecutorFailsSession(t *testing.T) {
	p := newChanPoster()
	release := make(chan struct{})
	defer close(release)
	b := &sizedBackend{result: func(capture.Target) capture.Result {
		<-release
		return capture.Cancelled()
	}}
	exec := capture.NewExecutor(b, capture.Options{})
	if err := exec.Start(context.Background(), capture.FullScreenTarget(), func(capture.Result) {}); err != nil {
		t.Fatal(err)
	}
	outcomes := make(chan Outcome, 1)
	Start(context.Background(), Options{
		Request:  capture.Request{Mode: capture.ModeFullScreen},
		Executor: exec,
		Poster:   p,
	}, func(o Outcome) { outcomes <- o })
	out := <-outcomes
	if capture.KindOf(out.Err()) != capture.KindBusy {
		t.Fatalf("err = %v", out.Err())
	}
}
