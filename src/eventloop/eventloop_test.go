package eventloop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"screensnap/src/capture"
	"screensnap/src/clock"
	"screensnap/src/config"
	"screensnap/src/delivery"
	"screensnap/src/feedback"
	"screensnap/src/messages"
	"screensnap/src/permission"
	"screensnap/src/screenshot"
	"screensnap/src/selection"
	"screensnap/src/session"
	"screensnap/src/singleinstance"
)

type dragSelector struct {
	poster   messages.Poster
	from, to screenshot.Point
	hold     chan struct{}
}

func (d *dragSelector) Begin(ctx context.Context, done func(selection.Outcome)) error {
	s := selection.NewSession(image.Rect(0, 0, 1440, 900), func(o selection.Outcome) {
		d.poster.Post(func() { done(o) })
	})
	go func() {
		s.PointerDown(d.from)
		s.PointerMove(d.to)
		if d.hold != nil {
			select {
			case <-d.hold:
			case <-ctx.Done():
				s.Teardown()
				return
			}
		}
		s.PointerUp(d.to)
	}()
	return nil
}

type regionBackend struct {
	calls atomic.Int32
}

func (b *regionBackend) Name() string { return "fake" }

func (b *regionBackend) SupportsInteractive() bool { return false }

func (b *regionBackend) Capture(ctx context.Context, t capture.Target) capture.Result {
	b.calls.Add(1)
	return capture.Captured(image.NewRGBA(image.Rect(0, 0, t.Region.Width, t.Region.Height)))
}

type memClipboard struct {
	png []byte
}

func (c *memClipboard) WriteImage(_, pngData []byte) error {
	c.png = pngData
	return nil
}

type recordingSurface struct {
	opened []string
}

type noopHandle struct{}

func (noopHandle) Close() {}

func (s *recordingSurface) Open(message string) feedback.Handle {
	s.opened = append(s.opened, message)
	return noopHandle{}
}

type harness struct {
	loop     *Loop
	surface  *recordingSurface
	clip     *memClipboard
	alerts   []string
	outcomes chan session.Outcome
	cancel   context.CancelFunc
	stopped  chan struct{}
}

func newHarness(t *testing.T, cfg *config.Config, exec *capture.Executor, sel func(messages.Poster) *dragSelector, gate func(messages.Poster) *permission.Gate) *harness {
	t.Helper()
	h := &harness{
		surface:  &recordingSurface{},
		clip:     &memClipboard{},
		outcomes: make(chan session.Outcome, 4),
		stopped:  make(chan struct{}),
	}
	var loop *Loop
	poster := messages.PosterFunc(func(fn func()) bool { return loop.Post(fn) })
	presenter := feedback.NewPresenter(h.surface, nil, poster, clock.NewManual(time.Unix(0, 0)))
	deps := Deps{
		Config:   cfg,
		Executor: exec,
		Pipeline: &delivery.Pipeline{Clipboard: h.clip, Confirm: presenter},
		Feedback: presenter,
		Alert: func(title, message string) {
			h.alerts = append(h.alerts, message)
		},
		OnOutcome: func(o session.Outcome) { h.outcomes <- o },
	}
	if sel != nil {
		deps.Selector = sel(poster)
	}
	if gate != nil {
		deps.Gate = gate(poster)
	}
	loop = New(deps)
	h.loop = loop

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.stopped)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-h.stopped
	})
	return h
}

func (h *harness) wait(t *testing.T) session.Outcome {
	t.Helper()
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("no session outcome")
	}
	return session.Outcome{}
}

// onLoop runs fn on the loop goroutine and waits for it.
func (h *harness) onLoop(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	if !h.loop.Post(func() { fn(); close(done) }) {
		t.Fatal("loop stopped")
	}
	<-done
}

func clipboardOnly(dir string) *config.Config {
	return &config.Config{CopyToClipboard: true, SaveToFile: false, SaveDir: dir, ImageFormat: "png"}
}

func TestDragDeliversToClipboardOnly(t *testing.T) {
	dir := t.TempDir()
	backend := &regionBackend{}
	h := newHarness(t, clipboardOnly(dir), capture.NewExecutor(backend, capture.Options{}),
		func(p messages.Poster) *dragSelector {
			return &dragSelector{poster: p, from: screenshot.Point{X: 100, Y: 100}, to: screenshot.Point{X: 300, Y: 250}}
		}, nil)

	h.loop.Trigger(capture.Request{Source: capture.SourceHotkey, Mode: capture.ModeRegion})
	out := h.wait(t)

	if out.Result.Status != capture.StatusImage || out.Size != image.Pt(200, 150) {
		t.Fatalf("outcome = %v size=%v (%v)", out.Result.Status, out.Size, out.Err())
	}
	h.onLoop(t, func() {
		img, err := png.Decode(bytes.NewReader(h.clip.png))
		if err != nil {
			t.Errorf("clipboard does not hold a png: %v", err)
			return
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
			t.Errorf("clipboard image = %v", b)
		}
		if len(h.surface.opened) != 1 || h.surface.opened[0] != "Copied" {
			t.Errorf("confirmations = %v", h.surface.opened)
		}
		if h.loop.Busy() {
			t.Error("loop still busy")
		}
	})
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("no file should be written, found %d", len(entries))
	}
}

func TestTinyDragDoesNotCapture(t *testing.T) {
	backend := &regionBackend{}
	h := newHarness(t, clipboardOnly(t.TempDir()), capture.NewExecutor(backend, capture.Options{}),
		func(p messages.Poster) *dragSelector {
			return &dragSelector{poster: p, from: screenshot.Point{X: 100, Y: 100}, to: screenshot.Point{X: 105, Y: 102}}
		}, nil)

	h.loop.Trigger(capture.Request{Mode: capture.ModeRegion})
	out := h.wait(t)
	if !out.Cancelled() || out.Delivery != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if n := backend.calls.Load(); n != 0 {
		t.Fatalf("executor invoked %d times", n)
	}
	h.onLoop(t, func() {
		if len(h.surface.opened) != 0 {
			t.Errorf("no confirmation expected: %v", h.surface.opened)
		}
	})
}

func TestUtilityExitOneIsSilent(t *testing.T) {
	tmp := t.TempDir()
	backend := &capture.ProcessBackend{
		TempDir: tmp,
		Run: func(ctx context.Context, name string, args ...string) (int, error) {
			return 1, nil
		},
	}
	h := newHarness(t, clipboardOnly(t.TempDir()), capture.NewExecutor(backend, capture.Options{}), nil, nil)

	h.loop.Trigger(capture.Request{Source: capture.SourceMenu, Mode: capture.ModeRegion})
	out := h.wait(t)
	if !out.Cancelled() || out.Delivery != nil {
		t.Fatalf("outcome = %+v", out)
	}
	h.onLoop(t, func() {
		if len(h.alerts) != 0 {
			t.Errorf("alerts = %v", h.alerts)
		}
		if h.clip.png != nil {
			t.Error("clipboard written")
		}
	})
	if entries, _ := os.ReadDir(tmp); len(entries) != 0 {
		t.Fatalf("temporary files left: %d", len(entries))
	}
}

func TestSecondTriggerIsRejectedWhileBusy(t *testing.T) {
	hold := make(chan struct{})
	backend := &regionBackend{}
	h := newHarness(t, clipboardOnly(t.TempDir()), capture.NewExecutor(backend, capture.Options{}),
		func(p messages.Poster) *dragSelector {
			return &dragSelector{poster: p, from: screenshot.Point{X: 0, Y: 0}, to: screenshot.Point{X: 50, Y: 50}, hold: hold}
		}, nil)

	replies := make(chan error, 2)
	h.loop.Submit(capture.Request{Mode: capture.ModeRegion}, func(err error) { replies <- err })
	h.loop.Submit(capture.Request{Mode: capture.ModeRegion}, func(err error) { replies <- err })
	if err := <-replies; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := <-replies; !errors.Is(err, capture.ErrInProgress) {
		t.Fatalf("second submit = %v, want ErrInProgress", err)
	}
	h.onLoop(t, func() {
		if len(h.surface.opened) != 1 || h.surface.opened[0] != BusyMessage {
			t.Errorf("busy pill = %v", h.surface.opened)
		}
	})
	close(hold)
	if out := h.wait(t); out.Result.Status != capture.StatusImage {
		t.Fatalf("first session = %v", out.Result.Status)
	}
}

type countingProber struct {
	mu      sync.Mutex
	prompts int
}

func (p *countingProber) Status(permission.Capability) permission.Status {
	return permission.Denied
}

func (p *countingProber) Prompt(permission.Capability) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return nil
}

func TestPermissionDeniedRoutesToGate(t *testing.T) {
	prober := &countingProber{}
	backend := &regionBackend{}
	exec := capture.NewExecutor(backend, capture.Options{Permitted: func() bool { return false }})
	h := newHarness(t, clipboardOnly(t.TempDir()), exec, nil, func(p messages.Poster) *permission.Gate {
		return permission.NewGate(prober, nil, p, clock.NewManual(time.Unix(0, 0)))
	})

	h.loop.Trigger(capture.Request{Mode: capture.ModeFullScreen})
	out := h.wait(t)
	if capture.KindOf(out.Err()) != capture.KindPermissionDenied {
		t.Fatalf("err = %v", out.Err())
	}
	h.onLoop(t, func() {
		if len(h.alerts) != 0 {
			t.Errorf("permission failures go through the gate, not an alert: %v", h.alerts)
		}
		if h.loop.deps.Gate.Retries(permission.ScreenRecording) != 1 {
			t.Errorf("retries = %d", h.loop.deps.Gate.Retries(permission.ScreenRecording))
		}
	})
	if backend.calls.Load() != 0 {
		t.Fatal("backend must not run without permission")
	}
}

type fakeConn struct {
	req      singleinstance.Request
	accepted bool
	errMsg   string
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }

func (c *fakeConn) Accept() error {
	c.accepted = true
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.errMsg = msg
	return nil
}

func (c *fakeConn) Close() error { return nil }

func TestResetPermissionsRequest(t *testing.T) {
	prober := &countingProber{}
	h := newHarness(t, clipboardOnly(t.TempDir()), nil, nil, func(p messages.Poster) *permission.Gate {
		return permission.NewGate(prober, nil, p, clock.NewManual(time.Unix(0, 0)))
	})
	h.onLoop(t, func() {
		gate := h.loop.deps.Gate
		gate.Request(permission.ScreenRecording, nil)
		if gate.Retries(permission.ScreenRecording) != 1 {
			t.Fatalf("retries = %d", gate.Retries(permission.ScreenRecording))
		}
		conn := &fakeConn{req: singleinstance.Request{Kind: singleinstance.RequestResetPermissions}}
		h.loop.handleConn(conn)
		if !conn.accepted || conn.errMsg != "" {
			t.Fatalf("conn = %+v", conn)
		}
		if gate.Retries(permission.ScreenRecording) != 0 {
			t.Fatalf("retries after reset = %d", gate.Retries(permission.ScreenRecording))
		}
	})
}

func TestIntentWithoutBackendIsRejected(t *testing.T) {
	h := newHarness(t, clipboardOnly(t.TempDir()), nil, nil, nil)
	h.onLoop(t, func() {
		conn := &fakeConn{req: singleinstance.Request{Mode: capture.ModeFullScreen}}
		h.loop.handleConn(conn)
		if conn.accepted || conn.errMsg == "" {
			t.Fatalf("conn = %+v", conn)
		}
	})
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, clipboardOnly(t.TempDir()), nil, nil, nil)
	h.loop.Post(func() { panic("boom") })
	ran := false
	h.onLoop(t, func() { ran = true })
	if !ran {
		t.Fatal("loop stopped after panic")
	}
}

func TestPostAfterStopFails(t *testing.T) {
	h := newHarness(t, clipboardOnly(t.TempDir()), nil, nil, nil)
	h.cancel()
	<-h.stopped
	if h.loop.Post(func() {}) {
		t.Fatal("Post should fail after the loop stopped")
	}
	if h.loop.Trigger(capture.Request{}) {
		t.Fatal("Trigger should fail after the loop stopped")
	}
}

func TestDeliveryOptions(t *testing.T) {
	got := DeliveryOptions(&config.Config{PlaySound: true, SaveToFile: true, SaveDir: "/x", ImageFormat: "jpeg"})
	if !got.PlaySound || !got.SaveToFile || got.CopyToClipboard || got.SaveDir != "/x" || got.Format != "jpeg" {
		t.Fatalf("DeliveryOptions = %+v", got)
	}
}

func TestQuickActions(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, clipboardOnly(dir), nil, nil, nil)
	var opened, revealed []string
	h.onLoop(t, func() {
		h.loop.deps.Open = func(p string) error { opened = append(opened, p); return nil }
		h.loop.deps.Reveal = func(p string) error { revealed = append(revealed, p); return nil }
	})

	h.loop.OpenSaveFolder()
	h.loop.RevealLastCapture()
	h.onLoop(t, func() {})
	if len(opened) != 1 || opened[0] != delivery.ResolveSaveDir(dir) {
		t.Fatalf("opened = %v", opened)
	}
	if len(revealed) != 0 {
		t.Fatalf("nothing saved yet, revealed = %v", revealed)
	}
	if n := len(h.surface.opened); n == 0 || h.surface.opened[n-1] != "No capture yet" {
		t.Fatalf("pill = %v", h.surface.opened)
	}

	var saved string
	h.onLoop(t, func() {
		out := h.loop.deps.Pipeline.Deliver(image.NewRGBA(image.Rect(0, 0, 4, 4)), delivery.Options{SaveToFile: true, SaveDir: dir, Format: "png"})
		saved = out.Path
	})
	h.loop.RevealLastCapture()
	h.onLoop(t, func() {})
	if saved == "" || len(revealed) != 1 || revealed[0] != saved {
		t.Fatalf("saved=%q revealed=%v", saved, revealed)
	}
}
