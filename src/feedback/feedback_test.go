package feedback

import (
	"errors"
	"testing"
	"time"

	"screensnap/src/clock"
	"screensnap/src/messages"
)

type fakeHandle struct {
	s      *fakeSurface
	msg    string
	closed int
}

func (h *fakeHandle) Close() {
	h.closed++
	h.s.open--
	h.s.events = append(h.s.events, "close:"+h.msg)
}

type fakeSurface struct {
	open    int
	handles []*fakeHandle
	events  []string
}

func (s *fakeSurface) Open(message string) Handle {
	s.open++
	h := &fakeHandle{s: s, msg: message}
	s.handles = append(s.handles, h)
	s.events = append(s.events, "open:"+message)
	return h
}

func newTestPresenter() (*Presenter, *fakeSurface, *clock.Manual) {
	s := &fakeSurface{}
	clk := clock.NewManual(time.Unix(0, 0))
	return NewPresenter(s, nil, messages.Immediate{}, clk), s, clk
}

func TestShowTwiceLeavesOneHandleAndOneTimer(t *testing.T) {
	p, s, clk := newTestPresenter()

	p.Show("Copied", time.Second)
	p.Show("Saved", time.Second)

	if s.open != 1 {
		t.Fatalf("open handles = %d, want 1", s.open)
	}
	if clk.Pending() != 1 {
		t.Fatalf("armed timers = %d, want 1", clk.Pending())
	}
	want := []string{"open:Copied", "close:Copied", "open:Saved"}
	if len(s.events) != len(want) {
		t.Fatalf("events = %v", s.events)
	}
	for i := range want {
		if s.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", s.events, want)
		}
	}
	if p.Message() != "Saved" {
		t.Fatalf("message = %q", p.Message())
	}
}

func TestTimerDismisses(t *testing.T) {
	p, s, clk := newTestPresenter()
	p.Show("Copied", 0)

	clk.Advance(DefaultDuration - time.Millisecond)
	if !p.Active() {
		t.Fatal("dismissed too early")
	}
	clk.Advance(time.Millisecond)
	if p.Active() || s.open != 0 {
		t.Fatalf("still visible after timer: active=%v open=%d", p.Active(), s.open)
	}
}

func TestStaleTimerIsIgnored(t *testing.T) {
	s := &fakeSurface{}
	clk := clock.NewManual(time.Unix(0, 0))
	var queued []func()
	poster := messages.PosterFunc(func(fn func()) bool {
		queued = append(queued, fn)
		return true
	})
	p := NewPresenter(s, nil, poster, clk)

	p.Show("first", time.Second)
	clk.Advance(time.Second)
	// The first timer already fired and is waiting in the queue when a new
	// confirmation replaces it.
	p.Show("second", time.Second)
	for _, fn := range queued {
		fn()
	}
	if p.Message() != "second" {
		t.Fatalf("stale timer dismissed the new confirmation")
	}
}

func TestDismissIsIdempotent(t *testing.T) {
	p, s, clk := newTestPresenter()
	p.Dismiss()

	p.Show("Copied", time.Second)
	p.Dismiss()
	p.Dismiss()

	if s.handles[0].closed != 1 {
		t.Fatalf("handle closed %d times", s.handles[0].closed)
	}
	if clk.Pending() != 0 {
		t.Fatal("timer should be cancelled")
	}
	clk.Advance(time.Hour)
	if s.handles[0].closed != 1 {
		t.Fatal("cancelled timer fired")
	}
}

func TestFlash(t *testing.T) {
	calls := 0
	p := NewPresenter(&fakeSurface{}, FlasherFunc(func() error {
		calls++
		return errors.New("unsupported")
	}), messages.Immediate{}, nil)
	p.Flash()
	if calls != 1 {
		t.Fatalf("flash calls = %d", calls)
	}

	NewPresenter(&fakeSurface{}, nil, messages.Immediate{}, nil).Flash()
}
