// Package session drives one capture request from trigger to delivery.
// A Session is owned by the dispatcher goroutine: every callback it
// receives re-enters through the poster before touching its state.
package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"screensnap/src/capture"
	"screensnap/src/delivery"
	"screensnap/src/messages"
	"screensnap/src/overlay"
	"screensnap/src/selection"
)

var ErrSelectionCancelled = errors.New("selection cancelled")

// Phase is where a session currently is.
type Phase int

const (
	PhaseSelecting Phase = iota
	PhaseCapturing
	PhaseDelivering
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSelecting:
		return "selecting"
	case PhaseCapturing:
		return "capturing"
	case PhaseDelivering:
		return "delivering"
	}
	return "done"
}

// DeliverFunc applies the post-capture side effects.
type DeliverFunc func(img *image.RGBA) delivery.Outcome

type Options struct {
	Request  capture.Request
	Selector overlay.Selector
	Executor *capture.Executor
	Deliver  DeliverFunc
	Poster   messages.Poster
	// Interactive lets the capture backend host region selection instead
	// of the overlay.
	Interactive bool
}

// Outcome is reported exactly once per session.
type Outcome struct {
	ID        uint64
	Request   capture.Request
	Selection selection.Outcome
	Result    capture.Result
	// Size is the captured image size.
	Size image.Point
	// Delivery is nil unless an image was captured.
	Delivery *delivery.Outcome
	Elapsed  time.Duration
}

// Cancelled reports a silent no-op outcome.
func (o Outcome) Cancelled() bool { return o.Result.Status == capture.StatusCancelled }

// Err is the failure, or nil.
func (o Outcome) Err() error {
	if o.Result.Status == capture.StatusFailed {
		return o.Result.Err
	}
	return nil
}

var nextID atomic.Uint64

type Session struct {
	id      uint64
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	phase   Phase
	started time.Time
	out     Outcome
	done    func(Outcome)
}

// Start begins the session and returns immediately. done runs on the
// poster's goroutine once the request is cancelled, failed or delivered.
func Start(ctx context.Context, opts Options, done func(Outcome)) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      nextID.Add(1),
		opts:    opts,
		ctx:     sctx,
		cancel:  cancel,
		started: time.Now(),
		done:    done,
	}
	s.out = Outcome{ID: s.id, Request: opts.Request}
	slog.Info("session: start", "id", s.id, "request", opts.Request.String())

	switch {
	case opts.Request.Mode == capture.ModeFullScreen:
		s.capture(capture.FullScreenTarget())
	case opts.Interactive:
		s.capture(capture.InteractiveTarget())
	default:
		s.selectRegion()
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() uint64 { return s.id }

// Phase reports the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Cancel abandons the session. An overlay is torn down and an in-flight
// capture result is discarded; done still runs once.
func (s *Session) Cancel() {
	slog.Info("session: cancel requested", "id", s.id, "phase", s.phase.String())
	s.cancel()
}

func (s *Session) selectRegion() {
	s.phase = PhaseSelecting
	if s.opts.Selector == nil {
		s.fallbackOrFail(overlay.ErrUnsupported)
		return
	}
	err := s.opts.Selector.Begin(s.ctx, s.onSelection)
	if err != nil {
		s.fallbackOrFail(err)
	}
}

// fallbackOrFail hands selection to the backend when it can host it.
func (s *Session) fallbackOrFail(err error) {
	if s.opts.Executor != nil && s.opts.Executor.Backend().SupportsInteractive() {
		slog.Info("session: overlay unavailable, using backend selection", "id", s.id, "error", err)
		s.capture(capture.InteractiveTarget())
		return
	}
	slog.Error("session: cannot start region selection", "id", s.id, "error", err)
	s.finish(capture.Failed(capture.Errorf(capture.KindGeneric, err, "failed to start region selection")))
}

func (s *Session) onSelection(o selection.Outcome) {
	if s.phase != PhaseSelecting {
		return
	}
	s.out.Selection = o
	if !o.Completed {
		slog.Info("session: selection cancelled", "id", s.id, "reason", o.Reason.String())
		s.finish(capture.Cancelled())
		return
	}
	if s.ctx.Err() != nil {
		s.finish(capture.Cancelled())
		return
	}
	slog.Info("session: region selected", "id", s.id, "region", o.Region.String())
	s.capture(capture.RegionTarget(o.Region))
}

func (s *Session) capture(t capture.Target) {
	s.phase = PhaseCapturing
	err := s.opts.Executor.Start(s.ctx, t, func(res capture.Result) {
		if !s.opts.Poster.Post(func() { s.onResult(res) }) {
			slog.Warn("session: dispatcher stopped, dropping capture result", "id", s.id)
		}
	})
	if err != nil {
		s.finish(capture.Failed(err))
	}
}

func (s *Session) onResult(res capture.Result) {
	if s.phase != PhaseCapturing {
		return
	}
	if res.Status == capture.StatusImage && s.ctx.Err() != nil {
		res = capture.Cancelled()
	}
	if res.Status != capture.StatusImage {
		s.finish(res)
		return
	}
	s.phase = PhaseDelivering
	w, h := res.Size()
	s.out.Size = image.Pt(w, h)
	if s.opts.Deliver != nil {
		d := s.opts.Deliver(res.Image)
		s.out.Delivery = &d
	}
	// The pixel buffer now belongs to the deliverables.
	res.Image = nil
	s.finish(res)
}

func (s *Session) finish(res capture.Result) {
	if s.phase == PhaseDone {
		return
	}
	s.phase = PhaseDone
	s.cancel()
	s.out.Result = res
	s.out.Elapsed = time.Since(s.started)
	slog.Info("session: done", "id", s.id, "status", res.Status.String(), "error", res.Err, "elapsed", s.out.Elapsed)
	if s.done != nil {
		s.done(s.out)
	}
}
