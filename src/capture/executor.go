package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Backend performs the OS-level grab. Implementations must return once ctx
// is done and must not retain the returned image.
type Backend interface {
	Name() string
	Capture(ctx context.Context, t Target) Result
	// SupportsInteractive reports whether the backend can host selection itself.
	SupportsInteractive() bool
}

const (
	DefaultTimeout = 8 * time.Second
	MinTimeout     = 5 * time.Second
	MaxTimeout     = 10 * time.Second
)

// Options configure an Executor.
type Options struct {
	// Timeout bounds non-interactive OS calls. Zero means DefaultTimeout.
	Timeout time.Duration
	// Permitted is consulted before every OS call; false fails the capture
	// with KindPermissionDenied. Nil means always permitted.
	Permitted func() bool
}

// Executor admits at most one capture at a time and converts backend output
// into a single Result.
type Executor struct {
	backend   Backend
	timeout   time.Duration
	permitted func() bool
	inFlight  atomic.Bool
}

// NewExecutor wraps backend.
func NewExecutor(backend Backend, opts Options) *Executor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{backend: backend, timeout: timeout, permitted: opts.Permitted}
}

// Backend returns the wrapped backend.
func (e *Executor) Backend() Backend { return e.backend }

// Busy reports whether a capture is in flight.
func (e *Executor) Busy() bool { return e.inFlight.Load() }

// Start validates t and runs the capture on a new goroutine. Invalid regions
// and concurrent calls are rejected synchronously without touching the
// backend. Otherwise done is called exactly once, from the capture goroutine.
func (e *Executor) Start(ctx context.Context, t Target, done func(Result)) error {
	if err := e.admit(t); err != nil {
		return err
	}
	go func() { done(e.run(ctx, t)) }()
	return nil
}

// Capture is the blocking form of Start.
func (e *Executor) Capture(ctx context.Context, t Target) Result {
	if err := e.admit(t); err != nil {
		return Failed(err)
	}
	return e.run(ctx, t)
}

func (e *Executor) admit(t Target) error {
	if t.Interactive && !e.backend.SupportsInteractive() {
		return Errorf(KindGeneric, nil, "%s backend cannot host interactive selection", e.backend.Name())
	}
	if !t.Interactive && !t.FullScreen && t.Region.Empty() {
		slog.Error("capture: rejecting invalid region", "region", t.Region.String())
		return Errorf(KindInvalidRegion, nil, "invalid region dimensions: width=%d, height=%d", t.Region.Width, t.Region.Height)
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	return nil
}

func (e *Executor) run(ctx context.Context, t Target) Result {
	if e.permitted != nil && !e.permitted() {
		e.inFlight.Store(false)
		return Failed(Errorf(KindPermissionDenied, nil, "screen recording permission not granted"))
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	// The interactive utility hosts the user's selection, which is unbounded.
	if !t.Interactive {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	started := time.Now()
	ch := make(chan Result, 1)
	go func() {
		// The slot frees only when the backend actually returns.
		res := e.backend.Capture(callCtx, t)
		e.inFlight.Store(false)
		ch <- res
	}()

	select {
	case res := <-ch:
		if ctx.Err() != nil {
			slog.Info("capture: request cancelled, discarding result", "backend", e.backend.Name())
			return Cancelled()
		}
		if res.Status == StatusCancelled && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return e.timedOut(t)
		}
		slog.Info("capture: finished", "backend", e.backend.Name(), "target", t.String(), "status", res.Status.String(), "elapsed", time.Since(started))
		return res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			slog.Info("capture: request cancelled while waiting", "backend", e.backend.Name())
			return Cancelled()
		}
		return e.timedOut(t)
	}
}

func (e *Executor) timedOut(t Target) Result {
	slog.Error("capture: timed out", "backend", e.backend.Name(), "target", t.String(), "timeout", e.timeout)
	return Failed(Errorf(KindTimeout, context.DeadlineExceeded, "capture did not finish within %s", e.timeout))
}

// ClampTimeout keeps a configured timeout inside [MinTimeout, MaxTimeout].
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}
