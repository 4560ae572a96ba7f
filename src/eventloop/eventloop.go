// Package eventloop is the dispatcher: the one goroutine that owns session
// state, feedback, delivery and the permission gate. Everything else posts
// to it.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"

	"screensnap/src/capture"
	"screensnap/src/config"
	"screensnap/src/delivery"
	"screensnap/src/feedback"
	"screensnap/src/messages"
	"screensnap/src/notification"
	"screensnap/src/overlay"
	"screensnap/src/permission"
	"screensnap/src/session"
	"screensnap/src/singleinstance"
)

const (
	BusyMessage        = "Capture in progress"
	DefaultTooltip     = "ScreenSnap"
	interruptedTooltip = "ScreenSnap: capture interrupted"
	queueSize          = 64
)

// Deps are the collaborators the loop drives.
type Deps struct {
	Config   *config.Config
	Executor *capture.Executor
	Selector overlay.Selector
	Gate     *permission.Gate
	Pipeline *delivery.Pipeline
	Feedback *feedback.Presenter
	// Server is an already started single-instance server, or nil.
	Server singleinstance.Server
	// Alert raises the modal error alert without blocking the loop.
	Alert func(title, message string)
	// Tooltip updates the menu-bar tooltip.
	Tooltip func(text string)
	// Open and Reveal back the Finder quick actions.
	Open   func(path string) error
	Reveal func(path string) error
	// OnOutcome observes every finished session.
	OnOutcome func(session.Outcome)
}

// Loop is the single-threaded coordinator for capture requests.
type Loop struct {
	deps     Deps
	queue    chan messages.Message
	stopped  chan struct{}
	stopOnce sync.Once

	ctx            context.Context
	busy           bool
	active         *session.Session
	defaultTooltip string
}

// New creates a loop. Call Run to start dispatching; Post and Trigger may be
// used before that and are queued.
func New(deps Deps) *Loop {
	if deps.Config == nil {
		deps.Config = &config.Config{}
	}
	if deps.Alert == nil {
		deps.Alert = notification.ShowError
	}
	return &Loop{
		deps:           deps,
		queue:          make(chan messages.Message, queueSize),
		stopped:        make(chan struct{}),
		ctx:            context.Background(),
		defaultTooltip: DefaultTooltip,
	}
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

// Post queues fn for the loop goroutine. It returns false once the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	return l.send(messages.Task{Fn: fn})
}

// Trigger requests a capture from any goroutine. A request that arrives
// while a session is active is rejected with the busy pill.
func (l *Loop) Trigger(req capture.Request) bool {
	return l.send(messages.CaptureRequested{Request: req})
}

// Submit is Trigger with an admission callback. reply runs on the loop
// goroutine with nil once the session started, or the rejection.
func (l *Loop) Submit(req capture.Request, reply func(error)) bool {
	return l.send(messages.CaptureRequested{Request: req, Reply: reply})
}

func (l *Loop) send(m messages.Message) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.queue <- m:
		return true
	case <-l.stopped:
		return false
	}
}

// Run dispatches until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.ctx = ctx
	defer l.stop()

	conns := make(chan singleinstance.Conn, 4)
	if l.deps.Server != nil {
		if p := l.deps.Server.Port(); p > 0 {
			slog.Info("eventloop: resident listening", "port", p)
		}
		go func() {
			for {
				conn, err := l.deps.Server.Next(ctx)
				if err != nil {
					return
				}
				select {
				case conns <- conn:
				case <-ctx.Done():
					conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-l.queue:
			l.dispatch(m)
		case conn := <-conns:
			l.safely("conn", func() { l.handleConn(conn) })
		}
	}
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		if l.active != nil {
			l.active.Cancel()
		}
		if l.deps.Feedback != nil {
			l.deps.Feedback.Dismiss()
		}
	})
}

func (l *Loop) dispatch(m messages.Message) {
	switch msg := m.(type) {
	case messages.Task:
		l.safely(msg.Type(), msg.Fn)
	case messages.CaptureRequested:
		l.safely(msg.Type(), func() {
			err := l.begin(msg.Request)
			if msg.Reply != nil {
				msg.Reply(err)
			}
		})
	default:
		slog.Warn("eventloop: unknown message", "type", m.Type())
	}
}

// safely runs fn and turns a panic into a log entry so one bad task cannot
// take the loop down.
func (l *Loop) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventloop: PANIC in task", "task", what, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Busy reports whether a session is active. Loop goroutine only.
func (l *Loop) Busy() bool { return l.busy }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		l.tooltip("ScreenSnap: capturing...")
	} else {
		l.tooltip(l.defaultTooltip)
	}
}

func (l *Loop) tooltip(text string) {
	if l.deps.Tooltip != nil {
		l.deps.Tooltip(text)
	}
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	defer conn.Close()
	if conn.Request().Kind == singleinstance.RequestResetPermissions {
		l.resetPermissions()
		_ = conn.Accept()
		return
	}
	req := capture.Request{Source: capture.SourceIntent, Mode: conn.Request().Mode}
	if err := l.begin(req); err != nil {
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.Accept()
}

// begin starts a session for req unless one is already active.
func (l *Loop) begin(req capture.Request) error {
	if l.busy {
		slog.Info("eventloop: busy, rejecting request", "request", req.String())
		l.showBusy()
		return capture.ErrInProgress
	}
	if l.deps.Executor == nil {
		return errors.New("no capture backend configured")
	}
	if l.deps.Feedback != nil {
		l.deps.Feedback.Dismiss()
	}

	l.setBusy(true)
	s := session.Start(l.ctx, session.Options{
		Request:     req,
		Selector:    l.deps.Selector,
		Executor:    l.deps.Executor,
		Deliver:     l.deliver,
		Poster:      l,
		Interactive: l.deps.Executor.Backend().SupportsInteractive(),
	}, l.onSessionDone)
	// The session may already have finished synchronously.
	if l.busy {
		l.active = s
	}
	return nil
}

func (l *Loop) showBusy() {
	if l.deps.Feedback != nil {
		l.deps.Feedback.Show(BusyMessage, feedback.DefaultDuration)
	}
}

func (l *Loop) deliver(img *image.RGBA) delivery.Outcome {
	if l.deps.Pipeline == nil {
		return delivery.Outcome{}
	}
	return l.deps.Pipeline.Deliver(img, DeliveryOptions(l.deps.Config))
}

// DeliveryOptions maps configuration onto pipeline switches.
func DeliveryOptions(c *config.Config) delivery.Options {
	return delivery.Options{
		PlaySound:        c.PlaySound,
		CopyToClipboard:  c.CopyToClipboard,
		SaveToFile:       c.SaveToFile,
		ShowNotification: c.ShowNotification,
		Flash:            c.Flash,
		SaveDir:          c.SaveDir,
		Format:           c.ImageFormat,
	}
}

func (l *Loop) onSessionDone(out session.Outcome) {
	l.active = nil
	l.setBusy(false)
	defer func() {
		if l.deps.OnOutcome != nil {
			l.deps.OnOutcome(out)
		}
	}()

	switch out.Result.Status {
	case capture.StatusCancelled:
		slog.Info("handleResult: cancelled", "session", out.ID, "reason", out.Selection.Reason.String())
	case capture.StatusImage:
		if out.Delivery != nil {
			if failed := out.Delivery.Failures(); len(failed) > 0 {
				slog.Warn("handleResult: delivery steps failed", "session", out.ID, "steps", failed)
			}
		}
	case capture.StatusFailed:
		l.routeError(out.Err())
	}
}

// routeError applies the per-kind handling of a failed capture.
func (l *Loop) routeError(err error) {
	kind := capture.KindOf(err)
	slog.Error("handleResult: capture failed", "kind", kind.String(), "error", err)
	switch kind {
	case capture.KindPermissionDenied:
		if l.deps.Gate == nil {
			l.deps.Alert(notification.ErrorTitle, err.Error())
			return
		}
		l.deps.Gate.Request(permission.ScreenRecording, func(s permission.Status) {
			slog.Info("handleResult: screen recording permission", "status", s.String())
			if s == permission.Authorized {
				l.tooltip("ScreenSnap: permission granted, capture again")
			}
		})
	case capture.KindInvalidRegion:
		slog.Error("handleResult: selector produced an invalid region", "error", err)
	case capture.KindStreamInterrupted:
		l.tooltip(interruptedTooltip)
	case capture.KindBusy:
		l.showBusy()
	default:
		l.deps.Alert(notification.ErrorTitle, err.Error())
	}
}

// OpenSaveFolder opens the resolved save directory. Safe from any goroutine.
func (l *Loop) OpenSaveFolder() {
	l.Post(func() {
		dir := delivery.ResolveSaveDir(l.deps.Config.SaveDir)
		if l.deps.Open == nil {
			return
		}
		if err := l.deps.Open(dir); err != nil {
			slog.Warn("eventloop: open save folder failed", "dir", dir, "error", err)
		}
	})
}

// RevealLastCapture selects the last saved capture. Safe from any goroutine.
func (l *Loop) RevealLastCapture() {
	l.Post(func() {
		if l.deps.Pipeline == nil || l.deps.Reveal == nil {
			return
		}
		path := l.deps.Pipeline.LastPath()
		if path == "" {
			if l.deps.Feedback != nil {
				l.deps.Feedback.Show("No capture yet", feedback.DefaultDuration)
			}
			return
		}
		if err := l.deps.Reveal(path); err != nil {
			slog.Warn("eventloop: reveal failed", "path", path, "error", err)
		}
	})
}

// ResetPermissionPrompts clears the gate's retry counters. Safe from any
// goroutine.
func (l *Loop) ResetPermissionPrompts() {
	l.Post(l.resetPermissions)
}

func (l *Loop) resetPermissions() {
	if l.deps.Gate != nil {
		l.deps.Gate.ResetRetryCounters()
		l.tooltip(fmt.Sprintf("%s: permission prompts reset", l.defaultTooltip))
	}
}
