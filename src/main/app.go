package main

import (
	"log/slog"
	"runtime"

	"screensnap/src/capture"
	"screensnap/src/clipboard"
	"screensnap/src/config"
	"screensnap/src/delivery"
	"screensnap/src/eventloop"
	"screensnap/src/feedback"
	"screensnap/src/gui"
	"screensnap/src/messages"
	"screensnap/src/notification"
	"screensnap/src/overlay"
	"screensnap/src/permission"
	"screensnap/src/runtimeinit"
	"screensnap/src/screenshot"
	"screensnap/src/session"
	"screensnap/src/singleinstance"
	"screensnap/src/sound"
)

// appDeps are the pieces that differ between the resident and a one-shot run.
type appDeps struct {
	surface   feedback.Surface
	tooltip   func(string)
	server    singleinstance.Server
	alert     func(title, message string)
	onOutcome func(session.Outcome)
}

type app struct {
	cfg       *config.Config
	loop      *eventloop.Loop
	gate      *permission.Gate
	presenter *feedback.Presenter
	pipeline  *delivery.Pipeline
}

// newApp wires the capture stack around a fresh event loop.
func newApp(cfg *config.Config, d appDeps) *app {
	var loop *eventloop.Loop
	poster := messages.PosterFunc(func(fn func()) bool { return loop.Post(fn) })

	if d.surface == nil {
		d.surface = logSurface()
	}
	prober := permission.NewSystemProber()
	gate := permission.NewGate(prober, permission.RemediatorFunc(remediate), poster, nil)
	presenter := feedback.NewPresenter(d.surface, feedback.FlasherFunc(flashScreen), poster, nil)
	pipeline := &delivery.Pipeline{
		Clipboard: clipboard.System{},
		Sound:     sound.NewSystemPlayer(),
		Confirm:   presenter,
		Notify:    notification.Notify,
	}

	loop = eventloop.New(eventloop.Deps{
		Config:    cfg,
		Executor:  runtimeinit.NewExecutor(cfg, prober),
		Selector:  overlay.NewSelector(poster),
		Gate:      gate,
		Pipeline:  pipeline,
		Feedback:  presenter,
		Server:    d.server,
		Alert:     d.alert,
		Tooltip:   d.tooltip,
		Open:      notification.Open,
		Reveal:    notification.Reveal,
		OnOutcome: d.onOutcome,
	})
	return &app{cfg: cfg, loop: loop, gate: gate, presenter: presenter, pipeline: pipeline}
}

// trigger is the hotkey and menu entry point.
func (a *app) trigger(src capture.Source, mode capture.Mode) func() {
	return func() {
		if !a.loop.Trigger(capture.Request{Source: src, Mode: mode}) {
			slog.Warn("main: trigger dropped, loop stopped", "source", src.String())
		}
	}
}

// applyPortRange loads settings for the single-instance handshake. A load
// failure leaves the defaults in place; Bootstrap reports it later.
func applyPortRange(opts config.LoadOptions) (int, int) {
	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		return singleinstance.PortRange()
	}
	start, end := singleinstance.SetPortRange(cfg.SingleInstancePortStart, cfg.SingleInstancePortEnd)
	slog.Debug("main: single-instance ports", "start", start, "end", end)
	return start, end
}

// requestHotkeyAccess asks for input accessibility when it is not granted yet.
// It reports whether a request was posted to the loop.
func requestHotkeyAccess(gate *permission.Gate, poster messages.Poster) bool {
	status := gate.Status(permission.Accessibility)
	if status == permission.Authorized {
		return false
	}
	slog.Info("main: hotkey needs accessibility", "status", status.String())
	return poster.Post(func() {
		gate.Request(permission.Accessibility, func(s permission.Status) {
			slog.Info("main: accessibility permission", "status", s.String())
		})
	})
}

func remediate(c permission.Capability, link, message string) {
	go notification.ShowRemediation("ScreenSnap", message, link)
}

// flashScreen covers every display. The native window animates on its own
// thread so the dispatcher is not held.
func flashScreen() error {
	bounds, err := screenshot.UnionBounds(screenshot.Displays())
	if err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		return gui.Flash(bounds)
	}
	go func() {
		if err := gui.Flash(bounds); err != nil {
			slog.Debug("main: flash failed", "error", err)
		}
	}()
	return nil
}

type quietHandle struct{}

func (quietHandle) Close() {}

// logSurface stands in for the menu-bar title when there is none.
func logSurface() feedback.Surface {
	return feedback.SurfaceFunc(func(message string) feedback.Handle {
		slog.Info("main: confirmation", "message", message)
		return quietHandle{}
	})
}
