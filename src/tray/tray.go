// Package tray owns the menu-bar item: the quick-action menu, the tooltip and
// the title used as the confirmation pill.
package tray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"screensnap/src/feedback"
)

// Actions are the menu callbacks. They run on the systray click goroutine and
// must only post to the event loop. Nil actions hide their item.
type Actions struct {
	CaptureArea            func()
	CaptureFullScreen      func()
	OpenSaveFolder         func()
	RevealLastCapture      func()
	ResetPermissionPrompts func()
	Quit                   func()
}

type Config struct {
	Title   string
	Tooltip string
	Actions Actions
	// OnExit runs after the systray loop ends.
	OnExit func()
}

type menuItem struct {
	title   string
	tooltip string
	action  func()
	// separator is drawn above the item.
	separator bool
}

func (c Config) items() []menuItem {
	all := []menuItem{
		{title: "Capture Area", tooltip: "Drag to capture a region", action: c.Actions.CaptureArea},
		{title: "Capture Full Screen", tooltip: "Capture the main display", action: c.Actions.CaptureFullScreen},
		{title: "Open Save Folder", tooltip: "Show the capture folder", action: c.Actions.OpenSaveFolder, separator: true},
		{title: "Reveal Last Capture", tooltip: "Select the last saved capture", action: c.Actions.RevealLastCapture},
		{title: "Reset Permission Prompts", tooltip: "Allow the permission prompts to show again", action: c.Actions.ResetPermissionPrompts, separator: true},
		{title: "Quit", tooltip: "Quit ScreenSnap", action: c.Actions.Quit, separator: true},
	}
	var out []menuItem
	for _, it := range all {
		if it.action != nil {
			out = append(out, it)
		}
	}
	return out
}

// Tray is safe for concurrent use. Title and tooltip changes made before the
// systray is ready are applied once it is.
type Tray struct {
	cfg Config

	mu         sync.Mutex
	ready      bool
	title      string
	tooltip    string
	pill       uint64
	setTitle   func(string)
	setTooltip func(string)
}

func New(cfg Config) *Tray {
	return &Tray{
		cfg:        cfg,
		title:      cfg.Title,
		tooltip:    cfg.Tooltip,
		setTitle:   systray.SetTitle,
		setTooltip: systray.SetTooltip,
	}
}

// Run blocks in the systray main loop. On macOS it must be called from the
// main goroutine with the OS thread locked.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit ends the systray loop.
func (t *Tray) Quit() { systray.Quit() }

func (t *Tray) onReady() {
	systray.SetIcon(Icon())

	t.mu.Lock()
	t.ready = true
	t.setTitle(t.title)
	t.setTooltip(t.tooltip)
	t.mu.Unlock()

	for _, it := range t.cfg.items() {
		if it.separator {
			systray.AddSeparator()
		}
		mi := systray.AddMenuItem(it.title, it.tooltip)
		go t.watch(mi, it)
	}
	slog.Info("tray: ready", "items", len(t.cfg.items()))
}

func (t *Tray) watch(mi *systray.MenuItem, it menuItem) {
	for range mi.ClickedCh {
		slog.Debug("tray: menu clicked", "item", it.title)
		it.action()
	}
}

func (t *Tray) onExit() {
	slog.Info("tray: exited")
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

// SetTooltip replaces the tooltip.
func (t *Tray) SetTooltip(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tooltip = text
	if t.ready {
		t.setTooltip(text)
	}
}

// Title reports the current menu-bar title.
func (t *Tray) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *Tray) applyTitle(title string) {
	t.title = title
	if t.ready {
		t.setTitle(title)
	}
}

// Open shows message as the menu-bar title. Closing the handle restores the
// title that was showing before, unless another pill replaced it meanwhile.
func (t *Tray) Open(message string) feedback.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pill++
	h := &pill{tray: t, id: t.pill, previous: t.title}
	t.applyTitle(message)
	return h
}

var _ feedback.Surface = (*Tray)(nil)

type pill struct {
	tray     *Tray
	id       uint64
	previous string
	once     sync.Once
}

func (p *pill) Close() {
	p.once.Do(func() {
		t := p.tray
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.pill != p.id {
			return
		}
		t.applyTitle(p.previous)
	})
}
