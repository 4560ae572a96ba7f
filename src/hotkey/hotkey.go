// Package hotkey parses the configured key combination and listens for it
// system-wide.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Alt
	Shift
	Cmd
)

// modifierOrder is the conventional display order.
var modifierOrder = []struct {
	mod   Modifier
	name  string
	glyph string
}{
	{Ctrl, "ctrl", "⌃"},
	{Alt, "alt", "⌥"},
	{Shift, "shift", "⇧"},
	{Cmd, "cmd", "⌘"},
}

// Combo is a parsed hotkey: a modifier set plus one key.
type Combo struct {
	Modifiers Modifier
	Key       string
}

// Parse converts a string like "Cmd+Shift+5" into a Combo. Modifier aliases
// (control, option, command, win, super) and glyphs are accepted.
func Parse(s string) (Combo, error) {
	var c Combo
	for _, part := range strings.Split(s, "+") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if m, ok := parseModifier(part); ok {
			c.Modifiers |= m
			continue
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("hotkey %q: more than one non-modifier key", s)
		}
		c.Key = part
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	if len(windowsKeycodes[c.Key]) == 0 && len(darwinKeycodes[c.Key]) == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, c.Key)
	}
	return c, nil
}

func parseModifier(part string) (Modifier, bool) {
	switch part {
	case "ctrl", "control", "⌃":
		return Ctrl, true
	case "alt", "option", "opt", "⌥":
		return Alt, true
	case "shift", "⇧":
		return Shift, true
	case "cmd", "command", "win", "super", "meta", "⌘":
		return Cmd, true
	}
	return 0, false
}

// String renders the combo in config syntax, e.g. "Cmd+Shift+5".
func (c Combo) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if c.Modifiers&m.mod != 0 {
			parts = append(parts, strings.ToUpper(m.name[:1])+m.name[1:])
		}
	}
	return strings.Join(append(parts, displayKey(c.Key)), "+")
}

// Format renders the combo with menu glyphs, e.g. "⇧⌘5".
func Format(c Combo) string {
	var b strings.Builder
	for _, m := range modifierOrder {
		if c.Modifiers&m.mod != 0 {
			b.WriteString(m.glyph)
		}
	}
	b.WriteString(displayKey(c.Key))
	return b.String()
}

func displayKey(k string) string {
	if len(k) == 1 {
		return strings.ToUpper(k)
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Matcher tracks key state and reports when the whole combo is held.
type Matcher struct {
	mu        sync.Mutex
	keyStates []keyState
}

// NewMatcher builds a matcher using the rawcode table for goos.
func NewMatcher(c Combo, goos string) (*Matcher, error) {
	m := &Matcher{}
	names := []string{}
	for _, mod := range modifierOrder {
		if c.Modifiers&mod.mod != 0 {
			names = append(names, mod.name)
		}
	}
	names = append(names, c.Key)
	for _, n := range names {
		codes := rawcodes(goos, n)
		if len(codes) == 0 {
			return nil, fmt.Errorf("cannot map key %q to rawcodes on %s", n, goos)
		}
		m.keyStates = append(m.keyStates, keyState{name: n, rawcodes: codes})
	}
	return m, nil
}

// KeyDown records a press and reports whether the combo just completed.
// State resets after a match so holding the keys fires once.
func (m *Matcher) KeyDown(rawcode uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.keyStates {
		if matches(m.keyStates[i].rawcodes, rawcode) {
			m.keyStates[i].pressed = true
		}
	}
	for i := range m.keyStates {
		if !m.keyStates[i].pressed {
			return false
		}
	}
	for i := range m.keyStates {
		m.keyStates[i].pressed = false
	}
	return true
}

// KeyUp records a release.
func (m *Matcher) KeyUp(rawcode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.keyStates {
		if matches(m.keyStates[i].rawcodes, rawcode) {
			m.keyStates[i].pressed = false
		}
	}
}

func matches(codes []uint16, rawcode uint16) bool {
	for _, c := range codes {
		if c == rawcode {
			return true
		}
	}
	return false
}

var hookMu sync.Mutex

// Listen installs the global hook and calls callback on the hook goroutine
// each time the combo is pressed, until ctx is done.
func Listen(ctx context.Context, combo Combo, callback func()) error {
	m, err := NewMatcher(combo, runtime.GOOS)
	if err != nil {
		return err
	}
	hookMu.Lock()
	evChan := gohook.Start()
	hookMu.Unlock()
	slog.Info("hotkey: listening", "hotkey", combo.String())

	go func() {
		<-ctx.Done()
		hookMu.Lock()
		gohook.End()
		hookMu.Unlock()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("hotkey: PANIC in hook goroutine", "panic", r)
			}
		}()
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				if m.KeyDown(ev.Rawcode) {
					slog.Info("hotkey: combination detected", "hotkey", combo.String())
					if callback != nil {
						callback()
					}
				}
			case gohook.KeyUp:
				m.KeyUp(ev.Rawcode)
			}
		}
		slog.Info("hotkey: event channel closed")
	}()
	return nil
}
