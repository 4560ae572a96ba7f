// Package permission tracks the OS capabilities the capture pipeline needs
// and enforces a bounded number of OS prompts per capability.
package permission

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screensnap/src/clock"
	"screensnap/src/messages"
)

// Capability is an OS-level permission.
type Capability int

const (
	ScreenRecording Capability = iota
	Accessibility
	Notifications
)

// All lists every capability in display order.
var All = []Capability{ScreenRecording, Accessibility, Notifications}

func (c Capability) String() string {
	switch c {
	case ScreenRecording:
		return "screen-recording"
	case Accessibility:
		return "accessibility"
	case Notifications:
		return "notifications"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// ParseCapability accepts the names printed by String.
func ParseCapability(s string) (Capability, error) {
	for _, c := range All {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// Status of a capability.
type Status int

const (
	NotDetermined Status = iota
	Authorized
	Denied
	Restricted
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not-determined"
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

const (
	// MaxRetries is how many OS prompts a capability gets per session.
	MaxRetries = 3
	// RecheckDelay is the wait between a prompt and the status re-check.
	RecheckDelay = 1 * time.Second
)

const settingsBase = "x-apple.systempreferences:com.apple.preference.security?Privacy"

// SettingsLink is the deep link to the settings pane for c.
func SettingsLink(c Capability) string {
	switch c {
	case ScreenRecording:
		return settingsBase + "_ScreenCapture"
	case Accessibility:
		return settingsBase + "_Accessibility"
	case Notifications:
		return "x-apple.systempreferences:com.apple.preference.notifications"
	}
	return settingsBase
}

// RemediationMessage is the manual-remediation instruction for c.
func RemediationMessage(c Capability) string {
	var what string
	switch c {
	case ScreenRecording:
		what = "Screen Recording"
	case Accessibility:
		what = "Accessibility"
	default:
		what = "Notifications"
	}
	return fmt.Sprintf("ScreenSnap still lacks %s access after %d attempts.\n\nOpen System Settings > Privacy & Security > %s, enable ScreenSnap, then restart the app.", what, MaxRetries, what)
}

// Prober talks to the OS.
type Prober interface {
	Status(c Capability) Status
	// Prompt issues the OS permission prompt. Status may lag behind it.
	Prompt(c Capability) error
}

// Remediator surfaces the manual-remediation path once prompts are exhausted.
type Remediator interface {
	Remediate(c Capability, link, message string)
}

// RemediatorFunc adapts a function to Remediator.
type RemediatorFunc func(c Capability, link, message string)

func (f RemediatorFunc) Remediate(c Capability, link, message string) { f(c, link, message) }

// Snapshot is a copy of the gate's state.
type Snapshot struct {
	Statuses map[Capability]Status
	Retries  map[Capability]int
}

// Lines renders the snapshot for logs and the CLI.
func (s Snapshot) Lines() []string {
	var out []string
	for _, c := range All {
		out = append(out, fmt.Sprintf("%-16s %-15s retries=%d/%d", c, s.Statuses[c], s.Retries[c], MaxRetries))
	}
	return out
}

// Gate owns the permission state for the process. It is not safe for
// concurrent use: call it from the event loop goroutine only. Delayed
// re-checks re-enter through the poster.
type Gate struct {
	prober     Prober
	remediator Remediator
	poster     messages.Poster
	clock      clock.Clock
	retries    map[Capability]int
}

// NewGate builds a gate. A nil clock uses the wall clock.
func NewGate(prober Prober, remediator Remediator, poster messages.Poster, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Gate{
		prober:     prober,
		remediator: remediator,
		poster:     poster,
		clock:      clk,
		retries:    make(map[Capability]int),
	}
}

// Status queries the OS.
func (g *Gate) Status(c Capability) Status { return g.prober.Status(c) }

// Authorized is shorthand for Status(c) == Authorized.
func (g *Gate) Authorized(c Capability) bool { return g.Status(c) == Authorized }

// Request asks for c. Already-authorized capabilities complete immediately.
// Otherwise the OS is prompted and completion receives the status re-checked
// after RecheckDelay. Once MaxRetries prompts were issued, or when the
// capability is restricted, the remediation path is shown instead and
// completion receives the current status straight away.
func (g *Gate) Request(c Capability, completion func(Status)) {
	if completion == nil {
		completion = func(Status) {}
	}
	s := g.Status(c)
	if s == Authorized {
		completion(s)
		return
	}
	if s == Restricted || g.retries[c] >= MaxRetries {
		slog.Warn("permission: prompts exhausted, showing remediation", "capability", c.String(), "status", s.String(), "retries", g.retries[c])
		if g.remediator != nil {
			g.remediator.Remediate(c, SettingsLink(c), RemediationMessage(c))
		}
		completion(s)
		return
	}

	g.retries[c]++
	slog.Info("permission: prompting", "capability", c.String(), "attempt", g.retries[c], "max", MaxRetries)
	if err := g.prober.Prompt(c); err != nil {
		slog.Warn("permission: prompt failed", "capability", c.String(), "error", err)
	}
	g.clock.AfterFunc(RecheckDelay, func() {
		g.poster.Post(func() {
			s := g.Status(c)
			slog.Info("permission: re-checked", "capability", c.String(), "status", s.String())
			completion(s)
		})
	})
}

// Retries reports how many prompts were issued for c.
func (g *Gate) Retries(c Capability) int { return g.retries[c] }

// ResetRetryCounters clears every counter. It is only wired to explicit
// user actions.
func (g *Gate) ResetRetryCounters() {
	for c := range g.retries {
		delete(g.retries, c)
	}
	slog.Info("permission: retry counters reset")
}

// Snapshot refreshes and copies the gate's state.
func (g *Gate) Snapshot() Snapshot {
	snap := Snapshot{Statuses: make(map[Capability]Status), Retries: make(map[Capability]int)}
	for _, c := range All {
		snap.Statuses[c] = g.Status(c)
		snap.Retries[c] = g.retries[c]
	}
	return snap
}

// Diagnostics logs the snapshot plus hints about why prompts may not show.
func (g *Gate) Diagnostics(accessoryMode bool) []string {
	lines := g.Snapshot().Lines()
	if accessoryMode {
		lines = append(lines, "running as a background (accessory) process: the OS may suppress notifications")
	}
	for _, l := range lines {
		slog.Info("permission: " + l)
	}
	return lines
}
