// Package notification surfaces alerts, OS notifications and Finder actions.
package notification

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ErrorTitle is the title of alerts raised for failed captures.
const ErrorTitle = "Screenshot Error"

// OpenSettingsButton is the remediation alert's confirm button.
const OpenSettingsButton = "Open System Settings"

// commandRunner runs a helper binary. Tests replace it.
var commandRunner = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// ShowError shows ShowBlockingError without blocking the caller.
func ShowError(title, message string) {
	go ShowBlockingError(title, message)
}

// launchError returns err unless it only reports a non-zero exit of a
// process that did start.
func launchError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func alertScript(title, message string) string {
	return fmt.Sprintf(`display alert "%s" message "%s" as critical`, escapeAppleScript(title), escapeAppleScript(message))
}

func notificationScript(title, message string) string {
	return fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
}

func remediationScript(title, message string) string {
	return fmt.Sprintf(`display alert "%s" message "%s" buttons {"Later", "%s"} default button 2`,
		escapeAppleScript(title), escapeAppleScript(message), OpenSettingsButton)
}

// confirmed reports whether osascript output says the confirm button was
// pressed.
func confirmed(out []byte) bool {
	return strings.Contains(string(out), "button returned:"+OpenSettingsButton)
}

func logFailure(what string, err error, out []byte) {
	slog.Warn("notification: "+what+" failed", "error", err, "output", strings.TrimSpace(string(out)))
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i > 0 {
		return path[:i]
	}
	return path
}
