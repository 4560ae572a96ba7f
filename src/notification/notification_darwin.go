//go:build darwin

package notification

import "log/slog"

// ShowBlockingError shows a modal alert and returns when it is dismissed.
func ShowBlockingError(title, message string) {
	if out, err := commandRunner("osascript", "-e", alertScript(title, message)); err != nil {
		logFailure("alert", err, out)
	}
}

// Notify posts a user notification. Only a failure to launch the notifier
// is returned; the OS may still drop the notification for apps without a
// visible presence.
func Notify(title, message string) error {
	out, err := commandRunner("osascript", "-e", notificationScript(title, message))
	if err != nil {
		logFailure("notify", err, out)
		return launchError(err)
	}
	return nil
}

// ShowRemediation shows the permission alert and opens link when the user
// confirms.
func ShowRemediation(title, message, link string) {
	out, err := commandRunner("osascript", "-e", remediationScript(title, message))
	if err != nil {
		logFailure("remediation alert", err, out)
		return
	}
	if confirmed(out) {
		if err := Open(link); err != nil {
			slog.Warn("notification: failed to open settings", "link", link, "error", err)
		}
	}
}

// Open opens a file, folder or URL with its default handler.
func Open(target string) error {
	out, err := commandRunner("open", target)
	if err != nil {
		logFailure("open", err, out)
	}
	return err
}

// Reveal selects path in Finder.
func Reveal(path string) error {
	out, err := commandRunner("open", "-R", path)
	if err != nil {
		logFailure("reveal", err, out)
	}
	return err
}
