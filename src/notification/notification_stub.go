//go:build !darwin && !windows

package notification

import "log/slog"

// ShowBlockingError logs the error; there is no modal surface here.
func ShowBlockingError(title, message string) {
	slog.Error("notification: "+title, "message", message)
}

// Notify logs the notification.
func Notify(title, message string) error {
	slog.Info("notification: "+title, "message", message)
	return nil
}

// ShowRemediation logs the remediation steps.
func ShowRemediation(title, message, link string) {
	slog.Warn("notification: "+title, "message", message, "link", link)
}

// Open opens target with xdg-open.
func Open(target string) error {
	out, err := commandRunner("xdg-open", target)
	if err != nil {
		logFailure("open", err, out)
	}
	return err
}

// Reveal opens the folder containing path.
func Reveal(path string) error {
	return Open(dirOf(path))
}
