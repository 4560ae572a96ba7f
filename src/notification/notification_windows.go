//go:build windows

package notification

import (
	"log/slog"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

func messageBox(title, message string, flags uint32) int32 {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		return 0
	}
	return win.MessageBox(0, m, t, flags|win.MB_TOPMOST|win.MB_SETFOREGROUND)
}

// ShowBlockingError shows a modal message box and returns when it is dismissed.
func ShowBlockingError(title, message string) {
	messageBox(title, message, win.MB_OK|win.MB_ICONERROR)
}

// Notify has no toast backend on Windows; the confirmation pill covers it.
func Notify(title, message string) error {
	slog.Info("notification: "+title, "message", message)
	return nil
}

// ShowRemediation shows the permission message box and opens link on OK.
func ShowRemediation(title, message, link string) {
	if messageBox(title, message, win.MB_OKCANCEL|win.MB_ICONWARNING) == win.IDOK {
		_ = Open(link)
	}
}

// Open opens a file, folder or URL with its default handler.
func Open(target string) error {
	out, err := commandRunner("explorer", target)
	if err = launchError(err); err != nil {
		logFailure("open", err, out)
	}
	return err
}

// Reveal selects path in Explorer.
func Reveal(path string) error {
	out, err := commandRunner("explorer", "/select,"+path)
	if err = launchError(err); err != nil {
		logFailure("reveal", err, out)
	}
	return err
}
