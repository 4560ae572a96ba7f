package capture

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"screensnap/src/screenshot"
)

// Source identifies what triggered a capture request.
type Source int

const (
	SourceHotkey Source = iota
	SourceMenu
	SourceIntent
)

func (s Source) String() string {
	switch s {
	case SourceHotkey:
		return "hotkey"
	case SourceMenu:
		return "menu"
	case SourceIntent:
		return "shortcut-intent"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Mode is the requested capture mode.
type Mode int

const (
	ModeRegion Mode = iota
	ModeFullScreen
)

func (m Mode) String() string {
	if m == ModeFullScreen {
		return "full-screen"
	}
	return "region"
}

// ParseMode accepts the intent spellings used by the CLI and the
// single-instance protocol.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "area", "region", "":
		return ModeRegion, nil
	case "full", "fullscreen", "full-screen", "screen":
		return ModeFullScreen, nil
	}
	return ModeRegion, fmt.Errorf("unknown capture mode %q", s)
}

// Request is created at trigger time and consumed once.
type Request struct {
	Source Source
	Mode   Mode
}

func (r Request) String() string { return r.Source.String() + "/" + r.Mode.String() }

// Target is what a backend is asked to grab.
type Target struct {
	Region     screenshot.Region
	FullScreen bool
	// Interactive asks the backend to host the selection itself. Only the
	// out-of-process utility supports it.
	Interactive bool
}

func RegionTarget(r screenshot.Region) Target { return Target{Region: r} }

func FullScreenTarget() Target { return Target{FullScreen: true} }

func InteractiveTarget() Target { return Target{Interactive: true} }

func (t Target) String() string {
	switch {
	case t.Interactive:
		return "interactive"
	case t.FullScreen:
		return "full-screen"
	}
	return t.Region.String()
}

// Kind classifies capture and delivery failures.
type Kind int

const (
	KindGeneric Kind = iota
	KindPermissionDenied
	KindStreamInterrupted
	KindInvalidRegion
	KindProcessLaunch
	KindEncode
	KindWrite
	KindBusy
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindPermissionDenied:
		return "permission-denied"
	case KindStreamInterrupted:
		return "stream-interrupted"
	case KindInvalidRegion:
		return "invalid-region"
	case KindProcessLaunch:
		return "process-launch-failure"
	case KindEncode:
		return "encode-failure"
	case KindWrite:
		return "write-failure"
	case KindBusy:
		return "busy"
	case KindTimeout:
		return "timeout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed capture failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil
}

var (
	ErrInProgress    = &Error{Kind: KindBusy, Msg: "capture already in progress"}
	ErrInvalidRegion = &Error{Kind: KindInvalidRegion, Msg: "invalid region"}
)

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind carried by err, or KindGeneric.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneric
}

// Status discriminates a Result.
type Status int

const (
	StatusImage Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusImage:
		return "image"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the single outcome of a capture.
type Result struct {
	Status Status
	Image  *image.RGBA
	Err    error
}

func Captured(img *image.RGBA) Result { return Result{Status: StatusImage, Image: img} }

func Cancelled() Result { return Result{Status: StatusCancelled} }

func Failed(err error) Result { return Result{Status: StatusFailed, Err: err} }

// Size reports the image dimensions, or zero for non-image results.
func (r Result) Size() (int, int) {
	if r.Image == nil {
		return 0, 0
	}
	b := r.Image.Bounds()
	return b.Dx(), b.Dy()
}
