// Package delivery applies the post-capture side effects: sound, clipboard,
// file, confirmation and notification. Steps are independent; a failing
// step is recorded and the rest still run.
package delivery

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"screensnap/src/capture"
	"screensnap/src/sound"
)

// ConfirmDuration is how long the confirmation pill stays up.
const ConfirmDuration = 3 * time.Second

// StepStatus is the result of one delivery step.
type StepStatus int

const (
	Skipped StepStatus = iota
	OK
	Failed
)

func (s StepStatus) String() string {
	switch s {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	}
	return "skipped"
}

// StepResult is the record of one step.
type StepResult struct {
	Status StepStatus
	Err    error
}

func (r StepResult) String() string {
	if r.Err != nil {
		return r.Status.String() + ": " + r.Err.Error()
	}
	return r.Status.String()
}

func ok() StepResult { return StepResult{Status: OK} }

func failed(err error) StepResult { return StepResult{Status: Failed, Err: err} }

func skipped(err error) StepResult { return StepResult{Status: Skipped, Err: err} }

// Outcome records every step of one delivery.
type Outcome struct {
	Sound        StepResult
	Clipboard    StepResult
	File         StepResult
	Confirmation StepResult
	Notification StepResult
	// Path is the saved file, when File is OK.
	Path string
	// Message is the confirmation text shown, if any.
	Message string
}

// Failures lists the failed steps by name.
func (o Outcome) Failures() []string {
	var out []string
	for _, s := range []struct {
		name string
		r    StepResult
	}{
		{"sound", o.Sound},
		{"clipboard", o.Clipboard},
		{"file", o.File},
		{"confirmation", o.Confirmation},
		{"notification", o.Notification},
	} {
		if s.r.Status == Failed {
			out = append(out, s.name)
		}
	}
	return out
}

// Options are the per-delivery switches, taken from configuration.
type Options struct {
	PlaySound        bool
	CopyToClipboard  bool
	SaveToFile       bool
	ShowNotification bool
	Flash            bool
	SaveDir          string
	Format           string
}

// ClipboardWriter publishes image bytes in lossless and compressed formats.
type ClipboardWriter interface {
	WriteImage(tiffData, pngData []byte) error
}

// SoundPlayer plays the confirmation sound.
type SoundPlayer interface {
	Play() (string, error)
}

// Confirmer shows the transient confirmation. feedback.Presenter satisfies it.
type Confirmer interface {
	Show(message string, d time.Duration)
	Flash()
}

// NotifyFunc posts an OS notification.
type NotifyFunc func(title, message string) error

// Pipeline runs deliveries. It is used from the dispatcher goroutine only.
type Pipeline struct {
	Clipboard ClipboardWriter
	Sound     SoundPlayer
	Confirm   Confirmer
	Notify    NotifyFunc
	Now       func() time.Time

	lastPath string
}

// LastPath is the most recently saved capture, or "".
func (p *Pipeline) LastPath() string { return p.lastPath }

// Deliver applies every enabled step to img in order.
func (p *Pipeline) Deliver(img image.Image, opts Options) Outcome {
	var out Outcome
	if img == nil {
		err := errors.New("no image to deliver")
		out.Clipboard, out.File = failed(err), failed(err)
		return out
	}

	out.Sound = p.playSound(opts)
	out.Clipboard = p.copyToClipboard(img, opts)
	out.Path, out.File = p.saveToFile(img, opts)
	out.Message, out.Confirmation = p.confirm(out, opts)
	out.Notification = p.notify(out, opts)

	slog.Info("delivery: done",
		"sound", out.Sound.String(),
		"clipboard", out.Clipboard.String(),
		"file", out.File.String(),
		"confirmation", out.Confirmation.String(),
		"notification", out.Notification.String(),
		"path", out.Path)
	return out
}

func (p *Pipeline) playSound(opts Options) StepResult {
	if !opts.PlaySound || p.Sound == nil {
		return skipped(nil)
	}
	path, err := p.Sound.Play()
	if errors.Is(err, sound.ErrNoSound) {
		slog.Info("delivery: no system sound available")
		return skipped(err)
	}
	if err != nil {
		slog.Warn("delivery: sound failed", "error", err)
		return failed(err)
	}
	slog.Debug("delivery: sound", "path", path)
	return ok()
}

func (p *Pipeline) copyToClipboard(img image.Image, opts Options) StepResult {
	if !opts.CopyToClipboard || p.Clipboard == nil {
		return skipped(nil)
	}
	tiffData, pngData, err := EncodeClipboard(img)
	if err != nil {
		slog.Error("delivery: clipboard encode failed", "error", err)
		return failed(err)
	}
	if err := p.Clipboard.WriteImage(tiffData, pngData); err != nil {
		slog.Error("delivery: clipboard write failed", "error", err)
		return failed(capture.Errorf(capture.KindWrite, err, "failed to write clipboard"))
	}
	return ok()
}

func (p *Pipeline) saveToFile(img image.Image, opts Options) (string, StepResult) {
	if !opts.SaveToFile {
		return "", skipped(nil)
	}
	format := NormalizeFormat(opts.Format)
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		slog.Error("delivery: encode failed", "format", format, "error", err)
		return "", failed(capture.Errorf(capture.KindEncode, err, "failed to encode %s", format))
	}

	dir := ResolveSaveDir(opts.SaveDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("delivery: failed to create save dir", "dir", dir, "error", err)
		return "", failed(capture.Errorf(capture.KindWrite, err, "failed to create %s", dir))
	}
	path, err := writeUnique(dir, FileName(p.now(), format), buf.Bytes())
	if err != nil {
		slog.Error("delivery: write failed", "path", path, "error", err)
		return "", failed(capture.Errorf(capture.KindWrite, err, "failed to write %s", path))
	}
	p.lastPath = path
	slog.Info("delivery: saved", "path", path, "bytes", buf.Len())
	return path, ok()
}

func (p *Pipeline) confirm(out Outcome, opts Options) (string, StepResult) {
	if p.Confirm == nil {
		return "", skipped(nil)
	}
	var msg string
	switch {
	case out.File.Status == OK:
		msg = "Saved"
	case out.Clipboard.Status == OK:
		msg = "Copied"
	default:
		return "", skipped(nil)
	}
	p.Confirm.Show(msg, ConfirmDuration)
	if opts.Flash {
		p.Confirm.Flash()
	}
	return msg, ok()
}

func (p *Pipeline) notify(out Outcome, opts Options) StepResult {
	if !opts.ShowNotification || p.Notify == nil {
		return skipped(nil)
	}
	var msg string
	switch {
	case out.File.Status == OK:
		msg = "Screenshot saved to " + filepath.Base(out.Path)
	case out.Clipboard.Status == OK:
		msg = "Screenshot copied to clipboard"
	default:
		return skipped(nil)
	}
	if err := p.Notify("ScreenSnap", msg); err != nil {
		slog.Warn("delivery: notifier failed to launch", "error", err)
		return failed(err)
	}
	return ok()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// writeUnique creates name in dir, appending -2, -3... when two captures land
// in the same second. The file is created exclusively so an existing one is
// never overwritten.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	path := filepath.Join(dir, name)
	for i := 2; ; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
			continue
		}
		if err != nil {
			return path, err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return path, err
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return path, err
		}
		return path, nil
	}
}
