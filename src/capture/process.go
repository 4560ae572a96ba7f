package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultUtility is the platform capture utility.
const DefaultUtility = "/usr/sbin/screencapture"

// Runner executes the utility and reports its exit code. A non-nil error
// means the process could not be started or waited on.
type Runner func(ctx context.Context, name string, args ...string) (int, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// ProcessBackend captures by spawning the native capture utility and
// reading the file it writes. Exit code 0 with the file present is a
// capture, anything else is a silent cancel. The temporary file never
// outlives Capture.
type ProcessBackend struct {
	Utility string
	TempDir string
	// Silent passes -x so the utility itself plays no sound.
	Silent bool
	Run    Runner
}

// NewProcessBackend returns a backend for the default utility.
func NewProcessBackend(silent bool) *ProcessBackend {
	return &ProcessBackend{Utility: DefaultUtility, Silent: silent, Run: ExecRunner}
}

func (b *ProcessBackend) Name() string { return "process" }

func (b *ProcessBackend) SupportsInteractive() bool { return true }

// Args builds the utility arguments for t writing to path.
func (b *ProcessBackend) Args(t Target, path string) []string {
	var args []string
	switch {
	case t.Interactive:
		args = append(args, "-i", "-o")
	case t.FullScreen:
		args = append(args, "-m", "-o")
	default:
		r := t.Region
		args = append(args, "-R", fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height))
	}
	if b.Silent {
		args = append(args, "-x")
	}
	return append(args, "-t", "png", path)
}

func (b *ProcessBackend) Capture(ctx context.Context, t Target) Result {
	path, err := reserveTempPath(b.TempDir)
	if err != nil {
		return Failed(Errorf(KindWrite, err, "failed to reserve temporary capture file"))
	}
	defer removeIfExists(path)

	run := b.Run
	if run == nil {
		run = ExecRunner
	}
	utility := b.Utility
	if utility == "" {
		utility = DefaultUtility
	}

	code, err := run(ctx, utility, b.Args(t, path)...)
	if err != nil {
		if ctx.Err() != nil {
			return Cancelled()
		}
		slog.Error("capture: failed to launch utility", "utility", utility, "error", err)
		return Failed(Errorf(KindProcessLaunch, err, "failed to launch %s", utility))
	}
	if code != 0 {
		slog.Info("capture: utility exited without capture", "exit_code", code)
		return Cancelled()
	}

	st, err := os.Stat(path)
	if err != nil || st.Size() == 0 {
		slog.Info("capture: utility produced no output, treating as cancel")
		return Cancelled()
	}

	img, err := decodePNGFile(path)
	if err != nil {
		return Failed(Errorf(KindGeneric, err, "failed to read captured image"))
	}
	return Captured(img)
}

// reserveTempPath returns a unique path that does not exist yet, so a missing
// file after exit reliably means the utility wrote nothing.
func reserveTempPath(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "screensnap-*.png")
	if err != nil {
		return "", err
	}
	path := f.Name()
	_ = f.Close()
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return path, nil
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("capture: failed to remove temporary file", "path", path, "error", err)
	}
}

func decodePNGFile(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, err := png.Decode(f)
	if err != nil {
		return nil, err
	}
	return toRGBA(src), nil
}

// toRGBA returns src as an *image.RGBA anchored at the origin.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// CleanupStaleTemp removes capture files older than maxAge that an earlier
// process left behind in dir, and reports how many it removed.
func CleanupStaleTemp(dir string, maxAge time.Duration, now time.Time) int {
	if dir == "" {
		dir = os.TempDir()
	}
	matches, err := filepath.Glob(filepath.Join(dir, "screensnap-*.png"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil || now.Sub(st.ModTime()) < maxAge {
			continue
		}
		if os.Remove(m) == nil {
			removed++
		}
	}
	if removed > 0 {
		slog.Info("capture: removed stale temporary files", "count", removed, "dir", dir)
	}
	return removed
}
