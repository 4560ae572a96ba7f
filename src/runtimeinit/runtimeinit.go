// Package runtimeinit performs the start-up shared by the resident app and
// the one-shot commands, and builds the capture stack from configuration.
package runtimeinit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"screensnap/src/capture"
	"screensnap/src/clipboard"
	"screensnap/src/config"
	"screensnap/src/delivery"
	"screensnap/src/hotkey"
	"screensnap/src/logutil"
	"screensnap/src/permission"
)

// StaleTempAge is how old a leftover capture temp file must be to be removed.
const StaleTempAge = 24 * time.Hour

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging defaults to logutil.Setup.
	SetupLogging func(enableFileLogging bool, level string) io.Closer
	// ClearCaptures honours clear_on_restart. Only the resident sets it.
	ClearCaptures bool
	// InitClipboard defaults to clipboard.Init.
	InitClipboard func() error
	// TempDir is scanned for stale capture files. Empty means os.TempDir().
	TempDir string
	Now     func() time.Time
}

// Runtime is the result of a successful bootstrap.
type Runtime struct {
	Config *config.Config
	Hotkey hotkey.Combo
	// Log flushes and closes the log file.
	Log io.Closer
}

// Bootstrap loads and validates configuration, installs logging, removes
// stale temporary files and initializes the clipboard.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setup := opts.SetupLogging
	if setup == nil {
		setup = logutil.Setup
	}
	closer := setup(cfg.EnableFileLogging, cfg.LogLevel)

	if err := config.Validate(cfg); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	combo, err := hotkey.Parse(cfg.Hotkey)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("invalid hotkey %q: %w", cfg.Hotkey, err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	capture.CleanupStaleTemp(tempDir, StaleTempAge, now())

	if opts.ClearCaptures && cfg.ClearOnRestart && cfg.SaveToFile {
		dir := delivery.ResolveSaveDir(cfg.SaveDir)
		if n, err := delivery.ClearPreviousCaptures(dir); err != nil {
			slog.Warn("runtimeinit: clearing previous captures failed", "dir", dir, "error", err)
		} else if n > 0 {
			slog.Info("runtimeinit: cleared previous captures", "dir", dir, "count", n)
		}
	}

	initClipboard := opts.InitClipboard
	if initClipboard == nil {
		initClipboard = clipboard.Init
	}
	if cfg.CopyToClipboard {
		if err := initClipboard(); err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
	}

	slog.Info("runtimeinit: configuration loaded",
		"backend", cfg.CaptureBackend,
		"hotkey", combo.String(),
		"format", cfg.ImageFormat,
		"save_dir", delivery.ResolveSaveDir(cfg.SaveDir),
		"timeout", cfg.CaptureTimeout())
	return &Runtime{Config: cfg, Hotkey: combo, Log: closer}, nil
}

// NewBackend builds the capture backend named by cfg.
func NewBackend(cfg *config.Config) capture.Backend {
	if cfg.CaptureBackend == config.BackendCompositor {
		return capture.NewCompositorBackend()
	}
	// The pipeline plays its own sound, so the utility stays quiet.
	return capture.NewProcessBackend(true)
}

// NewExecutor wraps the configured backend. Both backends need the screen
// recording grant before each OS call; a denial is routed through the gate.
func NewExecutor(cfg *config.Config, prober permission.Prober) *capture.Executor {
	return newExecutor(cfg, NewBackend(cfg), prober)
}

func newExecutor(cfg *config.Config, backend capture.Backend, prober permission.Prober) *capture.Executor {
	opts := capture.Options{Timeout: cfg.CaptureTimeout()}
	if prober != nil {
		opts.Permitted = func() bool {
			return prober.Status(permission.ScreenRecording) == permission.Authorized
		}
	}
	return capture.NewExecutor(backend, opts)
}
