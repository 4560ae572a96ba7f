package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screensnap/src/capture"
	"screensnap/src/config"
	"screensnap/src/hotkey"
	"screensnap/src/messages"
	"screensnap/src/notification"
	"screensnap/src/permission"
	"screensnap/src/runtimeinit"
	"screensnap/src/session"
	"screensnap/src/singleinstance"
	"screensnap/src/tray"
)

type mainOptions struct {
	envFile      string
	settingsFile string
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{EnvFile: o.envFile, SettingsFile: o.settingsFile}
}

func init() {
	// The systray loop must own the main thread on macOS.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screensnap"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screensnap",
		Short:         "Menu-bar screen capture",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(*opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "Path to a .env file")
	cmd.PersistentFlags().StringVar(&opts.settingsFile, "settings", "", "Path to settings.yaml")

	cmd.AddCommand(newCaptureCmd(opts), newPermissionsCmd(opts), newConfigCmd(opts))
	return cmd
}

func newCaptureCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "capture [area|full]",
		Short:     "Capture through the running app, or standalone if none runs",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"area", "full"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			mode, err := capture.ParseMode(arg)
			if err != nil {
				return err
			}
			applyPortRange(opts.loadOptions())
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			return handleCaptureWithDelegation(ctx, mode, singleinstance.NewClient(), func() error {
				return runStandalone(*opts, mode)
			})
		},
	}
}

// handleCaptureWithDelegation hands mode to a resident when one answers and
// runs fallback otherwise. A busy resident is reported, not worked around.
func handleCaptureWithDelegation(ctx context.Context, mode capture.Mode, client singleinstance.Client, fallback func() error) error {
	delegated, err := client.TryCapture(ctx, mode)
	if err != nil {
		if strings.Contains(err.Error(), capture.ErrInProgress.Error()) {
			return err
		}
		slog.Warn("main: delegation failed, running standalone", "error", err)
		return fallback()
	}
	if delegated {
		slog.Info("main: delegated to resident", "mode", mode.String())
		return nil
	}
	slog.Info("main: no resident detected, running standalone", "mode", mode.String())
	return fallback()
}

func newPermissionsCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Show screen recording, accessibility and notification status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gate := permission.NewGate(permission.NewSystemProber(), nil, messages.Immediate{}, nil)
			for _, line := range gate.Snapshot().Lines() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Let the running app prompt for permissions again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyPortRange(opts.loadOptions())
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			return resetPermissions(ctx, singleinstance.NewClient(), cmd.OutOrStdout())
		},
	})
	return cmd
}

func resetPermissions(ctx context.Context, client singleinstance.Client, out io.Writer) error {
	delegated, err := client.ResetPermissions(ctx)
	if err != nil {
		return fmt.Errorf("reset permission prompts: %w", err)
	}
	if !delegated {
		fmt.Fprintln(out, "ScreenSnap is not running; prompt counters start fresh on launch")
		return nil
	}
	fmt.Fprintln(out, "permission prompts reset")
	return nil
}

func newConfigCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			out, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return config.Validate(cfg)
		},
	}
}

// normalizeLegacyArgs maps the old single-dash flags and --run-once onto the
// cobra command tree.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := []string{args[0]}
	for _, arg := range args[1:] {
		switch {
		case arg == "-run-once" || arg == "--run-once":
			normalized = append(normalized, "capture", "area")
		case arg == "-run-once-full" || arg == "--run-once-full":
			normalized = append(normalized, "capture", "full")
		case arg == "-env":
			normalized = append(normalized, "--env")
		case strings.HasPrefix(arg, "-env="):
			normalized = append(normalized, "--env="+arg[len("-env="):])
		case arg == "-settings":
			normalized = append(normalized, "--settings")
		case strings.HasPrefix(arg, "-settings="):
			normalized = append(normalized, "--settings="+arg[len("-settings="):])
		default:
			normalized = append(normalized, arg)
		}
	}
	return normalized
}

// runResident is the menu-bar app. It blocks in the systray loop until Quit
// or a signal.
func runResident(opts mainOptions) error {
	enableDPIAwareness()

	// The port range must be known before the pre-flight.
	applyPortRange(opts.loadOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if port, ok := singleinstance.DetectResidentPort(ctx); ok {
		fmt.Printf("ScreenSnap is already running on port %d\n", port)
		return nil
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:   opts.loadOptions(),
		ClearCaptures: true,
	})
	if err != nil {
		notification.ShowBlockingError(notification.ErrorTitle, err.Error())
		return err
	}
	defer rt.Log.Close()
	logMonitorConfiguration()

	server := singleinstance.NewServer()
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("claim single-instance port: %w", err)
	}
	defer server.Close()

	tooltip := fmt.Sprintf("ScreenSnap - Press %s to capture", hotkey.Format(rt.Hotkey))
	var a *app
	trayIcon := tray.New(tray.Config{
		Tooltip: tooltip,
		Actions: tray.Actions{
			CaptureArea:            func() { a.trigger(capture.SourceMenu, capture.ModeRegion)() },
			CaptureFullScreen:      func() { a.trigger(capture.SourceMenu, capture.ModeFullScreen)() },
			OpenSaveFolder:         func() { a.loop.OpenSaveFolder() },
			RevealLastCapture:      func() { a.loop.RevealLastCapture() },
			ResetPermissionPrompts: func() { a.loop.ResetPermissionPrompts() },
			Quit:                   cancel,
		},
		OnExit: cancel,
	})
	a = newApp(rt.Config, appDeps{
		surface: trayIcon,
		tooltip: trayIcon.SetTooltip,
		server:  server,
	})
	a.loop.SetDefaultTooltip(tooltip)
	a.gate.Diagnostics(runtime.GOOS == "darwin")

	// The hook installs without the grant but sees no key events.
	requestHotkeyAccess(a.gate, a.loop)
	if err := hotkey.Listen(ctx, rt.Hotkey, a.trigger(capture.SourceHotkey, capture.ModeRegion)); err != nil {
		slog.Warn("main: global hotkey unavailable, use the menu", "hotkey", rt.Hotkey.String(), "error", err)
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- a.loop.Run(ctx)
		trayIcon.Quit()
	}()

	slog.Info("main: ScreenSnap started", "hotkey", rt.Hotkey.String(), "backend", rt.Config.CaptureBackend)
	trayIcon.Run()
	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("main: ScreenSnap stopped")
	return nil
}

// runStandalone performs one capture without a resident and returns after
// delivery.
func runStandalone(opts mainOptions, mode capture.Mode) error {
	enableDPIAwareness()
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: opts.loadOptions()})
	if err != nil {
		return err
	}
	defer rt.Log.Close()

	outcomes := make(chan session.Outcome, 1)
	a := newApp(rt.Config, appDeps{
		alert:     notification.ShowBlockingError,
		onOutcome: func(o session.Outcome) { outcomes <- o },
	})

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = a.loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	admitted := make(chan error, 1)
	a.loop.Submit(capture.Request{Source: capture.SourceIntent, Mode: mode}, func(err error) { admitted <- err })
	if err := <-admitted; err != nil {
		return err
	}
	return standaloneResult(<-outcomes)
}

// standaloneResult maps a finished session onto the process result. User
// cancellation is a clean exit.
func standaloneResult(out session.Outcome) error {
	switch out.Result.Status {
	case capture.StatusCancelled:
		slog.Info("main: capture cancelled")
		return nil
	case capture.StatusFailed:
		return out.Err()
	}
	if out.Delivery != nil {
		if failed := out.Delivery.Failures(); len(failed) > 0 {
			return fmt.Errorf("delivery failed: %s", strings.Join(failed, ", "))
		}
		if out.Delivery.Path != "" {
			fmt.Println(out.Delivery.Path)
		}
	}
	return nil
}
