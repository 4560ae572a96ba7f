//go:build !windows

package main

import (
	"log/slog"

	"screensnap/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	displays := screenshot.Displays()
	bounds, err := screenshot.UnionBounds(displays)
	if err != nil {
		slog.Warn("main: no displays detected", "error", err)
		return
	}
	slog.Info("main: monitors", "count", len(displays), "virtual", bounds.String())
}
