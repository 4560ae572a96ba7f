//go:build darwin

package clipboard

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Init is a no-op: the pasteboard is reached through osascript.
func Init() error {
	if _, err := exec.LookPath("osascript"); err != nil {
		return fmt.Errorf("clipboard: osascript not found: %w", err)
	}
	return nil
}

func writeImage(tiffData, pngData []byte) error {
	dir, err := os.MkdirTemp("", "screensnap-clip-")
	if err != nil {
		return fmt.Errorf("clipboard: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var tiffPath, pngPath string
	if len(tiffData) > 0 {
		tiffPath = filepath.Join(dir, "capture.tiff")
		if err := os.WriteFile(tiffPath, tiffData, 0o600); err != nil {
			return fmt.Errorf("clipboard: stage tiff: %w", err)
		}
	}
	if len(pngData) > 0 {
		pngPath = filepath.Join(dir, "capture.png")
		if err := os.WriteFile(pngPath, pngData, 0o600); err != nil {
			return fmt.Errorf("clipboard: stage png: %w", err)
		}
	}

	out, err := exec.Command("osascript", "-e", pasteboardScript(tiffPath, pngPath)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("clipboard: osascript: %w: %s", err, out)
	}
	return nil
}
