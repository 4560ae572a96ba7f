package delivery

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/tiff"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	// FilePrefix starts every saved capture's name.
	FilePrefix = "ScreenSnap"
	// JPEGQuality is used for jpeg saves.
	JPEGQuality = 90
	// PlaceholderSaveDir is the unconfigured default save dir.
	PlaceholderSaveDir = "~/Desktop/ScreenSnap"

	timestampLayout = "2006-01-02-15-04-05"
)

// NormalizeFormat maps user spellings to FormatPNG or FormatJPEG.
func NormalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "jpg", "jpeg":
		return FormatJPEG
	}
	return FormatPNG
}

// Ext is the file extension for format.
func Ext(format string) string {
	if NormalizeFormat(format) == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// FileName is ScreenSnap-<yyyy-MM-dd-HH-mm-ss>.<ext>.
func FileName(t time.Time, format string) string {
	return fmt.Sprintf("%s-%s.%s", FilePrefix, t.Format(timestampLayout), Ext(format))
}

// ResolveSaveDir returns the directory captures are written to. An empty or
// placeholder setting falls back to a folder under the temp dir.
func ResolveSaveDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == PlaceholderSaveDir {
		return filepath.Join(os.TempDir(), FilePrefix)
	}
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[2:])
		}
	}
	return dir
}

// Encode writes img as format.
func Encode(w io.Writer, img image.Image, format string) error {
	if NormalizeFormat(format) == FormatJPEG {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	}
	return png.Encode(w, img)
}

// EncodeClipboard produces the uncompressed TIFF and the PNG flavours.
func EncodeClipboard(img image.Image) (tiffData, pngData []byte, err error) {
	var tb, pb bytes.Buffer
	if err := tiff.Encode(&tb, img, &tiff.Options{Compression: tiff.Uncompressed}); err != nil {
		return nil, nil, fmt.Errorf("encode tiff: %w", err)
	}
	if err := png.Encode(&pb, img); err != nil {
		return nil, nil, fmt.Errorf("encode png: %w", err)
	}
	return tb.Bytes(), pb.Bytes(), nil
}

// ClearPreviousCaptures removes earlier ScreenSnap captures from dir and
// leaves every other file alone.
func ClearPreviousCaptures(dir string) (int, error) {
	dir = ResolveSaveDir(dir)
	removed := 0
	for _, ext := range []string{"png", "jpg"} {
		matches, err := filepath.Glob(filepath.Join(dir, FilePrefix+"-*."+ext))
		if err != nil {
			return removed, err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				slog.Warn("delivery: failed to remove previous capture", "path", m, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("delivery: cleared previous captures", "dir", dir, "count", removed)
	}
	return removed, nil
}
