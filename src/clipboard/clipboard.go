// Package clipboard publishes captured images to the system pasteboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	writeMu sync.Mutex
)

// ErrEmpty is returned when there is nothing to publish.
var ErrEmpty = errors.New("clipboard: no image data")

// System writes to the OS clipboard.
type System struct{}

// WriteImage publishes the lossless TIFF and the PNG representation of one
// image in a single pasteboard update. Writes are serialized.
func (System) WriteImage(tiffData, pngData []byte) error {
	if len(tiffData) == 0 && len(pngData) == 0 {
		return ErrEmpty
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	return writeImage(tiffData, pngData)
}

// pasteboardScript builds the AppleScript that replaces the clipboard with a
// record holding both image flavours read from the given files.
func pasteboardScript(tiffPath, pngPath string) string {
	var parts []string
	if tiffPath != "" {
		parts = append(parts, fmt.Sprintf("TIFF picture:(read (POSIX file %s) as TIFF picture)", quote(tiffPath)))
	}
	if pngPath != "" {
		parts = append(parts, fmt.Sprintf("«class PNGf»:(read (POSIX file %s) as «class PNGf»)", quote(pngPath)))
	}
	return "set the clipboard to {" + strings.Join(parts, ", ") + "}"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
