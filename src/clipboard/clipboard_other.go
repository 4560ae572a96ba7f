//go:build !darwin && !windows

package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init prepares the platform clipboard. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() { initErr = clipboard.Init() })
	return initErr
}

// writeImage publishes the PNG; the library derives the bitmap formats the
// platform expects from it.
func writeImage(_, pngData []byte) error {
	if err := Init(); err != nil {
		return err
	}
	if len(pngData) == 0 {
		return errors.New("clipboard: png representation required")
	}
	clipboard.Write(clipboard.FmtImage, pngData)
	return nil
}
