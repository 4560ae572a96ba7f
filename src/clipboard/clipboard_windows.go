//go:build windows

package clipboard

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procOpenClipboard            = user32.NewProc("OpenClipboard")
	procCloseClipboard           = user32.NewProc("CloseClipboard")
	procEmptyClipboard           = user32.NewProc("EmptyClipboard")
	procSetClipboardData         = user32.NewProc("SetClipboardData")
	procRegisterClipboardFormatW = user32.NewProc("RegisterClipboardFormatW")
	procGlobalAlloc              = kernel32.NewProc("GlobalAlloc")
	procGlobalLock               = kernel32.NewProc("GlobalLock")
	procGlobalUnlock             = kernel32.NewProc("GlobalUnlock")
	procGlobalFree               = kernel32.NewProc("GlobalFree")
)

const (
	cfDIB        = 8
	gmemMoveable = 0x0002
)

// Init has nothing to prepare on Windows.
func Init() error { return nil }

// writeImage publishes CF_DIB and the registered "PNG" format in one
// clipboard update.
func writeImage(_, pngData []byte) error {
	dib, pngData, err := bitmapPayloads(pngData)
	if err != nil {
		return err
	}
	pngName, err := windows.UTF16PtrFromString("PNG")
	if err != nil {
		return err
	}

	// The clipboard is owned by the opening thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if ret, _, callErr := procOpenClipboard.Call(0); ret == 0 {
		return fmt.Errorf("clipboard: failed to open: %v", callErr)
	}
	defer procCloseClipboard.Call()
	procEmptyClipboard.Call()

	if err := setClipboardData(cfDIB, dib); err != nil {
		return err
	}
	pngFormat, _, callErr := procRegisterClipboardFormatW.Call(uintptr(unsafe.Pointer(pngName)))
	if pngFormat == 0 {
		return fmt.Errorf("clipboard: failed to register PNG format: %v", callErr)
	}
	return setClipboardData(pngFormat, pngData)
}

func setClipboardData(format uintptr, data []byte) error {
	hMem, _, _ := procGlobalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if hMem == 0 {
		return fmt.Errorf("clipboard: failed to allocate memory")
	}
	pMem, _, _ := procGlobalLock.Call(hMem)
	if pMem == 0 {
		procGlobalFree.Call(hMem)
		return fmt.Errorf("clipboard: failed to lock memory")
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(pMem)), len(data)), data)
	procGlobalUnlock.Call(hMem)

	// On success the system owns hMem.
	if ret, _, _ := procSetClipboardData.Call(format, hMem); ret == 0 {
		procGlobalFree.Call(hMem)
		return fmt.Errorf("clipboard: failed to set format %d", format)
	}
	return nil
}
