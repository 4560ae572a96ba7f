//go:build windows

package gui

import (
	"fmt"
	"image"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

const (
	wsExLayered     = 0x00080000
	wsExTransparent = 0x00000020
	wsExToolWindow  = 0x00000080
	lwaAlpha        = 0x00000002
	flashTimerID    = 2
	flashTickMs     = 20
)

var procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")

var (
	flashStarted time.Time
	flashHwnd    win.HWND
)

// Flash covers bounds with a white click-through window at FlashAlpha,
// fades it after FlashHold and destroys it at FlashCloseWait. It blocks for
// the duration of the animation on a locked OS thread.
func Flash(bounds image.Rectangle) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className := syscall.StringToUTF16Ptr(fmt.Sprintf("ScreenSnapFlash_%d", time.Now().UnixNano()))
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(flashWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HbrBackground: win.HBRUSH(win.GetStockObject(win.WHITE_BRUSH)),
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return fmt.Errorf("failed to register flash window class")
	}
	defer win.UnregisterClass(className)

	flashHwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST|wsExLayered|wsExTransparent|wsExToolWindow,
		className,
		nil,
		win.WS_POPUP,
		int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if flashHwnd == 0 {
		return fmt.Errorf("failed to create flash window")
	}
	setAlpha(flashHwnd, FlashAlpha)
	win.ShowWindow(flashHwnd, win.SW_SHOWNOACTIVATE)
	win.UpdateWindow(flashHwnd)
	flashStarted = time.Now()
	win.SetTimer(flashHwnd, flashTimerID, flashTickMs, 0)

	var msg win.MSG
	for win.IsWindow(flashHwnd) {
		if win.GetMessage(&msg, 0, 0, 0) <= 0 {
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
	return nil
}

func flashWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_TIMER:
		elapsed := time.Since(flashStarted)
		if elapsed >= FlashCloseWait {
			win.KillTimer(hwnd, flashTimerID)
			win.DestroyWindow(hwnd)
			return 0
		}
		if elapsed > FlashHold {
			fade := float64(FlashCloseWait-elapsed) / float64(FlashCloseWait-FlashHold)
			setAlpha(hwnd, FlashAlpha*fade)
		}
		return 0
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func setAlpha(hwnd win.HWND, alpha float64) {
	procSetLayeredWindowAttributes.Call(uintptr(hwnd), 0, uintptr(byte(alpha*255)), lwaAlpha)
}
