//go:build windows

package gui

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"screensnap/src/screenshot"
	"screensnap/src/selection"
)

// Overlay state. Only one overlay exists at a time and it is only touched
// from the thread running its message loop.
var (
	overlayMu      sync.Mutex
	overlayActive  bool
	overlayHwnd    win.HWND
	overlaySession *selection.Session
	overlayBounds  image.Rectangle
	overlayBgDC    win.HDC
	overlayDimDC   win.HDC
	overlayBitmaps []win.HBITMAP
	crossCursor    win.HCURSOR
	escapeWasDown  bool
)

const (
	keyPollTimerID    = 1
	keyPollIntervalMs = 25
	psSolid           = 0
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	gdi32                        = windows.NewLazySystemDLL("gdi32.dll")
	procAllowSetForegroundWindow = user32.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32.NewProc("GetAsyncKeyState")
	procCreatePen                = gdi32.NewProc("CreatePen")
	procRectangle                = gdi32.NewProc("Rectangle")
)

// RunRegionSelection shows a topmost overlay over bounds and pumps its input
// until the session reaches a terminal state. It blocks, and locks the
// calling goroutine to its OS thread for the lifetime of the window. Closing
// stop tears the overlay down, which cancels the session.
//
// emit runs once, after the window is destroyed and the screen has settled,
// and only when RunRegionSelection returns nil.
func RunRegionSelection(bounds image.Rectangle, emit func(selection.Outcome), stop <-chan struct{}) error {
	overlayMu.Lock()
	if overlayActive {
		overlayMu.Unlock()
		return ErrOverlayActive
	}
	overlayActive = true
	overlayMu.Unlock()
	defer func() {
		overlayMu.Lock()
		overlayActive = false
		overlayMu.Unlock()
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	slog.Info("overlay: starting region selection", "bounds", bounds.String())

	background, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return fmt.Errorf("failed to capture screen: %w", err)
	}

	overlayBounds = bounds
	var held latch
	overlaySession = selection.NewSession(bounds, held.record)
	escapeWasDown = false
	crossCursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))

	classNameStr := fmt.Sprintf("ScreenSnapOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   syscall.NewCallback(overlayWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       crossCursor,
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return fmt.Errorf("failed to register window class")
	}
	defer win.UnregisterClass(className)

	overlayHwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST,
		className,
		syscall.StringToUTF16Ptr("ScreenSnap - drag to select, ESC cancels"),
		win.WS_POPUP|win.WS_VISIBLE,
		int32(bounds.Min.X), int32(bounds.Min.Y), int32(bounds.Dx()), int32(bounds.Dy()),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if overlayHwnd == 0 {
		return fmt.Errorf("failed to create overlay window")
	}

	hdc := win.GetDC(overlayHwnd)
	overlayBgDC, err = newBitmapDC(hdc, background)
	if err == nil {
		overlayDimDC, err = newBitmapDC(hdc, dimImage(background, selection.ScrimAlpha))
	}
	win.ReleaseDC(overlayHwnd, hdc)
	defer releaseBitmapDCs()
	if err != nil {
		win.DestroyWindow(overlayHwnd)
		return err
	}

	win.ShowWindow(overlayHwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(overlayHwnd)
	win.BringWindowToTop(overlayHwnd)
	win.SetFocus(overlayHwnd)
	win.UpdateWindow(overlayHwnd)

	if timerID := win.SetTimer(overlayHwnd, keyPollTimerID, keyPollIntervalMs, 0); timerID == 0 {
		slog.Warn("overlay: failed to start keyboard poll timer")
	}

	if stop != nil {
		hwnd := overlayHwnd
		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-stop:
				win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
			case <-finished:
			}
		}()
	}

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			slog.Warn("overlay: message loop ended", "ret", ret)
			overlaySession.Teardown()
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		// Tear the window down only once the handler that finished the
		// session has returned.
		if overlaySession.Finished() {
			break
		}
	}
	if win.IsWindow(overlayHwnd) {
		win.DestroyWindow(overlayHwnd)
	}
	overlaySession.Teardown()
	// The grab that follows must not see the scrim.
	time.Sleep(SettleDelay)
	slog.Info("overlay: region selection finished", "state", overlaySession.State().String())
	held.release(emit)
	return nil
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		overlaySession.PointerDown(pointFromLParam(lParam))
		win.InvalidateRect(hwnd, nil, false)
		return 0

	case win.WM_MOUSEMOVE:
		if overlaySession.PointerMove(pointFromLParam(lParam)) {
			win.InvalidateRect(hwnd, nil, false)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		// Resolve the drag before releasing capture; WM_CAPTURECHANGED
		// would otherwise see a live drag and cancel it.
		overlaySession.PointerUp(pointFromLParam(lParam))
		win.ReleaseCapture()
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			escapeWasDown = true
			overlaySession.Escape()
		}
		return 0

	case win.WM_KEYUP:
		if wParam == win.VK_ESCAPE {
			escapeWasDown = false
		}
		return 0

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			pollEscape()
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		paintFrame(hdc, overlaySession.Frame(nil))
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if crossCursor != 0 {
			win.SetCursor(crossCursor)
		}
		return 1

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_CAPTURECHANGED:
		// Losing mouse capture mid-drag means the gesture can no longer complete.
		if overlaySession.State() == selection.Dragging && win.HWND(lParam) != hwnd {
			overlaySession.Teardown()
		}
		return 0

	case win.WM_DESTROY:
		win.KillTimer(hwnd, keyPollTimerID)
		overlaySession.Teardown()
		// No PostQuitMessage: a leftover WM_QUIT would end the next
		// overlay's message loop immediately.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

// pointFromLParam decodes signed client coordinates; they go negative while
// the mouse is captured outside the window.
func pointFromLParam(lParam uintptr) screenshot.Point {
	return screenshot.Point{
		X: int(int16(win.LOWORD(uint32(lParam)))),
		Y: int(int16(win.HIWORD(uint32(lParam)))),
	}
}

// pollEscape catches ESC when the overlay did not get keyboard focus.
func pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	pressed := s&0x0001 != 0
	if !escapeWasDown && (down || pressed) {
		slog.Info("overlay: escape detected via async polling")
		overlaySession.Escape()
	}
	escapeWasDown = down
}

func paintFrame(hdc win.HDC, f selection.Frame) {
	w, h := int32(f.Scrim.Dx()), int32(f.Scrim.Dy())
	win.BitBlt(hdc, 0, 0, w, h, overlayDimDC, 0, 0, win.SRCCOPY)
	if f.Cutout.Empty() {
		return
	}

	c := f.Cutout
	win.BitBlt(hdc, int32(c.Min.X), int32(c.Min.Y), int32(c.Dx()), int32(c.Dy()), overlayBgDC, int32(c.Min.X), int32(c.Min.Y), win.SRCCOPY)

	colorRef := uintptr(f.Border.R) | uintptr(f.Border.G)<<8 | uintptr(f.Border.B)<<16
	pen, _, _ := procCreatePen.Call(psSolid, uintptr(f.BorderWidth), colorRef)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))
	procRectangle.Call(uintptr(hdc), uintptr(c.Min.X), uintptr(c.Min.Y), uintptr(c.Max.X), uintptr(c.Max.Y))
	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))

	if f.Label != "" {
		win.SetBkMode(hdc, win.TRANSPARENT)
		win.SetTextColor(hdc, win.COLORREF(0xFFFFFF))
		label := syscall.StringToUTF16(f.Label)
		win.TextOut(hdc, int32(f.LabelAt.X), int32(f.LabelAt.Y), &label[0], int32(len(label)-1))
	}
}

// newBitmapDC builds a memory DC holding img so WM_PAINT only has to blit.
func newBitmapDC(hdc win.HDC, img *image.RGBA) (win.HDC, error) {
	b := img.Bounds()
	bmi := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(b.Dx()),
			BiHeight:      -int32(b.Dy()),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	memDC := win.CreateCompatibleDC(hdc)
	if memDC == 0 {
		return 0, fmt.Errorf("CreateCompatibleDC failed")
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(memDC, &bmi.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 {
		win.DeleteDC(memDC)
		return 0, fmt.Errorf("CreateDIBSection failed")
	}
	pixels := toBGRA(img)
	copy(unsafe.Slice((*byte)(bits), len(pixels)), pixels)
	win.SelectObject(memDC, win.HGDIOBJ(bmp))
	overlayBitmaps = append(overlayBitmaps, bmp)
	return memDC, nil
}

func releaseBitmapDCs() {
	if overlayBgDC != 0 {
		win.DeleteDC(overlayBgDC)
		overlayBgDC = 0
	}
	if overlayDimDC != 0 {
		win.DeleteDC(overlayDimDC)
		overlayDimDC = 0
	}
	for _, bmp := range overlayBitmaps {
		win.DeleteObject(win.HGDIOBJ(bmp))
	}
	overlayBitmaps = nil
}
