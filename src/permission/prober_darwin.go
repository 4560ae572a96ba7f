//go:build darwin

package permission

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	coreGraphicsPath        = "/System/Library/Frameworks/CoreGraphics.framework/CoreGraphics"
	applicationServicesPath = "/System/Library/Frameworks/ApplicationServices.framework/ApplicationServices"
	coreFoundationPath      = "/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation"
)

// darwinProber calls the TCC preflight APIs through purego so the binary
// needs no cgo toolchain.
type darwinProber struct {
	once    sync.Once
	loadErr error

	preflightScreenCapture func() bool
	requestScreenCapture   func() bool
	axIsProcessTrusted     func() bool
	axTrustedWithOptions   func(options uintptr) bool
	cfDictionaryCreate     func(allocator uintptr, keys, values unsafe.Pointer, count int, keyCallbacks, valueCallbacks uintptr) uintptr
	cfRelease              func(ref uintptr)

	promptKey      uintptr
	booleanTrue    uintptr
	keyCallbacks   uintptr
	valueCallbacks uintptr
}

// NewSystemProber returns the OS prober for this platform.
func NewSystemProber() Prober { return &darwinProber{} }

func (p *darwinProber) load() error {
	p.once.Do(func() {
		cg, err := purego.Dlopen(coreGraphicsPath, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			p.loadErr = fmt.Errorf("load CoreGraphics: %w", err)
			return
		}
		as, err := purego.Dlopen(applicationServicesPath, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			p.loadErr = fmt.Errorf("load ApplicationServices: %w", err)
			return
		}
		cf, err := purego.Dlopen(coreFoundationPath, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			p.loadErr = fmt.Errorf("load CoreFoundation: %w", err)
			return
		}
		purego.RegisterLibFunc(&p.preflightScreenCapture, cg, "CGPreflightScreenCaptureAccess")
		purego.RegisterLibFunc(&p.requestScreenCapture, cg, "CGRequestScreenCaptureAccess")
		purego.RegisterLibFunc(&p.axIsProcessTrusted, as, "AXIsProcessTrusted")
		purego.RegisterLibFunc(&p.axTrustedWithOptions, as, "AXIsProcessTrustedWithOptions")
		purego.RegisterLibFunc(&p.cfDictionaryCreate, cf, "CFDictionaryCreate")
		purego.RegisterLibFunc(&p.cfRelease, cf, "CFRelease")

		p.promptKey, p.loadErr = derefSymbol(as, "kAXTrustedCheckOptionPrompt")
		if p.loadErr != nil {
			return
		}
		p.booleanTrue, p.loadErr = derefSymbol(cf, "kCFBooleanTrue")
		if p.loadErr != nil {
			return
		}
		if p.keyCallbacks, err = purego.Dlsym(cf, "kCFTypeDictionaryKeyCallBacks"); err != nil {
			p.loadErr = err
			return
		}
		p.valueCallbacks, p.loadErr = purego.Dlsym(cf, "kCFTypeDictionaryValueCallBacks")
	})
	return p.loadErr
}

// derefSymbol reads the pointer stored in an exported global such as a
// CFStringRef constant.
func derefSymbol(lib uintptr, name string) (uintptr, error) {
	addr, err := purego.Dlsym(lib, name)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", name, err)
	}
	return *(*uintptr)(unsafe.Pointer(addr)), nil
}

func (p *darwinProber) Status(c Capability) Status {
	switch c {
	case ScreenRecording:
		if err := p.load(); err != nil {
			slog.Warn("permission: prober unavailable", "error", err)
			return NotDetermined
		}
		if p.preflightScreenCapture() {
			return Authorized
		}
		return Denied
	case Accessibility:
		if err := p.load(); err != nil {
			return NotDetermined
		}
		if p.axIsProcessTrusted() {
			return Authorized
		}
		return Denied
	case Notifications:
		return notificationStatus()
	}
	return NotDetermined
}

func (p *darwinProber) Prompt(c Capability) error {
	switch c {
	case ScreenRecording:
		if err := p.load(); err != nil {
			return err
		}
		p.requestScreenCapture()
		return nil
	case Accessibility:
		if err := p.load(); err != nil {
			return err
		}
		keys := []uintptr{p.promptKey}
		values := []uintptr{p.booleanTrue}
		dict := p.cfDictionaryCreate(0, unsafe.Pointer(&keys[0]), unsafe.Pointer(&values[0]), 1, p.keyCallbacks, p.valueCallbacks)
		if dict == 0 {
			return fmt.Errorf("CFDictionaryCreate failed")
		}
		defer p.cfRelease(dict)
		p.axTrustedWithOptions(dict)
		return nil
	case Notifications:
		// Notifications are posted through osascript, which owns its own
		// authorization; there is nothing to prompt for.
		return nil
	}
	return fmt.Errorf("unknown capability %v", c)
}

func notificationStatus() Status {
	if _, err := exec.LookPath("osascript"); err != nil {
		return Restricted
	}
	return Authorized
}
