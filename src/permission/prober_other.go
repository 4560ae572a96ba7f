//go:build !darwin

package permission

// otherProber reports every capability as granted; these platforms have no
// capture permission gate.
type otherProber struct{}

// NewSystemProber returns the OS prober for this platform.
func NewSystemProber() Prober { return otherProber{} }

func (otherProber) Status(Capability) Status { return Authorized }

func (otherProber) Prompt(Capability) error { return nil }
