package singleinstance

import "sync"

const (
	DefaultPortStart = 49600
	DefaultPortEnd   = 49650

	minPort = 1024
	maxPort = 65535
)

var (
	portMu    sync.RWMutex
	portStart = DefaultPortStart
	portEnd   = DefaultPortEnd
)

// SetPortRange installs the inclusive TCP range the server binds and clients
// scan, and returns the effective range. A zero bound keeps its default;
// bounds are clamped to [1024, 65535] and swapped when reversed.
func SetPortRange(start, end int) (int, int) {
	start, end = clampRange(start, end)
	portMu.Lock()
	portStart, portEnd = start, end
	portMu.Unlock()
	return start, end
}

func clampRange(start, end int) (int, int) {
	if start == 0 {
		start = DefaultPortStart
	}
	if end == 0 {
		end = DefaultPortEnd
	}
	start = min(max(start, minPort), maxPort)
	end = min(max(end, minPort), maxPort)
	if end < start {
		start, end = end, start
	}
	return start, end
}

func getPortRange() (int, int) {
	portMu.RLock()
	defer portMu.RUnlock()
	return portStart, portEnd
}

// PortRange exposes the current effective port range for logging.
func PortRange() (int, int) { return getPortRange() }
