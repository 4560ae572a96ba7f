// Package singleinstance lets a second invocation hand its capture request
// to the resident menu-bar process over loopback TCP.
package singleinstance

import (
	"context"
	"fmt"
	"strings"

	"screensnap/src/capture"
)

// Server owns the TCP endpoint and answers capture requests.
type Server interface {
	// Start begins listening on the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// Accept tells the client the resident took the request. The client
	// does not wait for the capture itself.
	Accept() error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// RequestKind distinguishes the resident commands.
type RequestKind int

const (
	RequestCapture RequestKind = iota
	RequestResetPermissions
)

// Request is a delegated command.
type Request struct {
	Kind RequestKind
	Mode capture.Mode
}

func (r Request) String() string {
	if r.Kind == RequestResetPermissions {
		return "reset-permissions"
	}
	return "capture/" + r.Mode.String()
}

// Client delegates capture requests to a resident server.
type Client interface {
	// TryCapture scans the port range and delegates to the first resident
	// that answers PING. If none is found it returns delegated=false, err=nil.
	TryCapture(ctx context.Context, mode capture.Mode) (delegated bool, err error)
	// ResetPermissions asks the resident to clear its permission prompt
	// counters. delegated=false means no resident is running.
	ResetPermissions(ctx context.Context) (delegated bool, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }

const (
	pingRequest      = "PING\n"
	pongResponse     = "PONG\n"
	acceptedResponse = "ACCEPTED\n"
	errorResponse    = "ERROR\n"
	capturePrefix    = "CAPTURE "
	resetRequest     = "RESET PERMISSIONS\n"
)

// FormatRequest renders the request line for mode.
func FormatRequest(mode capture.Mode) string {
	if mode == capture.ModeFullScreen {
		return capturePrefix + "FULL\n"
	}
	return capturePrefix + "AREA\n"
}

// ParseRequest parses a request line such as "CAPTURE AREA\n".
func ParseRequest(line string) (Request, error) {
	if line == resetRequest {
		return Request{Kind: RequestResetPermissions}, nil
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, capturePrefix) {
		return Request{}, fmt.Errorf("unknown request %q", line)
	}
	mode, err := capture.ParseMode(strings.TrimPrefix(line, capturePrefix))
	if err != nil {
		return Request{}, err
	}
	return Request{Mode: mode}, nil
}
