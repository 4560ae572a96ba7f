// Package sound plays the capture confirmation sound.
package sound

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoSound means none of the candidate sounds exist on this system.
var ErrNoSound = errors.New("no system sound available")

// DefaultNames is tried in order.
var DefaultNames = []string{"Glass", "Pop"}

// Starter launches a player process without waiting for it to finish.
type Starter func(name string, args ...string) error

// StartCommand starts the command and reaps it in the background.
func StartCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("sound: player exited", "error", err)
		}
	}()
	return nil
}

// Player plays the first sound in Names found under Dir.
type Player struct {
	Command string
	Dir     string
	Ext     string
	Names   []string
	Start   Starter
}

// Resolve returns the path of the first available sound.
func (p *Player) Resolve() (string, error) {
	if p.Command == "" || p.Dir == "" {
		return "", ErrNoSound
	}
	names := p.Names
	if len(names) == 0 {
		names = DefaultNames
	}
	for _, n := range names {
		path := filepath.Join(p.Dir, n+p.Ext)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
	}
	return "", ErrNoSound
}

// Play starts the sound and returns the file played. ErrNoSound is returned
// unwrapped so callers can record it as skipped.
func (p *Player) Play() (string, error) {
	path, err := p.Resolve()
	if err != nil {
		return "", err
	}
	start := p.Start
	if start == nil {
		start = StartCommand
	}
	if err := start(p.Command, path); err != nil {
		return path, fmt.Errorf("start %s: %w", p.Command, err)
	}
	slog.Debug("sound: playing", "path", path)
	return path, nil
}
