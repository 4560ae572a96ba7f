package sound

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlayFallsBackToSecondName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Pop.aiff"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	var started []string
	p := &Player{Command: "afplay", Dir: dir, Ext: ".aiff", Start: func(name string, args ...string) error {
		started = append(started, name+" "+args[0])
		return nil
	}}
	path, err := p.Play()
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if filepath.Base(path) != "Pop.aiff" {
		t.Fatalf("played %s, want Pop.aiff", path)
	}
	if len(started) != 1 {
		t.Fatalf("started = %v", started)
	}
}

func TestPlayPrefersGlass(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"Glass.aiff", "Pop.aiff"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := &Player{Command: "afplay", Dir: dir, Ext: ".aiff", Start: func(string, ...string) error { return nil }}
	path, err := p.Play()
	if err != nil || filepath.Base(path) != "Glass.aiff" {
		t.Fatalf("Play = %s, %v", path, err)
	}
}

func TestPlayWithoutAssets(t *testing.T) {
	p := &Player{Command: "afplay", Dir: t.TempDir(), Ext: ".aiff", Start: func(string, ...string) error {
		t.Fatal("nothing should be started")
		return nil
	}}
	if _, err := p.Play(); !errors.Is(err, ErrNoSound) {
		t.Fatalf("err = %v, want ErrNoSound", err)
	}
	if _, err := (&Player{}).Play(); !errors.Is(err, ErrNoSound) {
		t.Fatalf("zero player err = %v", err)
	}
}

func TestPlayStartFailure(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Glass.aiff"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &Player{Command: "afplay", Dir: dir, Ext: ".aiff", Start: func(string, ...string) error {
		return errors.New("exec: not found")
	}}
	if _, err := p.Play(); err == nil || errors.Is(err, ErrNoSound) {
		t.Fatalf("err = %v, want start failure", err)
	}
}
