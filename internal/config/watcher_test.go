package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, wake string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("wake_phrase: \""+wake+"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "hello willow")

	w, err := NewWatcher(path, nil, WithInterval(time.Hour))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().WakePhrase; got != "hello willow" {
		t.Errorf("wake_phrase = %q", got)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "before")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, cfg *Config) {
		changed <- cfg
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Ensure a different mtime even on coarse filesystem clocks.
	time.Sleep(20 * time.Millisecond)
	writeConfig(t, path, "after")
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.WakePhrase != "after" {
			t.Errorf("wake_phrase = %q, want after", cfg.WakePhrase)
		}
		if got := w.Current().WakePhrase; got != "after" {
			t.Errorf("Current().WakePhrase = %q, want after", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the change")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "valid")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte("unknown_key: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := w.Current().WakePhrase; got != "valid" {
		t.Errorf("wake_phrase = %q, want previous valid config retained", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()

	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}
