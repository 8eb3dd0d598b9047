// Package actuate performs the side effects of recognized speech: launching
// commands in their own systemd scope, typing text into the focused window
// and pressing individual keys.
package actuate

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// Runner launches shell commands detached from the assistant process.
type Runner interface {
	Run(command string) error
}

// Typist types literal text into the currently focused window.
type Typist interface {
	Type(text string) error
}

// Keys presses single keys (Enter after a typed utterance, for example).
type Keys interface {
	PressEnter() error
}

// ScopeRunner executes commands via `systemd-run --user --scope` so each
// launched application lives in its own transient scope and survives the
// assistant exiting. Fire and forget: the scope's exit status is not
// collected.
type ScopeRunner struct {
	// start launches a prepared command without waiting; overridable in
	// tests.
	start func(name string, args ...string) error
}

var _ Runner = (*ScopeRunner)(nil)

// NewScopeRunner creates a Runner backed by systemd-run.
func NewScopeRunner() *ScopeRunner {
	return &ScopeRunner{start: startDetached}
}

// Run launches command inside a transient user scope. The command string is
// passed to a shell so catalogue actions may use arguments and quoting.
func (r *ScopeRunner) Run(command string) error {
	if command == "" {
		return fmt.Errorf("actuate: empty command")
	}
	err := r.start("systemd-run", "--user", "--scope", "--slice=app.slice",
		"sh", "-c", command)
	if err != nil {
		return fmt.Errorf("actuate: run %q: %w", command, err)
	}
	slog.Info("actuate: command launched", "command", command)
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

// YdoTypist types through the ydotool daemon. Availability is probed once;
// if the binary is missing every Type call fails with the probe error.
type YdoTypist struct {
	probeOnce sync.Once
	probeErr  error

	run func(name string, args ...string) error
}

var _ Typist = (*YdoTypist)(nil)

// NewYdoTypist creates a Typist backed by ydotool.
func NewYdoTypist() *YdoTypist {
	return &YdoTypist{run: runAndWait}
}

// Type writes text into the focused window. Empty text is a no-op.
func (t *YdoTypist) Type(text string) error {
	if text == "" {
		return nil
	}
	t.probeOnce.Do(func() {
		if _, err := exec.LookPath("ydotool"); err != nil {
			t.probeErr = fmt.Errorf("actuate: ydotool not found: %w", err)
		}
	})
	if t.probeErr != nil {
		return t.probeErr
	}
	if err := t.run("ydotool", "type", "--", text); err != nil {
		return fmt.Errorf("actuate: type text: %w", err)
	}
	return nil
}

func runAndWait(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}
