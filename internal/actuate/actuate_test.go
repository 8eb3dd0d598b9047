package actuate

import (
	"errors"
	"testing"
)

func TestScopeRunner_WrapsCommandInUserScope(t *testing.T) {
	t.Parallel()

	var gotName string
	var gotArgs []string
	r := &ScopeRunner{start: func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}}

	if err := r.Run("firefox 'https://example.com'"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotName != "systemd-run" {
		t.Errorf("name = %q, want systemd-run", gotName)
	}
	want := []string{"--user", "--scope", "--slice=app.slice", "sh", "-c",
		"firefox 'https://example.com'"}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestScopeRunner_EmptyCommand(t *testing.T) {
	t.Parallel()

	r := &ScopeRunner{start: func(string, ...string) error {
		t.Fatal("start called for empty command")
		return nil
	}}
	if err := r.Run(""); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestScopeRunner_StartFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("spawn failed")
	r := &ScopeRunner{start: func(string, ...string) error { return boom }}
	if err := r.Run("true"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped spawn error", err)
	}
}

func TestYdoTypist_PassesTextVerbatim(t *testing.T) {
	t.Parallel()

	var gotArgs []string
	ty := &YdoTypist{run: func(name string, args ...string) error {
		gotArgs = append([]string{name}, args...)
		return nil
	}}
	ty.probeOnce.Do(func() {}) // skip the binary probe

	text := "it's 5 o'clock; $HOME stays literal"
	if err := ty.Type(text); err != nil {
		t.Fatalf("Type: %v", err)
	}
	want := []string{"ydotool", "type", "--", text}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestYdoTypist_EmptyTextIsNoOp(t *testing.T) {
	t.Parallel()

	ty := &YdoTypist{run: func(string, ...string) error {
		t.Fatal("run called for empty text")
		return nil
	}}
	if err := ty.Type(""); err != nil {
		t.Errorf("Type(\"\") = %v, want nil", err)
	}
}
