package transcribe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and trim", "  Open Terminal  ", "open terminal"},
		{"bracketed annotation", "[BLANK_AUDIO] open terminal", "open terminal"},
		{"braced annotation", "{noise} hello", "hello"},
		{"parenthesized annotation", "hello (coughs) there", "hello there"},
		{"punctuation stripped", "Open the terminal, please!", "open the terminal please"},
		{"whitespace collapsed", "open   the\tterminal", "open the terminal"},
		{"annotation only", "[MUSIC]", ""},
		{"empty", "", ""},
		{"mixed", " [MUSIC] Search Images for Red Panda. ", "search images for red panda"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// flakyEngine fails a fixed number of times, then succeeds.
type flakyEngine struct {
	failures int
	calls    int
}

var errEngine = errors.New("inference failed")

func (f *flakyEngine) Transcribe(_ context.Context, _ []float32) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errEngine
	}
	return "hello", nil
}

func (f *flakyEngine) Loaded() bool { return true }

func (f *flakyEngine) Close() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	eng := &flakyEngine{failures: 100}
	b := NewBreaker(eng, BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := b.Transcribe(context.Background(), nil); !errors.Is(err, errEngine) {
			t.Fatalf("call %d: err = %v, want engine error", i, err)
		}
	}
	if _, err := b.Transcribe(context.Background(), nil); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
	if eng.calls != 3 {
		t.Errorf("engine called %d times, want 3 (open breaker must not call)", eng.calls)
	}
}

func TestBreaker_ProbeClosesAfterReset(t *testing.T) {
	t.Parallel()

	eng := &flakyEngine{failures: 2}
	b := NewBreaker(eng, BreakerConfig{MaxFailures: 2, ResetTimeout: 10 * time.Millisecond})

	b.Transcribe(context.Background(), nil)
	b.Transcribe(context.Background(), nil)

	time.Sleep(20 * time.Millisecond)

	text, err := b.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("text = %q, want hello", text)
	}
	// Breaker closed again: subsequent calls go straight through.
	if _, err := b.Transcribe(context.Background(), nil); err != nil {
		t.Errorf("post-recovery call failed: %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	eng := &flakyEngine{failures: 1}
	b := NewBreaker(eng, BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})

	b.Transcribe(context.Background(), nil) // fail 1
	if _, err := b.Transcribe(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One more isolated failure must not open the breaker.
	eng.failures = eng.calls + 1
	b.Transcribe(context.Background(), nil)
	if _, err := b.Transcribe(context.Background(), nil); errors.Is(err, ErrBreakerOpen) {
		t.Error("breaker opened without consecutive failures")
	}
}
