package config

import (
	"strings"
	"testing"
)

func TestGetSetValue(t *testing.T) {
	t.Parallel()

	cfg := Default()

	tests := []struct {
		key   string
		value string
	}{
		{"wake_phrase", "hey computer"},
		{"command_threshold", "65"},
		{"server.log_level", "debug"},
		{"speech.engine", "openai"},
		{"speech.gpu", "true"},
		{"speech.timeout_ms", "15000"},
		{"matching.fuzzy", "true"},
		{"matching.fuzzy_threshold", "0.9"},
		{"guard.debounce_ms", "250"},
	}
	for _, tt := range tests {
		if err := SetValue(cfg, tt.key, tt.value); err != nil {
			t.Fatalf("SetValue(%q, %q): %v", tt.key, tt.value, err)
		}
		got, err := GetValue(cfg, tt.key)
		if err != nil {
			t.Fatalf("GetValue(%q): %v", tt.key, err)
		}
		if got != tt.value {
			t.Errorf("GetValue(%q) = %q, want %q", tt.key, got, tt.value)
		}
	}

	if cfg.CommandThreshold != 65 {
		t.Errorf("command_threshold = %d, want 65", cfg.CommandThreshold)
	}
	if cfg.Speech.Engine != EngineOpenAI {
		t.Errorf("speech.engine = %q", cfg.Speech.Engine)
	}
}

func TestSetValue_Rejections(t *testing.T) {
	t.Parallel()

	cfg := Default()
	tests := []struct {
		key   string
		value string
	}{
		{"no_such_key", "x"},
		{"command_threshold", "eighty"},
		{"speech.gpu", "maybe"},
		{"server.log_level", "verbose"},
		{"speech.engine", "parrot"},
	}
	for _, tt := range tests {
		if err := SetValue(cfg, tt.key, tt.value); err == nil {
			t.Errorf("SetValue(%q, %q) accepted", tt.key, tt.value)
		}
	}
}

func TestSetValue_ExitPhraseList(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := SetValue(cfg, "typing.exit_phrases", "stop typing, done now ,"); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Typing.ExitPhrases) != 2 || cfg.Typing.ExitPhrases[1] != "done now" {
		t.Errorf("exit_phrases = %v", cfg.Typing.ExitPhrases)
	}
}

func TestKeys_CoverAccessors(t *testing.T) {
	t.Parallel()

	keys := Keys()
	if len(keys) == 0 {
		t.Fatal("no keys")
	}
	cfg := Default()
	for _, k := range keys {
		if _, err := GetValue(cfg, k); err != nil {
			t.Errorf("GetValue(%q): %v", k, err)
		}
		if !strings.Contains(k, ".") && k != "wake_phrase" &&
			k != "command_threshold" && k != "processing_interval_ms" {
			t.Errorf("unexpected top-level key %q", k)
		}
	}
}
