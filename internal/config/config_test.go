package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromReader_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(`
wake_phrase: "computer"
command_threshold: 70
speech:
  engine: whisper
  model: /opt/models/ggml-small.en.bin
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.WakePhrase != "computer" {
		t.Errorf("wake_phrase = %q", cfg.WakePhrase)
	}
	if cfg.CommandThreshold != 70 {
		t.Errorf("command_threshold = %d", cfg.CommandThreshold)
	}
	if cfg.Speech.Model != "/opt/models/ggml-small.en.bin" {
		t.Errorf("speech.model = %q", cfg.Speech.Model)
	}
	// Absent fields keep their defaults.
	if cfg.Server.ListenAddr != "127.0.0.1:8390" {
		t.Errorf("listen_addr = %q, want default", cfg.Server.ListenAddr)
	}
	if cfg.VAD.Normal.EnergyThreshold != 0.0005 {
		t.Errorf("vad.normal.energy_threshold = %v, want default", cfg.VAD.Normal.EnergyThreshold)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("wake_phrse: oops\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.CommandThreshold = 150 },
			wantErr: "command_threshold",
		},
		{
			name:    "openai without api key",
			mutate:  func(c *Config) { c.Speech.Engine = EngineOpenAI; c.Speech.APIKey = "" },
			wantErr: "speech.api_key",
		},
		{
			name: "duplicate command name",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{
					Name: "exit_command_mode", Action: "x", Phrases: []string{"y"},
				})
			},
			wantErr: "duplicate",
		},
		{
			name: "command without phrases",
			mutate: func(c *Config) {
				c.Commands = append(c.Commands, CommandConfig{Name: "bare", Action: "x"})
			},
			wantErr: "phrases",
		},
		{
			name:    "negative vad threshold",
			mutate:  func(c *Config) { c.VAD.Command.EnergyThreshold = -1 },
			wantErr: "vad.command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DefaultIsValid(t *testing.T) {
	t.Parallel()

	if err := Validate(Default()); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestCommandConfig_IsComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  CommandConfig
		want bool
	}{
		{"all underscored", CommandConfig{Name: "_section", Action: "_", Phrases: []string{"_browsers"}}, true},
		{"real command", CommandConfig{Name: "terminal", Action: "kitty", Phrases: []string{"terminal"}}, false},
		{"mixed", CommandConfig{Name: "_note", Action: "kitty"}, false},
		{"empty entry", CommandConfig{}, false},
		{"underscored name only", CommandConfig{Name: "_just a note"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cmd.IsComment(); got != tt.want {
				t.Errorf("IsComment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActiveCommands_SkipsComments(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Commands = []CommandConfig{
		{Name: "_browsers section", Action: "_"},
		{Name: "browser", Action: "firefox", Phrases: []string{"browser"}},
	}
	active := cfg.ActiveCommands()
	if len(active) != 1 || active[0].Name != "browser" {
		t.Errorf("ActiveCommands() = %v", active)
	}
}

func TestThreshold_ScaleAndClamp(t *testing.T) {
	t.Parallel()

	cfg := &Config{CommandThreshold: 80}
	if got := cfg.Threshold(); got != 0.8 {
		t.Errorf("Threshold() = %v, want 0.8", got)
	}
	cfg.CommandThreshold = -5
	if got := cfg.Threshold(); got != 0 {
		t.Errorf("Threshold() = %v, want 0", got)
	}
	cfg.CommandThreshold = 400
	if got := cfg.Threshold(); got != 1 {
		t.Errorf("Threshold() = %v, want 1", got)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.WakePhrase = "hey computer"
	cfg.CommandThreshold = 65
	cfg.Commands = append(cfg.Commands, CommandConfig{
		Name: "browser", Action: "firefox", Phrases: []string{"browser", "web"},
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.WakePhrase != cfg.WakePhrase {
		t.Errorf("wake_phrase = %q, want %q", got.WakePhrase, cfg.WakePhrase)
	}
	if got.Threshold() != cfg.Threshold() {
		t.Errorf("threshold = %v, want %v", got.Threshold(), cfg.Threshold())
	}
	if len(got.Commands) != len(cfg.Commands) {
		t.Fatalf("catalogue size = %d, want %d", len(got.Commands), len(cfg.Commands))
	}
	for i := range cfg.Commands {
		if got.Commands[i].Name != cfg.Commands[i].Name ||
			got.Commands[i].Action != cfg.Commands[i].Action ||
			len(got.Commands[i].Phrases) != len(cfg.Commands[i].Phrases) {
			t.Errorf("command %d = %+v, want %+v", i, got.Commands[i], cfg.Commands[i])
		}
	}
}

func TestLoadOrDefault_FallsBack(t *testing.T) {
	t.Parallel()

	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.WakePhrase != Default().WakePhrase {
		t.Errorf("fallback wake_phrase = %q", cfg.WakePhrase)
	}
}

func TestLoadOrDefault_MalformedFileFallsBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")

	for name, doc := range map[string]string{
		"not yaml":      "{{{ nonsense",
		"unknown field": "wke_phrse: typo\n",
		"invalid value": "command_threshold: 900\n",
	} {
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg := LoadOrDefault(path)
		if cfg.WakePhrase != Default().WakePhrase || cfg.CommandThreshold != Default().CommandThreshold {
			t.Errorf("%s: fallback config differs from defaults", name)
		}
	}
}
