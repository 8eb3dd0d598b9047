package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to [Default] when
// the file is missing or malformed. Config trouble is never fatal.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("config: falling back to defaults", "path", path, "err", err)
		return Default()
	}
	return cfg
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Decoding starts from [Default], so fields absent from the document keep
// their default values. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as a YAML document.
func Marshal(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	return string(data), nil
}

// Save writes cfg as YAML to path, replacing the file atomically via a
// temp file in the same directory.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dirOf(path), ".willow-config-*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: replace %q: %w", path, err)
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.CommandThreshold < 0 || cfg.CommandThreshold > 100 {
		errs = append(errs, fmt.Errorf("command_threshold %d is out of range [0, 100]", cfg.CommandThreshold))
	}
	if cfg.ProcessingIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("processing_interval_ms must not be negative"))
	}

	if cfg.Speech.Engine != "" && !cfg.Speech.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("speech.engine %q is invalid; valid values: whisper, openai", cfg.Speech.Engine))
	}
	if cfg.Speech.Engine == EngineOpenAI && cfg.Speech.APIKey == "" {
		errs = append(errs, fmt.Errorf("speech.api_key is required when speech.engine is openai"))
	}
	if cfg.Speech.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("speech.timeout_ms must not be negative"))
	}

	for _, p := range []struct {
		name    string
		profile VADProfile
	}{
		{"vad.normal", cfg.VAD.Normal},
		{"vad.command", cfg.VAD.Command},
		{"vad.typing", cfg.VAD.Typing},
	} {
		if p.profile.EnergyThreshold < 0 {
			errs = append(errs, fmt.Errorf("%s.energy_threshold must not be negative", p.name))
		}
		if p.profile.SilenceMs < 0 || p.profile.MinSpeechMs < 0 {
			errs = append(errs, fmt.Errorf("%s durations must not be negative", p.name))
		}
	}

	if cfg.Matching.FuzzyThreshold < 0 || cfg.Matching.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("matching.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Matching.FuzzyThreshold))
	}

	namesSeen := make(map[string]int, len(cfg.Commands))
	for i, cmd := range cfg.Commands {
		if cmd.IsComment() {
			continue
		}
		prefix := fmt.Sprintf("commands[%d]", i)
		if cmd.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[cmd.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of commands[%d]", prefix, cmd.Name, prev))
			}
			namesSeen[cmd.Name] = i
		}
		if cmd.Action == "" {
			errs = append(errs, fmt.Errorf("%s.action is required", prefix))
		}
		if len(cmd.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("%s.phrases must not be empty", prefix))
		}
	}

	if cfg.WakePhrase == "" {
		slog.Warn("config: wake_phrase is empty; command mode is only reachable via the control surface")
	}

	return errors.Join(errs...)
}
