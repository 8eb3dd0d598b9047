// Package config provides the configuration schema, loader, and file
// watcher for the Willow voice assistant.
package config

import (
	"strings"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// EngineName selects the speech-to-text implementation.
type EngineName string

const (
	// EngineWhisper runs whisper.cpp locally.
	EngineWhisper EngineName = "whisper"

	// EngineOpenAI uses the hosted transcription API.
	EngineOpenAI EngineName = "openai"
)

// IsValid reports whether e is a recognised engine name.
func (e EngineName) IsValid() bool {
	return e == EngineWhisper || e == EngineOpenAI
}

// Config is the root configuration, loaded from YAML via [Load] or
// [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`

	// WakePhrase moves the assistant from normal to command mode when it
	// is heard as a substring of an utterance.
	WakePhrase string `yaml:"wake_phrase"`

	// CommandThreshold is the minimum catalogue match confidence on a
	// 0 to 100 scale. Use [Config.Threshold] for the 0.0 to 1.0 value.
	CommandThreshold int `yaml:"command_threshold"`

	// ProcessingIntervalMs throttles the segment pipeline; 0 disables
	// throttling.
	ProcessingIntervalMs int `yaml:"processing_interval_ms"`

	Speech       SpeechConfig    `yaml:"speech"`
	VAD          VADConfig       `yaml:"vad"`
	Typing       TypingConfig    `yaml:"typing"`
	Matching     MatchingConfig  `yaml:"matching"`
	Guard        GuardConfig     `yaml:"guard"`
	Applications AppsConfig      `yaml:"applications"`
	Search       SearchConfig    `yaml:"search"`
	Commands     []CommandConfig `yaml:"commands"`
}

// ServerConfig holds network and logging settings for the control surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the control server listens on.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SpeechConfig selects and configures the speech-to-text engine.
type SpeechConfig struct {
	// Engine selects the implementation ("whisper" or "openai").
	Engine EngineName `yaml:"engine"`

	// Model is the model file path for whisper, or the hosted model name
	// for openai.
	Model string `yaml:"model"`

	// Language is the transcription language code.
	Language string `yaml:"language"`

	// GPU requests hardware acceleration where the engine build supports it.
	GPU bool `yaml:"gpu"`

	// APIKey authenticates against the hosted engine.
	APIKey string `yaml:"api_key"`

	// TimeoutMs bounds a single transcription call; 0 means no bound.
	TimeoutMs int `yaml:"timeout_ms"`
}

// Timeout returns the per-call transcription bound.
func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// VADProfile is one mode's voice activity detection tuning.
type VADProfile struct {
	// EnergyThreshold is the mean squared amplitude above which a frame
	// counts as voiced.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// SilenceMs is how much trailing silence closes a segment.
	SilenceMs int `yaml:"silence_ms"`

	// MinSpeechMs is the shortest voiced run kept as a segment.
	MinSpeechMs int `yaml:"min_speech_ms"`
}

// Silence returns the silence duration.
func (p VADProfile) Silence() time.Duration {
	return time.Duration(p.SilenceMs) * time.Millisecond
}

// MinSpeech returns the minimum speech duration.
func (p VADProfile) MinSpeech() time.Duration {
	return time.Duration(p.MinSpeechMs) * time.Millisecond
}

// VADConfig carries one profile per dispatcher mode.
type VADConfig struct {
	Normal  VADProfile `yaml:"normal"`
	Command VADProfile `yaml:"command"`
	Typing  VADProfile `yaml:"typing"`
}

// TypingConfig tunes typing mode.
type TypingConfig struct {
	// ExitPhrases return the assistant to normal mode when heard.
	ExitPhrases []string `yaml:"exit_phrases"`
}

// MatchingConfig tunes the phrase matcher.
type MatchingConfig struct {
	// Fuzzy enables Jaro-Winkler scoring for near-miss transcriptions.
	// Off by default: the stock behavior is binary containment.
	Fuzzy bool `yaml:"fuzzy"`

	// FuzzyThreshold is the minimum similarity for a fuzzy score to count.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// GuardConfig tunes the execution guard.
type GuardConfig struct {
	DedupWindowMs int `yaml:"dedup_window_ms"`
	RetentionMs   int `yaml:"retention_ms"`
	DebounceMs    int `yaml:"debounce_ms"`
}

// DedupWindow returns the per-key suppression window.
func (g GuardConfig) DedupWindow() time.Duration {
	return time.Duration(g.DedupWindowMs) * time.Millisecond
}

// Retention returns how long execution records are kept.
func (g GuardConfig) Retention() time.Duration {
	return time.Duration(g.RetentionMs) * time.Millisecond
}

// Debounce returns the global gap between any two executions.
func (g GuardConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMs) * time.Millisecond
}

// AppsConfig feeds the smart-open resolver.
type AppsConfig struct {
	// Aliases maps a spoken name to candidate executables, tried in order.
	Aliases map[string][]string `yaml:"aliases"`

	// Defaults maps a spoken name to a last-resort executable.
	Defaults map[string]string `yaml:"defaults"`
}

// SearchConfig feeds the smart-search resolver.
type SearchConfig struct {
	// Browser opens result URLs; empty falls back to xdg-open.
	Browser string `yaml:"browser"`

	// Engines maps an engine name to the base URL the encoded query is
	// appended to.
	Engines map[string]string `yaml:"engines"`
}

// CommandConfig is one catalogue entry. An entry whose every non-empty
// field starts with an underscore is a comment and is skipped on load.
type CommandConfig struct {
	Name    string   `yaml:"name"`
	Action  string   `yaml:"action"`
	Phrases []string `yaml:"phrases"`
}

// IsComment reports whether the entry is a config comment rather than a
// real command.
func (c CommandConfig) IsComment() bool {
	fields := append([]string{c.Name, c.Action}, c.Phrases...)
	seen := false
	for _, f := range fields {
		if f == "" {
			continue
		}
		if !strings.HasPrefix(f, "_") {
			return false
		}
		seen = true
	}
	return seen
}

// Threshold converts the stored 0 to 100 threshold to the 0.0 to 1.0
// scale used by the matcher, clamped into range.
func (c *Config) Threshold() float64 {
	t := c.CommandThreshold
	if t < 0 {
		t = 0
	}
	if t > 100 {
		t = 100
	}
	return float64(t) / 100
}

// ProcessingInterval returns the segment pipeline throttle.
func (c *Config) ProcessingInterval() time.Duration {
	return time.Duration(c.ProcessingIntervalMs) * time.Millisecond
}

// ActiveCommands returns the catalogue with comment entries filtered out.
func (c *Config) ActiveCommands() []CommandConfig {
	out := make([]CommandConfig, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		if cmd.IsComment() {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// Clone returns a deep copy of the config, so callers can stage edits
// without mutating the shared current config.
func (c *Config) Clone() *Config {
	out := *c

	out.Typing.ExitPhrases = append([]string(nil), c.Typing.ExitPhrases...)

	if c.Applications.Aliases != nil {
		out.Applications.Aliases = make(map[string][]string, len(c.Applications.Aliases))
		for k, v := range c.Applications.Aliases {
			out.Applications.Aliases[k] = append([]string(nil), v...)
		}
	}
	if c.Applications.Defaults != nil {
		out.Applications.Defaults = make(map[string]string, len(c.Applications.Defaults))
		for k, v := range c.Applications.Defaults {
			out.Applications.Defaults[k] = v
		}
	}
	if c.Search.Engines != nil {
		out.Search.Engines = make(map[string]string, len(c.Search.Engines))
		for k, v := range c.Search.Engines {
			out.Search.Engines[k] = v
		}
	}

	out.Commands = make([]CommandConfig, len(c.Commands))
	for i, cmd := range c.Commands {
		out.Commands[i] = cmd
		out.Commands[i].Phrases = append([]string(nil), cmd.Phrases...)
	}
	return &out
}

// Default returns the built-in configuration the assistant falls back to
// when no config file is usable.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8390",
			LogLevel:   LogInfo,
		},
		WakePhrase:       "hey willow",
		CommandThreshold: 80,
		Speech: SpeechConfig{
			Engine:   EngineWhisper,
			Model:    "models/ggml-base.en.bin",
			Language: "en",
		},
		VAD: VADConfig{
			Normal:  VADProfile{EnergyThreshold: 0.0005, SilenceMs: 500, MinSpeechMs: 150},
			Command: VADProfile{EnergyThreshold: 0.001, SilenceMs: 800, MinSpeechMs: 300},
			Typing:  VADProfile{EnergyThreshold: 0.001, SilenceMs: 1000, MinSpeechMs: 300},
		},
		Typing: TypingConfig{
			ExitPhrases: []string{"stop typing", "exit typing mode"},
		},
		Matching: MatchingConfig{
			FuzzyThreshold: 0.85,
		},
		Guard: GuardConfig{
			DedupWindowMs: 2000,
			RetentionMs:   5000,
			DebounceMs:    500,
		},
		Search: SearchConfig{
			Engines: map[string]string{
				"web":    "https://duckduckgo.com/?q=",
				"images": "https://duckduckgo.com/?iax=images&ia=images&q=",
			},
		},
		Commands: []CommandConfig{
			{Name: "exit_command_mode", Action: "exit_command_mode",
				Phrases: []string{"exit command mode", "never mind"}},
			{Name: "start_typing_mode", Action: "start_typing_mode",
				Phrases: []string{"typing mode", "start typing"}},
		},
	}
}
