package config

import (
	"fmt"
	"strconv"
	"strings"
)

// accessor reads and writes one scalar config field as a string.
type accessor struct {
	get func(*Config) string
	set func(*Config, string) error
}

func intAccessor(get func(*Config) *int) accessor {
	return accessor{
		get: func(c *Config) string { return strconv.Itoa(*get(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %q is not an integer", v)
			}
			*get(c) = n
			return nil
		},
	}
}

func boolAccessor(get func(*Config) *bool) accessor {
	return accessor{
		get: func(c *Config) string { return strconv.FormatBool(*get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %q is not a boolean", v)
			}
			*get(c) = b
			return nil
		},
	}
}

func stringAccessor(get func(*Config) *string) accessor {
	return accessor{
		get: func(c *Config) string { return *get(c) },
		set: func(c *Config, v string) error {
			*get(c) = v
			return nil
		},
	}
}

func floatAccessor(get func(*Config) *float64) accessor {
	return accessor{
		get: func(c *Config) string { return strconv.FormatFloat(*get(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("config: %q is not a number", v)
			}
			*get(c) = f
			return nil
		},
	}
}

// accessors maps dotted keys to scalar fields addressable through the
// control surface. The command catalogue and the alias/engine maps are
// managed through their own operations, not through single-key access.
var accessors = map[string]accessor{
	"wake_phrase":            stringAccessor(func(c *Config) *string { return &c.WakePhrase }),
	"command_threshold":      intAccessor(func(c *Config) *int { return &c.CommandThreshold }),
	"processing_interval_ms": intAccessor(func(c *Config) *int { return &c.ProcessingIntervalMs }),

	"server.listen_addr": stringAccessor(func(c *Config) *string { return &c.Server.ListenAddr }),
	"server.log_level": {
		get: func(c *Config) string { return string(c.Server.LogLevel) },
		set: func(c *Config, v string) error {
			l := LogLevel(v)
			if !l.IsValid() {
				return fmt.Errorf("config: log level %q is invalid", v)
			}
			c.Server.LogLevel = l
			return nil
		},
	},

	"speech.engine": {
		get: func(c *Config) string { return string(c.Speech.Engine) },
		set: func(c *Config, v string) error {
			e := EngineName(v)
			if !e.IsValid() {
				return fmt.Errorf("config: engine %q is invalid", v)
			}
			c.Speech.Engine = e
			return nil
		},
	},
	"speech.model":      stringAccessor(func(c *Config) *string { return &c.Speech.Model }),
	"speech.language":   stringAccessor(func(c *Config) *string { return &c.Speech.Language }),
	"speech.gpu":        boolAccessor(func(c *Config) *bool { return &c.Speech.GPU }),
	"speech.api_key":    stringAccessor(func(c *Config) *string { return &c.Speech.APIKey }),
	"speech.timeout_ms": intAccessor(func(c *Config) *int { return &c.Speech.TimeoutMs }),

	"matching.fuzzy":           boolAccessor(func(c *Config) *bool { return &c.Matching.Fuzzy }),
	"matching.fuzzy_threshold": floatAccessor(func(c *Config) *float64 { return &c.Matching.FuzzyThreshold }),

	"guard.dedup_window_ms": intAccessor(func(c *Config) *int { return &c.Guard.DedupWindowMs }),
	"guard.retention_ms":    intAccessor(func(c *Config) *int { return &c.Guard.RetentionMs }),
	"guard.debounce_ms":     intAccessor(func(c *Config) *int { return &c.Guard.DebounceMs }),

	"search.browser": stringAccessor(func(c *Config) *string { return &c.Search.Browser }),

	"typing.exit_phrases": {
		get: func(c *Config) string { return strings.Join(c.Typing.ExitPhrases, ",") },
		set: func(c *Config, v string) error {
			var phrases []string
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					phrases = append(phrases, p)
				}
			}
			c.Typing.ExitPhrases = phrases
			return nil
		},
	},
}

// GetValue returns the string form of the scalar field at the dotted key.
func GetValue(cfg *Config, key string) (string, error) {
	a, ok := accessors[key]
	if !ok {
		return "", fmt.Errorf("config: unknown key %q", key)
	}
	return a.get(cfg), nil
}

// SetValue parses value and assigns it to the field at the dotted key.
// The assignment is validated in isolation; callers should re-run
// [Validate] on the full config afterwards.
func SetValue(cfg *Config, key, value string) error {
	a, ok := accessors[key]
	if !ok {
		return fmt.Errorf("config: unknown key %q", key)
	}
	return a.set(cfg, value)
}

// Keys returns the dotted keys addressable through [GetValue] and
// [SetValue].
func Keys() []string {
	out := make([]string, 0, len(accessors))
	for k := range accessors {
		out = append(out, k)
	}
	return out
}
