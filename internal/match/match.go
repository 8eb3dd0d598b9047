// Package match scores transcribed text against the active command
// catalogue.
//
// The reference scoring is deliberately binary: a command phrase that is
// contained (case-insensitively) in the input scores 1.0, anything else
// scores 0.0, and ties resolve to the first command in catalogue order. An
// optional Jaro-Winkler scorer can be enabled to give partial credit to
// near-miss transcriptions; it is off by default because it changes which
// utterances clear the execution threshold.
package match

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Command is one entry of the voice command catalogue. Commands are
// immutable once loaded; the dispatcher swaps whole catalogues atomically
// instead of mutating entries in place.
type Command struct {
	// Name uniquely identifies the command.
	Name string

	// Action is the opaque action descriptor handed to the actuator, or one
	// of the reserved mode sentinels understood by the dispatcher.
	Action string

	// Phrases are the trigger phrases, tried in order.
	Phrases []string
}

// Result is the outcome of matching input text against a catalogue.
type Result struct {
	// Command is the best-matching catalogue entry, or nil when no phrase
	// in the entire catalogue had any overlap with the input.
	Command *Command

	// Confidence is in [0, 1]. With binary scoring it is exactly 0 or 1.
	Confidence float64
}

// Option configures a [Matcher].
type Option func(*Matcher)

// WithFuzzy enables Jaro-Winkler scoring for phrases that are not contained
// in the input. threshold is the minimum similarity for a fuzzy score to
// count at all; scores below it are treated as 0.
func WithFuzzy(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzy = true
		m.fuzzyThreshold = threshold
	}
}

// Matcher scores input text against command catalogues. It is stateless and
// safe for concurrent use.
type Matcher struct {
	fuzzy          bool
	fuzzyThreshold float64
}

// New returns a Matcher with binary containment scoring unless [WithFuzzy]
// is supplied.
func New(opts ...Option) *Matcher {
	m := &Matcher{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Best returns the best-matching command for text. Ties are resolved by
// first-seen order: a later command only wins with a strictly higher
// confidence. text is expected to be already lowercased by the
// transcription bridge, but phrases are lowercased here so catalogue
// entries may be written in any case.
func (m *Matcher) Best(text string, catalogue []Command) Result {
	var best Result
	for i := range catalogue {
		cmd := &catalogue[i]
		for _, phrase := range cmd.Phrases {
			c := m.score(text, phrase)
			if c > best.Confidence {
				best.Confidence = c
				best.Command = cmd
			}
		}
	}
	return best
}

// score computes the per-phrase confidence.
func (m *Matcher) score(text, phrase string) float64 {
	phrase = strings.ToLower(phrase)
	if strings.Contains(strings.ToLower(text), phrase) {
		return 1.0
	}
	if !m.fuzzy {
		return 0.0
	}
	sim := matchr.JaroWinkler(strings.ToLower(text), phrase, true)
	if sim < m.fuzzyThreshold {
		return 0.0
	}
	return sim
}
