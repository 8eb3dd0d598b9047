// Package dispatch routes cleaned transcription text through the
// three-mode state machine and triggers actuators, guarded by the
// execution guard.
package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/willowvoice/willow/internal/actuate"
	"github.com/willowvoice/willow/internal/event"
	"github.com/willowvoice/willow/internal/guard"
	"github.com/willowvoice/willow/internal/intent"
	"github.com/willowvoice/willow/internal/match"
)

// Mode is the dispatcher state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCommand
	ModeTyping
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeCommand:
		return "command"
	case ModeTyping:
		return "typing"
	default:
		return "unknown"
	}
}

// ParseMode converts a wire name back to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return ModeNormal, nil
	case "command":
		return ModeCommand, nil
	case "typing":
		return ModeTyping, nil
	default:
		return ModeNormal, fmt.Errorf("dispatch: unknown mode %q", s)
	}
}

// Reserved catalogue actions that change mode instead of running a command.
const (
	ActionExitCommandMode = "exit_command_mode"
	ActionStartTypingMode = "start_typing_mode"
)

// Stats receives dispatch outcome counts. Implemented by the metrics
// package; a no-op default is used when none is provided.
type Stats interface {
	CommandExecuted()
	CommandSuppressed()
	UtteranceTyped()
}

type noopStats struct{}

func (noopStats) CommandExecuted()   {}
func (noopStats) CommandSuppressed() {}
func (noopStats) UtteranceTyped()    {}

// Settings is the mutable dispatch configuration, replaced atomically on
// reload.
type Settings struct {
	WakePhrase  string
	ExitPhrases []string
	// Threshold is the minimum catalogue match confidence, 0.0 to 1.0.
	Threshold float64
	Catalogue []match.Command
}

// Deps are the dispatcher's collaborators.
type Deps struct {
	Matcher   *match.Matcher
	Extractor *intent.Extractor
	Guard     *guard.Guard
	Runner    actuate.Runner
	Typist    actuate.Typist
	Keys      actuate.Keys
	Bus       *event.Bus
	Stats     Stats
	// OnMode is invoked with the new mode after every transition, while
	// dispatch is quiescent. Used to swap the segmenter's VAD profile.
	OnMode func(Mode)
}

// Dispatcher owns the mode, the display buffer and the active settings.
// All methods are safe for concurrent use.
type Dispatcher struct {
	matcher   *match.Matcher
	extractor *intent.Extractor
	guard     *guard.Guard
	runner    actuate.Runner
	typist    actuate.Typist
	keys      actuate.Keys
	bus       *event.Bus
	stats     Stats
	onMode    func(Mode)

	mu       sync.Mutex
	mode     Mode
	buffer   string
	settings Settings
}

// New creates a Dispatcher in normal mode.
func New(deps Deps, settings Settings) *Dispatcher {
	stats := deps.Stats
	if stats == nil {
		stats = noopStats{}
	}
	return &Dispatcher{
		matcher:   deps.Matcher,
		extractor: deps.Extractor,
		guard:     deps.Guard,
		runner:    deps.Runner,
		typist:    deps.Typist,
		keys:      deps.Keys,
		bus:       deps.Bus,
		stats:     stats,
		onMode:    deps.OnMode,
		settings:  settings,
	}
}

// Mode returns the current mode.
func (d *Dispatcher) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Buffer returns the current display buffer.
func (d *Dispatcher) Buffer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffer
}

// SetMode forces a mode, as the control surface does. The display buffer
// is cleared on any actual transition.
func (d *Dispatcher) SetMode(m Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setMode(m)
}

// Configure atomically replaces the dispatch settings.
func (d *Dispatcher) Configure(s Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}

// SetMatcher replaces the phrase matcher, e.g. when fuzzy matching is
// toggled on reload.
func (d *Dispatcher) SetMatcher(m *match.Matcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matcher = m
}

// SetExtractor replaces the intent extractor, e.g. when the application
// alias table or search engines change on reload.
func (d *Dispatcher) SetExtractor(e *intent.Extractor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extractor = e
}

// Settings returns a copy of the active settings.
func (d *Dispatcher) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// Dispatch processes one cleaned utterance according to the current mode.
// text must already be normalized by transcribe.Clean; empty text is
// ignored upstream.
func (d *Dispatcher) Dispatch(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.mode {
	case ModeNormal:
		d.dispatchNormal(text)
	case ModeCommand:
		d.dispatchCommand(text)
	case ModeTyping:
		d.dispatchTyping(text)
	}
}

func (d *Dispatcher) dispatchNormal(text string) {
	wake := d.settings.WakePhrase
	if wake != "" && strings.Contains(text, wake) {
		slog.Info("dispatch: wake phrase heard", "text", text)
		d.setMode(ModeCommand)
	}
}

func (d *Dispatcher) dispatchCommand(text string) {
	d.setBuffer(text)

	if a, ok := d.extractor.Open(text); ok {
		d.execute(a.Key, a.Command)
		return
	}
	if a, ok := d.extractor.SearchQuery(text); ok {
		d.execute(a.Key, a.Command)
		return
	}

	res := d.matcher.Best(text, d.settings.Catalogue)
	if res.Command == nil || res.Confidence < d.settings.Threshold {
		slog.Debug("dispatch: no command matched", "text", text)
		return
	}

	cmd := res.Command
	switch cmd.Action {
	case ActionExitCommandMode:
		d.setMode(ModeNormal)
	case ActionStartTypingMode:
		d.setMode(ModeTyping)
	default:
		d.execute(cmd.Name, cmd.Action)
	}
}

// Spoken key names recognized in typing mode. Exact match only, so a
// dictated sentence containing "new line" is still typed verbatim.
var enterPhrases = map[string]bool{
	"new line":    true,
	"press enter": true,
}

func (d *Dispatcher) dispatchTyping(text string) {
	for _, phrase := range d.settings.ExitPhrases {
		if phrase != "" && strings.Contains(text, phrase) {
			d.setMode(ModeNormal)
			return
		}
	}

	if d.keys != nil && enterPhrases[text] {
		if err := d.keys.PressEnter(); err != nil {
			slog.Error("dispatch: key press failed", "err", err)
			d.bus.Emit(event.Error, map[string]any{"message": err.Error()})
		}
		return
	}

	if err := d.typist.Type(text); err != nil {
		slog.Error("dispatch: typing failed", "err", err)
		d.bus.Emit(event.Error, map[string]any{"message": err.Error()})
		return
	}
	d.stats.UtteranceTyped()
	d.setBuffer(text)
}

// execute runs an action through the guard. Duplicate keys are suppressed;
// actuator failures are surfaced as error events without a retry.
func (d *Dispatcher) execute(key, command string) {
	if !d.guard.Allow(key) {
		slog.Info("dispatch: duplicate suppressed", "key", key)
		d.stats.CommandSuppressed()
		return
	}
	if err := d.runner.Run(command); err != nil {
		slog.Error("dispatch: command failed", "key", key, "err", err)
		d.bus.Emit(event.Error, map[string]any{
			"message": err.Error(),
			"command": key,
		})
		return
	}
	d.stats.CommandExecuted()
	d.bus.Emit(event.CommandExecuted, map[string]any{
		"name":   key,
		"action": command,
	})
}

// setMode performs a transition with its side effects. Caller holds d.mu.
func (d *Dispatcher) setMode(m Mode) {
	if d.mode == m {
		return
	}
	old := d.mode
	d.mode = m
	d.setBuffer("")
	slog.Info("dispatch: mode changed", "from", old.String(), "to", m.String())
	d.bus.Emit(event.ModeChanged, map[string]any{
		"from": old.String(),
		"mode": m.String(),
	})
	if d.onMode != nil {
		d.onMode(m)
	}
}

// setBuffer updates the display buffer and notifies observers. Caller
// holds d.mu.
func (d *Dispatcher) setBuffer(text string) {
	if d.buffer == text {
		return
	}
	d.buffer = text
	d.bus.Emit(event.BufferChanged, map[string]any{"buffer": text})
}
