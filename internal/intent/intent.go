// Package intent pattern-extracts structured intents from transcribed text,
// independently of the command catalogue.
//
// Two patterns are recognised: smart-open ("open firefox", "launch music
// player", "start code") and smart-search ("search images for red panda").
// Both resolve against configuration — an application alias table and a
// search-engine URL map — and yield an [Action] carrying the shell command
// to run plus the deduplication key the execution guard uses. A pattern
// that parses but fails to resolve is treated as not matched, so the text
// falls through to catalogue matching.
package intent

import (
	"net/url"
	"os/exec"
	"strings"
)

// openTriggers are checked in order. The trailing space is required so a
// trigger only matches as a standalone word followed by an argument.
var openTriggers = []string{"open ", "launch ", "start "}

// fallbackBrowser opens search URLs when no browser is configured.
const fallbackBrowser = "xdg-open"

// Action is a resolved intent ready for the execution guard and actuator.
type Action struct {
	// Key identifies the action for deduplication, e.g.
	// "smart_open_music player" or "smart_search_images_red panda".
	Key string

	// Command is the shell command that performs the action.
	Command string
}

// Apps resolves spoken application names. Aliases maps a spoken name to
// candidate executables tried in declared order; Defaults maps a spoken
// name to a last-resort executable.
type Apps struct {
	Aliases  map[string][]string
	Defaults map[string]string

	// lookPath reports whether a candidate is directly runnable.
	// Replaceable in tests; defaults to exec.LookPath.
	lookPath func(name string) (string, error)
}

// NewApps builds an application resolver from the configured alias and
// default tables.
func NewApps(aliases map[string][]string, defaults map[string]string) *Apps {
	return &Apps{
		Aliases:  aliases,
		Defaults: defaults,
		lookPath: exec.LookPath,
	}
}

// Resolve maps a spoken target to a runnable executable. Resolution order:
// the target itself, each configured alias candidate in order, then the
// configured default for the target. The first runnable candidate wins.
func (a *Apps) Resolve(target string) (string, bool) {
	if a.runnable(target) {
		return target, true
	}
	for _, candidate := range a.Aliases[target] {
		if a.runnable(candidate) {
			return candidate, true
		}
	}
	if def, ok := a.Defaults[target]; ok && a.runnable(def) {
		return def, true
	}
	return "", false
}

func (a *Apps) runnable(name string) bool {
	if name == "" || strings.ContainsAny(name, " \t") {
		return false
	}
	_, err := a.lookPath(name)
	return err == nil
}

// Search resolves smart-search intents against the configured engine map.
type Search struct {
	// Engines maps a lowercase engine name to a base URL the encoded query
	// is appended to.
	Engines map[string]string

	// Browser is the command used to open result URLs; empty means the
	// fallback browser.
	Browser string
}

// Extractor recognises the smart patterns. Safe for concurrent use; all
// fields are read-only after construction.
type Extractor struct {
	apps   *Apps
	search *Search
}

// New creates an Extractor.
func New(apps *Apps, search *Search) *Extractor {
	return &Extractor{apps: apps, search: search}
}

// Open extracts and resolves a smart-open intent. ok is false when no
// trigger is present or no candidate application is runnable.
func (e *Extractor) Open(text string) (Action, bool) {
	for _, trigger := range openTriggers {
		idx := strings.Index(text, trigger)
		if idx < 0 {
			continue
		}
		target := strings.TrimSpace(text[idx+len(trigger):])
		if target == "" {
			continue
		}
		app, ok := e.apps.Resolve(target)
		if !ok {
			continue
		}
		return Action{
			Key:     "smart_open_" + target,
			Command: app,
		}, true
	}
	return Action{}, false
}

// SearchQuery extracts and resolves a smart-search intent of the form
// "search <engine> for <query>". ok is false when the pattern is absent,
// either part is empty, or the engine is not configured.
func (e *Extractor) SearchQuery(text string) (Action, bool) {
	searchIdx := strings.Index(text, "search ")
	if searchIdx < 0 {
		return Action{}, false
	}
	rest := text[searchIdx+len("search "):]
	forIdx := strings.Index(rest, " for ")
	if forIdx < 0 {
		return Action{}, false
	}

	engine := strings.TrimSpace(rest[:forIdx])
	query := strings.TrimSpace(rest[forIdx+len(" for "):])
	if engine == "" || query == "" {
		return Action{}, false
	}

	base, ok := e.search.Engines[strings.ToLower(engine)]
	if !ok {
		return Action{}, false
	}

	browser := e.search.Browser
	if browser == "" {
		browser = fallbackBrowser
	}

	return Action{
		Key:     "smart_search_" + engine + "_" + query,
		Command: browser + " '" + base + url.QueryEscape(query) + "'",
	}, true
}
