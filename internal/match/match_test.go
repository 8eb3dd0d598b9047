package match

import "testing"

func testCatalogue() []Command {
	return []Command{
		{Name: "terminal", Action: "kgx", Phrases: []string{"open terminal", "start terminal"}},
		{Name: "browser", Action: "firefox", Phrases: []string{"browser", "open firefox"}},
		{Name: "also-browser", Action: "chromium", Phrases: []string{"browser"}},
	}
}

func TestBest_CaseInsensitiveContainment(t *testing.T) {
	t.Parallel()

	m := New()
	res := m.Best("Open Browser", testCatalogue())

	if res.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", res.Confidence)
	}
	if res.Command == nil || res.Command.Name != "browser" {
		t.Errorf("matched %+v, want browser", res.Command)
	}
}

func TestBest_NoOverlapReturnsNil(t *testing.T) {
	t.Parallel()

	m := New()
	res := m.Best("completely unrelated words", testCatalogue())

	if res.Command != nil {
		t.Errorf("matched %q, want no match", res.Command.Name)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", res.Confidence)
	}
}

func TestBest_TiesResolveToFirstSeen(t *testing.T) {
	t.Parallel()

	m := New()
	// "browser" is a phrase of both the second and third commands; the
	// earlier one must win.
	res := m.Best("browser please", testCatalogue())

	if res.Command == nil || res.Command.Name != "browser" {
		t.Errorf("tie resolved to %+v, want first-seen command browser", res.Command)
	}
}

func TestBest_PhraseCaseDoesNotMatter(t *testing.T) {
	t.Parallel()

	m := New()
	catalogue := []Command{
		{Name: "shout", Action: "x", Phrases: []string{"OPEN TERMINAL"}},
	}
	res := m.Best("please open terminal now", catalogue)

	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for uppercase phrase", res.Confidence)
	}
}

func TestBest_EmptyCatalogue(t *testing.T) {
	t.Parallel()

	m := New()
	res := m.Best("open terminal", nil)

	if res.Command != nil || res.Confidence != 0 {
		t.Errorf("got %+v/%v, want nil/0 for empty catalogue", res.Command, res.Confidence)
	}
}

func TestBest_FuzzyScoresNearMisses(t *testing.T) {
	t.Parallel()

	strict := New()
	fuzzy := New(WithFuzzy(0.85))

	catalogue := []Command{
		{Name: "terminal", Action: "kgx", Phrases: []string{"open terminal"}},
	}

	// A transcription one character off contains no exact phrase.
	text := "open termina"

	if res := strict.Best(text, catalogue); res.Confidence != 0 {
		t.Errorf("strict confidence = %v, want 0", res.Confidence)
	}
	res := fuzzy.Best(text, catalogue)
	if res.Command == nil || res.Command.Name != "terminal" {
		t.Fatalf("fuzzy matcher found %+v, want terminal", res.Command)
	}
	if res.Confidence < 0.85 || res.Confidence >= 1.0 {
		t.Errorf("fuzzy confidence = %v, want in [0.85, 1.0)", res.Confidence)
	}
}

func TestBest_FuzzyBelowThresholdIsZero(t *testing.T) {
	t.Parallel()

	fuzzy := New(WithFuzzy(0.9))
	catalogue := []Command{
		{Name: "terminal", Action: "kgx", Phrases: []string{"open terminal"}},
	}
	res := fuzzy.Best("play some music", catalogue)

	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 below fuzzy threshold", res.Confidence)
	}
}
