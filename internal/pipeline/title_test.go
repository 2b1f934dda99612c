package pipeline

import "testing"

func TestConstructTitlePrefersPlanSummary(t *testing.T) {
	got := ConstructTitle("PLAN: add retry logic to the fetch client", "some task text here", 5)
	if got != "feat: add retry logic to the fetch client" {
		t.Errorf("got %q", got)
	}
}

func TestConstructTitleFallsBackToTaskText(t *testing.T) {
	got := ConstructTitle("", "improve logging across the service", 5)
	if got != "chore: improve logging across the service" {
		t.Errorf("got %q", got)
	}
}

func TestConstructTitleFallsBackToImprovementNumber(t *testing.T) {
	got := ConstructTitle("", "", 7)
	if got != "chore: improvement #7" {
		t.Errorf("got %q", got)
	}
}

func TestConstructTitleRejectsLowSignalSet(t *testing.T) {
	got := ConstructTitle("fix", "", 9)
	if got != "chore: improvement #9" {
		t.Errorf("expected fallback for low-signal title, got %q", got)
	}
}

func TestConstructTitleRejectsSingleWord(t *testing.T) {
	got := ConstructTitle("Refactorification", "", 2)
	if got != "chore: improvement #2" {
		t.Errorf("expected fallback for single-word title, got %q", got)
	}
}

func TestConstructTitleKeepsExistingConventionalPrefix(t *testing.T) {
	got := ConstructTitle("PLAN: fix: repair the broken retry path", "", 1)
	if got != "fix: repair the broken retry path" {
		t.Errorf("got %q", got)
	}
}

func TestConstructTitleTruncatesLongTitles(t *testing.T) {
	long := "implement a very long and detailed description of a sweeping refactor across many files in the codebase"
	got := ConstructTitle("PLAN: "+long, "", 1)
	if len(got) != titleMaxLen {
		t.Errorf("expected truncated length %d, got %d (%q)", titleMaxLen, len(got), got)
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("expected truncated title to end with ..., got %q", got)
	}
}

func TestInferTypeHeuristics(t *testing.T) {
	cases := map[string]string{
		"add unit tests for the parser":       "test",
		"document the new API":                "docs",
		"fix the lint pipeline":                "ci",
		"refactor the scheduler":               "refactor",
		"fixes a crash on startup":             "fix",
		"add support for retries":              "feat",
		"clean up stale configuration values":  "chore",
	}
	for text, want := range cases {
		if got := inferType(text); got != want {
			t.Errorf("inferType(%q) = %q, want %q", text, got, want)
		}
	}
}
