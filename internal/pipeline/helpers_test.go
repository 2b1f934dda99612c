package pipeline

import (
	"strings"
	"testing"
)

func TestExtractMarkerLine(t *testing.T) {
	text := "Some preamble.\nPLAN: add caching to the fetch layer\nMore detail below.\n"
	if got := extractMarkerLine(text, "PLAN:"); got != "add caching to the fetch layer" {
		t.Errorf("got %q", got)
	}
}

func TestExtractMarkerLineMissing(t *testing.T) {
	if got := extractMarkerLine("no marker here", "DONE:"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestImplementPlanSlug(t *testing.T) {
	slug, ok := implementPlanSlug("Implement Plan add-retry-logic")
	if !ok || slug != "add-retry-logic" {
		t.Errorf("got slug=%q ok=%v", slug, ok)
	}
}

func TestImplementPlanSlugNoMatch(t *testing.T) {
	_, ok := implementPlanSlug("fix the login flow")
	if ok {
		t.Error("expected no match")
	}
}

func TestIsMergeConflictTriage(t *testing.T) {
	if !IsMergeConflictTriage("Resolve merge conflict for improvement #3 (ralph-003) and merge to main.") {
		t.Error("expected match")
	}
	if IsMergeConflictTriage("some other task") {
		t.Error("expected no match")
	}
}

func TestIsOutstandingPRTriage(t *testing.T) {
	if !IsOutstandingPRTriage("Resolve outstanding Ralph PR #9 (ralph-009) and merge to main. PR: https://x/9") {
		t.Error("expected match")
	}
}

func TestOutstandingPRTaskRoundTrip(t *testing.T) {
	task := OutstandingPRTask(9, "ralph-009", "https://x/9")
	if !IsOutstandingPRTriage(task) {
		t.Errorf("expected %q to be recognized", task)
	}
}

func TestParkForHumanRoundTrip(t *testing.T) {
	task := ParkForHuman("Add retries to the fetch client", 4, "ralph-004", "/tmp/wt-004")
	if !IsHumanEscalationTriage(task) {
		t.Errorf("expected %q to be recognized", task)
	}
	if !strings.Contains(task, "Add retries to the fetch client") {
		t.Error("expected original task text to be preserved")
	}
}

func TestIsMainNotGreenSentinel(t *testing.T) {
	if !IsMainNotGreenSentinel(mainNotGreenSentinel) {
		t.Error("expected sentinel to match itself")
	}
	if IsMainNotGreenSentinel("some other task") {
		t.Error("expected no match")
	}
}
