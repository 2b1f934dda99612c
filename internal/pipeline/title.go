package pipeline

import (
	"fmt"
	"strings"
)

const titleMaxLen = 72

var lowSignalTitles = map[string]struct{}{
	"x": {}, "fix": {}, "fixes": {}, "something": {}, "improvement": {},
	"update": {}, "changes": {}, "misc": {},
}

// ConstructTitle implements spec.md §4.6.2: derive a commit/PR title from
// the plan summary (preferred) or task text, falling back to
// "improvement #N", then prepend an inferred conventional-commit type and
// truncate to titleMaxLen characters.
func ConstructTitle(planSummary, taskText string, improvement int) string {
	candidate := firstUsableTitle(planSummary, taskText)
	if candidate == "" {
		candidate = fmt.Sprintf("improvement #%d", improvement)
	}

	if !hasConventionalPrefix(candidate) {
		candidate = inferType(candidate) + ": " + candidate
	}

	return truncateTitle(candidate, titleMaxLen)
}

func firstUsableTitle(candidates ...string) string {
	for _, c := range candidates {
		if cleaned := cleanTitle(c); isUsableTitle(cleaned) {
			return cleaned
		}
	}
	return ""
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"PLAN:", "Title:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	return strings.TrimRight(s, ".,:;! ")
}

func isUsableTitle(s string) bool {
	if len(s) == 0 || len(s) < 4 {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	if _, lowSignal := lowSignalTitles[strings.ToLower(s)]; lowSignal {
		return false
	}
	return true
}

var conventionalPrefixes = []string{
	"feat:", "fix:", "docs:", "test:", "ci:", "refactor:", "chore:",
	"feat(", "fix(", "docs(", "test(", "ci(", "refactor(", "chore(",
}

func hasConventionalPrefix(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range conventionalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// inferType applies spec.md's keyword heuristics, checked in the order
// listed in the spec.
func inferType(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "test"):
		return "test"
	case strings.Contains(lower, "doc"):
		return "docs"
	case strings.Contains(lower, "lint"), strings.Contains(lower, "ci"),
		strings.Contains(lower, "pipeline"), strings.Contains(lower, "workflow"):
		return "ci"
	case strings.Contains(lower, "refactor"):
		return "refactor"
	case strings.Contains(lower, "fix"): // covers "fix", "fixes", "fixed"
		return "fix"
	case strings.Contains(lower, "add"), strings.Contains(lower, "implement"),
		strings.Contains(lower, "create"), strings.Contains(lower, "introduce"):
		return "feat"
	default:
		return "chore"
	}
}

func truncateTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimRight(s[:max-3], " ") + "..."
}
