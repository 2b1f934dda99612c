package pipeline

import (
	"context"
	"regexp"
	"strings"
)

// extractMarkerLine returns the first line beginning with marker (e.g.
// "PLAN:" or "DONE:"), with the marker stripped and trimmed, or "" if no
// such line exists.
func extractMarkerLine(text, marker string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, marker) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
		}
	}
	return ""
}

var implementPlanRe = regexp.MustCompile(`^Implement Plan (.+)$`)

// implementPlanSlug returns the slug from an "Implement Plan <slug>" task,
// and whether the task matched that form.
func implementPlanSlug(task string) (string, bool) {
	m := implementPlanRe.FindStringSubmatch(strings.TrimSpace(task))
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (d *Deps) validate(ctx context.Context) (bool, string) {
	if len(d.ValidateCmd) == 0 {
		return true, ""
	}
	res, err := d.Runner.Run(ctx, d.RepoPath, d.ValidateCmd[0], d.ValidateCmd[1:]...)
	if err != nil {
		return false, err.Error()
	}
	if res.Success() {
		return true, ""
	}
	return false, res.Stdout + res.Stderr
}
