package agentrun

import (
	"strconv"
	"strings"
)

// buildArgv returns the subprocess name and arguments for backend, given
// the step prompt (fed via stdin by the caller), an optional model
// override, and an optional max-turns cap (0 leaves the backend's own
// default in place). Backends are opaque per spec.md §4.5: only the
// NDJSON stream contract matters, so any backend that speaks it can be
// added here.
func buildArgv(backend, model string, maxTurns int) (name string, args []string) {
	switch backend {
	case "codex":
		args = []string{"exec", "--json", "-"}
		if model != "" {
			args = append(args, "--model", model)
		}
		if maxTurns > 0 {
			args = append(args, "--config", "max_turns="+strconv.Itoa(maxTurns))
		}
		return "codex", args
	default: // "claude" and the hard default
		args = []string{"-p", "-", "--output-format", "stream-json", "--verbose", "--dangerously-skip-permissions"}
		if model != "" {
			args = append(args, "--model", model)
		}
		if maxTurns > 0 {
			args = append(args, "--max-turns", strconv.Itoa(maxTurns))
		}
		return "claude", args
	}
}

// inferBackend implements spec.md §6's config precedence fallback: infer
// from a model name containing "codex"/"gpt", else the hard default.
func inferBackend(model string) string {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "codex") || strings.Contains(lower, "gpt") {
		return "codex"
	}
	return "claude"
}
