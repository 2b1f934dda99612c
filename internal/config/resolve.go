package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load reads and parses the --config file at path. A missing path (empty
// string) returns a zero-value File, not an error: the config file is
// optional per spec.md §6.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Resolve merges the file and flag layers per spec.md §6's precedence:
// step-CLI > global-CLI > step-file > global-file > inferred > hard default.
// Ralph has no step-level CLI flags (only --agent is global), so the
// "step-CLI" rung collapses into "global-CLI" in practice; it is named
// here for parity with the spec's stated chain.
func Resolve(f *File, cli Flags) (*Resolved, error) {
	if f == nil {
		f = &File{}
	}

	r := &Resolved{
		Parallelism:     pickInt(cli.ParallelismSet, cli.Parallelism, f.Parallelism, defaultParallelism),
		BranchPrefix:    pickString(cli.BranchPrefixSet, cli.BranchPrefix, f.BranchPrefix, defaultBranchPrefix),
		MaxTurns:        pickInt(cli.MaxTurnsSet, cli.MaxTurns, f.MaxTurns, defaultMaxTurns),
		Verbose:         cli.Verbose || (f.Verbose != nil && *f.Verbose),
		MinReviewCycles: pickInt(false, 0, f.MinReviewCycles, defaultMinReviewCycles),
		MaxReviewCycles: pickInt(false, 0, f.MaxReviewCycles, defaultMaxReviewCycles),
		Task:            cli.Task,
		Validate:        pickString(cli.ValidateSet, cli.Validate, f.Validate, ""),
		stepAgent:       make(map[Step]AgentConfig),
	}

	if cli.TargetSet {
		r.Target = cli.Target
		r.HasTarget = true
	} else if f.Target != nil {
		r.Target = *f.Target
		r.HasTarget = true
	}

	if r.Task != "" {
		// --task forces parallelism=1 regardless of any other layer.
		r.Parallelism = 1
	}

	globalAgent := cli.Agent
	if !cli.AgentSet {
		globalAgent = f.Agent
	}

	r.stepAgent[StepBacklog] = resolveStepAgent(f.Agents.Backlog, globalAgent)
	r.stepAgent[StepPlan] = resolveStepAgent(f.Agents.Plan, globalAgent)
	r.stepAgent[StepImplement] = resolveStepAgent(f.Agents.Implement, globalAgent)
	r.stepAgent[StepReview] = resolveStepAgent(f.Agents.Review, globalAgent)

	if r.MinReviewCycles < 1 {
		return nil, fmt.Errorf("minReviewCycles must be >= 1, got %d", r.MinReviewCycles)
	}
	if r.MaxReviewCycles < r.MinReviewCycles {
		return nil, fmt.Errorf("maxReviewCycles (%d) must be >= minReviewCycles (%d)", r.MaxReviewCycles, r.MinReviewCycles)
	}
	if r.Parallelism < 1 {
		return nil, fmt.Errorf("parallelism must be >= 1, got %d", r.Parallelism)
	}

	return r, nil
}

// resolveStepAgent applies step-file > global (CLI-or-file) > inferred >
// hard default to a single step's backend/model pair.
func resolveStepAgent(step AgentConfig, global string) AgentConfig {
	model := step.Model

	backend := step.Backend
	if backend == "" {
		backend = global
	}
	if backend == "" {
		backend = inferBackend(model)
	}
	if backend == "" {
		backend = defaultBackend
	}
	return AgentConfig{Backend: backend, Model: model}
}

// inferBackend guesses a backend from a model name per spec.md §6: models
// named "codex" or "gpt" imply the codex backend, everything else falls
// through (returns "" so the caller applies the hard default).
func inferBackend(model string) string {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "codex") || strings.Contains(lower, "gpt") {
		return "codex"
	}
	return ""
}

func pickInt(set bool, cliVal int, fileVal *int, hardDefault int) int {
	if set {
		return cliVal
	}
	if fileVal != nil {
		return *fileVal
	}
	return hardDefault
}

func pickString(set bool, cliVal, fileVal, hardDefault string) string {
	if set {
		return cliVal
	}
	if fileVal != "" {
		return fileVal
	}
	return hardDefault
}
