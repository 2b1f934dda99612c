// Package cli implements ralph's command-line interface.
// This file builds the shared .ralph/ directory layout and the collaborator
// wiring every command needs: config resolution, logging, and the
// pipeline.Deps bundle the orchestrator drives workers through.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralphctl/ralph/internal/agentrun"
	"github.com/ralphctl/ralph/internal/backlog"
	"github.com/ralphctl/ralph/internal/command"
	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/eventlog"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/hosting"
	"github.com/ralphctl/ralph/internal/hosting/ghcli"

	// Blank-imported so their init() registers with hosting.RegisterProvider;
	// hosting.NewProvider has nothing to detect into without these.
	_ "github.com/ralphctl/ralph/internal/hosting/github"
	_ "github.com/ralphctl/ralph/internal/hosting/gitlab"

	"github.com/ralphctl/ralph/internal/logging"
	"github.com/ralphctl/ralph/internal/pipeline"
)

// layout is the fixed .ralph/ directory convention every command shares:
// backlog.md/triage.md/merge-conflicts.md at its root, worktrees under
// worktrees/, the durable event log at events.jsonl, and plans under
// thoughts/shared/plans/active (matching pipeline.Deps.PlanDir's doc
// comment, the teacher's own thoughts/ convention for plan documents).
type layout struct {
	root         string
	worktreesDir string
	eventLogPath string
	planDir      string
	stores       backlog.Stores
}

func newLayout(repoRoot string) (layout, error) {
	root := filepath.Join(repoRoot, ".ralph")
	for _, dir := range []string{root, filepath.Join(root, "worktrees")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return layout{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return layout{
		root:         root,
		worktreesDir: filepath.Join(root, "worktrees"),
		eventLogPath: filepath.Join(root, "events.jsonl"),
		planDir:      "thoughts/shared/plans/active",
		stores: backlog.Stores{
			Backlog:       &backlog.Store{Path: filepath.Join(root, "backlog.md")},
			Triage:        &backlog.Store{Path: filepath.Join(root, "triage.md")},
			MergeConflict: &backlog.Store{Path: filepath.Join(root, "merge-conflicts.md")},
		},
	}, nil
}

// buildPipelineDeps wires the collaborators pipeline.RunWorker needs:
// subprocess runner, git worktree manager, gh gateway, agent invoker, and an
// optional read-only PR-host enrichment provider (degrades silently if the
// remote can't be resolved, per internal/hosting's advisory contract).
func buildPipelineDeps(repoRoot string, lay layout, resolved *config.Resolved, logger *slog.Logger, evLog *eventlog.Writer) *pipeline.Deps {
	runner := &command.Runner{}
	implementAgent := resolved.Agent(config.StepImplement)

	provider, err := hosting.NewProvider(repoRoot, hosting.Config{})
	if err != nil {
		logger.Debug("no PR-host enrichment provider available", "error", err)
		provider = nil
	}

	return &pipeline.Deps{
		Runner:   runner,
		Git:      &gitutil.Manager{Runner: runner, RepoPath: repoRoot, WorktreesDir: lay.worktreesDir},
		PR:       &ghcli.Gateway{Runner: runner, RepoPath: repoRoot},
		Agent:    &agentrun.Invoker{Runner: runner, Logger: logger, EventLog: evLog},
		Logger:   logger,
		EventLog: evLog,
		RepoPath: repoRoot,
		PRHost:   provider,

		BranchPrefix: resolved.BranchPrefix,
		PlanDir:      lay.planDir,
		ValidateCmd:  validateCmdArgv(resolved.Validate),

		MinReviewCycles: resolved.MinReviewCycles,
		MaxReviewCycles: resolved.MaxReviewCycles,
		Model:           implementAgent.Model,
		Backend:         implementAgent.Backend,
		MaxTurns:        resolved.MaxTurns,
	}
}

// validateCmdArgv splits the configured validator command on whitespace
// into argv form for command.Runner.Run. An empty command means no
// validator is configured; pipeline.Deps.validate then always reports
// success, leaving the reviewer agent (and PRHost, when resolvable) as the
// sole review signal.
func validateCmdArgv(cmd string) []string {
	if cmd == "" {
		return nil
	}
	return strings.Fields(cmd)
}

// loadResolved reads --config (if any) and merges it with the CLI flag
// layer per config.Resolve's precedence chain.
func loadResolved(flags config.Flags) (*config.Resolved, error) {
	file, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	return config.Resolve(file, flags)
}

func newLogger(verbose bool) *slog.Logger {
	return logging.New(verbose)
}
