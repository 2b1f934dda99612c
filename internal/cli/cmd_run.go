package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/eventlog"
	"github.com/ralphctl/ralph/internal/orchestrator"
)

// newRunCmd builds `ralph run`, spec.md §6's single entrypoint: drive the
// backlog (or one --task) through the worker pipeline until the queues
// drain, --target improvements ship, or the process is interrupted.
func newRunCmd() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the backlog through plan/implement/review/merge",
		Long: `run starts the scheduling loop: pull a task off triage.md or
backlog.md, hand it to a worker in a fresh git worktree, and route its
outcome (shipped, parked for a human, or requeued) until there's nothing
left to do.

--task runs exactly one task, ignoring the backlog files entirely, and
forces --parallelism=1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.TargetSet = cmd.Flags().Changed("target")
			flags.ParallelismSet = cmd.Flags().Changed("parallelism")
			flags.BranchPrefixSet = cmd.Flags().Changed("branch-prefix")
			flags.MaxTurnsSet = cmd.Flags().Changed("max-turns")
			flags.AgentSet = cmd.Flags().Changed("agent")
			flags.ValidateSet = cmd.Flags().Changed("validate")
			return runRun(cmd, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Target, "target", 0, "stop after shipping this many improvements (0 = run until the queues drain)")
	cmd.Flags().StringVar(&flags.Task, "task", "", "run a single task and exit, instead of draining the backlog")
	cmd.Flags().IntVar(&flags.Parallelism, "parallelism", 2, "number of improvements to run concurrently")
	cmd.Flags().StringVar(&flags.BranchPrefix, "branch-prefix", "harness-improvement", "branch name prefix for each improvement")
	cmd.Flags().IntVar(&flags.MaxTurns, "max-turns", 100, "per-step agent turn budget")
	cmd.Flags().BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to a JSON config file")
	cmd.Flags().StringVar(&flags.Agent, "agent", "", "backend to use for every step lacking a more specific override (claude|codex)")
	cmd.Flags().StringVar(&flags.Validate, "validate", "", `project validator command whose exit status is the sole "main is green" signal (e.g. "make check")`)

	return cmd
}

func runRun(cmd *cobra.Command, flags config.Flags) error {
	resolved, err := loadResolved(flags)
	if err != nil {
		return err
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	lay, err := newLayout(repoRoot)
	if err != nil {
		return err
	}

	logger := newLogger(resolved.Verbose)

	evLog, err := eventlog.Open(lay.eventLogPath)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer evLog.Close()

	deps := buildPipelineDeps(repoRoot, lay, resolved, logger, evLog)

	orch := orchestrator.New(deps, orchestrator.Config{
		Resolved:     resolved,
		Stores:       lay.stores,
		WorktreesDir: lay.worktreesDir,
		EventLogPath: lay.eventLogPath,
	}, logger)

	ctx := context.Background()
	return orch.Run(ctx)
}
