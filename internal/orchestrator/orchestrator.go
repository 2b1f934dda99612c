package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/ralphctl/ralph/internal/agentrun"
	"github.com/ralphctl/ralph/internal/backlog"
	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/pipeline"
)

// mainNotGreenCooldown is how long Acquire defers the main-not-green
// sentinel after a no-op cycle, per spec.md §4.7.5.
const mainNotGreenCooldown = 15 * time.Minute

// failureThresholdFloor is the minimum failureThreshold regardless of
// parallelism, per spec.md §4.7.2.
const failureThresholdFloor = 3

// schedulingPause is the inter-round pacing sleep, per spec.md §4.7.2.
const schedulingPause = 2 * time.Second

const backlogRefillPrompt = "The task backlog at %s is empty. Review the project for worthwhile improvements and append new tasks to that file, one \"- <task>\" line per task. Do not implement anything; only propose tasks.\n"

// Config bundles everything Run needs beyond the shared *pipeline.Deps:
// the resolved CLI/file configuration, the three task-file stores, and
// the paths Run itself touches directly (for git log scanning and worktree
// layout; pipeline.Deps already carries RepoPath/BranchPrefix).
type Config struct {
	Resolved     *config.Resolved
	Stores       backlog.Stores
	WorktreesDir string
	EventLogPath string
}

// worktreeRecord is what the orchestrator remembers about a task it
// handed to a worker, for routing and cleanup once the worker finishes.
type worktreeRecord struct {
	assignment Assignment
	branch     string
	path       string
}

// Orchestrator is the top-level supervisor: it owns SchedulerState
// (spec.md §5) — activeWorktrees, tasksInFlight (inside sched),
// consecutiveFailures, nextImprovement, completed, mainNotGreenRetryAfter
// (inside sched) — mutated only from Run's single scheduling-loop
// goroutine.
type Orchestrator struct {
	deps   *pipeline.Deps
	cfg    Config
	logger *slog.Logger
	sched  *Scheduler

	nextImprovement     int
	completed           int
	consecutiveFailures int
	activeWorktrees     map[int]worktreeRecord
}

// New builds an Orchestrator. deps.EventLog, deps.Logger etc. should
// already be wired by the caller (internal/cli).
func New(deps *pipeline.Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:            deps,
		cfg:             cfg,
		logger:          logger,
		sched:           NewScheduler(cfg.Stores),
		nextImprovement: 1,
		activeWorktrees: make(map[int]worktreeRecord),
	}
}

// workerOutcome pairs a finished worker's Result with the bookkeeping
// routeResult needs (which file it came from, its key, its worktree).
type workerOutcome struct {
	improvement  int
	assignment   Assignment
	branch       string
	worktreePath string
	result       pipeline.Result
}

// Run executes spec.md §4.7.1's startup sequence, then either the
// one-shot CLI-task path or the full scheduling loop, per whether
// cfg.Resolved.Task is set.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.verifyBinaries(); err != nil {
		return err
	}

	if res, err := backlog.SyncFromLog(o.cfg.Stores, o.cfg.EventLogPath, o.deps.BranchPrefix, o.mergeSubjects(ctx)); err != nil {
		o.logger.Warn("startup sync from log failed", "error", err)
	} else if res.RemovedFromBacklog > 0 || res.RemovedFromTriage > 0 {
		o.logger.Info("reconciled task files against merge history",
			"removed_backlog", res.RemovedFromBacklog, "removed_triage", res.RemovedFromTriage)
	}

	if err := o.importOutstandingPRs(ctx); err != nil {
		o.logger.Warn("import outstanding PRs failed", "error", err)
	}

	o.printHeader()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.installSignalHandlers(cancel)

	if o.cfg.Resolved.Task != "" {
		return o.runOneShot(ctx)
	}
	return o.runLoop(ctx)
}

// verifyBinaries checks git, gh, and every configured agent backend are
// on PATH, per spec.md §4.7.1.
func (o *Orchestrator) verifyBinaries() error {
	need := map[string]struct{}{"git": {}, "gh": {}}
	for _, step := range []config.Step{config.StepBacklog, config.StepPlan, config.StepImplement, config.StepReview} {
		if backend := o.cfg.Resolved.Agent(step).Backend; backend != "" {
			need[backend] = struct{}{}
		}
	}
	for bin := range need {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required binary %q not found on PATH: %w", bin, err)
		}
	}
	return nil
}

// mergeSubjects returns recent commit subjects on the current branch,
// which syncFromLog scans for merged improvement branch names.
func (o *Orchestrator) mergeSubjects(ctx context.Context) []string {
	res, err := o.deps.Runner.Run(ctx, o.deps.RepoPath, "git", "log", "--format=%s", "-n", "1000")
	if err != nil || !res.Success() {
		return nil
	}
	subject := strings.TrimSpace(res.Stdout)
	if subject == "" {
		return nil
	}
	return strings.Split(subject, "\n")
}

// importOutstandingPRs adds a triage task for every open PR under the
// branch prefix not already represented; idempotent via AddIfAbsent.
func (o *Orchestrator) importOutstandingPRs(ctx context.Context) error {
	open, err := o.deps.PR.ListOpenByPrefix(ctx, o.deps.BranchPrefix)
	if err != nil {
		return err
	}
	for _, pr := range open {
		task := pipeline.OutstandingPRTask(pr.Number, pr.HeadRef, pr.URL)
		if err := o.cfg.Stores.Triage.AddIfAbsent(task); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) printHeader() {
	r := o.cfg.Resolved
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")).Render("ralph")
	target := "until queues drain"
	if r.HasTarget {
		target = fmt.Sprintf("%d improvement(s)", r.Target)
	}
	fmt.Printf("%s  target=%s parallelism=%d prefix=%s agent=%s\n",
		title, target, r.Parallelism, r.BranchPrefix, r.Agent(config.StepImplement).Backend)
}

// installSignalHandlers wires SIGINT/SIGTERM to cancel, logging only on
// SIGINT per spec.md §4.7.1.
func (o *Orchestrator) installSignalHandlers(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if sig == syscall.SIGINT {
			o.logger.Warn("received interrupt, shutting down")
		}
		cancel()
	}()
}

// runOneShot drives the single --task improvement. CLI tasks never touch
// backlog.md/triage.md and are exempt from tasksInFlight tracking.
func (o *Orchestrator) runOneShot(ctx context.Context) error {
	improvement := o.nextImprovement
	o.nextImprovement++

	assignment := Assignment{Text: o.cfg.Resolved.Task, Source: pipeline.SourceCLI}
	branch := gitutil.BranchName(o.deps.BranchPrefix, improvement)
	worktreePath := gitutil.WorktreePath(o.cfg.WorktreesDir, branch)

	result := pipeline.RunWorker(ctx, o.deps, pipeline.Params{
		Slot: 0, Improvement: improvement, TaskText: assignment.Text, TaskSource: assignment.Source,
	})
	o.routeResult(workerOutcome{improvement: improvement, assignment: assignment, branch: branch, worktreePath: worktreePath, result: result})
	o.printSummary()

	if result.Outcome != pipeline.OutcomeShipped {
		return fmt.Errorf("one-shot task did not ship (outcome=%s)", result.Outcome)
	}
	return nil
}

// runLoop is spec.md §4.7.2's scheduling loop.
func (o *Orchestrator) runLoop(ctx context.Context) error {
	parallelism := o.cfg.Resolved.Parallelism
	failureThreshold := parallelism + 2
	if failureThreshold < failureThresholdFloor {
		failureThreshold = failureThresholdFloor
	}

	g := new(errgroup.Group)
	g.SetLimit(parallelism)
	results := make(chan workerOutcome, parallelism)
	active := 0

schedulingLoop:
	for {
		if err := o.importOutstandingPRs(ctx); err != nil {
			o.logger.Warn("import outstanding PRs failed", "error", err)
		}

		if ctx.Err() != nil || !o.hasMoreWork() || o.consecutiveFailures >= failureThreshold {
			break
		}

		for active < parallelism {
			if ctx.Err() != nil {
				break
			}
			if o.cfg.Resolved.HasTarget && o.completed+active >= o.cfg.Resolved.Target {
				break
			}

			assignment, ok, err := o.sched.Acquire()
			if err != nil {
				o.logger.Error("acquire task failed", "error", err)
				break
			}
			if !ok {
				if active > 0 {
					break // wait for a running worker to free a slot
				}
				refilled, err := o.ensureBacklog(ctx)
				if err != nil {
					return fmt.Errorf("ensure backlog: %w", err)
				}
				if !refilled {
					break
				}
				continue
			}

			improvement := o.nextImprovement
			o.nextImprovement++
			branch := gitutil.BranchName(o.deps.BranchPrefix, improvement)
			worktreePath := gitutil.WorktreePath(o.cfg.WorktreesDir, branch)
			o.activeWorktrees[improvement] = worktreeRecord{assignment: assignment, branch: branch, path: worktreePath}

			active++
			params := pipeline.Params{Slot: active, Improvement: improvement, TaskText: assignment.Text, TaskSource: assignment.Source}
			g.Go(func() error {
				result := pipeline.RunWorker(ctx, o.deps, params)
				results <- workerOutcome{improvement: improvement, assignment: assignment, branch: branch, worktreePath: worktreePath, result: result}
				return nil
			})
		}

		if active == 0 {
			break
		}

		out := <-results
		active--
		o.routeResult(out)

		if ctx.Err() != nil {
			break schedulingLoop
		}

		select {
		case <-ctx.Done():
			break schedulingLoop
		case <-time.After(schedulingPause):
		}
	}

	for active > 0 {
		out := <-results
		active--
		o.routeResult(out)
	}
	_ = g.Wait()

	o.cleanupRemainingWorktrees(context.Background())
	o.printSummary()
	return nil
}

// hasMoreWork implements spec.md §4.7.2's invariant: with a target set,
// keep going until completed reaches it; otherwise keep going while
// triage, backlog, or in-flight work remains.
func (o *Orchestrator) hasMoreWork() bool {
	if o.cfg.Resolved.HasTarget {
		return o.completed < o.cfg.Resolved.Target
	}
	triage, _ := o.cfg.Stores.Triage.Read()
	backlogTasks, _ := o.cfg.Stores.Backlog.Read()
	return len(triage) > 0 || len(backlogTasks) > 0 || o.sched.InFlightCount() > 0
}

// ensureBacklog is spec.md §4.7.4: triggered only when both triage and
// the raw backlog file are empty. Invokes the refill agent directly (not
// the full worker pipeline — this is a single agent call that edits
// backlog.md itself), then normalizes the result.
func (o *Orchestrator) ensureBacklog(ctx context.Context) (bool, error) {
	triage, err := o.cfg.Stores.Triage.Read()
	if err != nil {
		return false, err
	}
	if len(triage) > 0 {
		return false, nil
	}
	rawBacklog, err := o.cfg.Stores.Backlog.Read()
	if err != nil {
		return false, err
	}
	if len(rawBacklog) > 0 {
		return false, nil
	}

	o.logger.Info("triage and backlog both empty, invoking backlog refill agent")
	agentCfg := o.cfg.Resolved.Agent(config.StepBacklog)
	if _, err := o.deps.Agent.RunStep(ctx, agentrun.Params{
		Prompt: fmt.Sprintf(backlogRefillPrompt, o.cfg.Stores.Backlog.Path),
		StepName: "backlog_refill", Improvement: 0,
		Cwd: o.deps.RepoPath, Model: agentCfg.Model, Backend: agentCfg.Backend, MaxTurns: o.deps.MaxTurns,
	}); err != nil {
		return false, fmt.Errorf("backlog refill agent: %w", err)
	}

	if changed, err := backlog.NormalizeRefill(o.cfg.Stores.Backlog, o.deps.RepoPath); err != nil {
		return false, fmt.Errorf("normalize refill: %w", err)
	} else if changed {
		o.logger.Info("backlog normalized after refill")
	}

	tasks, err := o.cfg.Stores.Backlog.Read()
	if err != nil {
		return false, err
	}
	return len(tasks) > 0, nil
}

// routeResult is spec.md §4.7.5's routing table. The task key is always
// released and the worktree record always dropped, regardless of outcome.
func (o *Orchestrator) routeResult(out workerOutcome) {
	defer func() {
		o.sched.Release(out.assignment.Key)
		delete(o.activeWorktrees, out.improvement)
	}()

	if out.result.Outcome == pipeline.OutcomeShipped {
		o.onShipped(out)
		return
	}
	o.onFailed(out)
}

func (o *Orchestrator) onShipped(out workerOutcome) {
	ctx := context.Background()

	if out.result.PRNumber == 0 && !pipeline.IsMainNotGreenSentinel(out.assignment.Text) {
		// Shipped with no PR is only legitimate for the main-not-green
		// sentinel's validate-passes no-op path; anything else reaching
		// here is unexpected, per spec.md §4.7.5.
		o.logger.Error("worker reported shipped with no PR, escalating", "improvement", out.improvement)
		o.removeTaskText(out.assignment)
		if err := backlog.MoveToMergeConflicts(o.cfg.Stores, out.assignment.Text, out.improvement, out.branch, out.worktreePath); err != nil {
			o.logger.Error("escalate merge conflict failed", "improvement", out.improvement, "error", err)
		}
		o.consecutiveFailures++
		o.cleanupOrPreserve(ctx, out, true)
		return
	}

	o.removeTaskText(out.assignment)
	if res, err := backlog.SyncFromLog(o.cfg.Stores, o.cfg.EventLogPath, o.deps.BranchPrefix, o.mergeSubjects(ctx)); err != nil {
		o.logger.Warn("post-merge sync failed", "improvement", out.improvement, "error", err)
	} else if res.RemovedFromBacklog > 0 || res.RemovedFromTriage > 0 {
		o.logger.Info("post-merge reconciliation", "removed_backlog", res.RemovedFromBacklog, "removed_triage", res.RemovedFromTriage)
	}
	o.completed++
	o.consecutiveFailures = 0
	o.logger.Info("improvement shipped", "improvement", out.improvement, "branch", out.branch)
	o.cleanupOrPreserve(ctx, out, false)
}

func (o *Orchestrator) onFailed(out workerOutcome) {
	ctx := context.Background()
	o.consecutiveFailures++

	fail := out.result.Failure
	if fail == nil {
		o.logger.Error("worker failed with no detail", "improvement", out.improvement)
		o.cleanupOrPreserve(ctx, out, false)
		return
	}

	switch {
	case fail.Kind == pipeline.FailureReviewFailed && fail.PRNumber != 0:
		o.removeTaskText(out.assignment)
		park := pipeline.ParkForHuman(fail.TaskText, out.improvement, fail.Branch, fail.WorktreePath)
		if err := o.cfg.Stores.Triage.AddIfAbsent(park); err != nil {
			o.logger.Error("park for human failed", "improvement", out.improvement, "error", err)
		}
		o.logger.Warn("review did not pass after repeated cycles, parked for human", "improvement", out.improvement, "branch", fail.Branch)
		o.cleanupOrPreserve(ctx, out, true)

	case fail.PRNumber != 0:
		o.removeTaskText(out.assignment)
		if err := backlog.MoveToMergeConflicts(o.cfg.Stores, fail.TaskText, out.improvement, fail.Branch, fail.WorktreePath); err != nil {
			o.logger.Error("escalate merge conflict failed", "improvement", out.improvement, "error", err)
		}
		o.logger.Warn("escalated to merge-conflict triage", "improvement", out.improvement, "branch", fail.Branch, "kind", fail.Kind)
		o.cleanupOrPreserve(ctx, out, true)

	default:
		if fail.Kind == pipeline.FailureNoChanges && pipeline.IsMainNotGreenSentinel(fail.TaskText) {
			o.sched.DeferMainNotGreen(mainNotGreenCooldown)
		}
		o.logger.Warn("worker failed", "improvement", out.improvement, "kind", fail.Kind)
		o.cleanupOrPreserve(ctx, out, false)
	}
}

// removeTaskText deletes the acquired task from whichever file it came
// from; a no-op for CLI tasks, which never touch the files.
func (o *Orchestrator) removeTaskText(a Assignment) {
	var store *backlog.Store
	switch a.Source {
	case pipeline.SourceTriage:
		store = o.cfg.Stores.Triage
	case pipeline.SourceBacklog:
		store = o.cfg.Stores.Backlog
	default:
		return
	}
	if _, err := store.RemoveByText(a.Text); err != nil {
		o.logger.Warn("remove task failed", "text", a.Text, "error", err)
	}
}

// cleanupOrPreserve removes an improvement's worktree once it's merged or
// produced nothing worth keeping; preserve=true leaves it (and its
// branch) on disk for human inspection, per spec.md §4.2/§5.
func (o *Orchestrator) cleanupOrPreserve(ctx context.Context, out workerOutcome, preserve bool) {
	if preserve {
		o.logger.Info("preserving worktree for inspection", "improvement", out.improvement, "path", out.worktreePath)
		return
	}
	if err := o.deps.Git.Cleanup(ctx, out.worktreePath, out.branch); err != nil {
		o.logger.Warn("cleanup worktree failed", "improvement", out.improvement, "path", out.worktreePath, "error", err)
	}
}

// cleanupRemainingWorktrees is the process-exit fallback of spec.md
// §4.7.1(d): any worktree record still active when the loop exits (only
// possible if a worker never reported back) is cleaned if empty,
// preserved and logged if it has commits.
func (o *Orchestrator) cleanupRemainingWorktrees(ctx context.Context) {
	for improvement, rec := range o.activeWorktrees {
		if o.deps.Git.HasNewCommits(ctx, rec.path) {
			o.logger.Warn("preserving worktree with new commits at exit", "improvement", improvement, "path", rec.path)
			continue
		}
		if err := o.deps.Git.Cleanup(ctx, rec.path, rec.branch); err != nil {
			o.logger.Warn("cleanup worktree failed at exit", "improvement", improvement, "path", rec.path, "error", err)
		}
	}
}

func (o *Orchestrator) printSummary() {
	fmt.Printf("\nralph: %d shipped, %d consecutive failures at exit\n", o.completed, o.consecutiveFailures)
}
