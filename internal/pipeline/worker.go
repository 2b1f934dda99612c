package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralphctl/ralph/internal/agentrun"
	"github.com/ralphctl/ralph/internal/gitutil"
)

// run carries the mutable state threaded through one worker's pipeline.
type run struct {
	deps   *Deps
	params Params

	branch       string
	worktreePath string
	resumed      bool

	planSummary string
	commitBody  string

	prNumber int
	prURL    string

	// reviewCycle is the review-loop counter; post-merge recovery reuses
	// whatever is left of it rather than starting a fresh budget (see
	// DESIGN.md's Open Question #2 resolution).
	reviewCycle int

	totalCostUSD    float64
	totalDurationMs int64
}

// track folds one agent step's cost/duration into the run's totals, for
// the improvement_done/improvement_failed event emitted at the end.
func (r *run) track(res agentrun.StepResult) {
	r.totalCostUSD += res.CostUSD
	r.totalDurationMs += res.DurationMs
}

// RunWorker drives one improvement through spec.md §4.6.1's full state
// machine and returns its terminal outcome.
func RunWorker(ctx context.Context, deps *Deps, params Params) Result {
	r := &run{deps: deps, params: params}
	if deps.EventLog != nil {
		_ = deps.EventLog.WorkerStarted(params.Slot, params.Improvement, params.TaskText)
	}

	if fail := r.prepare(ctx); fail != nil {
		return r.result(OutcomeFailed, fail)
	}

	if fail := r.plan(ctx); fail != nil {
		return r.result(OutcomeFailed, fail)
	}

	if fail := r.implement(ctx); fail != nil {
		return r.result(OutcomeFailed, fail)
	}

	outcome, fail := r.commitAndDetectNoOp(ctx)
	if fail != nil {
		return r.result(OutcomeFailed, fail)
	}
	if outcome == OutcomeShipped {
		return r.result(OutcomeShipped, nil)
	}

	if fail := r.publish(ctx); fail != nil {
		return r.result(OutcomeFailed, fail)
	}

	if fail := r.reviewLoop(ctx); fail != nil {
		return r.result(OutcomeFailed, fail)
	}

	shipped, fail := r.agentMerge(ctx)
	if fail != nil {
		return r.result(OutcomeFailed, fail)
	}
	if shipped {
		return r.result(OutcomeShipped, nil)
	}

	shipped, fail = r.postMergeRecovery(ctx)
	if fail != nil {
		return r.result(OutcomeFailed, fail)
	}
	if shipped {
		return r.result(OutcomeShipped, nil)
	}

	// Reached only if postMergeRecovery exhausted its budget without
	// producing a failure detail, which shouldn't happen; treat as the
	// generic merge_failed case defensively.
	return r.result(OutcomeFailed, &Detail{
		Kind: FailureMergeFailed, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
		Branch: r.branch, WorktreePath: r.worktreePath, PRNumber: r.prNumber,
	})
}

func (r *run) result(outcome Outcome, fail *Detail) Result {
	if r.deps.EventLog != nil {
		success := outcome == OutcomeShipped
		_ = r.deps.EventLog.WorkerFinished(r.params.Slot, r.params.Improvement, success)
		if success {
			_ = r.deps.EventLog.ImprovementDone(r.params.Improvement, r.totalCostUSD, r.totalDurationMs)
		} else if fail != nil {
			_ = r.deps.EventLog.ImprovementFailed(r.params.Improvement, string(fail.Kind))
		}
	}
	return Result{
		Outcome:      outcome,
		Improvement:  r.params.Improvement,
		Branch:       r.branch,
		WorktreePath: r.worktreePath,
		PRNumber:     r.prNumber,
		Failure:      fail,
	}
}

func (r *run) prepare(ctx context.Context) *Detail {
	r.branch = gitutil.BranchName(r.deps.BranchPrefix, r.params.Improvement)
	r.worktreePath = gitutil.WorktreePath(r.deps.Git.WorktreesDir, r.branch)

	res, err := r.deps.Git.CreateOrResume(ctx, r.worktreePath, r.branch)
	if err != nil {
		return &Detail{
			Kind: FailureGeneric, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
			Branch: r.branch, WorktreePath: r.worktreePath,
		}
	}
	r.worktreePath = res.Path
	r.resumed = res.Resumed
	return nil
}

func (r *run) planPath() string {
	if slug, ok := implementPlanSlug(r.params.TaskText); ok {
		return filepath.Join(r.deps.PlanDir, slug+".md")
	}
	return filepath.Join(r.deps.PlanDir, "ralph-improvement.md")
}

func (r *run) skipPlanning() bool {
	if r.resumed {
		return true
	}
	if IsMergeConflictTriage(r.params.TaskText) || IsOutstandingPRTriage(r.params.TaskText) {
		return true
	}
	if _, ok := implementPlanSlug(r.params.TaskText); ok {
		if _, err := os.Stat(filepath.Join(r.worktreePath, r.planPath())); err == nil {
			return true
		}
	}
	return false
}

func (r *run) plan(ctx context.Context) *Detail {
	if r.skipPlanning() {
		return nil
	}

	planPath := r.planPath()
	var prompt string
	if r.params.TaskText != "" {
		prompt = taskPlanPrompt(r.params.TaskText, planPath)
	} else {
		prompt = ideationPlanPrompt(r.params.Improvement, r.deps.RepoPath, planPath)
	}

	res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
		Prompt: prompt, StepName: "plan", Improvement: r.params.Improvement,
		Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
	})
	r.track(res)
	if err != nil || !res.Success {
		return r.genericFailure()
	}

	if _, statErr := os.Stat(filepath.Join(r.worktreePath, planPath)); statErr != nil {
		return r.genericFailure()
	}

	planText, _ := os.ReadFile(filepath.Join(r.worktreePath, planPath))
	r.planSummary = extractMarkerLine(string(planText), "PLAN:")
	return nil
}

func (r *run) implementPrompt() string {
	switch {
	case IsOutstandingPRTriage(r.params.TaskText):
		return mergeRecoveryPrompt(r.prURL)
	case IsMergeConflictTriage(r.params.TaskText):
		return mergeConflictResolvePrompt(r.branch)
	default:
		return implementationPrompt(r.planPath())
	}
}

func (r *run) implement(ctx context.Context) *Detail {
	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
			Prompt: r.implementPrompt(), StepName: "implement", Improvement: r.params.Improvement,
			Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
		})
		r.track(res)
		if err == nil && res.Success {
			r.commitBody = extractMarkerLine(res.OutputText, "DONE:")
			return nil
		}
		if err != nil {
			r.deps.logger().Debug("implement step error", "improvement", r.params.Improvement, "attempt", attempt, "error", err)
		}
	}
	return r.genericFailure()
}

func (r *run) commitAndDetectNoOp(ctx context.Context) (Outcome, *Detail) {
	_, _ = r.deps.Runner.Run(ctx, r.worktreePath, "git", "checkout", "--", "backlog.md")
	_, _ = r.deps.Runner.Run(ctx, r.worktreePath, "git", "add", "-A")

	title := ConstructTitle(r.planSummary, r.params.TaskText, r.params.Improvement)
	res, _ := r.deps.Runner.Run(ctx, r.worktreePath, "git", "commit", "-m", title, "-m", r.commitBody)
	committed := res.Success()

	if !committed && !r.deps.Git.HasNewCommits(ctx, r.worktreePath) {
		if IsMainNotGreenSentinel(r.params.TaskText) {
			if ok, _ := r.deps.validate(ctx); ok {
				return OutcomeShipped, nil
			}
		}
		return OutcomeNoChanges, &Detail{
			Kind: FailureNoChanges, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
			Branch: r.branch, WorktreePath: r.worktreePath,
		}
	}
	return "", nil
}

func (r *run) publish(ctx context.Context) *Detail {
	if !r.deps.PR.Push(ctx, r.branch) {
		return r.genericFailure()
	}

	title := ConstructTitle(r.planSummary, r.params.TaskText, r.params.Improvement)
	pr, err := r.deps.PR.EnsurePR(ctx, r.branch, title, r.commitBody)
	if err != nil || pr == nil {
		return r.genericFailure()
	}
	r.prNumber = pr.Number
	r.prURL = pr.URL
	return nil
}

func (r *run) genericFailure() *Detail {
	return &Detail{
		Kind: FailureGeneric, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
		Branch: r.branch, WorktreePath: r.worktreePath, PRNumber: r.prNumber,
	}
}

func (r *run) reviewFailure() *Detail {
	return &Detail{
		Kind: FailureReviewFailed, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
		Branch: r.branch, WorktreePath: r.worktreePath, PRNumber: r.prNumber,
	}
}

func (r *run) mergeFailure() *Detail {
	return &Detail{
		Kind: FailureMergeFailed, TaskText: r.params.TaskText, TaskSource: r.params.TaskSource,
		Branch: r.branch, WorktreePath: r.worktreePath, PRNumber: r.prNumber,
	}
}

// reviewVerdict matches spec.md's substring rule, REVIEW_PASSED checked
// first when a reviewer's output contains both markers (DESIGN.md's Open
// Question #3 resolution).
type reviewVerdict int

const (
	verdictPassed reviewVerdict = iota
	verdictFailed
	verdictAmbiguous
)

func classifyReview(output string) reviewVerdict {
	switch {
	case strings.Contains(output, "REVIEW_PASSED"):
		return verdictPassed
	case strings.Contains(output, "REVIEW_FAILED"):
		return verdictFailed
	default:
		return verdictAmbiguous
	}
}

func (r *run) runFixAndPush(ctx context.Context, feedback, step string) *Detail {
	res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
		Prompt: fixPrompt(feedback), StepName: step, Improvement: r.params.Improvement,
		Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
	})
	r.track(res)
	if err != nil || !res.Success {
		return r.genericFailure()
	}
	r.commitBody = extractMarkerLine(res.OutputText, "DONE:")

	// A fix producing no commit (e.g. the feedback turned out to be moot)
	// is not itself fatal here; only a push failure after is.
	r.commitAndDetectNoOp(ctx)

	if !r.deps.PR.Push(ctx, r.branch) {
		return r.genericFailure()
	}
	return nil
}

func (r *run) reviewLoop(ctx context.Context) *Detail {
	maxCycles := r.deps.MaxReviewCycles
	for r.reviewCycle = 1; r.reviewCycle <= maxCycles; r.reviewCycle++ {
		res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
			Prompt: reviewPrompt(r.prURL), StepName: "review", Improvement: r.params.Improvement,
			Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
		})
		r.track(res)
		if err != nil {
			return r.genericFailure()
		}

		switch classifyReview(res.OutputText) {
		case verdictPassed:
			if r.reviewCycle >= r.deps.MinReviewCycles {
				return nil
			}
			continue
		case verdictFailed:
			if fail := r.runFixAndPush(ctx, res.OutputText, "fix"); fail != nil {
				return fail
			}
			continue
		default:
			if ok, output := r.reviewTieBreak(ctx); ok {
				return nil
			} else if fail := r.runFixAndPush(ctx, output, "fix"); fail != nil {
				return fail
			}
			continue
		}
	}
	return r.reviewFailure()
}

// reviewTieBreak decides an ambiguous review verdict (neither
// REVIEW_PASSED nor REVIEW_FAILED found in the reviewer's output). If a
// PRHost provider is configured and has an unambiguous check-run/approval
// picture for this PR, it settles the tie; otherwise (no provider, no PR
// yet, or the host's own picture is itself ambiguous) this falls back to
// ValidateCmd, same as before PRHost existed.
func (r *run) reviewTieBreak(ctx context.Context) (bool, string) {
	if r.deps.PRHost != nil && r.prNumber != 0 {
		if summary, err := r.deps.PRHost.GetPRStatusSummary(ctx, r.prNumber); err == nil && summary != nil {
			if summary.ChecksStatus == "success" && summary.ReviewStatus == "approved" {
				return true, ""
			}
			if summary.ChecksStatus == "failure" || summary.ReviewStatus == "changes_requested" {
				return false, fmt.Sprintf("PR #%d checks=%s review=%s", r.prNumber, summary.ChecksStatus, summary.ReviewStatus)
			}
		}
	}
	return r.deps.validate(ctx)
}

func (r *run) agentMerge(ctx context.Context) (bool, *Detail) {
	if r.deps.EventLog != nil {
		_ = r.deps.EventLog.MergeQueued(r.params.Slot, r.params.Improvement, r.branch)
	}

	res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
		Prompt: mergePrompt(r.prURL), StepName: "merge", Improvement: r.params.Improvement,
		Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
	})
	r.track(res)
	if err != nil {
		if r.deps.EventLog != nil {
			_ = r.deps.EventLog.MergeCompleted(r.params.Slot, r.params.Improvement, r.branch, false)
		}
		return false, r.genericFailure()
	}

	_, mergedAt, err := r.deps.PR.ReadMergeState(ctx, r.prNumber)
	shipped := err == nil && mergedAt != ""
	if r.deps.EventLog != nil {
		_ = r.deps.EventLog.MergeCompleted(r.params.Slot, r.params.Improvement, r.branch, shipped)
	}
	if err != nil {
		return false, r.genericFailure()
	}
	return shipped, nil
}

// postMergeRecovery continues from wherever reviewLoop's cycle counter
// left off, per DESIGN.md's Open Question #2 resolution (reuse the
// remaining budget rather than starting a fresh one).
func (r *run) postMergeRecovery(ctx context.Context) (bool, *Detail) {
	for ; r.reviewCycle <= r.deps.MaxReviewCycles; r.reviewCycle++ {
		res, err := r.deps.Agent.RunStep(ctx, agentrun.Params{
			Prompt: reviewPrompt(r.prURL), StepName: "review", Improvement: r.params.Improvement,
			Cwd: r.worktreePath, Model: r.deps.Model, Backend: r.deps.Backend, MaxTurns: r.deps.MaxTurns,
		})
		r.track(res)
		if err != nil {
			return false, r.genericFailure()
		}

		switch classifyReview(res.OutputText) {
		case verdictPassed:
			// fall through to retry merge below
		case verdictFailed:
			if fail := r.runFixAndPush(ctx, res.OutputText, "fix"); fail != nil {
				return false, fail
			}
		default:
			if ok, output := r.deps.validate(ctx); !ok {
				if fail := r.runFixAndPush(ctx, output, "fix"); fail != nil {
					return false, fail
				}
			}
		}

		shipped, fail := r.agentMerge(ctx)
		if fail != nil {
			return false, fail
		}
		if shipped {
			return true, nil
		}
	}
	return false, r.mergeFailure()
}

