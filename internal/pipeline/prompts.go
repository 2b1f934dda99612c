package pipeline

import "fmt"

// mainNotGreenSentinel is the canonical triage task that asks an agent to
// restore main to a green build; spec.md names its behavior but not its
// exact text, so this is the one literal string recognized as the
// sentinel throughout scheduling and routing.
const mainNotGreenSentinel = "Fix main branch to be green: investigate validate failures on main and restore a passing build."

// IsMainNotGreenSentinel reports whether task is the canonical
// main-not-green triage task.
func IsMainNotGreenSentinel(task string) bool {
	return task == mainNotGreenSentinel
}

const mergeConflictTriagePrefix = "Resolve merge conflict for improvement #"
const outstandingPRTriagePrefix = "Resolve outstanding Ralph PR #"
const humanEscalationTriagePrefix = "Human escalation required: "

// IsMergeConflictTriage reports whether task was produced by
// backlog.MoveToMergeConflicts.
func IsMergeConflictTriage(task string) bool {
	return hasPrefix(task, mergeConflictTriagePrefix)
}

// IsOutstandingPRTriage reports whether task was produced by the
// orchestrator's startup PR import.
func IsOutstandingPRTriage(task string) bool {
	return hasPrefix(task, outstandingPRTriagePrefix)
}

// IsHumanEscalationTriage reports whether task was produced by ParkForHuman.
func IsHumanEscalationTriage(task string) bool {
	return hasPrefix(task, humanEscalationTriagePrefix)
}

// OutstandingPRTask formats the triage entry the orchestrator's startup
// sequence adds for each pre-existing open PR under the branch prefix.
func OutstandingPRTask(n int, branch, url string) string {
	return fmt.Sprintf("%s%d (%s) and merge to main. PR: %s", outstandingPRTriagePrefix, n, branch, url)
}

// ParkForHuman formats the triage entry added when a worker's review loop
// exhausts maxReviewCycles: the task text and worktree path are preserved
// so a human can pick the work back up where the agent left it.
func ParkForHuman(taskText string, improvement int, branch, worktreePath string) string {
	return fmt.Sprintf(
		"%sreview did not pass after repeated cycles for improvement #%d (%s). Worktree: %s. Original task: %s",
		humanEscalationTriagePrefix, improvement, branch, worktreePath, taskText,
	)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func taskPlanPrompt(taskText, planPath string) string {
	return fmt.Sprintf(
		"Write an implementation plan for the following task, saving it to %s.\n"+
			"The plan's first line must begin with \"PLAN:\" followed by a short summary.\n\n"+
			"Task: %s\n",
		planPath, taskText,
	)
}

func ideationPlanPrompt(improvement int, target, planPath string) string {
	return fmt.Sprintf(
		"Identify a worthwhile improvement to make to %s and write an implementation plan for it, "+
			"saving it to %s. The plan's first line must begin with \"PLAN:\" followed by a short summary.\n\n"+
			"This is improvement #%d in an ongoing series; avoid duplicating prior improvements.\n",
		target, planPath, improvement,
	)
}

func implementationPrompt(planPath string) string {
	return fmt.Sprintf(
		"Implement the plan at %s. When finished, commit is not required of you; "+
			"the orchestrator will commit your changes. Print a line beginning with \"DONE:\" "+
			"summarizing what you did, for use as the commit body.\n",
		planPath,
	)
}

func mergeConflictResolvePrompt(branch string) string {
	return fmt.Sprintf(
		"The branch %s has a pending task to resolve: work through it, commit your changes, "+
			"and print a line beginning with \"DONE:\" summarizing what you did.\n",
		branch,
	)
}

func mergeRecoveryPrompt(prURL string) string {
	return fmt.Sprintf(
		"There is an outstanding pull request at %s that needs to be brought to a mergeable, reviewed state. "+
			"Resolve any conflicts or review feedback, commit your changes, and print a line beginning with "+
			"\"DONE:\" summarizing what you did.\n",
		prURL,
	)
}

func reviewPrompt(prURL string) string {
	return fmt.Sprintf(
		"Review the changes in pull request %s. If they're ready to merge, print a line containing "+
			"exactly REVIEW_PASSED. If they need work, print a line containing exactly REVIEW_FAILED "+
			"along with the issues found.\n",
		prURL,
	)
}

func fixPrompt(feedback string) string {
	return fmt.Sprintf(
		"Address the following review or validation feedback, commit your changes, and print a line "+
			"beginning with \"DONE:\" summarizing what you did.\n\nFeedback:\n%s\n",
		feedback,
	)
}

func mergePrompt(prURL string) string {
	return fmt.Sprintf(
		"Merge pull request %s now that it has passed review. Resolve any last-minute conflicts with main first.\n",
		prURL,
	)
}
