// Package pipeline implements the per-improvement worker state machine:
// prepare a worktree, plan, implement, publish, review/fix, agent-merge,
// and post-merge recovery.
package pipeline

import (
	"log/slog"

	"github.com/ralphctl/ralph/internal/agentrun"
	"github.com/ralphctl/ralph/internal/command"
	"github.com/ralphctl/ralph/internal/eventlog"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/hosting"
	"github.com/ralphctl/ralph/internal/hosting/ghcli"
)

// TaskSource records where a task came from, so the orchestrator knows
// which file (if any) to remove it from on completion.
type TaskSource string

const (
	SourceBacklog TaskSource = "backlog"
	SourceTriage  TaskSource = "triage"
	SourceCLI     TaskSource = "cli"
)

// Outcome is the terminal state a worker run settles into.
type Outcome string

const (
	OutcomeShipped   Outcome = "shipped"
	OutcomeEscalated Outcome = "escalated"
	OutcomeParked    Outcome = "parked"
	OutcomeNoChanges Outcome = "no_changes"
	OutcomeFailed    Outcome = "failed"
)

// FailureKind is spec.md §4.6.3's failure taxonomy.
type FailureKind string

const (
	FailureNoChanges    FailureKind = "no_changes"
	FailureReviewFailed FailureKind = "review_failed"
	FailureMergeFailed  FailureKind = "merge_failed"
	FailureGeneric      FailureKind = "generic"
)

// Detail carries enough context for the orchestrator to route a failure.
type Detail struct {
	Kind         FailureKind
	TaskText     string
	TaskSource   TaskSource
	Branch       string
	WorktreePath string
	PRNumber     int // 0 when no PR exists yet
}

// Result is what RunWorker returns.
type Result struct {
	Outcome      Outcome
	Improvement  int
	Branch       string
	WorktreePath string
	PRNumber     int
	Failure      *Detail
}

// Params describes one worker invocation.
type Params struct {
	Slot        int
	Improvement int
	TaskText    string
	TaskSource  TaskSource
}

// Deps bundles the collaborators a worker needs. Logger defaults to
// slog.Default() when nil; EventLog and PRHost may be nil, and an empty
// ValidateCmd makes validate report success.
type Deps struct {
	Runner   *command.Runner
	Git      *gitutil.Manager
	PR       *ghcli.Gateway
	Agent    *agentrun.Invoker
	Logger   *slog.Logger
	EventLog *eventlog.Writer // optional; nil disables worker/merge/improvement event emission
	RepoPath string

	// PRHost, if set, is consulted only to break an ambiguous review
	// verdict (neither REVIEW_PASSED nor REVIEW_FAILED marker present)
	// before falling back to ValidateCmd. Nil is fine — the review loop
	// then relies on ValidateCmd alone, per internal/hosting's "advisory,
	// never required" contract.
	PRHost hosting.Provider

	BranchPrefix string
	PlanDir      string // e.g. "thoughts/shared/plans/active"
	ValidateCmd  []string

	MinReviewCycles int
	MaxReviewCycles int
	Model           string
	Backend         string
	MaxTurns        int // forwarded to each agent invocation; 0 leaves the backend's own default
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
