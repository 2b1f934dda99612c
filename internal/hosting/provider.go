// Package hosting provides read-only CI/review enrichment over a PR, used
// by the worker pipeline's review loop to break ties when a reviewer
// verdict is ambiguous. The authoritative push/PR/merge surface is
// internal/hosting/ghcli, which shells the gh CLI per the spec's host
// contract; this package is a best-effort supplement that degrades to
// nothing if no provider can be constructed for the remote.
package hosting

import "context"

// ProviderType identifies which hosting provider a remote resolves to.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderUnknown ProviderType = "unknown"
)

// Provider is the read-only enrichment surface. Implementations exist for
// GitHub (google/go-github) and GitLab (gitlab.com/gitlab-org/api/client-go).
type Provider interface {
	// GetCheckRuns returns CI results for ref (GitHub check runs / GitLab
	// pipeline jobs, unified).
	GetCheckRuns(ctx context.Context, ref string) ([]CheckRun, error)
	// GetPRStatusSummary aggregates review + CI state for number.
	GetPRStatusSummary(ctx context.Context, number int) (*PRStatusSummary, error)
	// CheckAuth verifies the provider's credentials are usable.
	CheckAuth(ctx context.Context) error
	Name() ProviderType
}

// CheckRun represents one CI check (GitHub check run / GitLab pipeline job).
type CheckRun struct {
	Name       string
	Status     string // queued, in_progress, completed
	Conclusion string // success, failure, neutral, etc; "running" for a running GitLab job; otherwise empty if not completed
}

// PRReview represents one review / approval.
type PRReview struct {
	Author string
	State  string // APPROVED, CHANGES_REQUESTED, COMMENTED, DISMISSED, PENDING
}

// PRStatusSummary aggregates review and CI status for a PR, used by the
// review loop to decide whether an ambiguous reviewer verdict should defer
// to validate's exit code or to CI's.
type PRStatusSummary struct {
	ReviewStatus  string // pending_review, changes_requested, approved
	ApprovalCount int
	ChecksStatus  string // pending, success, failure, none, unknown
	Mergeable     bool
}
