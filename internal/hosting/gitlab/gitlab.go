// Package gitlab implements hosting.Provider enrichment for GitLab remotes,
// wrapping gitlab.com/gitlab-org/api/client-go to read pipeline jobs and
// approval state for the worker pipeline's review loop. No write path:
// push/MR-create/merge all go through internal/hosting/ghcli.
package gitlab

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/ralphctl/ralph/internal/hosting"
)

var _ hosting.Provider = (*Provider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitLab, newProvider)
}

// Provider implements hosting.Provider using the go-gitlab library.
type Provider struct {
	client    *gogitlab.Client
	projectID string // "owner/repo" path used as project identifier
}

func newProvider(workDir string, cfg hosting.Config) (hosting.Provider, error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("get remote URL: %w", err)
	}

	remoteURL := strings.TrimSpace(string(output))
	owner, repo := hosting.ParseOwnerRepo(remoteURL)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("could not parse owner/repo from remote URL: %s", remoteURL)
	}
	projectID := owner + "/" + repo

	var client *gogitlab.Client
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		client, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(baseURL+"/api/v4"))
	} else {
		client, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &Provider{client: client, projectID: projectID}, nil
}

// Name returns the provider type.
func (g *Provider) Name() hosting.ProviderType {
	return hosting.ProviderGitLab
}

// CheckAuth validates the token by fetching the authenticated user.
func (g *Provider) CheckAuth(ctx context.Context) error {
	_, _, err := g.client.Users.CurrentUser(gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	return nil
}

// GetCheckRuns gets CI pipeline jobs for a ref, mapped to the unified
// CheckRun shape.
func (g *Provider) GetCheckRuns(ctx context.Context, ref string) ([]hosting.CheckRun, error) {
	pipelines, _, err := g.client.Pipelines.ListProjectPipelines(g.projectID, &gogitlab.ListProjectPipelinesOptions{
		Ref:         gogitlab.Ptr(ref),
		ListOptions: gogitlab.ListOptions{PerPage: 1},
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list pipelines for ref %q: %w", ref, err)
	}
	if len(pipelines) == 0 {
		return nil, nil
	}

	jobs, _, err := g.client.Jobs.ListPipelineJobs(g.projectID, pipelines[0].ID, nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list pipeline jobs for ref %q: %w", ref, err)
	}

	checks := make([]hosting.CheckRun, 0, len(jobs))
	for _, job := range jobs {
		status, conclusion := mapJobStatus(job.Status)
		checks = append(checks, hosting.CheckRun{Name: job.Name, Status: status, Conclusion: conclusion})
	}
	return checks, nil
}

func (g *Provider) getApprovals(ctx context.Context, number int) ([]hosting.PRReview, error) {
	approvalState, _, err := g.client.MergeRequestApprovals.GetApprovalState(g.projectID, int64(number), gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get approval state for MR %d: %w", number, err)
	}

	var reviews []hosting.PRReview
	for _, rule := range approvalState.Rules {
		for _, approver := range rule.ApprovedBy {
			reviews = append(reviews, hosting.PRReview{Author: approver.Username, State: "APPROVED"})
		}
	}
	return reviews, nil
}

// GetPRStatusSummary aggregates approval and pipeline state for number.
func (g *Provider) GetPRStatusSummary(ctx context.Context, number int) (*hosting.PRStatusSummary, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(g.projectID, int64(number), nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get MR %d: %w", number, err)
	}

	mergeable := mr.DetailedMergeStatus == "mergeable"
	summary := &hosting.PRStatusSummary{ReviewStatus: "pending_review", Mergeable: mergeable}

	reviews, err := g.getApprovals(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get approvals: %w", err)
	}

	approvers := make(map[string]bool)
	for _, r := range reviews {
		approvers[r.Author] = true
	}
	summary.ApprovalCount = len(approvers)
	if len(approvers) > 0 {
		summary.ReviewStatus = "approved"
	}

	checks, err := g.GetCheckRuns(ctx, mr.SourceBranch)
	if err != nil {
		summary.ChecksStatus = "unknown"
		return summary, nil
	}

	var failed, pending int
	for _, check := range checks {
		switch check.Status {
		case "completed":
			if check.Conclusion == "failure" || check.Conclusion == "cancelled" {
				failed++
			}
		default:
			pending++
		}
	}

	switch {
	case len(checks) == 0:
		summary.ChecksStatus = "none"
	case failed > 0:
		summary.ChecksStatus = "failure"
	case pending > 0:
		summary.ChecksStatus = "pending"
	default:
		summary.ChecksStatus = "success"
	}

	return summary, nil
}

// mapJobStatus converts a GitLab job status to a unified (status, conclusion) pair.
func mapJobStatus(gitlabStatus string) (status, conclusion string) {
	switch gitlabStatus {
	case "success":
		return "completed", "success"
	case "failed":
		return "completed", "failure"
	case "canceled":
		return "completed", "cancelled"
	case "skipped":
		return "completed", "skipped"
	case "running":
		return "in_progress", "running"
	case "pending", "created", "manual":
		return "queued", ""
	default:
		return "queued", ""
	}
}
