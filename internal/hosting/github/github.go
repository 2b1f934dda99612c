// Package github implements hosting.Provider enrichment for GitHub remotes,
// wrapping google/go-github to read check runs and review state for the
// worker pipeline's review loop. It has no write path: pushes, PR creation,
// and merges all go through internal/hosting/ghcli per the spec's gh-CLI
// host contract.
package github

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/ralphctl/ralph/internal/hosting"
)

var _ hosting.Provider = (*Provider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitHub, newProvider)
}

// Provider implements hosting.Provider using the go-github library.
type Provider struct {
	client *gogithub.Client
	owner  string
	repo   string
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

	httpClient := &http.Client{Transport: &oauth2Transport{token: token}}
	client := gogithub.NewClient(httpClient)

	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		var parseErr error
		client.BaseURL, parseErr = client.BaseURL.Parse(baseURL + "/api/v3/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, parseErr)
		}
	}

	return &Provider{client: client, owner: owner, repo: repo}, nil
}

type oauth2Transport struct {
	token string
	base  http.RoundTripper
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}

// Name returns the provider type.
func (g *Provider) Name() hosting.ProviderType {
	return hosting.ProviderGitHub
}

// CheckAuth validates the token by fetching the authenticated user.
func (g *Provider) CheckAuth(ctx context.Context) error {
	_, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("check auth: %w", err)
	}
	return nil
}

// GetCheckRuns gets CI check runs for a ref.
func (g *Provider) GetCheckRuns(ctx context.Context, ref string) ([]hosting.CheckRun, error) {
	result, _, err := g.client.Checks.ListCheckRunsForRef(ctx, g.owner, g.repo, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("get check runs for %q: %w", ref, err)
	}

	checks := make([]hosting.CheckRun, 0, len(result.CheckRuns))
	for _, cr := range result.CheckRuns {
		checks = append(checks, hosting.CheckRun{
			Name:       cr.GetName(),
			Status:     cr.GetStatus(),
			Conclusion: cr.GetConclusion(),
		})
	}
	return checks, nil
}

func (g *Provider) getPRReviews(ctx context.Context, number int) ([]hosting.PRReview, error) {
	var allReviews []*gogithub.PullRequestReview
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		reviews, resp, err := g.client.PullRequests.ListReviews(ctx, g.owner, g.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list reviews for PR %d: %w", number, err)
		}
		allReviews = append(allReviews, reviews...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	result := make([]hosting.PRReview, 0, len(allReviews))
	for _, r := range allReviews {
		result = append(result, hosting.PRReview{Author: r.GetUser().GetLogin(), State: r.GetState()})
	}
	return result, nil
}

// GetPRStatusSummary aggregates review + CI state for number.
func (g *Provider) GetPRStatusSummary(ctx context.Context, number int) (*hosting.PRStatusSummary, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err != nil {
		return nil, fmt.Errorf("get PR %d: %w", number, err)
	}

	summary := &hosting.PRStatusSummary{ReviewStatus: "pending_review", Mergeable: pr.GetMergeable()}

	reviews, err := g.getPRReviews(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}

	latestByAuthor := make(map[string]string)
	for _, r := range reviews {
		if r.State == "COMMENTED" || r.State == "PENDING" {
			continue
		}
		latestByAuthor[r.Author] = r.State
	}

	var approvals, changesRequested int
	for _, state := range latestByAuthor {
		switch state {
		case "APPROVED":
			approvals++
		case "CHANGES_REQUESTED":
			changesRequested++
		}
	}
	summary.ApprovalCount = approvals

	switch {
	case changesRequested > 0:
		summary.ReviewStatus = "changes_requested"
	case approvals > 0:
		summary.ReviewStatus = "approved"
	}

	checks, err := g.GetCheckRuns(ctx, pr.GetHead().GetRef())
	if err != nil {
		summary.ChecksStatus = "unknown"
		return summary, nil
	}

	var failed, pending int
	for _, check := range checks {
		switch check.Status {
		case "completed":
			switch check.Conclusion {
			case "failure", "timed_out", "cancelled", "action_required":
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
