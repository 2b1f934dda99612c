// Package ghcli is the default PR gateway: it shells git for pushes and the
// gh CLI for every PR/merge-state operation the worker pipeline needs, decoding gh's
// --json output with gjson field extraction rather than a generated API
// client, matching the read-only PR host CLI contract: number, url, state,
// headRefName, mergeable, mergeStateStatus, mergedAt.
package ghcli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ralphctl/ralph/internal/command"
)

// PR is the subset of PR/MR fields the gateway exposes, decoded from gh's
// --json output.
type PR struct {
	Number           int
	URL              string
	State            string // OPEN, CLOSED, MERGED
	HeadRefName      string
	Mergeable        string // MERGEABLE, CONFLICTING, UNKNOWN
	MergeStateStatus string // CLEAN, DIRTY, BLOCKED, BEHIND, ...
	MergedAt         string
}

const prJSONFields = "number,url,state,headRefName,mergeable,mergeStateStatus,mergedAt"

// Gateway shells gh for the repository at RepoPath.
type Gateway struct {
	Runner   *command.Runner
	RepoPath string
}

// Push pushes branch to origin, creating the upstream tracking ref.
func (g *Gateway) Push(ctx context.Context, branch string) bool {
	res, err := g.Runner.Run(ctx, g.RepoPath, "git", "push", "--set-upstream", "origin", branch)
	return err == nil && res.Success()
}

// FindOpenPR looks up the open PR for branch, if any.
func (g *Gateway) FindOpenPR(ctx context.Context, branch string) (*PR, error) {
	res, err := g.Runner.Run(ctx, g.RepoPath, "gh", "pr", "view", branch, "--json", prJSONFields)
	if err != nil {
		return nil, fmt.Errorf("gh pr view %s: %w", branch, err)
	}
	if !res.Success() {
		// gh exits non-zero when there's no PR for this branch at all.
		return nil, nil
	}
	pr := parsePR(res.Stdout)
	if pr == nil || pr.State != "OPEN" {
		return nil, nil
	}
	return pr, nil
}

// CreatePR opens a new PR for branch. On success it prefers re-reading the
// PR by branch (to get the full field set); if that fails it falls back to
// parsing the URL gh printed on stdout.
func (g *Gateway) CreatePR(ctx context.Context, branch, title, body string) (*PR, error) {
	res, err := g.Runner.Run(ctx, g.RepoPath, "gh", "pr", "create",
		"--head", branch, "--title", title, "--body", body)
	if err != nil {
		return nil, fmt.Errorf("gh pr create %s: %w", branch, err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("gh pr create %s: %s", branch, strings.TrimSpace(res.Stderr))
	}

	if pr, findErr := g.FindOpenPR(ctx, branch); findErr == nil && pr != nil {
		return pr, nil
	}

	url := strings.TrimSpace(res.Stdout)
	if url == "" {
		return nil, fmt.Errorf("gh pr create %s: no PR URL on stdout", branch)
	}
	return &PR{URL: url, HeadRefName: branch, State: "OPEN", Number: parseNumberFromURL(url)}, nil
}

// EnsurePR returns the existing open PR for branch, creating one if none
// exists. Never creates a second PR for a branch that already has one.
func (g *Gateway) EnsurePR(ctx context.Context, branch, title, body string) (*PR, error) {
	if pr, err := g.FindOpenPR(ctx, branch); err == nil && pr != nil {
		return pr, nil
	}
	return g.CreatePR(ctx, branch, title, body)
}

// ReadMergeState reads the current state and mergedAt timestamp for PR n.
func (g *Gateway) ReadMergeState(ctx context.Context, n int) (state, mergedAt string, err error) {
	res, runErr := g.Runner.Run(ctx, g.RepoPath, "gh", "pr", "view", strconv.Itoa(n), "--json", prJSONFields)
	if runErr != nil {
		return "", "", fmt.Errorf("gh pr view %d: %w", n, runErr)
	}
	if !res.Success() {
		return "", "", fmt.Errorf("gh pr view %d: %s", n, strings.TrimSpace(res.Stderr))
	}
	return gjson.Get(res.Stdout, "state").String(), gjson.Get(res.Stdout, "mergedAt").String(), nil
}

// EnsureMergeable brings branch's PR out of a CONFLICTING/DIRTY state by
// merging origin/main into it (in worktree, the branch's checkout) and
// pushing. If the fetch, checkout or merge fails it runs git merge --abort
// and returns false; if the push fails it returns false with the merge
// commit left on the local branch.
func (g *Gateway) EnsureMergeable(ctx context.Context, worktree, branch string, n int) bool {
	res, err := g.Runner.Run(ctx, g.RepoPath, "gh", "pr", "view", strconv.Itoa(n), "--json", "mergeable,mergeStateStatus")
	if err != nil || !res.Success() {
		return false
	}
	mergeable := gjson.Get(res.Stdout, "mergeable").String()
	status := gjson.Get(res.Stdout, "mergeStateStatus").String()
	if mergeable != "CONFLICTING" && status != "DIRTY" {
		return true
	}

	steps := [][]string{
		{"fetch", "origin", "main"},
		{"checkout", branch},
		{"merge", "origin/main", "--no-edit"},
	}
	for _, args := range steps {
		res, err := g.Runner.Run(ctx, worktree, "git", args...)
		if err != nil || !res.Success() {
			_, _ = g.Runner.Run(ctx, worktree, "git", "merge", "--abort")
			return false
		}
	}

	res, err = g.Runner.Run(ctx, worktree, "git", "push", "origin", branch)
	if err != nil || !res.Success() {
		return false
	}
	return true
}

// OpenPR is one entry from ListOpenByPrefix.
type OpenPR struct {
	Number  int
	URL     string
	HeadRef string
}

// ListOpenByPrefix lists open PRs whose head ref starts with prefix+"-".
func (g *Gateway) ListOpenByPrefix(ctx context.Context, prefix string) ([]OpenPR, error) {
	res, err := g.Runner.Run(ctx, g.RepoPath, "gh", "pr", "list", "--state", "open", "--json", "number,url,headRefName")
	if err != nil {
		return nil, fmt.Errorf("gh pr list: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("gh pr list: %s", strings.TrimSpace(res.Stderr))
	}

	want := prefix + "-"
	var out []OpenPR
	for _, pr := range gjson.Parse(res.Stdout).Array() {
		head := pr.Get("headRefName").String()
		if !strings.HasPrefix(head, want) {
			continue
		}
		out = append(out, OpenPR{
			Number:  int(pr.Get("number").Int()),
			URL:     pr.Get("url").String(),
			HeadRef: head,
		})
	}
	return out, nil
}

func parsePR(raw string) *PR {
	if !gjson.Valid(raw) {
		return nil
	}
	v := gjson.Parse(raw)
	if !v.Exists() {
		return nil
	}
	return &PR{
		Number:           int(v.Get("number").Int()),
		URL:              v.Get("url").String(),
		State:            v.Get("state").String(),
		HeadRefName:      v.Get("headRefName").String(),
		Mergeable:        v.Get("mergeable").String(),
		MergeStateStatus: v.Get("mergeStateStatus").String(),
		MergedAt:         v.Get("mergedAt").String(),
	}
}

func parseNumberFromURL(url string) int {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(url[idx+1:]))
	if err != nil {
		return 0
	}
	return n
}
