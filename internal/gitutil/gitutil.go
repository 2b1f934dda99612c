// Package gitutil manages the worktree lifecycle for improvements: one
// branch and one worktree directory per improvement number, created fresh
// or resumed from a prior run depending on what state the repo is already
// in.
package gitutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ralphctl/ralph/internal/command"
)

// Manager runs git against a single repository's worktrees.
type Manager struct {
	Runner       *command.Runner
	RepoPath     string
	WorktreesDir string
}

// BranchName returns the branch for improvement n under prefix, zero-padded
// to width 3 (unbounded above 999: "harness-improvement-1000" is valid).
func BranchName(prefix string, n int) string {
	return fmt.Sprintf("%s-%s", prefix, zeroPad(n, 3))
}

func zeroPad(n, width int) string {
	s := strconv.Itoa(n)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// WorktreePath returns the path a branch's worktree would live at.
func WorktreePath(worktreesDir, branch string) string {
	return filepath.Join(worktreesDir, strings.ReplaceAll(branch, "/", "-"))
}

// Result reports what CreateOrResume actually did.
type Result struct {
	Path    string
	Branch  string
	Resumed bool
}

func (m *Manager) git(ctx context.Context, dir string, args ...string) (command.Result, error) {
	return m.Runner.Run(ctx, dir, "git", args...)
}

func (m *Manager) branchExists(ctx context.Context, branch string) bool {
	res, err := m.git(ctx, m.RepoPath, "rev-parse", "--verify", "--quiet", branch)
	return err == nil && res.Success()
}

// HasNewCommits reports whether branch has commits not on main. Any git
// failure (branch missing, not a worktree yet, etc) is treated as false.
func (m *Manager) HasNewCommits(ctx context.Context, path string) bool {
	res, err := m.git(ctx, path, "rev-list", "--count", "main..HEAD")
	if err != nil || !res.Success() {
		return false
	}
	count, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	return convErr == nil && count > 0
}

func pathExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreateOrResume implements the worktree lifecycle decision table: given
// whether the worktree directory exists, whether the branch exists, and
// whether the branch carries unmerged commits, it leaves an existing
// worktree in place, recreates a stale one, re-attaches to an orphaned
// branch, or creates fresh.
func (m *Manager) CreateOrResume(ctx context.Context, path, branch string) (Result, error) {
	wtExists := pathExists(path)
	branchExists := m.branchExists(ctx, branch)
	hasWork := wtExists && m.HasNewCommits(ctx, path)

	switch {
	case wtExists && branchExists && hasWork:
		// Leave in place; best-effort symlink at repo root, tolerate "exists".
		link := filepath.Join(m.RepoPath, filepath.Base(path))
		_ = os.Symlink(path, link)
		return Result{Path: path, Branch: branch, Resumed: true}, nil

	case wtExists && branchExists && !hasWork:
		if err := m.forceRemoveWorktree(ctx, path); err != nil {
			return Result{}, err
		}
		if _, err := m.git(ctx, m.RepoPath, "branch", "-D", branch); err != nil {
			return Result{}, fmt.Errorf("delete stale branch %s: %w", branch, err)
		}
		return m.createFresh(ctx, path, branch)

	case wtExists && !branchExists:
		if err := m.forceRemoveWorktree(ctx, path); err != nil {
			return Result{}, err
		}
		return m.createFresh(ctx, path, branch)

	case !wtExists && branchExists && hasWorkOnBranch(m, ctx, branch):
		if _, err := m.git(ctx, m.RepoPath, "worktree", "add", path, branch); err != nil {
			return Result{}, fmt.Errorf("re-attach worktree for %s: %w", branch, err)
		}
		return Result{Path: path, Branch: branch, Resumed: true}, nil

	case !wtExists && branchExists:
		if _, err := m.git(ctx, m.RepoPath, "branch", "-D", branch); err != nil {
			return Result{}, fmt.Errorf("delete empty orphan branch %s: %w", branch, err)
		}
		return m.createFresh(ctx, path, branch)

	default: // !wtExists && !branchExists
		return m.createFresh(ctx, path, branch)
	}
}

// hasWorkOnBranch checks main..branch directly (no worktree exists yet to
// check HEAD against), used only by the !wtExists && branchExists case.
func hasWorkOnBranch(m *Manager, ctx context.Context, branch string) bool {
	res, err := m.git(ctx, m.RepoPath, "rev-list", "--count", "main.."+branch)
	if err != nil || !res.Success() {
		return false
	}
	count, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	return convErr == nil && count > 0
}

func (m *Manager) forceRemoveWorktree(ctx context.Context, path string) error {
	if _, err := m.git(ctx, m.RepoPath, "worktree", "remove", "--force", path); err != nil {
		return fmt.Errorf("remove worktree %s: %w", path, err)
	}
	return nil
}

func (m *Manager) createFresh(ctx context.Context, path, branch string) (Result, error) {
	if err := os.MkdirAll(m.WorktreesDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create worktrees dir: %w", err)
	}
	res, err := m.git(ctx, m.RepoPath, "worktree", "add", "-b", branch, path, "main")
	if err != nil || !res.Success() {
		_, _ = m.git(ctx, m.RepoPath, "worktree", "prune")
		res, err = m.git(ctx, m.RepoPath, "worktree", "add", "-b", branch, path, "main")
		if err != nil {
			return Result{}, fmt.Errorf("create worktree for %s: %w", branch, err)
		}
		if !res.Success() {
			return Result{}, fmt.Errorf("create worktree for %s: %s", branch, strings.TrimSpace(res.Stderr))
		}
	}
	return Result{Path: path, Branch: branch, Resumed: false}, nil
}

// Cleanup removes the worktree at path and deletes branch, tolerating
// failure on the branch delete (it may carry unmerged commits a caller
// wants to keep around, or may already be gone).
func (m *Manager) Cleanup(ctx context.Context, path, branch string) error {
	if pathExists(path) {
		if _, err := m.git(ctx, m.RepoPath, "worktree", "remove", "--force", path); err != nil {
			return fmt.Errorf("cleanup worktree %s: %w", path, err)
		}
	}
	_, _ = m.git(ctx, m.RepoPath, "branch", "-d", branch)
	return nil
}
