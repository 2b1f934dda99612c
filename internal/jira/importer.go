package jira

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ralphctl/ralph/internal/backlog"
)

// Importer fetches matching Jira issues and appends them to a backlog.Store
// as plain task lines, skipping anything equivalent to what's already there.
type Importer struct {
	client *Client
	store  *backlog.Store
	logger *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(client *Client, store *backlog.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{client: client, store: store, logger: logger}
}

// FormatTask renders a Jira issue as a single backlog.md line.
func FormatTask(issue Issue) string {
	return fmt.Sprintf("%s: %s", issue.Key, issue.Summary)
}

// Run fetches issues matching jql and appends the ones not already
// represented in the backlog, exactly or equivalently per
// backlog.Equivalent. dryRun previews without writing.
func (imp *Importer) Run(ctx context.Context, jql string, dryRun bool) (ImportResult, error) {
	var result ImportResult

	issues, err := imp.client.SearchAllIssues(ctx, jql)
	if err != nil {
		return result, fmt.Errorf("fetch jira issues: %w", err)
	}
	result.Fetched = len(issues)
	imp.logger.Info("fetched jira issues", "count", len(issues), "jql", jql)

	existing, err := imp.store.Read()
	if err != nil {
		return result, fmt.Errorf("read backlog: %w", err)
	}

	appended := make([]string, 0, len(issues))
	for _, issue := range issues {
		task := FormatTask(issue)
		if isRepresented(existing, task) || isRepresented(appended, task) {
			result.Skipped++
			continue
		}
		appended = append(appended, task)
		result.Added++
	}

	if dryRun || len(appended) == 0 {
		return result, nil
	}
	return result, imp.store.Write(append(existing, appended...))
}

func isRepresented(tasks []string, candidate string) bool {
	for _, t := range tasks {
		if backlog.Equivalent(t, candidate) {
			return true
		}
	}
	return false
}
