package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/jira"
)

// newJiraImportCmd builds `ralph jira-import`, trimmed to SPEC_FULL.md §9's
// read-only scope: fetch issues matching --jql and append them to
// backlog.md as "<key>: <summary>" lines.
func newJiraImportCmd() *cobra.Command {
	var (
		url    string
		email  string
		token  string
		jql    string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "jira-import",
		Short: "Import matching Jira issues onto the backlog",
		Long: `jira-import fetches every issue matching --jql and appends it to
backlog.md as one "<issue key>: <summary>" line, skipping anything already
represented there (exact or fuzzy match).

Authentication requires a Jira Cloud API token:
  1. Generate at https://id.atlassian.com/manage-profile/security/api-tokens
  2. Pass --token, or set RALPH_JIRA_TOKEN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJiraImport(url, email, resolveToken(token), jql, dryRun)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Jira Cloud base URL (e.g. https://acme.atlassian.net)")
	cmd.Flags().StringVar(&email, "email", "", "account email for basic auth")
	cmd.Flags().StringVar(&token, "token", "", "API token (or RALPH_JIRA_TOKEN)")
	cmd.Flags().StringVar(&jql, "jql", "", "JQL query selecting which issues to import")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview without writing to backlog.md")

	return cmd
}

func resolveToken(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("RALPH_JIRA_TOKEN")
}

func runJiraImport(url, email, token, jql string, dryRun bool) error {
	client, err := jira.NewClient(jira.ClientConfig{BaseURL: url, Email: email, APIToken: token})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.CheckAuth(ctx); err != nil {
		return fmt.Errorf("jira authentication failed: %w", err)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	lay, err := newLayout(repoRoot)
	if err != nil {
		return err
	}

	importer := jira.NewImporter(client, lay.stores.Backlog, nil)
	result, err := importer.Run(ctx, jql, dryRun)
	if err != nil {
		return fmt.Errorf("jira import failed: %w", err)
	}

	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Printf("%sjira import complete: %d fetched, %d added, %d skipped\n",
		prefix, result.Fetched, result.Added, result.Skipped)
	return nil
}
