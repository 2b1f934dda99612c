// Package cli implements ralph's command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

const groupCore = "core"

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Autonomous backlog-driven code-improvement supervisor",
	Long: `ralph drives a pool of AI coding-agent subprocesses through
plan -> implement -> push -> review -> merge for every task on its
backlog, one git worktree per improvement.

Quick start:
  ralph run --target 5             Ship up to 5 improvements, then exit
  ralph run --task "Fix the bug"   Run a single task and exit
  ralph status                     Show recent activity
  ralph jira-import --jql "..."    Pull Jira issues onto the backlog`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: groupCore, Title: "Commands:"})

	addCmd(newRunCmd(), groupCore)
	addCmd(newStatusCmd(), groupCore)
	addCmd(newJiraImportCmd(), groupCore)
}

func addCmd(cmd *cobra.Command, groupID string) {
	cmd.GroupID = groupID
	rootCmd.AddCommand(cmd)
}
