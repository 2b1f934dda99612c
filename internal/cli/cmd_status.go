package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/eventlog"
)

// newStatusCmd builds `ralph status`: a point-in-time summary of the three
// task files and the most recent event-log activity, read-only and side
// effect free.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize backlog state and recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
	return cmd
}

func runStatus() error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	lay, err := newLayout(repoRoot)
	if err != nil {
		return err
	}

	triage, err := lay.stores.Triage.Read()
	if err != nil {
		return fmt.Errorf("read triage.md: %w", err)
	}
	backlogTasks, err := lay.stores.Backlog.Read()
	if err != nil {
		return fmt.Errorf("read backlog.md: %w", err)
	}
	mergeConflicts, err := lay.stores.MergeConflict.Read()
	if err != nil {
		return fmt.Errorf("read merge-conflicts.md: %w", err)
	}

	fmt.Printf("triage:          %d task(s) queued ahead of the backlog\n", len(triage))
	fmt.Printf("backlog:         %d task(s) queued\n", len(backlogTasks))
	fmt.Printf("merge-conflicts: %d task(s) parked\n", len(mergeConflicts))

	events, err := eventlog.ReadAll(lay.eventLogPath)
	if err != nil {
		return fmt.Errorf("read event log: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("\nno activity recorded yet")
		return nil
	}

	shipped, failed := 0, 0
	for _, e := range events {
		switch e.Kind {
		case eventlog.ImprovementDone:
			shipped++
		case eventlog.ImprovementFailed:
			failed++
		}
	}
	fmt.Printf("\nimprovements: %d shipped, %d failed (of %d events logged)\n", shipped, failed, len(events))

	tail := events
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	fmt.Println("\nrecent events:")
	for _, e := range tail {
		fmt.Printf("  %s\n", e.Raw)
	}
	return nil
}
