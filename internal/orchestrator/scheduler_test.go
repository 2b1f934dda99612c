package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/backlog"
	"github.com/ralphctl/ralph/internal/pipeline"
)

func newTestStores(t *testing.T, triage, tasks []string) backlog.Stores {
	t.Helper()
	dir := t.TempDir()
	writeLines := func(path string, lines []string) {
		if len(lines) == 0 {
			return
		}
		require.NoError(t, os.WriteFile(path, []byte("- "+joinLines(lines)), 0o644))
	}
	triagePath := filepath.Join(dir, "triage.md")
	backlogPath := filepath.Join(dir, "backlog.md")
	mergePath := filepath.Join(dir, "merge-conflicts.md")
	writeLines(triagePath, triage)
	writeLines(backlogPath, tasks)
	return backlog.Stores{
		Backlog:       &backlog.Store{Path: backlogPath},
		Triage:        &backlog.Store{Path: triagePath},
		MergeConflict: &backlog.Store{Path: mergePath},
	}
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n- " + l
	}
	return out + "\n"
}

func TestSchedulerAcquirePrefersTriageOverBacklog(t *testing.T) {
	stores := newTestStores(t, []string{"fix the flaky test"}, []string{"add caching"})
	sched := NewScheduler(stores)

	a, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pipeline.SourceTriage, a.Source)
	require.Equal(t, "fix the flaky test", a.Text)
}

func TestSchedulerAcquireSkipsInFlight(t *testing.T) {
	stores := newTestStores(t, nil, []string{"add caching", "add retries"})
	sched := NewScheduler(stores)

	first, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "add caching", first.Text)

	second, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "add retries", second.Text)
}

func TestSchedulerReleaseAllowsReacquire(t *testing.T) {
	stores := newTestStores(t, nil, []string{"add caching"})
	sched := NewScheduler(stores)

	a, ok, _ := sched.Acquire()
	require.True(t, ok)
	require.Equal(t, 1, sched.InFlightCount())

	sched.Release(a.Key)
	require.Equal(t, 0, sched.InFlightCount())

	again, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "add caching", again.Text)
}

func TestSchedulerDefersMainNotGreenUntilLastResort(t *testing.T) {
	sentinel := "Fix main branch to be green: investigate validate failures on main and restore a passing build."
	stores := newTestStores(t, []string{sentinel, "add caching"}, nil)
	sched := NewScheduler(stores)
	sched.DeferMainNotGreen(time.Hour)

	a, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "add caching", a.Text, "sentinel deferred while another task exists")
}

func TestSchedulerReturnsDeferredSentinelAsLastResort(t *testing.T) {
	sentinel := "Fix main branch to be green: investigate validate failures on main and restore a passing build."
	stores := newTestStores(t, []string{sentinel}, nil)
	sched := NewScheduler(stores)
	sched.DeferMainNotGreen(time.Hour)

	a, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.True(t, ok, "sentinel should be returned when nothing else is eligible")
	require.Equal(t, sentinel, a.Text)
}

func TestSchedulerAcquireEmptyReturnsFalse(t *testing.T) {
	stores := newTestStores(t, nil, nil)
	sched := NewScheduler(stores)

	_, ok, err := sched.Acquire()
	require.NoError(t, err)
	require.False(t, ok)
}
