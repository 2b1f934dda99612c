package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, w.WorkerStarted(1, 7, "add caching"))
	require.NoError(t, w.StepStart(7, "plan", "claude"))
	require.NoError(t, w.MergeCompleted(1, 7, "harness-improvement-007", true))
	require.NoError(t, w.Close())

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, WorkerStarted, events[0].Kind)
	assert.Equal(t, "add caching", events[0].Fields["task"])
	assert.Equal(t, StepStart, events[1].Kind)
	assert.Equal(t, MergeCompleted, events[2].Kind)
	assert.Equal(t, true, events[2].Fields["success"])
	assert.NotEmpty(t, events[0].Fields["ts"])
}

func TestReadAllMissingFileIsEmpty(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestForEachSkipsTornAndNonObjectLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(WorkerStarted, map[string]any{"worker": 1, "improvement": 1, "task": "x"}))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"event\":\"step_start\"\n[1,2,3]\n\"just a string\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, WorkerStarted, events[0].Kind)
}
