package backlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissingFileIsEmpty(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	tasks, err := s.Read()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestWriteThenRead(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, s.Write([]string{"do thing one", "do thing two"}))

	tasks, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"do thing one", "do thing two"}, tasks)
}

func TestPeekDoesNotRemove(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, s.Write([]string{"a", "b"}))

	task, ok, err := s.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", task)

	tasks, _ := s.Read()
	assert.Equal(t, []string{"a", "b"}, tasks)
}

func TestPopRemovesFirst(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, s.Write([]string{"a", "b", "c"}))

	task, ok, err := s.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", task)

	tasks, _ := s.Read()
	assert.Equal(t, []string{"b", "c"}, tasks)
}

func TestPopEmptyReturnsFalse(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	_, ok, err := s.Pop()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveByText(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, s.Write([]string{"a", "b", "a"}))

	removed, err := s.RemoveByText("a")
	require.NoError(t, err)
	assert.True(t, removed)

	tasks, _ := s.Read()
	assert.Equal(t, []string{"b"}, tasks)
}

func TestAddIfAbsentDoesNotDuplicate(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "triage.md")}
	require.NoError(t, s.AddIfAbsent("task one"))
	require.NoError(t, s.AddIfAbsent("task one"))

	tasks, _ := s.Read()
	assert.Equal(t, []string{"task one"}, tasks)
}

func TestRemoveMatchingCounts(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, s.Write([]string{"a", "b", "c"}))

	removed, err := s.RemoveMatching(func(t string) bool { return t != "b" })
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	tasks, _ := s.Read()
	assert.Equal(t, []string{"a", "c"}, tasks)
}
