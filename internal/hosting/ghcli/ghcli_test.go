package ghcli

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/command"
)

func TestParsePRRoundTrip(t *testing.T) {
	raw := `{"number":42,"url":"https://example.com/pr/42","state":"OPEN","headRefName":"harness-improvement-001","mergeable":"MERGEABLE","mergeStateStatus":"CLEAN","mergedAt":null}`
	pr := parsePR(raw)
	require.NotNil(t, pr)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "OPEN", pr.State)
	assert.Equal(t, "harness-improvement-001", pr.HeadRefName)
	assert.Equal(t, "MERGEABLE", pr.Mergeable)
	assert.Equal(t, "CLEAN", pr.MergeStateStatus)
}

func TestParsePRInvalidJSON(t *testing.T) {
	assert.Nil(t, parsePR("not json"))
}

func TestParseNumberFromURL(t *testing.T) {
	assert.Equal(t, 42, parseNumberFromURL("https://github.com/o/r/pull/42"))
	assert.Equal(t, 0, parseNumberFromURL(""))
	assert.Equal(t, 0, parseNumberFromURL("no-slash"))
}

// fakeBin installs a shell script named binName on PATH whose body is script;
// t.Setenv restores the original PATH when the test ends.
func fakeBin(t *testing.T, binName, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, binName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestFindOpenPRReturnsNilWhenGhFails(t *testing.T) {
	fakeBin(t, "gh", "exit 1\n")
	g := &Gateway{Runner: &command.Runner{}, RepoPath: t.TempDir()}
	pr, err := g.FindOpenPR(context.Background(), "harness-improvement-001")
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestFindOpenPRReturnsNilWhenClosed(t *testing.T) {
	fakeBin(t, "gh", `echo '{"number":1,"url":"u","state":"CLOSED","headRefName":"b","mergeable":"MERGEABLE","mergeStateStatus":"CLEAN","mergedAt":null}'`+"\n")
	g := &Gateway{Runner: &command.Runner{}, RepoPath: t.TempDir()}
	pr, err := g.FindOpenPR(context.Background(), "b")
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestFindOpenPRReturnsPRWhenOpen(t *testing.T) {
	fakeBin(t, "gh", `echo '{"number":7,"url":"u","state":"OPEN","headRefName":"b","mergeable":"MERGEABLE","mergeStateStatus":"CLEAN","mergedAt":null}'`+"\n")
	g := &Gateway{Runner: &command.Runner{}, RepoPath: t.TempDir()}
	pr, err := g.FindOpenPR(context.Background(), "b")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, 7, pr.Number)
}

func TestListOpenByPrefixFiltersHeadRef(t *testing.T) {
	fakeBin(t, "gh", `echo '[{"number":1,"url":"u1","headRefName":"harness-improvement-001"},{"number":2,"url":"u2","headRefName":"other-branch"}]'`+"\n")
	g := &Gateway{Runner: &command.Runner{}, RepoPath: t.TempDir()}
	prs, err := g.ListOpenByPrefix(context.Background(), "harness-improvement")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 1, prs[0].Number)
}

func TestEnsureMergeableSkipsWhenAlreadyClean(t *testing.T) {
	fakeBin(t, "gh", `echo '{"mergeable":"MERGEABLE","mergeStateStatus":"CLEAN"}'`+"\n")
	g := &Gateway{Runner: &command.Runner{}, RepoPath: t.TempDir()}
	ok := g.EnsureMergeable(context.Background(), t.TempDir(), "b", 1)
	assert.True(t, ok)
}
