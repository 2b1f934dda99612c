package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ralphctl/ralph/internal/backlog"
)

func TestFormatTask(t *testing.T) {
	got := FormatTask(Issue{Key: "PROJ-7", Summary: "Add retry logic"})
	require.Equal(t, "PROJ-7: Add retry logic", got)
}

func issueFetchServer(t *testing.T, body string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return newTestJiraClient(t, server.URL)
}

func TestImporterRunSkipsEquivalentExistingTasks(t *testing.T) {
	store := &backlog.Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	require.NoError(t, store.Write([]string{"PROJ-1: Fix the login bug urgently"}))

	client := issueFetchServer(t, `{"issues":[
		{"key":"PROJ-1","fields":{"summary":"Fix the login bug urgently"}},
		{"key":"PROJ-2","fields":{"summary":"Add response caching layer"}}
	],"nextPageToken":""}`)

	result, err := NewImporter(client, store, nil).Run(context.Background(), "project = PROJ", false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Fetched)
	require.Equal(t, 1, result.Added)
	require.Equal(t, 1, result.Skipped)

	tasks, err := store.Read()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
}

func TestImporterRunDryRunDoesNotWrite(t *testing.T) {
	store := &backlog.Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	client := issueFetchServer(t, `{"issues":[{"key":"PROJ-9","fields":{"summary":"Improve logging"}}],"nextPageToken":""}`)

	result, err := NewImporter(client, store, nil).Run(context.Background(), "project = PROJ", true)
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)

	tasks, err := store.Read()
	require.NoError(t, err)
	require.Empty(t, tasks, "dry run must not write")
}

func TestImporterRunAppendsNewIssues(t *testing.T) {
	store := &backlog.Store{Path: filepath.Join(t.TempDir(), "backlog.md")}
	client := issueFetchServer(t, `{"issues":[{"key":"PROJ-9","fields":{"summary":"Improve logging"}}],"nextPageToken":""}`)

	result, err := NewImporter(client, store, nil).Run(context.Background(), "project = PROJ", false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Added)

	tasks, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, []string{"PROJ-9: Improve logging"}, tasks)
}
