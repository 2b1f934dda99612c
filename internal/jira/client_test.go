package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/stretchr/testify/require"
)

func newTestJiraClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	httpClient := &http.Client{}
	jiraClient, err := v3.New(httpClient, serverURL)
	require.NoError(t, err)
	jiraClient.Auth.SetBasicAuth("test@example.com", "test-token")
	return &Client{jira: jiraClient}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{Email: "a@b.com", APIToken: "tok"})
	require.ErrorContains(t, err, "base URL is required")

	_, err = NewClient(ClientConfig{BaseURL: "https://x.atlassian.net", APIToken: "tok"})
	require.ErrorContains(t, err, "email is required")

	_, err = NewClient(ClientConfig{BaseURL: "https://x.atlassian.net", Email: "a@b.com"})
	require.ErrorContains(t, err, "API token is required")
}

func TestNewClientSuccess(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "https://test.atlassian.net", Email: "test@example.com", APIToken: "tok"})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestSearchAllIssuesPaginates(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search/jql", r.URL.Path)
		var body struct {
			NextPageToken string `json:"nextPageToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests++

		resp := map[string]any{
			"issues": []map[string]any{
				{"key": "PROJ-1", "fields": map[string]any{"summary": "First issue"}},
			},
			"nextPageToken": "",
		}
		if body.NextPageToken == "" {
			resp["issues"] = []map[string]any{{"key": "PROJ-1", "fields": map[string]any{"summary": "First issue"}}}
			resp["nextPageToken"] = "page2"
		} else {
			resp["issues"] = []map[string]any{{"key": "PROJ-2", "fields": map[string]any{"summary": "Second issue"}}}
			resp["nextPageToken"] = ""
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := newTestJiraClient(t, server.URL)
	issues, err := client.SearchAllIssues(context.Background(), "project = PROJ")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.Equal(t, "PROJ-1", issues[0].Key)
	require.Equal(t, "First issue", issues[0].Summary)
	require.Equal(t, "PROJ-2", issues[1].Key)
	require.Equal(t, 2, requests)
}

func TestCheckAuthSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/myself", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"accountId": "abc"}))
	}))
	defer server.Close()

	client := newTestJiraClient(t, server.URL)
	require.NoError(t, client.CheckAuth(context.Background()))
}

func TestCheckAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestJiraClient(t, server.URL)
	require.Error(t, client.CheckAuth(context.Background()))
}
