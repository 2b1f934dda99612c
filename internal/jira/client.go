package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// ClientConfig holds the configuration for connecting to a Jira Cloud instance.
type ClientConfig struct {
	BaseURL  string
	Email    string
	APIToken string
}

// Client wraps the go-atlassian Jira v3 client with ralph's convenience methods.
type Client struct {
	jira *v3.Client
}

// NewClient creates a new Jira Cloud client with basic auth.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if cfg.Email == "" {
		return nil, fmt.Errorf("jira email is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("jira API token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: 30 * time.Second}

	client, err := v3.New(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	client.Auth.SetBasicAuth(cfg.Email, cfg.APIToken)
	client.Auth.SetUserAgent("ralph-jira-import/1.0")

	return &Client{jira: client}, nil
}

// searchFields are the only Jira fields requested, since ralph only needs
// a one-line task summary.
var searchFields = []string{"summary"}

// SearchAllIssues fetches all issues matching the JQL query, handling
// pagination.
func (c *Client) SearchAllIssues(ctx context.Context, jql string) ([]Issue, error) {
	var all []Issue
	nextPageToken := ""

	for {
		result, resp, err := c.jira.Issue.Search.SearchJQL(ctx, jql, searchFields, nil, 50, nextPageToken)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("jira search (status %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("jira search: %w", err)
		}

		for _, issue := range result.Issues {
			all = append(all, convertIssue(issue))
		}

		if result.NextPageToken == "" || len(result.Issues) == 0 {
			break
		}
		nextPageToken = result.NextPageToken
	}

	return all, nil
}

// CheckAuth verifies the client can authenticate with Jira.
func (c *Client) CheckAuth(ctx context.Context) error {
	_, resp, err := c.jira.MySelf.Details(ctx, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("jira auth check failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("jira auth check failed: %w", err)
	}
	return nil
}

// convertIssue maps a go-atlassian IssueScheme to our minimal Issue type.
func convertIssue(issue *models.IssueScheme) Issue {
	if issue == nil {
		return Issue{}
	}
	summary := ""
	if issue.Fields != nil {
		summary = issue.Fields.Summary
	}
	return Issue{Key: issue.Key, Summary: summary}
}
