// Copyright 2024-2026 Aiku AI

// Package github is a minimal typed client for the GitHub REST API,
// covering the issue and pull request lookups the bot needs.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiVersion pins the GitHub REST API version header so behavior stays
// consistent as GitHub evolves the API.
const apiVersion = "2022-11-28"

// defaultBaseURL is the base URL for the public GitHub API.
const defaultBaseURL = "https://api.github.com"

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com".
	BaseURL string

	// Token is an optional personal access token. Unauthenticated
	// requests work but are heavily rate limited.
	Token string

	// HTTPClient is used for all requests. Defaults to a client with a
	// 10 second timeout.
	HTTPClient *http.Client
}

// Client is a GitHub REST API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client from the given configuration.
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
	}
}

// Item is the subset of an issue or pull request the bot cares about.
type Item struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports whether err is a GitHub API 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// GetIssue retrieves a single issue by number.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.get(ctx, path, &item); err != nil {
		return nil, fmt.Errorf("getting issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return &item, nil
}

// GetPull retrieves a single pull request by number.
func (c *Client) GetPull(ctx context.Context, owner, repo string, number int) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.get(ctx, path, &item); err != nil {
		return nil, fmt.Errorf("getting pull %s/%s#%d: %w", owner, repo, number, err)
	}
	return &item, nil
}

// Search resolves a reference number to the canonical page URL, trying
// the issue endpoint first and falling back to pull requests on 404.
func (c *Client) Search(ctx context.Context, owner, repo string, number int) (string, error) {
	issue, err := c.GetIssue(ctx, owner, repo, number)
	if err == nil {
		return issue.HTMLURL, nil
	}
	if !IsNotFound(err) {
		return "", err
	}
	pull, err := c.GetPull(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	return pull.HTMLURL, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// The error body is informative but optional.
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	return json.Unmarshal(body, out)
}
