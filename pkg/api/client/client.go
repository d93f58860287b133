// Package client provides typed access to the Portfolify API for
// interactive tools.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the deployment API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 6 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status     int
	Message    string
	Suggestion string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// DeployResponse mirrors the POST /api/deploy success payload.
type DeployResponse struct {
	Success      bool   `json:"success"`
	URL          string `json:"url"`
	DeploymentID string `json:"deploymentId"`
	AccountUsed  string `json:"accountUsed"`
	AccountUsage string `json:"accountUsage"`
	Message      string `json:"message"`
	Warning      string `json:"warning"`
}

// AccountView mirrors one entry of the accounts listing.
type AccountView struct {
	ID               string `json:"id"`
	MaskedCredential string `json:"maskedCredential"`
	DeploymentsUsed  int    `json:"deploymentsUsed"`
	MaxDeployments   int    `json:"maxDeployments"`
	Active           bool   `json:"active"`
	Usage            string `json:"usage"`
	Percentage       int    `json:"percentage"`
}

// AccountsSummary aggregates rotation capacity.
type AccountsSummary struct {
	TotalDeployments  int    `json:"totalDeployments"`
	TotalCapacity     int    `json:"totalCapacity"`
	ActiveAccounts    int    `json:"activeAccounts"`
	OverallUsage      string `json:"overallUsage"`
	OverallPercentage int    `json:"overallPercentage"`
}

// AccountsResponse mirrors GET /api/accounts.
type AccountsResponse struct {
	Accounts []AccountView   `json:"accounts"`
	Summary  AccountsSummary `json:"summary"`
}

// Login exchanges the admin password for a session token.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/login", map[string]string{"password": password}, "", &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

// Deploy publishes an HTML artifact under the given project name.
func (c *Client) Deploy(ctx context.Context, projectName, html string) (*DeployResponse, error) {
	var out DeployResponse
	payload := map[string]string{"projectName": projectName, "html": html}
	if err := c.do(ctx, http.MethodPost, "/api/deploy", payload, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Accounts lists the rotation with masked credentials.
func (c *Client) Accounts(ctx context.Context) (*AccountsResponse, error) {
	var out AccountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddAccount registers a credential through the admin surface.
func (c *Client) AddAccount(ctx context.Context, token, id, credential, teamID string, maxDeployments int) error {
	payload := map[string]any{
		"id":             id,
		"credential":     credential,
		"teamId":         teamID,
		"maxDeployments": maxDeployments,
	}
	return c.do(ctx, http.MethodPost, "/api/admin/accounts", payload, token, nil)
}

// RemoveAccount deletes a credential from the rotation.
func (c *Client) RemoveAccount(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/accounts/"+url.PathEscape(id), nil, token, nil)
}

// Reset zeroes the usage counter for one account, or all when id is empty.
func (c *Client) Reset(ctx context.Context, token, id string) error {
	payload := map[string]string{}
	if id != "" {
		payload["accountId"] = id
	}
	return c.do(ctx, http.MethodPost, "/api/admin/reset", payload, token, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := APIError{Status: resp.StatusCode}
		var envelope struct {
			Error      string `json:"error"`
			Suggestion string `json:"suggestion"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Message = envelope.Error
			apiErr.Suggestion = envelope.Suggestion
		}
		return apiErr
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
